package memory

import (
	"context"
	"fmt"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.data.orders[o.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("order %s already exists", o.ID))
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	r.s.data.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	defer r.s.lock(ctx)()

	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *OrderRepository) UpdateItemShortage(ctx context.Context, item domain.OrderItem) error {
	defer r.s.lock(ctx)()

	o, ok := r.s.data.orders[item.OrderID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", item.OrderID))
	}
	for i := range o.Items {
		if o.Items[i].ID == item.ID {
			o.Items[i].IsShortage = item.IsShortage
			o.Items[i].ShortageQty = item.ShortageQty
			o.UpdatedAt = time.Now().UTC()
			r.s.data.orders[o.ID] = o
			return nil
		}
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("order item %s not found", item.ID))
}

// UpdateStatus sets the status only if it still equals from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	defer r.s.lock(ctx)()

	o, ok := r.s.data.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.data.orders[id] = o
	return true, nil
}

// AppendHistory records change unless an entry with the same event key
// exists for the order, in which case it returns false.
func (r *OrderRepository) AppendHistory(ctx context.Context, change domain.OrderStatusChange) (bool, error) {
	defer r.s.lock(ctx)()

	for _, h := range r.s.data.history {
		if h.OrderID == change.OrderID && h.EventKey == change.EventKey {
			return false, nil
		}
	}
	r.s.data.history = append(r.s.data.history, change)
	return true, nil
}

func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error) {
	defer r.s.lock(ctx)()

	var out []domain.OrderStatusChange
	for _, h := range r.s.data.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}
