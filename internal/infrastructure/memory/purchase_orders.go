package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type PurchaseOrderRepository struct {
	s *Store
}

func (r *PurchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.data.purchaseOrders[po.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("purchase order %s already exists", po.ID))
	}
	r.s.data.purchaseOrders[po.ID] = clonePurchaseOrder(*po)
	return nil
}

// AppendLines stores lines on po and persists po's recomputed total.
func (r *PurchaseOrderRepository) AppendLines(ctx context.Context, po *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.purchaseOrders[po.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("purchase order %s not found", po.ID))
	}
	stored = clonePurchaseOrder(stored)
	stored.Lines = append(stored.Lines, lines...)
	stored.TotalAmount = po.TotalAmount
	stored.UpdatedAt = time.Now().UTC()
	r.s.data.purchaseOrders[po.ID] = stored
	return nil
}

func (r *PurchaseOrderRepository) FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	defer r.s.lock(ctx)()

	po, ok := r.s.data.purchaseOrders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("purchase order %s not found", id))
	}
	po = clonePurchaseOrder(po)
	return &po, nil
}

func (r *PurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return r.FindByID(ctx, id)
}

// FindDraftByRequestAndVendor returns nil when there is no draft order for
// the pair.
func (r *PurchaseOrderRepository) FindDraftByRequestAndVendor(ctx context.Context, requestID, vendorID string) (*domain.PurchaseOrder, error) {
	defer r.s.lock(ctx)()

	for _, po := range r.sorted() {
		if po.RequestID != nil && *po.RequestID == requestID && po.VendorID == vendorID && po.Status == domain.PurchaseOrderDraft {
			po = clonePurchaseOrder(po)
			return &po, nil
		}
	}
	return nil, nil
}

func (r *PurchaseOrderRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error) {
	defer r.s.lock(ctx)()

	var out []domain.PurchaseOrder
	for _, po := range r.sorted() {
		if po.RequestID != nil && *po.RequestID == requestID {
			out = append(out, clonePurchaseOrder(po))
		}
	}
	return out, nil
}

func (r *PurchaseOrderRepository) sorted() []domain.PurchaseOrder {
	out := make([]domain.PurchaseOrder, 0, len(r.s.data.purchaseOrders))
	for _, po := range r.s.data.purchaseOrders {
		out = append(out, po)
	}
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (r *PurchaseOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PurchaseOrderStatus) (bool, error) {
	defer r.s.lock(ctx)()

	po, ok := r.s.data.purchaseOrders[id]
	if !ok || po.Status != from {
		return false, nil
	}
	po.Status = to
	po.UpdatedAt = time.Now().UTC()
	r.s.data.purchaseOrders[id] = po
	return true, nil
}

// UpdateDispatchStatus only moves dispatch forward on approved orders.
func (r *PurchaseOrderRepository) UpdateDispatchStatus(ctx context.Context, id string, from, to domain.DispatchStatus) (bool, error) {
	defer r.s.lock(ctx)()

	po, ok := r.s.data.purchaseOrders[id]
	if !ok || po.DispatchStatus != from || po.Status != domain.PurchaseOrderApproved {
		return false, nil
	}
	po.DispatchStatus = to
	po.UpdatedAt = time.Now().UTC()
	r.s.data.purchaseOrders[id] = po
	return true, nil
}

func (r *PurchaseOrderRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error {
	defer r.s.lock(ctx)()

	po, ok := r.s.data.purchaseOrders[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("purchase order %s not found", id))
	}
	po.TotalAmount = total
	po.UpdatedAt = time.Now().UTC()
	r.s.data.purchaseOrders[id] = po
	return nil
}
