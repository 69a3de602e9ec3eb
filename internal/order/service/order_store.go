package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	UpdateItemShortage(ctx context.Context, item domain.OrderItem) error
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)
	AppendHistory(ctx context.Context, change domain.OrderStatusChange) (bool, error)
	ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error)
}

// OrderStore owns order status and shortage flags.
type OrderStore struct {
	tx     TxRunner
	repo   OrderRepository
	logger *zap.Logger
}

func NewOrderStore(tx TxRunner, repo OrderRepository, logger *zap.Logger) *OrderStore {
	return &OrderStore{
		tx:     tx,
		repo:   repo,
		logger: logger,
	}
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateNotFound(err, orderID)
	}
	return order, nil
}

func (s *OrderStore) History(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, orderID)
}

// MarkShortages flags each line's product on the order as short. Every line
// must name a product on the order with 0 < quantity <= ordered quantity.
func (s *OrderStore) MarkShortages(ctx context.Context, orderID string, lines []domain.RequestLine) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return translateNotFound(err, orderID)
		}

		var details []apperrors.ValidationDetail
		for i, line := range lines {
			field := "lines[" + strconv.Itoa(i) + "]"
			item, ok := order.Item(line.ProductID)
			switch {
			case !ok:
				details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "product is not on the order"})
			case !line.Quantity.IsPositive():
				details = append(details, apperrors.ValidationDetail{Field: field + ".shortageQty", Message: "shortageQty must be greater than 0"})
			case line.Quantity.GreaterThan(item.Quantity):
				details = append(details, apperrors.ValidationDetail{Field: field + ".shortageQty", Message: "shortageQty exceeds ordered quantity"})
			}
		}
		if len(details) > 0 {
			return invalidLines(details)
		}

		for _, line := range lines {
			for i := range order.Items {
				if order.Items[i].ProductID != line.ProductID {
					continue
				}
				order.Items[i].MarkShortage(line.Quantity)
				if err := s.repo.UpdateItemShortage(ctx, order.Items[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shortage recorded", zap.String("orderId", orderID), zap.Int("lines", len(lines)))
	return order, nil
}

// StatusUpdate is one keyed projection onto an order. An empty Target, or
// one that does not advance the order, only records an audit entry.
type StatusUpdate struct {
	OrderID  string
	Target   domain.OrderStatus
	EventKey string
	Note     string
}

// UpdateStatus applies u at most once per event key. It returns the recorded
// change, or nil when the key was already applied.
func (s *OrderStore) UpdateStatus(ctx context.Context, u StatusUpdate) (*domain.OrderStatusChange, error) {
	var change *domain.OrderStatusChange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		change = nil

		order, err := s.repo.FindByIDForUpdate(ctx, u.OrderID)
		if err != nil {
			return translateNotFound(err, u.OrderID)
		}

		c := domain.OrderStatusChange{
			ID:         uuid.NewString(),
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   order.Status,
			Note:       u.Note,
			EventKey:   u.EventKey,
			CreatedAt:  time.Now().UTC(),
		}
		if order.Status.Advances(u.Target) {
			c.ToStatus = u.Target
		}

		appended, err := s.repo.AppendHistory(ctx, c)
		if err != nil {
			return err
		}
		if !appended {
			return nil
		}

		if c.ToStatus != c.FromStatus {
			ok, err := s.repo.UpdateStatus(ctx, order.ID, c.FromStatus, c.ToStatus)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewConflictError(fmt.Sprintf("order %s changed concurrently", order.ID))
			}
		}
		change = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case change == nil:
		s.logger.Debug("order projection already applied", zap.String("orderId", u.OrderID), zap.String("eventKey", u.EventKey))
	case change.ToStatus != change.FromStatus:
		s.logger.Info("order status updated",
			zap.String("orderId", u.OrderID),
			zap.String("from", string(change.FromStatus)),
			zap.String("to", string(change.ToStatus)),
			zap.String("eventKey", u.EventKey),
		)
	}
	return change, nil
}

func translateNotFound(err error, orderID string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(apperrors.CodeUnknownOrder, "order %s not found", orderID)
	}
	return err
}

func invalidLines(details []apperrors.ValidationDetail) error {
	we := apperrors.NewWorkflowError(apperrors.CodeInvalidLineItem, "%d invalid line(s)", len(details))
	we.Details = details
	return we
}
