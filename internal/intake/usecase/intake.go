package usecase

import (
	"context"

	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	procurementservice "fulfillment/internal/procurement/service"
)

type OrderStore interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	MarkShortages(ctx context.Context, orderID string, lines []domain.RequestLine) (*domain.Order, error)
}

type RequestCreator interface {
	CreateRequest(ctx context.Context, in procurementservice.CreateRequestInput) (*domain.ProcurementRequest, error)
}

// Intake turns the two upstream triggers, an operator's shortage report and
// a franchise restock cart, into procurement requests.
type Intake struct {
	orders   OrderStore
	requests RequestCreator
	logger   *zap.Logger
}

func NewIntake(orders OrderStore, requests RequestCreator, logger *zap.Logger) *Intake {
	return &Intake{
		orders:   orders,
		requests: requests,
		logger:   logger,
	}
}

// ReportShortage flags the order's short lines and opens an order-derived
// request for them in one transaction. Line price and unit default to the
// ordered item's. The order's fulfillment facility is the requester.
func (i *Intake) ReportShortage(ctx context.Context, orderID string, lines []domain.RequestLine) (*domain.ProcurementRequest, error) {
	order, err := i.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.FacilityID == nil || *order.FacilityID == "" {
		return nil, apperrors.NewValidationError("order has no fulfillment facility", apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "order must be routed to a facility before reporting a shortage",
		})
	}

	filled := make([]domain.RequestLine, len(lines))
	for n, l := range lines {
		if item, ok := order.Item(l.ProductID); ok {
			if l.Unit == "" {
				l.Unit = item.Unit
			}
			if l.RequestedPrice.IsZero() {
				l.RequestedPrice = item.UnitPrice
			}
		}
		filled[n] = l
	}

	req, err := i.requests.CreateRequest(ctx, procurementservice.CreateRequestInput{
		Source:        domain.SourceOrderDerived,
		SourceOrderID: &order.ID,
		RequestedBy:   *order.FacilityID,
		Lines:         filled,
		BeforeInsert: func(ctx context.Context) error {
			_, err := i.orders.MarkShortages(ctx, order.ID, filled)
			return err
		},
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("shortage reported", zap.String("orderId", orderID), zap.String("requestId", req.ID))
	return req, nil
}

func (i *Intake) SubmitRestockCart(ctx context.Context, franchiseID string, lines []domain.RequestLine) (*domain.ProcurementRequest, error) {
	return i.requests.CreateRequest(ctx, procurementservice.CreateRequestInput{
		Source:      domain.SourceFranchiseInitiated,
		RequestedBy: franchiseID,
		Lines:       lines,
	})
}
