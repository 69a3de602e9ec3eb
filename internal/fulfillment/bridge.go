// Package fulfillment projects procurement and delivery outcomes onto the
// originating order. It never originates state of its own.
package fulfillment

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"fulfillment/internal/domain"
	"fulfillment/internal/events"
	orderservice "fulfillment/internal/order/service"
)

type OrderProjector interface {
	UpdateStatus(ctx context.Context, u orderservice.StatusUpdate) (*domain.OrderStatusChange, error)
}

type RequestReader interface {
	Get(ctx context.Context, requestID string) (*domain.ProcurementRequest, error)
	List(ctx context.Context, filter domain.RequestFilter) iter.Seq2[domain.ProcurementRequest, error]
}

type AssignmentReader interface {
	Get(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Subscriber interface {
	Subscribe(t events.Type, h events.Handler)
}

type Bridge struct {
	orders      OrderProjector
	requests    RequestReader
	assignments AssignmentReader
	events      EventPublisher
	logger      *zap.Logger
}

func NewBridge(orders OrderProjector, requests RequestReader, assignments AssignmentReader, publisher EventPublisher, logger *zap.Logger) *Bridge {
	return &Bridge{
		orders:      orders,
		requests:    requests,
		assignments: assignments,
		events:      publisher,
		logger:      logger,
	}
}

// Register subscribes the bridge to the two events it projects.
func (b *Bridge) Register(s Subscriber) {
	s.Subscribe(events.ProcurementStatusChanged, func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.ProcurementStatusChangedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
		}
		return b.OnProcurementStatusChanged(ctx, p.RequestID, p.Status)
	})
	s.Subscribe(events.DeliveryCompleted, func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.DeliveryCompletedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
		}
		return b.OnDeliveryCompleted(ctx, p.AssignmentID)
	})
}

// OnProcurementStatusChanged maps a request's status onto its source order.
// Creation parks the order in awaiting_stock. Arrival at the facility moves
// it to processing once no sibling request for the order is still open.
// Every other status is recorded in the order's history only. Franchise
// restock requests have no order and are ignored.
func (b *Bridge) OnProcurementStatusChanged(ctx context.Context, requestID string, status domain.ProcurementStatus) error {
	req, err := b.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Source != domain.SourceOrderDerived || req.SourceOrderID == nil {
		return nil
	}
	orderID := *req.SourceOrderID

	update := orderservice.StatusUpdate{
		OrderID:  orderID,
		EventKey: events.ProcurementKey(requestID, status),
		Note:     fmt.Sprintf("procurement request %s is %s", requestID, status.DisplayLabel()),
	}
	switch status {
	case domain.ProcurementPendingAssignment:
		update.Target = domain.OrderStatusAwaitingStock
	case domain.ProcurementDelivered, domain.ProcurementCompleted:
		open, err := b.openSibling(ctx, orderID, requestID)
		if err != nil {
			return err
		}
		if open != "" {
			update.Note += fmt.Sprintf("; waiting on request %s", open)
		} else {
			update.Target = domain.OrderStatusProcessing
		}
	}

	return b.apply(ctx, update)
}

// openSibling returns the id of another order-derived request for orderID
// whose stock has not arrived yet, or "" when there is none.
func (b *Bridge) openSibling(ctx context.Context, orderID, requestID string) (string, error) {
	for r, err := range b.requests.List(ctx, domain.RequestFilter{SourceOrderID: orderID}) {
		if err != nil {
			return "", err
		}
		if r.ID != requestID && r.Source == domain.SourceOrderDerived && r.Status.Open() {
			return r.ID, nil
		}
	}
	return "", nil
}

// OnDeliveryCompleted marks the order delivered when the completed leg is
// the order's own. Vendor and transit legs do not touch the order.
func (b *Bridge) OnDeliveryCompleted(ctx context.Context, assignmentID string) error {
	a, err := b.assignments.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.Leg.Type != domain.LegOrder {
		return nil
	}

	return b.apply(ctx, orderservice.StatusUpdate{
		OrderID:  a.Leg.ID,
		Target:   domain.OrderStatusDelivered,
		EventKey: events.DeliveryKey(assignmentID),
		Note:     fmt.Sprintf("delivered by %s", a.PartnerName),
	})
}

func (b *Bridge) apply(ctx context.Context, u orderservice.StatusUpdate) error {
	change, err := b.orders.UpdateStatus(ctx, u)
	if err != nil {
		return err
	}
	if change == nil || change.FromStatus == change.ToStatus {
		return nil
	}

	e := events.NewOrderStatusUpdated(u.OrderID, change.FromStatus, change.ToStatus, u.EventKey)
	if err := b.events.Publish(ctx, e); err != nil {
		b.logger.Warn("event projection failed", zap.String("type", string(e.Type)), zap.String("key", e.Key), zap.Error(err))
	}
	return nil
}
