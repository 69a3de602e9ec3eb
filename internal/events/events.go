package events

import (
	"time"

	"github.com/google/uuid"

	"fulfillment/internal/domain"
)

type Type string

const (
	ProcurementStatusChanged   Type = "procurement.status_changed"
	PurchaseOrderStatusChanged Type = "purchase_order.status_changed"
	DeliveryCompleted          Type = "delivery.completed"
	OrderStatusUpdated         Type = "order.status_updated"
)

// Event is emitted after the transaction that caused it has committed. Key
// identifies the underlying fact: two events with the same key describe the
// same change and consumers must treat the second as a no-op.
type Event struct {
	ID          string    `json:"eventId"`
	Type        Type      `json:"type"`
	AggregateID string    `json:"aggregateId"`
	Key         string    `json:"key"`
	Payload     any       `json:"payload"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func newEvent(t Type, aggregateID, key string, payload any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		Key:         key,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
}

type ProcurementStatusChangedPayload struct {
	RequestID     string                   `json:"requestId"`
	Source        domain.SourceType        `json:"source"`
	SourceOrderID *string                  `json:"sourceOrderId,omitempty"`
	Status        domain.ProcurementStatus `json:"status"`
}

func NewProcurementStatusChanged(req domain.ProcurementRequest) Event {
	return newEvent(ProcurementStatusChanged, req.ID, ProcurementKey(req.ID, req.Status), ProcurementStatusChangedPayload{
		RequestID:     req.ID,
		Source:        req.Source,
		SourceOrderID: req.SourceOrderID,
		Status:        req.Status,
	})
}

func ProcurementKey(requestID string, status domain.ProcurementStatus) string {
	return "procurement:" + requestID + ":" + string(status)
}

type PurchaseOrderStatusChangedPayload struct {
	PurchaseOrderID string                     `json:"purchaseOrderId"`
	Status          domain.PurchaseOrderStatus `json:"status"`
	DispatchStatus  domain.DispatchStatus      `json:"dispatchStatus"`
}

func NewPurchaseOrderStatusChanged(po domain.PurchaseOrder) Event {
	key := "purchase_order:" + po.ID + ":" + string(po.Status) + ":" + string(po.DispatchStatus)
	return newEvent(PurchaseOrderStatusChanged, po.ID, key, PurchaseOrderStatusChangedPayload{
		PurchaseOrderID: po.ID,
		Status:          po.Status,
		DispatchStatus:  po.DispatchStatus,
	})
}

type DeliveryCompletedPayload struct {
	AssignmentID string         `json:"assignmentId"`
	LegType      domain.LegType `json:"legType"`
	LegID        string         `json:"legId"`
	PartnerID    string         `json:"partnerId"`
}

func NewDeliveryCompleted(a domain.DeliveryAssignment) Event {
	return newEvent(DeliveryCompleted, a.ID, DeliveryKey(a.ID), DeliveryCompletedPayload{
		AssignmentID: a.ID,
		LegType:      a.Leg.Type,
		LegID:        a.Leg.ID,
		PartnerID:    a.PartnerID,
	})
}

func DeliveryKey(assignmentID string) string {
	return "delivery:" + assignmentID
}

type OrderStatusUpdatedPayload struct {
	OrderID string             `json:"orderId"`
	From    domain.OrderStatus `json:"from"`
	To      domain.OrderStatus `json:"to"`
}

func NewOrderStatusUpdated(orderID string, from, to domain.OrderStatus, cause string) Event {
	return newEvent(OrderStatusUpdated, orderID, "order:"+orderID+":"+cause, OrderStatusUpdatedPayload{
		OrderID: orderID,
		From:    from,
		To:      to,
	})
}
