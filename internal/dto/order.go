package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
)

type OrderItemDTO struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	IsShortage  bool            `json:"isShortage"`
	ShortageQty decimal.Decimal `json:"shortageQty"`
}

type OrderStatusChangeDTO struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
	EventKey  string    `json:"eventKey"`
	CreatedAt time.Time `json:"createdAt"`
}

type OrderResponse struct {
	TraceID    string                 `json:"traceId"`
	ID         string                 `json:"id"`
	OrderedBy  string                 `json:"orderedBy"`
	FacilityID *string                `json:"facilityId,omitempty"`
	Status     string                 `json:"status"`
	Items      []OrderItemDTO         `json:"items"`
	History    []OrderStatusChangeDTO `json:"history"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

func NewOrderResponse(traceID string, o domain.Order, history []domain.OrderStatusChange) OrderResponse {
	items := make([]OrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			IsShortage:  it.IsShortage,
			ShortageQty: it.ShortageQty,
		}
	}
	changes := make([]OrderStatusChangeDTO, len(history))
	for i, h := range history {
		changes[i] = OrderStatusChangeDTO{
			From:      string(h.FromStatus),
			To:        string(h.ToStatus),
			Note:      h.Note,
			EventKey:  h.EventKey,
			CreatedAt: h.CreatedAt,
		}
	}
	return OrderResponse{
		TraceID:    traceID,
		ID:         o.ID,
		OrderedBy:  o.OrderedBy,
		FacilityID: o.FacilityID,
		Status:     string(o.Status),
		Items:      items,
		History:    changes,
		UpdatedAt:  o.UpdatedAt,
	}
}
