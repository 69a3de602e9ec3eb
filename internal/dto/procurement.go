package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
)

// LineRequest is one requested product in a shortage report or restock cart.
type LineRequest struct {
	ProductID      string           `json:"productId"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Unit           string           `json:"unit,omitempty"`
	RequestedPrice *decimal.Decimal `json:"requestedPrice,omitempty"`
}

type ShortageRequest struct {
	Lines []LineRequest `json:"lines"`
}

type RestockRequest struct {
	Lines []LineRequest `json:"lines"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type ProcurementLineDTO struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	RequestedPrice  decimal.Decimal `json:"requestedPrice"`
	QuotedPrice     decimal.Decimal `json:"quotedPrice"`
	VendorID        *string         `json:"vendorId"`
	VendorName      string          `json:"vendorName,omitempty"`
	PurchaseOrderID *string         `json:"purchaseOrderId,omitempty"`
}

type ProcurementRequestDTO struct {
	ID            string               `json:"id"`
	Source        string               `json:"source"`
	SourceOrderID *string              `json:"sourceOrderId,omitempty"`
	RequestedBy   string               `json:"requestedBy"`
	Status        string               `json:"status"`
	StatusLabel   string               `json:"statusLabel"`
	Lines         []ProcurementLineDTO `json:"lines"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type ProcurementRequestResponse struct {
	TraceID string `json:"traceId"`
	ProcurementRequestDTO
}

type ProcurementRequestListResponse struct {
	TraceID  string                  `json:"traceId"`
	Requests []ProcurementRequestDTO `json:"requests"`
	HasMore  bool                    `json:"hasMore"`
}

func NewProcurementRequestDTO(r domain.ProcurementRequest) ProcurementRequestDTO {
	lines := make([]ProcurementLineDTO, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = ProcurementLineDTO{
			ID:              l.ID,
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			Unit:            l.Unit,
			RequestedPrice:  l.RequestedPrice,
			QuotedPrice:     l.QuotedPrice,
			VendorID:        l.VendorID,
			VendorName:      l.VendorName,
			PurchaseOrderID: l.PurchaseOrderID,
		}
	}
	return ProcurementRequestDTO{
		ID:            r.ID,
		Source:        string(r.Source),
		SourceOrderID: r.SourceOrderID,
		RequestedBy:   r.RequestedBy,
		Status:        string(r.Status),
		StatusLabel:   r.Status.DisplayLabel(),
		Lines:         lines,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func NewProcurementRequestResponse(traceID string, r domain.ProcurementRequest) ProcurementRequestResponse {
	return ProcurementRequestResponse{TraceID: traceID, ProcurementRequestDTO: NewProcurementRequestDTO(r)}
}
