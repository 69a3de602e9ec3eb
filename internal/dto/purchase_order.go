package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
)

type PurchaseOrderLineDTO struct {
	ID           string          `json:"id"`
	SourceLineID *string         `json:"sourceLineId,omitempty"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Extension    decimal.Decimal `json:"extension"`
}

type PurchaseOrderDTO struct {
	ID             string                 `json:"id"`
	RequestID      *string                `json:"requestId,omitempty"`
	VendorID       string                 `json:"vendorId"`
	VendorName     string                 `json:"vendorName"`
	FranchiseID    string                 `json:"franchiseId"`
	Status         string                 `json:"status"`
	DispatchStatus string                 `json:"dispatchStatus"`
	TotalAmount    decimal.Decimal        `json:"totalAmount"`
	Lines          []PurchaseOrderLineDTO `json:"lines"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type PurchaseOrderResponse struct {
	TraceID string `json:"traceId"`
	PurchaseOrderDTO
}

type PurchaseOrderListResponse struct {
	TraceID        string             `json:"traceId"`
	PurchaseOrders []PurchaseOrderDTO `json:"purchaseOrders"`
}

func NewPurchaseOrderDTO(po domain.PurchaseOrder) PurchaseOrderDTO {
	lines := make([]PurchaseOrderLineDTO, len(po.Lines))
	for i, l := range po.Lines {
		lines[i] = PurchaseOrderLineDTO{
			ID:           l.ID,
			SourceLineID: l.SourceLineID,
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitPrice:    l.UnitPrice,
			Extension:    l.Extension(),
		}
	}
	return PurchaseOrderDTO{
		ID:             po.ID,
		RequestID:      po.RequestID,
		VendorID:       po.VendorID,
		VendorName:     po.VendorName,
		FranchiseID:    po.FranchiseID,
		Status:         string(po.Status),
		DispatchStatus: string(po.DispatchStatus),
		TotalAmount:    po.TotalAmount,
		Lines:          lines,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}
}

func NewPurchaseOrderResponse(traceID string, po domain.PurchaseOrder) PurchaseOrderResponse {
	return PurchaseOrderResponse{TraceID: traceID, PurchaseOrderDTO: NewPurchaseOrderDTO(po)}
}

func NewPurchaseOrderListResponse(traceID string, pos []domain.PurchaseOrder) PurchaseOrderListResponse {
	out := make([]PurchaseOrderDTO, len(pos))
	for i, po := range pos {
		out[i] = NewPurchaseOrderDTO(po)
	}
	return PurchaseOrderListResponse{TraceID: traceID, PurchaseOrders: out}
}
