package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
)

type AssignVendorRequest struct {
	VendorID    string           `json:"vendorId"`
	QuotedPrice *decimal.Decimal `json:"quotedPrice,omitempty"`
}

type VendorDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Rating   decimal.Decimal `json:"rating"`
	Capacity int             `json:"capacity"`
	Matches  int             `json:"matches"`
}

type CompatibleVendorsResponse struct {
	TraceID    string      `json:"traceId"`
	ExactMatch bool        `json:"exactMatch"`
	Vendors    []VendorDTO `json:"vendors"`
}

func NewCompatibleVendorsResponse(traceID string, vendors []domain.Vendor, productIDs []string, exact bool) CompatibleVendorsResponse {
	out := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		out[i] = VendorDTO{
			ID:       v.ID,
			Name:     v.Name,
			Rating:   v.Rating,
			Capacity: v.Capacity,
			Matches:  v.MatchCount(productIDs),
		}
	}
	return CompatibleVendorsResponse{TraceID: traceID, ExactMatch: exact, Vendors: out}
}

type AssignmentProgressResponse struct {
	TraceID       string `json:"traceId"`
	RequestID     string `json:"requestId"`
	Assigned      int    `json:"assigned"`
	Total         int    `json:"total"`
	FullyAssigned bool   `json:"fullyAssigned"`
}

type LineResponse struct {
	TraceID string `json:"traceId"`
	ProcurementLineDTO
}

func NewLineResponse(traceID string, l domain.ProcurementLineItem) LineResponse {
	return LineResponse{
		TraceID: traceID,
		ProcurementLineDTO: ProcurementLineDTO{
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
		},
	}
}

type VendorAssignmentDTO struct {
	ID           string          `json:"id"`
	VendorID     string          `json:"vendorId"`
	VendorName   string          `json:"vendorName"`
	QuotedPrice  decimal.Decimal `json:"quotedPrice"`
	Active       bool            `json:"active"`
	AssignedAt   time.Time       `json:"assignedAt"`
	SupersededAt *time.Time      `json:"supersededAt,omitempty"`
}

type AssignmentHistoryResponse struct {
	TraceID     string                `json:"traceId"`
	LineItemID  string                `json:"lineItemId"`
	Assignments []VendorAssignmentDTO `json:"assignments"`
}

func NewAssignmentHistoryResponse(traceID, lineID string, history []domain.VendorAssignment) AssignmentHistoryResponse {
	out := make([]VendorAssignmentDTO, len(history))
	for i, a := range history {
		out[i] = VendorAssignmentDTO{
			ID:           a.ID,
			VendorID:     a.VendorID,
			VendorName:   a.VendorName,
			QuotedPrice:  a.QuotedPrice,
			Active:       a.Active,
			AssignedAt:   a.AssignedAt,
			SupersededAt: a.SupersededAt,
		}
	}
	return AssignmentHistoryResponse{TraceID: traceID, LineItemID: lineID, Assignments: out}
}
