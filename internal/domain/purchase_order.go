package domain

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderDraft           PurchaseOrderStatus = "draft"
	PurchaseOrderPendingApproval PurchaseOrderStatus = "pending_approval"
	PurchaseOrderApproved        PurchaseOrderStatus = "approved"
)

var purchaseOrderTransitions = map[PurchaseOrderStatus]PurchaseOrderStatus{
	PurchaseOrderDraft:           PurchaseOrderPendingApproval,
	PurchaseOrderPendingApproval: PurchaseOrderApproved,
}

func (s PurchaseOrderStatus) Valid() bool {
	return s == PurchaseOrderDraft || s == PurchaseOrderPendingApproval || s == PurchaseOrderApproved
}

func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	next, ok := purchaseOrderTransitions[s]
	return ok && next == target
}

func (s *PurchaseOrderStatus) Scan(src any) error {
	return scanStatus("purchase order status", s, src)
}

func (s PurchaseOrderStatus) Value() (driver.Value, error) {
	return statusValue("purchase order status", s)
}

type DispatchStatus string

const (
	DispatchNotReady       DispatchStatus = "not_ready"
	DispatchReadyForPickup DispatchStatus = "ready_for_pickup"
	DispatchPickedUp       DispatchStatus = "picked_up"
	DispatchDelivered      DispatchStatus = "delivered"
)

var dispatchTransitions = map[DispatchStatus]DispatchStatus{
	DispatchNotReady:       DispatchReadyForPickup,
	DispatchReadyForPickup: DispatchPickedUp,
	DispatchPickedUp:       DispatchDelivered,
}

func (s DispatchStatus) Valid() bool {
	_, ok := dispatchTransitions[s]
	return ok || s == DispatchDelivered
}

func (s DispatchStatus) CanTransitionTo(target DispatchStatus) bool {
	next, ok := dispatchTransitions[s]
	return ok && next == target
}

func (s *DispatchStatus) Scan(src any) error { return scanStatus("dispatch status", s, src) }

func (s DispatchStatus) Value() (driver.Value, error) { return statusValue("dispatch status", s) }

type PurchaseOrder struct {
	ID             string
	RequestID      *string
	VendorID       string
	VendorName     string
	FranchiseID    string
	Lines          []PurchaseOrderLine
	TotalAmount    decimal.Decimal
	Status         PurchaseOrderStatus
	DispatchStatus DispatchStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PurchaseOrderLine struct {
	ID           string
	OrderID      string
	SourceLineID *string
	ProductID    string
	ProductName  string
	Quantity     decimal.Decimal
	Unit         string
	UnitPrice    decimal.Decimal
}

func (l PurchaseOrderLine) Extension() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// LinesTotal is the sum of quantity × unit price over lines.
func LinesTotal(lines []PurchaseOrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Extension())
	}
	return total
}

// VendorLines binds every line to the order's vendor.
func (po PurchaseOrder) VendorLines() []VendorBound {
	var vendor *string
	if po.VendorID != "" {
		v := po.VendorID
		vendor = &v
	}
	out := make([]VendorBound, len(po.Lines))
	for i := range po.Lines {
		out[i] = fixedVendor{id: vendor}
	}
	return out
}

// AddLines appends lines and recomputes the total. Lines are only ever
// changed through here so TotalAmount cannot drift from its components.
func (po *PurchaseOrder) AddLines(lines ...PurchaseOrderLine) {
	for i := range lines {
		lines[i].OrderID = po.ID
	}
	po.Lines = append(po.Lines, lines...)
	po.TotalAmount = LinesTotal(po.Lines)
}
