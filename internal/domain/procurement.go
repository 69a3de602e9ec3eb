package domain

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

type SourceType string

const (
	SourceFranchiseInitiated SourceType = "franchise-initiated"
	SourceOrderDerived       SourceType = "order-derived"
)

func (s SourceType) Valid() bool {
	return s == SourceFranchiseInitiated || s == SourceOrderDerived
}

func (s *SourceType) Scan(src any) error { return scanStatus("source type", s, src) }

func (s SourceType) Value() (driver.Value, error) { return statusValue("source type", s) }

type ProcurementStatus string

const (
	ProcurementPendingAssignment ProcurementStatus = "pending_assignment"
	ProcurementAssigned          ProcurementStatus = "assigned"
	ProcurementAccepted          ProcurementStatus = "accepted"
	ProcurementPreparing         ProcurementStatus = "preparing"
	ProcurementReady             ProcurementStatus = "ready"
	ProcurementInTransit         ProcurementStatus = "in_transit"
	ProcurementDelivered         ProcurementStatus = "delivered"
	ProcurementCompleted         ProcurementStatus = "completed"
)

// ProcurementLifecycle is the only legal order of procurement statuses.
var ProcurementLifecycle = []ProcurementStatus{
	ProcurementPendingAssignment,
	ProcurementAssigned,
	ProcurementAccepted,
	ProcurementPreparing,
	ProcurementReady,
	ProcurementInTransit,
	ProcurementDelivered,
	ProcurementCompleted,
}

func (s ProcurementStatus) index() int {
	for i, st := range ProcurementLifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ProcurementStatus) Valid() bool {
	return s.index() >= 0
}

// Next returns the single status s may move to.
func (s ProcurementStatus) Next() (ProcurementStatus, bool) {
	i := s.index()
	if i < 0 || i == len(ProcurementLifecycle)-1 {
		return "", false
	}
	return ProcurementLifecycle[i+1], true
}

func (s ProcurementStatus) CanTransitionTo(target ProcurementStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Open reports whether the shortfall stock has not yet reached the facility.
func (s ProcurementStatus) Open() bool {
	return s.index() < ProcurementDelivered.index()
}

// DisplayLabel is the label shown to operators. Requests waiting for vendor
// assignment are shown as "incoming"; that label is never stored.
func (s ProcurementStatus) DisplayLabel() string {
	if s == ProcurementPendingAssignment {
		return "incoming"
	}
	return string(s)
}

func ParseProcurementStatus(s string) (ProcurementStatus, error) {
	return parseStatus[ProcurementStatus]("procurement status", s)
}

func (s *ProcurementStatus) Scan(src any) error { return scanStatus("procurement status", s, src) }

func (s ProcurementStatus) Value() (driver.Value, error) {
	return statusValue("procurement status", s)
}

type ProcurementRequest struct {
	ID            string
	Source        SourceType
	SourceOrderID *string
	RequestedBy   string
	Status        ProcurementStatus
	Lines         []ProcurementLineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r ProcurementRequest) Line(id string) (ProcurementLineItem, bool) {
	for _, l := range r.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return ProcurementLineItem{}, false
}

// VendorLines exposes the request lines to the assignment gate.
func (r ProcurementRequest) VendorLines() []VendorBound {
	out := make([]VendorBound, len(r.Lines))
	for i := range r.Lines {
		out[i] = r.Lines[i]
	}
	return out
}

type ProcurementLineItem struct {
	ID              string
	RequestID       string
	ProductID       string
	ProductName     string
	Quantity        decimal.Decimal
	Unit            string
	RequestedPrice  decimal.Decimal
	QuotedPrice     decimal.Decimal
	VendorID        *string
	VendorName      string
	PurchaseOrderID *string
}

func (l ProcurementLineItem) BoundVendor() *string { return l.VendorID }

// UnitPrice is the price carried onto a purchase order line.
func (l ProcurementLineItem) UnitPrice() decimal.Decimal {
	if l.QuotedPrice.IsPositive() {
		return l.QuotedPrice
	}
	return l.RequestedPrice
}

func (l ProcurementLineItem) Finalized() bool {
	return l.PurchaseOrderID != nil
}

// VendorBound is any line that can carry a vendor binding.
type VendorBound interface {
	BoundVendor() *string
}

// Assignable is an aggregate whose lines are gated on vendor assignment.
type Assignable interface {
	VendorLines() []VendorBound
}

type fixedVendor struct {
	id *string
}

func (f fixedVendor) BoundVendor() *string { return f.id }

// FullyAssigned is true iff every line has a vendor. An empty set is fully
// assigned.
func FullyAssigned[L VendorBound](lines []L) bool {
	for _, l := range lines {
		if l.BoundVendor() == nil {
			return false
		}
	}
	return true
}

// CountAssigned returns how many lines carry a vendor.
func CountAssigned[L VendorBound](lines []L) int {
	n := 0
	for _, l := range lines {
		if l.BoundVendor() != nil {
			n++
		}
	}
	return n
}

// RequestLine is one requested product before it becomes a line item.
type RequestLine struct {
	ProductID      string
	Quantity       decimal.Decimal
	Unit           string
	RequestedPrice decimal.Decimal
}
