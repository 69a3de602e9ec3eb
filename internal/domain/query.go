package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestFilter selects procurement requests. Zero fields match everything.
type RequestFilter struct {
	RequestedBy   string
	Status        ProcurementStatus
	SourceOrderID string
}

func (f RequestFilter) Matches(r ProcurementRequest) bool {
	if f.RequestedBy != "" && r.RequestedBy != f.RequestedBy {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.SourceOrderID != "" && (r.SourceOrderID == nil || *r.SourceOrderID != f.SourceOrderID) {
		return false
	}
	return true
}

// RequestCursor marks the last request of a page in (CreatedAt, ID)
// descending order.
type RequestCursor struct {
	CreatedAt time.Time
	ID        string
}

// After reports whether r sorts after the cursor in reverse-chronological order.
func (c *RequestCursor) After(r ProcurementRequest) bool {
	if c == nil {
		return true
	}
	if r.CreatedAt.Equal(c.CreatedAt) {
		return r.ID < c.ID
	}
	return r.CreatedAt.Before(c.CreatedAt)
}

// PartnerCursor marks the last partner of a page in (Rating desc, ID asc)
// order.
type PartnerCursor struct {
	Rating decimal.Decimal
	ID     string
}

func (c *PartnerCursor) After(p DeliveryPartner) bool {
	if c == nil {
		return true
	}
	if p.Rating.Equal(c.Rating) {
		return p.ID > c.ID
	}
	return p.Rating.LessThan(c.Rating)
}
