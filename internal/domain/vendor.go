package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Vendor struct {
	ID        string
	Name      string
	Products  []VendorProduct
	Capacity  int
	Rating    decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VendorProduct is one catalog entry. Price is zero when the vendor has not
// published one.
type VendorProduct struct {
	ProductID string
	Price     decimal.Decimal
}

func (v Vendor) Supplies(productID string) (VendorProduct, bool) {
	for _, p := range v.Products {
		if p.ProductID == productID {
			return p, true
		}
	}
	return VendorProduct{}, false
}

// MatchCount returns how many of productIDs the vendor can supply.
func (v Vendor) MatchCount(productIDs []string) int {
	n := 0
	for _, id := range productIDs {
		if _, ok := v.Supplies(id); ok {
			n++
		}
	}
	return n
}

// VendorAssignment records a vendor binding for a procurement line. A line
// has at most one active assignment; superseded ones are kept for audit.
type VendorAssignment struct {
	ID           string
	LineItemID   string
	RequestID    string
	VendorID     string
	VendorName   string
	QuotedPrice  decimal.Decimal
	Active       bool
	AssignedAt   time.Time
	SupersededAt *time.Time
}
