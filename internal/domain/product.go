package domain

import "github.com/shopspring/decimal"

// Product is the catalog view needed by procurement: enough to resolve a
// reference and snapshot its name.
type Product struct {
	ID        string
	Name      string
	Unit      string
	Price     decimal.Decimal
	IsActive  bool
	IsDeleted bool
}

func (p Product) Procurable() bool {
	return p.IsActive && !p.IsDeleted
}
