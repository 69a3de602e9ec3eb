package domain

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced        OrderStatus = "placed"
	OrderStatusAwaitingStock OrderStatus = "awaiting_stock"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPlaced:        0,
	OrderStatusAwaitingStock: 1,
	OrderStatusProcessing:    2,
	OrderStatusDelivered:     3,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok || s == OrderStatusCancelled
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Advances reports whether moving from s to next goes strictly forward.
// Cancellation is an explicit operator transition and never an advance.
func (s OrderStatus) Advances(next OrderStatus) bool {
	if s.Terminal() || next == OrderStatusCancelled {
		return false
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	return ok && to > from
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	return parseStatus[OrderStatus]("order status", s)
}

func (s *OrderStatus) Scan(src any) error { return scanStatus("order status", s, src) }

func (s OrderStatus) Value() (driver.Value, error) { return statusValue("order status", s) }

type Order struct {
	ID         string
	OrderedBy  string
	FacilityID *string
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item returns the line for productID, if the order carries one.
func (o Order) Item(productID string) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return OrderItem{}, false
}

type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	IsShortage  bool
	ShortageQty decimal.Decimal
}

// MarkShortage flags the item as short by qty. A zero qty clears the flag so
// that IsShortage and ShortageQty never disagree.
func (i *OrderItem) MarkShortage(qty decimal.Decimal) {
	if qty.IsPositive() {
		i.IsShortage = true
		i.ShortageQty = qty
		return
	}
	i.IsShortage = false
	i.ShortageQty = decimal.Zero
}

// OrderStatusChange is one entry of an order's audit trail.
type OrderStatusChange struct {
	ID         string
	OrderID    string
	FromStatus OrderStatus
	ToStatus   OrderStatus
	Note       string
	EventKey   string
	CreatedAt  time.Time
}
