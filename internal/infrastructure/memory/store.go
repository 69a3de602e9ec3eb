package memory

import (
	"context"
	"slices"
	"sync"

	"fulfillment/internal/domain"
)

type state struct {
	products            map[string]domain.Product
	orders              map[string]domain.Order
	history             []domain.OrderStatusChange
	requests            map[string]domain.ProcurementRequest
	vendors             map[string]domain.Vendor
	vendorAssignments   []domain.VendorAssignment
	purchaseOrders      map[string]domain.PurchaseOrder
	partners            map[string]domain.DeliveryPartner
	deliveryAssignments map[string]domain.DeliveryAssignment
}

func newState() *state {
	return &state{
		products:            make(map[string]domain.Product),
		orders:              make(map[string]domain.Order),
		requests:            make(map[string]domain.ProcurementRequest),
		vendors:             make(map[string]domain.Vendor),
		purchaseOrders:      make(map[string]domain.PurchaseOrder),
		partners:            make(map[string]domain.DeliveryPartner),
		deliveryAssignments: make(map[string]domain.DeliveryAssignment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	c.history = slices.Clone(s.history)
	for k, v := range s.requests {
		c.requests[k] = cloneRequest(v)
	}
	for k, v := range s.vendors {
		c.vendors[k] = cloneVendor(v)
	}
	c.vendorAssignments = slices.Clone(s.vendorAssignments)
	for k, v := range s.purchaseOrders {
		c.purchaseOrders[k] = clonePurchaseOrder(v)
	}
	for k, v := range s.partners {
		c.partners[k] = v
	}
	for k, v := range s.deliveryAssignments {
		c.deliveryAssignments[k] = v
	}
	return c
}

// Pointer fields on stored values are never written through, only replaced,
// so copying the slices is enough to isolate a clone.
func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func cloneRequest(r domain.ProcurementRequest) domain.ProcurementRequest {
	r.Lines = slices.Clone(r.Lines)
	return r
}

func cloneVendor(v domain.Vendor) domain.Vendor {
	v.Products = slices.Clone(v.Products)
	return v
}

func clonePurchaseOrder(po domain.PurchaseOrder) domain.PurchaseOrder {
	po.Lines = slices.Clone(po.Lines)
	return po
}

// Store is an in-process implementation of every repository. A single mutex
// serialises transactions, which gives the same guarantees as the row locks
// taken by the MySQL repositories.
type Store struct {
	mu   sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the store mutex unless ctx already belongs to one of this
// store's transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn holding the store lock. If fn fails every change it made
// is discarded. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func (s *Store) Requests() *RequestRepository { return &RequestRepository{s: s} }

func (s *Store) Vendors() *VendorRepository { return &VendorRepository{s: s} }

func (s *Store) VendorAssignments() *VendorAssignmentRepository {
	return &VendorAssignmentRepository{s: s}
}

func (s *Store) PurchaseOrders() *PurchaseOrderRepository { return &PurchaseOrderRepository{s: s} }

func (s *Store) Partners() *PartnerRepository { return &PartnerRepository{s: s} }

func (s *Store) DeliveryAssignments() *DeliveryAssignmentRepository {
	return &DeliveryAssignmentRepository{s: s}
}
