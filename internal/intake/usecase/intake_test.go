package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/events"
	"fulfillment/internal/infrastructure/memory"
	orderservice "fulfillment/internal/order/service"
	procurementservice "fulfillment/internal/procurement/service"
)

type mockGate struct {
	IsFullyAssignedFunc func(a domain.Assignable) bool
}

func (m *mockGate) IsFullyAssigned(a domain.Assignable) bool {
	return m.IsFullyAssignedFunc(a)
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, e events.Event) error
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.PublishFunc(ctx, e)
}

type mockCreator struct {
	CreateRequestFunc func(ctx context.Context, in procurementservice.CreateRequestInput) (*domain.ProcurementRequest, error)
}

func (m *mockCreator) CreateRequest(ctx context.Context, in procurementservice.CreateRequestInput) (*domain.ProcurementRequest, error) {
	return m.CreateRequestFunc(ctx, in)
}

type fixture struct {
	store   *memory.Store
	orders  *orderservice.OrderStore
	manager *procurementservice.Manager
	intake  *Intake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore()}
	f.orders = orderservice.NewOrderStore(f.store, f.store.Orders(), zap.NewNop())
	gate := &mockGate{IsFullyAssignedFunc: func(a domain.Assignable) bool { return domain.FullyAssigned(a.VendorLines()) }}
	pub := &mockPublisher{PublishFunc: func(ctx context.Context, e events.Event) error { return nil }}
	f.manager = procurementservice.NewManager(f.store, f.store.Requests(), f.store.Products(), gate, pub, zap.NewNop(), 10)
	f.intake = NewIntake(f.orders, f.manager, zap.NewNop())

	for _, p := range []domain.Product{
		{ID: "p-1", Name: "Flour 25kg", Unit: "bag", Price: decimal.NewFromInt(30), IsActive: true},
		{ID: "p-2", Name: "Olive oil", Unit: "l", Price: decimal.NewFromInt(8), IsActive: true},
		{ID: "p-3", Name: "Salt", Unit: "kg", Price: decimal.NewFromInt(1), IsActive: true},
	} {
		require.NoError(t, f.store.Products().Save(ctx, p))
	}

	facility := "fac-1"
	require.NoError(t, f.store.Orders().Create(ctx, &domain.Order{
		ID:         "o-1",
		OrderedBy:  "c-1",
		FacilityID: &facility,
		Status:     domain.OrderStatusPlaced,
		CreatedAt:  time.Now().UTC(),
		Items: []domain.OrderItem{
			{ID: "i-1", ProductID: "p-1", Quantity: decimal.NewFromInt(4), Unit: "bag", UnitPrice: decimal.RequireFromString("29.5")},
			{ID: "i-2", ProductID: "p-2", Quantity: decimal.NewFromInt(10), Unit: "bottle", UnitPrice: decimal.NewFromInt(9)},
		},
	}))
	require.NoError(t, f.store.Orders().Create(ctx, &domain.Order{
		ID:        "o-unrouted",
		OrderedBy: "c-2",
		Status:    domain.OrderStatusPlaced,
		CreatedAt: time.Now().UTC(),
		Items:     []domain.OrderItem{{ID: "i-3", ProductID: "p-1", Quantity: decimal.NewFromInt(1), Unit: "bag"}},
	}))
	return f
}

func shortage(productID string, qty int64) domain.RequestLine {
	return domain.RequestLine{ProductID: productID, Quantity: decimal.NewFromInt(qty)}
}

func (f *fixture) requestCount(t *testing.T) int {
	t.Helper()
	n := 0
	for _, err := range f.manager.List(context.Background(), domain.RequestFilter{}) {
		require.NoError(t, err)
		n++
	}
	return n
}

func TestReportShortage_OpensRequestAndFlagsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.intake.ReportShortage(ctx, "o-1", []domain.RequestLine{
		shortage("p-1", 2),
		{ProductID: "p-2", Quantity: decimal.NewFromInt(3), RequestedPrice: decimal.NewFromInt(7)},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceOrderDerived, req.Source)
	require.NotNil(t, req.SourceOrderID)
	assert.Equal(t, "o-1", *req.SourceOrderID)
	assert.Equal(t, "fac-1", req.RequestedBy)
	assert.Equal(t, domain.ProcurementPendingAssignment, req.Status)

	require.Len(t, req.Lines, 2)
	assert.Equal(t, "bag", req.Lines[0].Unit)
	assert.True(t, decimal.RequireFromString("29.5").Equal(req.Lines[0].RequestedPrice), "price defaults to the ordered item's")
	assert.Equal(t, "bottle", req.Lines[1].Unit, "unit defaults to the ordered item's")
	assert.True(t, decimal.NewFromInt(7).Equal(req.Lines[1].RequestedPrice))
	for _, l := range req.Lines {
		assert.True(t, l.QuotedPrice.IsZero(), "no vendor bound yet")
		assert.Nil(t, l.VendorID)
	}

	order, err := f.orders.Get(ctx, "o-1")
	require.NoError(t, err)
	for _, it := range order.Items {
		assert.True(t, it.IsShortage, it.ProductID)
	}
	p1, _ := order.Item("p-1")
	assert.True(t, decimal.NewFromInt(2).Equal(p1.ShortageQty))
}

func TestReportShortage_RequiresFacility(t *testing.T) {
	f := newFixture(t)

	_, err := f.intake.ReportShortage(context.Background(), "o-unrouted", []domain.RequestLine{shortage("p-1", 1)})

	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.Details, 1)
	assert.Equal(t, "orderId", ve.Details[0].Field)
	assert.Zero(t, f.requestCount(t))
}

func TestReportShortage_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.intake.ReportShortage(context.Background(), "o-missing", []domain.RequestLine{shortage("p-1", 1)})

	assert.ErrorIs(t, err, apperrors.ErrUnknownOrder)
}

func TestReportShortage_RejectedShortageCreatesNothing(t *testing.T) {
	tests := []struct {
		name  string
		lines []domain.RequestLine
	}{
		{"product not on the order", []domain.RequestLine{shortage("p-1", 1), shortage("p-3", 1)}},
		{"more than ordered", []domain.RequestLine{shortage("p-1", 5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.intake.ReportShortage(ctx, "o-1", tt.lines)
			require.Error(t, err)

			assert.Zero(t, f.requestCount(t))
			order, err := f.orders.Get(ctx, "o-1")
			require.NoError(t, err)
			for _, it := range order.Items {
				assert.False(t, it.IsShortage, it.ProductID)
			}
		})
	}
}

func TestReportShortage_FailedInsertRollsBackShortage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	errInsert := errors.New("insert failed")
	creator := &mockCreator{CreateRequestFunc: func(ctx context.Context, in procurementservice.CreateRequestInput) (*domain.ProcurementRequest, error) {
		err := f.store.WithinTx(ctx, func(ctx context.Context) error {
			if err := in.BeforeInsert(ctx); err != nil {
				return err
			}
			return errInsert
		})
		return nil, err
	}}
	intake := NewIntake(f.orders, creator, zap.NewNop())

	_, err := intake.ReportShortage(ctx, "o-1", []domain.RequestLine{shortage("p-1", 2)})
	require.ErrorIs(t, err, errInsert)

	order, err := f.orders.Get(ctx, "o-1")
	require.NoError(t, err)
	p1, _ := order.Item("p-1")
	assert.False(t, p1.IsShortage)
}

func TestSubmitRestockCart(t *testing.T) {
	f := newFixture(t)

	req, err := f.intake.SubmitRestockCart(context.Background(), "fr-9", []domain.RequestLine{shortage("p-3", 20)})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFranchiseInitiated, req.Source)
	assert.Nil(t, req.SourceOrderID)
	assert.Equal(t, "fr-9", req.RequestedBy)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, "kg", req.Lines[0].Unit)
	assert.True(t, req.Lines[0].RequestedPrice.IsZero())
}
