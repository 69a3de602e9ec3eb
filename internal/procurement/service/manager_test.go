package service

import (
	"context"
	"errors"
	"fmt"
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

type fixture struct {
	store     *memory.Store
	manager   *Manager
	published []events.Event
}

func newFixture(t *testing.T, pageSize int) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore()}
	gate := &mockGate{IsFullyAssignedFunc: func(a domain.Assignable) bool {
		return domain.FullyAssigned(a.VendorLines())
	}}
	pub := &mockPublisher{PublishFunc: func(ctx context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}}
	f.manager = NewManager(f.store, f.store.Requests(), f.store.Products(), gate, pub, zap.NewNop(), pageSize)

	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p-1", Name: "Flour 25kg", Unit: "bag", Price: decimal.NewFromInt(30), IsActive: true},
		{ID: "p-2", Name: "Olive oil", Unit: "l", Price: decimal.NewFromInt(8), IsActive: true},
		{ID: "p-inactive", Name: "Old", Unit: "u", IsActive: false},
		{ID: "p-deleted", Name: "Gone", Unit: "u", IsActive: true, IsDeleted: true},
	} {
		require.NoError(t, f.store.Products().Save(ctx, p))
	}
	return f
}

func restock(lines ...domain.RequestLine) CreateRequestInput {
	return CreateRequestInput{
		Source:      domain.SourceFranchiseInitiated,
		RequestedBy: "f-1",
		Lines:       lines,
	}
}

func reqLine(productID string, qty, price int64) domain.RequestLine {
	return domain.RequestLine{
		ProductID:      productID,
		Quantity:       decimal.NewFromInt(qty),
		RequestedPrice: decimal.NewFromInt(price),
	}
}

func TestCreateRequest_SnapshotsCatalog(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	req, err := f.manager.CreateRequest(ctx, restock(reqLine("p-1", 2, 28), domain.RequestLine{
		ProductID: "p-2", Quantity: decimal.NewFromInt(5), Unit: "bottle",
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.ProcurementPendingAssignment, req.Status)
	require.Len(t, req.Lines, 2)
	assert.Equal(t, "Flour 25kg", req.Lines[0].ProductName)
	assert.Equal(t, "bag", req.Lines[0].Unit)
	assert.Equal(t, "bottle", req.Lines[1].Unit)
	for _, l := range req.Lines {
		assert.Nil(t, l.VendorID)
		assert.Equal(t, req.ID, l.RequestID)
	}

	stored, err := f.manager.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.Empty(t, f.published, "franchise restock requests are not announced")
}

func TestCreateRequest_InvalidLines(t *testing.T) {
	f := newFixture(t, 10)

	tests := []struct {
		name    string
		lines   []domain.RequestLine
		details int
	}{
		{"no lines", nil, 0},
		{"zero quantity", []domain.RequestLine{reqLine("p-1", 0, 1)}, 1},
		{"negative price", []domain.RequestLine{reqLine("p-1", 1, -1)}, 1},
		{"unknown product", []domain.RequestLine{reqLine("p-404", 1, 1)}, 1},
		{"inactive and deleted products", []domain.RequestLine{reqLine("p-inactive", 1, 1), reqLine("p-deleted", 1, 1)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateRequest(context.Background(), restock(tt.lines...))
			require.ErrorIs(t, err, apperrors.ErrInvalidLineItem)
			we, _ := apperrors.IsWorkflowError(err)
			assert.Len(t, we.Details, tt.details)
		})
	}
}

func TestCreateRequest_InvalidSource(t *testing.T) {
	f := newFixture(t, 10)
	orderID := "o-1"

	tests := []struct {
		name string
		in   CreateRequestInput
	}{
		{"unknown source", CreateRequestInput{Source: "walk-in", RequestedBy: "f-1", Lines: []domain.RequestLine{reqLine("p-1", 1, 1)}}},
		{"missing requester", CreateRequestInput{Source: domain.SourceFranchiseInitiated, Lines: []domain.RequestLine{reqLine("p-1", 1, 1)}}},
		{"order-derived without order", CreateRequestInput{Source: domain.SourceOrderDerived, RequestedBy: "f-1", Lines: []domain.RequestLine{reqLine("p-1", 1, 1)}}},
		{"restock with order", CreateRequestInput{Source: domain.SourceFranchiseInitiated, SourceOrderID: &orderID, RequestedBy: "f-1", Lines: []domain.RequestLine{reqLine("p-1", 1, 1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.CreateRequest(context.Background(), tt.in)
			_, ok := apperrors.IsValidationError(err)
			assert.True(t, ok, "got %v", err)
		})
	}
}

func TestCreateRequest_OrderDerivedAnnounced(t *testing.T) {
	f := newFixture(t, 10)
	orderID := "o-1"

	req, err := f.manager.CreateRequest(context.Background(), CreateRequestInput{
		Source:        domain.SourceOrderDerived,
		SourceOrderID: &orderID,
		RequestedBy:   "f-1",
		Lines:         []domain.RequestLine{reqLine("p-1", 1, 30)},
	})
	require.NoError(t, err)

	require.Len(t, f.published, 1)
	e := f.published[0]
	assert.Equal(t, events.ProcurementStatusChanged, e.Type)
	assert.Equal(t, events.ProcurementKey(req.ID, domain.ProcurementPendingAssignment), e.Key)
	payload, ok := e.Payload.(events.ProcurementStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, "o-1", *payload.SourceOrderID)
}

func TestCreateRequest_BeforeInsertAborts(t *testing.T) {
	f := newFixture(t, 10)
	boom := errors.New("shortage rejected")

	in := restock(reqLine("p-1", 1, 1))
	in.BeforeInsert = func(ctx context.Context) error { return boom }

	_, err := f.manager.CreateRequest(context.Background(), in)
	require.ErrorIs(t, err, boom)

	for _, err := range f.manager.List(context.Background(), domain.RequestFilter{}) {
		require.NoError(t, err)
		t.Fatal("no request should have been stored")
	}
}

func TestTransition_WalksLifecycle(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	req, err := f.manager.CreateRequest(ctx, restock(reqLine("p-1", 1, 1)))
	require.NoError(t, err)

	vendor := "v-1"
	require.NoError(t, f.store.Requests().UpdateLineVendor(ctx, domain.ProcurementLineItem{
		ID: req.Lines[0].ID, RequestID: req.ID, VendorID: &vendor, VendorName: "Vendor",
	}))

	for _, target := range domain.ProcurementLifecycle[1:] {
		got, err := f.manager.Transition(ctx, req.ID, target)
		require.NoError(t, err, "to %s", target)
		assert.Equal(t, target, got.Status)
	}
	assert.Len(t, f.published, len(domain.ProcurementLifecycle)-1)

	_, err = f.manager.Transition(ctx, req.ID, domain.ProcurementCompleted)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "completed is terminal")
}

func TestTransition_RejectsOutOfOrder(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	req, err := f.manager.CreateRequest(ctx, restock(reqLine("p-1", 1, 1)))
	require.NoError(t, err)

	for _, target := range []domain.ProcurementStatus{
		domain.ProcurementAccepted,
		domain.ProcurementDelivered,
		domain.ProcurementPendingAssignment,
		"shipped",
	} {
		_, err := f.manager.Transition(ctx, req.ID, target)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "to %s", target)
	}

	_, err = f.manager.Transition(ctx, "missing", domain.ProcurementAssigned)
	assert.ErrorIs(t, err, apperrors.ErrUnknownRequest)
}

func TestTransition_AssignedRequiresEveryVendor(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	req, err := f.manager.CreateRequest(ctx, restock(reqLine("p-1", 1, 1), reqLine("p-2", 1, 1)))
	require.NoError(t, err)

	vendor := "v-1"
	require.NoError(t, f.store.Requests().UpdateLineVendor(ctx, domain.ProcurementLineItem{
		ID: req.Lines[0].ID, RequestID: req.ID, VendorID: &vendor,
	}))

	_, err = f.manager.Transition(ctx, req.ID, domain.ProcurementAssigned)
	require.ErrorIs(t, err, apperrors.ErrIncompleteAssignment)

	stored, err := f.manager.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementPendingAssignment, stored.Status)
	assert.Empty(t, f.published)
}

func TestList_PagesNewestFirst(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		requester := "f-1"
		if i%2 == 1 {
			requester = "f-2"
		}
		require.NoError(t, f.store.Requests().Create(ctx, &domain.ProcurementRequest{
			ID:          fmt.Sprintf("r-%d", i),
			Source:      domain.SourceFranchiseInitiated,
			RequestedBy: requester,
			Status:      domain.ProcurementPendingAssignment,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	collect := func(filter domain.RequestFilter) []string {
		var ids []string
		for r, err := range f.manager.List(ctx, filter) {
			require.NoError(t, err)
			ids = append(ids, r.ID)
		}
		return ids
	}

	assert.Equal(t, []string{"r-4", "r-3", "r-2", "r-1", "r-0"}, collect(domain.RequestFilter{}))
	assert.Equal(t, []string{"r-4", "r-2", "r-0"}, collect(domain.RequestFilter{RequestedBy: "f-1"}))
	assert.Equal(t, []string{"r-4", "r-3", "r-2", "r-1", "r-0"}, collect(domain.RequestFilter{}), "sequence is restartable")
	assert.Empty(t, collect(domain.RequestFilter{Status: domain.ProcurementReady}))
}

func TestGet_UnknownRequest(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.manager.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrUnknownRequest)
}
