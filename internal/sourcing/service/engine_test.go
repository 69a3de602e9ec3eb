package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEngine(store *memory.Store) *Engine {
	return NewEngine(store, store.Vendors(), store.Requests(), store.VendorAssignments(), store.PurchaseOrders(), zap.NewNop())
}

func seedVendor(t *testing.T, store *memory.Store, id, rating string, active bool, products ...domain.VendorProduct) {
	t.Helper()
	require.NoError(t, store.Vendors().Save(context.Background(), domain.Vendor{
		ID:       id,
		Name:     "Vendor " + id,
		Products: products,
		Rating:   dec(rating),
		Active:   active,
	}))
}

// seedRequest stores a pending franchise request owning lines.
func seedRequest(t *testing.T, store *memory.Store, id string, lines ...domain.ProcurementLineItem) *domain.ProcurementRequest {
	t.Helper()
	for i := range lines {
		lines[i].RequestID = id
	}
	req := &domain.ProcurementRequest{
		ID:          id,
		Source:      domain.SourceFranchiseInitiated,
		RequestedBy: "f-1",
		Status:      domain.ProcurementPendingAssignment,
		Lines:       lines,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Requests().Create(context.Background(), req))
	return req
}

func line(id, productID, qty, price string) domain.ProcurementLineItem {
	return domain.ProcurementLineItem{
		ID:             id,
		ProductID:      productID,
		ProductName:    "Product " + productID,
		Quantity:       dec(qty),
		Unit:           "unit",
		RequestedPrice: dec(price),
	}
}

func ids(vendors []domain.Vendor) []string {
	out := make([]string, len(vendors))
	for i, v := range vendors {
		out[i] = v.ID
	}
	return out
}

func TestFindCompatibleVendors_OrdersByCoverageThenRating(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-one-high", "4.9", true, domain.VendorProduct{ProductID: "p-1"})
	seedVendor(t, store, "v-two", "3.0", true, domain.VendorProduct{ProductID: "p-1"}, domain.VendorProduct{ProductID: "p-2"})
	seedVendor(t, store, "v-one-low", "4.0", true, domain.VendorProduct{ProductID: "p-2"})
	seedVendor(t, store, "v-none", "5.0", true, domain.VendorProduct{ProductID: "p-9"})
	seedVendor(t, store, "v-inactive", "5.0", false, domain.VendorProduct{ProductID: "p-1"}, domain.VendorProduct{ProductID: "p-2"})

	result, err := newTestEngine(store).FindCompatibleVendors(context.Background(), []string{"p-1", "p-2"})
	require.NoError(t, err)

	assert.True(t, result.ExactMatch)
	assert.Equal(t, []string{"v-two", "v-one-high", "v-one-low"}, ids(result.Vendors))
}

func TestFindCompatibleVendors_FallsBackToAllActive(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-1", "4.0", true, domain.VendorProduct{ProductID: "p-1"})
	seedVendor(t, store, "v-2", "3.0", true)
	seedVendor(t, store, "v-off", "5.0", false)

	result, err := newTestEngine(store).FindCompatibleVendors(context.Background(), []string{"p-unknown"})
	require.NoError(t, err)

	assert.False(t, result.ExactMatch)
	assert.ElementsMatch(t, []string{"v-1", "v-2"}, ids(result.Vendors))
}

func TestCompatibleVendorsForRequest_UnknownRequest(t *testing.T) {
	_, err := newTestEngine(memory.NewStore()).CompatibleVendorsForRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrUnknownRequest)
}

func TestAssignVendor_PriceSources(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-1", "4.0", true, domain.VendorProduct{ProductID: "p-1", Price: dec("7.50")}, domain.VendorProduct{ProductID: "p-2"})
	seedRequest(t, store, "r-1", line("l-1", "p-1", "2", "9"), line("l-2", "p-2", "1", "4"), line("l-3", "p-1", "1", "9"))
	engine := newTestEngine(store)
	ctx := context.Background()
	quoted := dec("6")

	tests := []struct {
		name   string
		input  AssignVendorInput
		expect string
	}{
		{"explicit quote wins", AssignVendorInput{LineItemID: "l-3", VendorID: "v-1", QuotedPrice: &quoted}, "6"},
		{"catalog price", AssignVendorInput{LineItemID: "l-1", VendorID: "v-1"}, "7.5"},
		{"requested price when catalog has none", AssignVendorInput{LineItemID: "l-2", VendorID: "v-1"}, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := engine.AssignVendor(ctx, tt.input)
			require.NoError(t, err)
			require.NotNil(t, l.VendorID)
			assert.Equal(t, "v-1", *l.VendorID)
			assert.Equal(t, "Vendor v-1", l.VendorName)
			assert.True(t, dec(tt.expect).Equal(l.QuotedPrice), "got %s", l.QuotedPrice)
		})
	}
}

func TestAssignVendor_SupersedesPreviousBinding(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-1", "4.0", true)
	seedVendor(t, store, "v-2", "4.5", true)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "1", "3"))
	engine := newTestEngine(store)
	ctx := context.Background()

	_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-1"})
	require.NoError(t, err)
	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-1"})
	require.NoError(t, err)
	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-2"})
	require.NoError(t, err)

	history, err := engine.AssignmentHistory(ctx, "l-1")
	require.NoError(t, err)
	require.Len(t, history, 2, "re-assigning the same vendor at the same price records nothing")

	var active []string
	for _, a := range history {
		if a.Active {
			active = append(active, a.VendorID)
		} else {
			assert.NotNil(t, a.SupersededAt)
		}
	}
	assert.Equal(t, []string{"v-2"}, active)

	req, err := store.Requests().FindByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "v-2", *req.Lines[0].VendorID)
}

func TestAssignVendor_Rejections(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-1", "4.0", true)
	seedVendor(t, store, "v-off", "4.0", false)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "1", "3"))
	engine := newTestEngine(store)
	ctx := context.Background()
	negative := dec("-1")

	_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "missing", VendorID: "v-1"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownLineItem)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "ghost"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownVendor)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-off"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownVendor)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-1", QuotedPrice: &negative})
	_, isValidation := apperrors.IsValidationError(err)
	assert.True(t, isValidation)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-1"})
	require.NoError(t, err)
	_, err = engine.Finalize(ctx, "r-1")
	require.NoError(t, err)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-1"})
	assert.ErrorIs(t, err, apperrors.ErrLineFinalized)
}

func TestIsFullyAssigned(t *testing.T) {
	engine := newTestEngine(memory.NewStore())
	v := "v-1"
	bound := func(id string) domain.ProcurementLineItem {
		l := line(id, "p-1", "1", "1")
		l.VendorID = &v
		return l
	}

	tests := []struct {
		name  string
		lines []domain.ProcurementLineItem
		want  bool
	}{
		{"no lines", nil, true},
		{"single unbound", []domain.ProcurementLineItem{line("l-1", "p-1", "1", "1")}, false},
		{"single bound", []domain.ProcurementLineItem{bound("l-1")}, true},
		{"one of three unbound", []domain.ProcurementLineItem{bound("l-1"), line("l-2", "p-1", "1", "1"), bound("l-3")}, false},
		{"all bound", []domain.ProcurementLineItem{bound("l-1"), bound("l-2"), bound("l-3")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.IsFullyAssigned(domain.ProcurementRequest{Lines: tt.lines}))
		})
	}

	t.Run("purchase order lines inherit the order vendor", func(t *testing.T) {
		po := domain.PurchaseOrder{VendorID: "v-1", Lines: []domain.PurchaseOrderLine{{ID: "a"}, {ID: "b"}}}
		assert.True(t, engine.IsFullyAssigned(po))
		po.VendorID = ""
		assert.False(t, engine.IsFullyAssigned(po))
	})
}

func TestProgress(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-1", "4.0", true)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "1", "1"), line("l-2", "p-2", "1", "1"))
	engine := newTestEngine(store)
	ctx := context.Background()

	p, err := engine.Progress(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, AssignmentProgress{RequestID: "r-1", Assigned: 0, Total: 2}, *p)

	_, err = engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-2", VendorID: "v-1"})
	require.NoError(t, err)

	p, err = engine.Progress(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Assigned)
	assert.False(t, p.FullyAssigned)
}

func TestFinalize_PartitionsByVendor(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-a", "4.0", true)
	seedVendor(t, store, "v-b", "4.0", true)
	seedRequest(t, store, "r-1",
		line("l-1", "p-1", "2", "10"),
		line("l-2", "p-2", "3", "1.5"),
		line("l-3", "p-3", "1", "8"),
	)
	engine := newTestEngine(store)
	ctx := context.Background()

	for lineID, vendorID := range map[string]string{"l-1": "v-a", "l-2": "v-a", "l-3": "v-b"} {
		_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: lineID, VendorID: vendorID})
		require.NoError(t, err)
	}

	orders, err := engine.Finalize(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	byVendor := map[string]domain.PurchaseOrder{}
	for _, po := range orders {
		byVendor[po.VendorID] = po
		assert.Equal(t, domain.PurchaseOrderDraft, po.Status)
		assert.Equal(t, domain.DispatchNotReady, po.DispatchStatus)
		assert.Equal(t, "f-1", po.FranchiseID)
	}
	assert.Len(t, byVendor["v-a"].Lines, 2)
	assert.True(t, dec("24.5").Equal(byVendor["v-a"].TotalAmount), "got %s", byVendor["v-a"].TotalAmount)
	assert.Len(t, byVendor["v-b"].Lines, 1)
	assert.True(t, dec("8").Equal(byVendor["v-b"].TotalAmount))

	req, err := store.Requests().FindByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementPendingAssignment, req.Status, "finalize leaves the request status alone")
	for _, l := range req.Lines {
		assert.True(t, l.Finalized(), l.ID)
	}

	again, err := engine.Finalize(ctx, "r-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	stored, err := store.PurchaseOrders().ListByRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestFinalize_ExtendsExistingDraft(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-a", "4.0", true)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "1", "5"))
	ctx := context.Background()

	requestID := "r-1"
	existing := &domain.PurchaseOrder{
		ID:             "po-existing",
		RequestID:      &requestID,
		VendorID:       "v-a",
		FranchiseID:    "f-1",
		Status:         domain.PurchaseOrderDraft,
		DispatchStatus: domain.DispatchNotReady,
	}
	existing.AddLines(domain.PurchaseOrderLine{ID: "pol-0", ProductID: "p-0", Quantity: dec("1"), UnitPrice: dec("2")})
	require.NoError(t, store.PurchaseOrders().Create(ctx, existing))

	engine := newTestEngine(store)
	_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-a"})
	require.NoError(t, err)

	orders, err := engine.Finalize(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "po-existing", orders[0].ID)
	assert.Len(t, orders[0].Lines, 2)
	assert.True(t, dec("7").Equal(orders[0].TotalAmount))

	stored, err := store.PurchaseOrders().FindByID(ctx, "po-existing")
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, dec("7").Equal(stored.TotalAmount))
}

func TestFinalize_RequiresEveryLineAssigned(t *testing.T) {
	store := memory.NewStore()
	seedVendor(t, store, "v-a", "4.0", true)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "1", "5"), line("l-2", "p-2", "1", "5"))
	engine := newTestEngine(store)
	ctx := context.Background()

	_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-1", VendorID: "v-a"})
	require.NoError(t, err)

	_, err = engine.Finalize(ctx, "r-1")
	require.ErrorIs(t, err, apperrors.ErrNotFullyAssigned)

	stored, err := store.PurchaseOrders().ListByRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	_, err = engine.Finalize(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUnknownRequest)
}

// pausingLines lets a test hold finalize after it has read the request under
// lock.
type pausingLines struct {
	LineRepository
	FindByIDForUpdateFunc func(ctx context.Context, id string) (*domain.ProcurementRequest, error)
}

func (l *pausingLines) FindByIDForUpdate(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
	return l.FindByIDForUpdateFunc(ctx, id)
}

func seedHalfAssigned(t *testing.T, store *memory.Store) {
	t.Helper()
	seedVendor(t, store, "v-a", "4.0", true)
	seedVendor(t, store, "v-b", "4.0", true)
	seedRequest(t, store, "r-1", line("l-1", "p-1", "2", "10"), line("l-2", "p-2", "1", "4"))
	_, err := newTestEngine(store).AssignVendor(context.Background(), AssignVendorInput{LineItemID: "l-1", VendorID: "v-a"})
	require.NoError(t, err)
}

func TestFinalize_ConcurrentAssignmentFailsClosed(t *testing.T) {
	store := memory.NewStore()
	seedHalfAssigned(t, store)
	ctx := context.Background()

	paused := make(chan struct{})
	release := make(chan struct{})
	lines := &pausingLines{
		LineRepository: store.Requests(),
		FindByIDForUpdateFunc: func(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
			req, err := store.Requests().FindByIDForUpdate(ctx, id)
			close(paused)
			<-release
			return req, err
		},
	}
	engine := NewEngine(store, store.Vendors(), lines, store.VendorAssignments(), store.PurchaseOrders(), zap.NewNop())

	var g errgroup.Group
	var finalizeErr error
	g.Go(func() error {
		_, finalizeErr = engine.Finalize(ctx, "r-1")
		return nil
	})
	<-paused
	g.Go(func() error {
		_, err := newTestEngine(store).AssignVendor(ctx, AssignVendorInput{LineItemID: "l-2", VendorID: "v-b"})
		return err
	})
	close(release)
	require.NoError(t, g.Wait())

	require.ErrorIs(t, finalizeErr, apperrors.ErrNotFullyAssigned)
	stored, err := store.PurchaseOrders().ListByRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Empty(t, stored, "the stale view is never partitioned")

	req, err := store.Requests().FindByID(ctx, "r-1")
	require.NoError(t, err)
	for _, l := range req.Lines {
		assert.False(t, l.Finalized(), l.ID)
		require.NotNil(t, l.VendorID, l.ID)
	}

	orders, err := newTestEngine(store).Finalize(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestFinalize_RacingAssignmentNeverPartitionsPartially(t *testing.T) {
	for i := 0; i < 25; i++ {
		store := memory.NewStore()
		seedHalfAssigned(t, store)
		engine := newTestEngine(store)
		ctx := context.Background()

		var g errgroup.Group
		var orders []domain.PurchaseOrder
		var finalizeErr error
		g.Go(func() error {
			orders, finalizeErr = engine.Finalize(ctx, "r-1")
			return nil
		})
		g.Go(func() error {
			_, err := engine.AssignVendor(ctx, AssignVendorInput{LineItemID: "l-2", VendorID: "v-b"})
			return err
		})
		require.NoError(t, g.Wait(), "assignment always lands")

		stored, err := store.PurchaseOrders().ListByRequest(ctx, "r-1")
		require.NoError(t, err)
		if finalizeErr != nil {
			require.ErrorIs(t, finalizeErr, apperrors.ErrNotFullyAssigned)
			assert.Empty(t, stored)
			continue
		}

		require.Len(t, orders, 2)
		assert.Len(t, stored, 2)
		var total decimal.Decimal
		for _, po := range stored {
			require.Len(t, po.Lines, 1)
			total = total.Add(po.TotalAmount)
		}
		assert.True(t, dec("24").Equal(total), "got %s", total)
	}
}
