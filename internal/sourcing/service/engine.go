package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type VendorRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Vendor, error)
	ListActive(ctx context.Context) ([]domain.Vendor, error)
}

type LineRepository interface {
	FindByID(ctx context.Context, id string) (*domain.ProcurementRequest, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.ProcurementRequest, error)
	FindByLineIDForUpdate(ctx context.Context, lineID string) (*domain.ProcurementRequest, error)
	UpdateLineVendor(ctx context.Context, line domain.ProcurementLineItem) error
	SetLinePurchaseOrder(ctx context.Context, requestID, lineID, purchaseOrderID string) error
}

type AssignmentRepository interface {
	SupersedeActive(ctx context.Context, lineID string, at time.Time) error
	Insert(ctx context.Context, a *domain.VendorAssignment) error
	ListByLine(ctx context.Context, lineID string) ([]domain.VendorAssignment, error)
}

type PurchaseOrderWriter interface {
	FindDraftByRequestAndVendor(ctx context.Context, requestID, vendorID string) (*domain.PurchaseOrder, error)
	Create(ctx context.Context, po *domain.PurchaseOrder) error
	AppendLines(ctx context.Context, po *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error
}

// Engine binds procurement lines to vendors and partitions fully assigned
// requests into vendor-scoped purchase orders. It is the only writer of a
// line's vendor binding.
type Engine struct {
	tx             TxRunner
	vendors        VendorRepository
	lines          LineRepository
	assignments    AssignmentRepository
	purchaseOrders PurchaseOrderWriter
	logger         *zap.Logger
}

func NewEngine(
	tx TxRunner,
	vendors VendorRepository,
	lines LineRepository,
	assignments AssignmentRepository,
	purchaseOrders PurchaseOrderWriter,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		tx:             tx,
		vendors:        vendors,
		lines:          lines,
		assignments:    assignments,
		purchaseOrders: purchaseOrders,
		logger:         logger,
	}
}

// CompatibleVendors is a vendor picker. When ExactMatch is false none of the
// vendors carries any requested product and the full active set is offered
// so the picker is never empty.
type CompatibleVendors struct {
	ProductIDs []string
	Vendors    []domain.Vendor
	ExactMatch bool
}

// FindCompatibleVendors returns active vendors supplying at least one of
// productIDs, best coverage first, then by rating.
func (e *Engine) FindCompatibleVendors(ctx context.Context, productIDs []string) (*CompatibleVendors, error) {
	active, err := e.vendors.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var matches []domain.Vendor
	for _, v := range active {
		if v.MatchCount(productIDs) > 0 {
			matches = append(matches, v)
		}
	}

	if len(matches) == 0 {
		if len(productIDs) > 0 {
			e.logger.Warn("no compatible vendor, offering full active set", zap.Strings("productIds", productIDs), zap.Int("vendors", len(active)))
		}
		return &CompatibleVendors{ProductIDs: productIDs, Vendors: active, ExactMatch: false}, nil
	}

	slices.SortStableFunc(matches, func(a, b domain.Vendor) int {
		return cmp.Or(
			cmp.Compare(b.MatchCount(productIDs), a.MatchCount(productIDs)),
			b.Rating.Cmp(a.Rating),
		)
	})
	return &CompatibleVendors{ProductIDs: productIDs, Vendors: matches, ExactMatch: true}, nil
}

// CompatibleVendorsForRequest runs FindCompatibleVendors over the products
// of the request's lines.
func (e *Engine) CompatibleVendorsForRequest(ctx context.Context, requestID string) (*CompatibleVendors, error) {
	req, err := e.lines.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, apperrors.CodeUnknownRequest, "procurement request %s not found", requestID)
	}

	ids := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		if !slices.Contains(ids, l.ProductID) {
			ids = append(ids, l.ProductID)
		}
	}
	return e.FindCompatibleVendors(ctx, ids)
}

type AssignVendorInput struct {
	LineItemID string
	VendorID   string
	// QuotedPrice overrides the vendor's catalog price when set.
	QuotedPrice *decimal.Decimal
}

// AssignVendor binds the line to the vendor, replacing any earlier binding.
// Re-assigning the current vendor at the current price changes nothing.
func (e *Engine) AssignVendor(ctx context.Context, in AssignVendorInput) (*domain.ProcurementLineItem, error) {
	if in.QuotedPrice != nil && in.QuotedPrice.IsNegative() {
		return nil, apperrors.NewValidationError("invalid quoted price", apperrors.ValidationDetail{
			Field:   "quotedPrice",
			Message: "quotedPrice must be non-negative",
		})
	}

	var line domain.ProcurementLineItem
	var changed bool
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		changed = false

		req, err := e.lines.FindByLineIDForUpdate(ctx, in.LineItemID)
		if err != nil {
			return translate(err, apperrors.CodeUnknownLineItem, "procurement line %s not found", in.LineItemID)
		}
		line, _ = req.Line(in.LineItemID)

		vendor, err := e.vendors.FindByID(ctx, in.VendorID)
		if err != nil {
			return translate(err, apperrors.CodeUnknownVendor, "vendor %s not found", in.VendorID)
		}
		if !vendor.Active {
			return apperrors.NewWorkflowError(apperrors.CodeUnknownVendor, "vendor %s is inactive", in.VendorID)
		}
		if line.Finalized() {
			return apperrors.NewWorkflowError(apperrors.CodeLineFinalized, "line %s is already on purchase order %s", line.ID, *line.PurchaseOrderID)
		}

		price := quotedPrice(in, *vendor, line)
		if line.VendorID != nil && *line.VendorID == vendor.ID && line.VendorName == vendor.Name && line.QuotedPrice.Equal(price) {
			return nil
		}

		if _, ok := vendor.Supplies(line.ProductID); !ok {
			e.logger.Warn("vendor does not list product", zap.String("vendorId", vendor.ID), zap.String("productId", line.ProductID), zap.String("lineItemId", line.ID))
		}

		now := time.Now().UTC()
		if err := e.assignments.SupersedeActive(ctx, line.ID, now); err != nil {
			return err
		}
		err = e.assignments.Insert(ctx, &domain.VendorAssignment{
			ID:          uuid.NewString(),
			LineItemID:  line.ID,
			RequestID:   line.RequestID,
			VendorID:    vendor.ID,
			VendorName:  vendor.Name,
			QuotedPrice: price,
			Active:      true,
			AssignedAt:  now,
		})
		if err != nil {
			return err
		}

		line.VendorID = &vendor.ID
		line.VendorName = vendor.Name
		line.QuotedPrice = price
		changed = true
		return e.lines.UpdateLineVendor(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.Info("vendor assigned",
			zap.String("lineItemId", line.ID),
			zap.String("requestId", line.RequestID),
			zap.String("vendorId", *line.VendorID),
			zap.String("quotedPrice", line.QuotedPrice.String()),
		)
	}
	return &line, nil
}

func quotedPrice(in AssignVendorInput, vendor domain.Vendor, line domain.ProcurementLineItem) decimal.Decimal {
	if in.QuotedPrice != nil {
		return *in.QuotedPrice
	}
	if p, ok := vendor.Supplies(line.ProductID); ok && p.Price.IsPositive() {
		return p.Price
	}
	return line.RequestedPrice
}

// AssignmentHistory returns every vendor binding the line has had.
func (e *Engine) AssignmentHistory(ctx context.Context, lineID string) ([]domain.VendorAssignment, error) {
	return e.assignments.ListByLine(ctx, lineID)
}

// IsFullyAssigned is the single gate for finalize and for the assigned
// transition. It reads the lines it is given and caches nothing.
func (e *Engine) IsFullyAssigned(a domain.Assignable) bool {
	return domain.FullyAssigned(a.VendorLines())
}

type AssignmentProgress struct {
	RequestID     string
	Assigned      int
	Total         int
	FullyAssigned bool
}

func (e *Engine) Progress(ctx context.Context, requestID string) (*AssignmentProgress, error) {
	req, err := e.lines.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, apperrors.CodeUnknownRequest, "procurement request %s not found", requestID)
	}
	return &AssignmentProgress{
		RequestID:     req.ID,
		Assigned:      domain.CountAssigned(req.Lines),
		Total:         len(req.Lines),
		FullyAssigned: e.IsFullyAssigned(req),
	}, nil
}

// Finalize partitions the request's lines by vendor into purchase orders,
// one per vendor. Lines already on a purchase order are skipped and a
// vendor's open draft is extended rather than duplicated. The request is
// read under lock, so a concurrent assignment either lands before the gate
// check or waits for finalize to commit.
func (e *Engine) Finalize(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error) {
	var orders []domain.PurchaseOrder
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		orders = nil

		req, err := e.lines.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return translate(err, apperrors.CodeUnknownRequest, "procurement request %s not found", requestID)
		}
		if !e.IsFullyAssigned(req) {
			return apperrors.NewWorkflowError(apperrors.CodeNotFullyAssigned, "%d of %d lines have a vendor",
				domain.CountAssigned(req.Lines), len(req.Lines))
		}

		now := time.Now().UTC()
		for _, group := range groupByVendor(req.Lines) {
			po, err := e.purchaseOrders.FindDraftByRequestAndVendor(ctx, req.ID, group.vendorID)
			if err != nil {
				return err
			}

			lines := make([]domain.PurchaseOrderLine, len(group.lines))
			for i, l := range group.lines {
				lines[i] = domain.PurchaseOrderLine{
					ID:           uuid.NewString(),
					SourceLineID: &l.ID,
					ProductID:    l.ProductID,
					ProductName:  l.ProductName,
					Quantity:     l.Quantity,
					Unit:         l.Unit,
					UnitPrice:    l.UnitPrice(),
				}
			}

			if po == nil {
				po = &domain.PurchaseOrder{
					ID:             uuid.NewString(),
					RequestID:      &req.ID,
					VendorID:       group.vendorID,
					VendorName:     group.vendorName,
					FranchiseID:    req.RequestedBy,
					Status:         domain.PurchaseOrderDraft,
					DispatchStatus: domain.DispatchNotReady,
					CreatedAt:      now,
					UpdatedAt:      now,
				}
				po.AddLines(lines...)
				if err := e.purchaseOrders.Create(ctx, po); err != nil {
					return err
				}
			} else {
				// Finalize stamps every line in one pass, so only a draft stored
				// for this request and vendor by another writer reaches here.
				po.AddLines(lines...)
				if err := e.purchaseOrders.AppendLines(ctx, po, lines); err != nil {
					return err
				}
			}

			for _, l := range group.lines {
				if err := e.lines.SetLinePurchaseOrder(ctx, req.ID, l.ID, po.ID); err != nil {
					return err
				}
			}
			orders = append(orders, *po)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsExpected(err) {
			e.logger.Warn("finalize rejected", zap.String("requestId", requestID), zap.Error(err))
		}
		return nil, err
	}

	e.logger.Info("procurement finalized", zap.String("requestId", requestID), zap.Int("purchaseOrders", len(orders)))
	return orders, nil
}

type vendorGroup struct {
	vendorID   string
	vendorName string
	lines      []domain.ProcurementLineItem
}

// groupByVendor partitions unfinalized lines by bound vendor, in order of
// each vendor's first line.
func groupByVendor(lines []domain.ProcurementLineItem) []vendorGroup {
	var groups []vendorGroup
	index := make(map[string]int)
	for _, l := range lines {
		if l.VendorID == nil || l.Finalized() {
			continue
		}
		i, ok := index[*l.VendorID]
		if !ok {
			i = len(groups)
			index[*l.VendorID] = i
			groups = append(groups, vendorGroup{vendorID: *l.VendorID, vendorName: l.VendorName})
		}
		groups[i].lines = append(groups[i].lines, l)
	}
	return groups
}

func translate(err error, code apperrors.Code, format string, args ...any) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(code, format, args...)
	}
	return err
}
