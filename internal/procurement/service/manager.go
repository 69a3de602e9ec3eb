package service

import (
	"context"
	"iter"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/events"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RequestRepository interface {
	Create(ctx context.Context, req *domain.ProcurementRequest) error
	FindByID(ctx context.Context, id string) (*domain.ProcurementRequest, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.ProcurementRequest, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.ProcurementStatus) (bool, error)
	ListPage(ctx context.Context, filter domain.RequestFilter, after *domain.RequestCursor, limit int) ([]domain.ProcurementRequest, error)
}

type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

// AssignmentGate decides whether every line of an aggregate has a vendor.
type AssignmentGate interface {
	IsFullyAssigned(a domain.Assignable) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Manager struct {
	tx       TxRunner
	requests RequestRepository
	catalog  ProductCatalog
	gate     AssignmentGate
	events   EventPublisher
	logger   *zap.Logger
	pageSize int
}

func NewManager(
	tx TxRunner,
	requests RequestRepository,
	catalog ProductCatalog,
	gate AssignmentGate,
	publisher EventPublisher,
	logger *zap.Logger,
	pageSize int,
) *Manager {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Manager{
		tx:       tx,
		requests: requests,
		catalog:  catalog,
		gate:     gate,
		events:   publisher,
		logger:   logger,
		pageSize: pageSize,
	}
}

type CreateRequestInput struct {
	Source        domain.SourceType
	SourceOrderID *string
	RequestedBy   string
	Lines         []domain.RequestLine
	// BeforeInsert runs inside the creating transaction; an error aborts
	// the request.
	BeforeInsert func(ctx context.Context) error
}

// CreateRequest opens a request in pending_assignment. Order-derived
// requests announce themselves once committed.
func (m *Manager) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.ProcurementRequest, error) {
	if err := validateSource(in); err != nil {
		return nil, err
	}

	req, err := m.buildRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		if in.BeforeInsert != nil {
			if err := in.BeforeInsert(ctx); err != nil {
				return err
			}
		}
		return m.requests.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("procurement request created",
		zap.String("requestId", req.ID),
		zap.String("source", string(req.Source)),
		zap.String("requestedBy", req.RequestedBy),
		zap.Int("lines", len(req.Lines)),
	)

	if req.Source == domain.SourceOrderDerived {
		m.publish(ctx, events.NewProcurementStatusChanged(*req))
	}
	return req, nil
}

func validateSource(in CreateRequestInput) error {
	var details []apperrors.ValidationDetail
	if !in.Source.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "source", Message: "source must be franchise-initiated or order-derived"})
	}
	if in.RequestedBy == "" {
		details = append(details, apperrors.ValidationDetail{Field: "requestedBy", Message: "requestedBy is required"})
	}
	if in.Source == domain.SourceOrderDerived && (in.SourceOrderID == nil || *in.SourceOrderID == "") {
		details = append(details, apperrors.ValidationDetail{Field: "sourceOrderId", Message: "order-derived requests need a source order"})
	}
	if in.Source == domain.SourceFranchiseInitiated && in.SourceOrderID != nil {
		details = append(details, apperrors.ValidationDetail{Field: "sourceOrderId", Message: "franchise-initiated requests have no source order"})
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid procurement request", details...)
	}
	return nil
}

func (m *Manager) buildRequest(ctx context.Context, in CreateRequestInput) (*domain.ProcurementRequest, error) {
	if len(in.Lines) == 0 {
		return nil, apperrors.NewWorkflowError(apperrors.CodeInvalidLineItem, "request has no lines")
	}

	ids := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := m.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := time.Now().UTC()
	req := &domain.ProcurementRequest{
		ID:            uuid.NewString(),
		Source:        in.Source,
		SourceOrderID: in.SourceOrderID,
		RequestedBy:   in.RequestedBy,
		Status:        domain.ProcurementPendingAssignment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var details []apperrors.ValidationDetail
	for i, l := range in.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		if !l.Quantity.IsPositive() {
			details = append(details, apperrors.ValidationDetail{Field: field + ".quantity", Message: "quantity must be greater than 0"})
		}
		if l.RequestedPrice.IsNegative() {
			details = append(details, apperrors.ValidationDetail{Field: field + ".requestedPrice", Message: "requestedPrice must be non-negative"})
		}
		p, ok := byID[l.ProductID]
		if !ok || !p.Procurable() {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "product does not resolve to a procurable catalog entry"})
			continue
		}

		unit := l.Unit
		if unit == "" {
			unit = p.Unit
		}
		req.Lines = append(req.Lines, domain.ProcurementLineItem{
			ID:             uuid.NewString(),
			RequestID:      req.ID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       l.Quantity,
			Unit:           unit,
			RequestedPrice: l.RequestedPrice,
		})
	}
	if len(details) > 0 {
		we := apperrors.NewWorkflowError(apperrors.CodeInvalidLineItem, "%d invalid line(s)", len(details))
		we.Details = details
		return nil, we
	}
	return req, nil
}

func (m *Manager) Get(ctx context.Context, requestID string) (*domain.ProcurementRequest, error) {
	req, err := m.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, unknownRequest(err, requestID)
	}
	return req, nil
}

// List yields the requests matching filter, newest first. Pages are fetched
// as the sequence is consumed; ranging over it again starts a fresh scan.
func (m *Manager) List(ctx context.Context, filter domain.RequestFilter) iter.Seq2[domain.ProcurementRequest, error] {
	return func(yield func(domain.ProcurementRequest, error) bool) {
		var cursor *domain.RequestCursor
		for {
			page, err := m.requests.ListPage(ctx, filter, cursor, m.pageSize)
			if err != nil {
				yield(domain.ProcurementRequest{}, err)
				return
			}
			for _, req := range page {
				if !yield(req, nil) {
					return
				}
			}
			if len(page) < m.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &domain.RequestCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Transition moves the request one step along its lifecycle. Entering
// assigned requires every line to carry a vendor.
func (m *Manager) Transition(ctx context.Context, requestID string, target domain.ProcurementStatus) (*domain.ProcurementRequest, error) {
	if !target.Valid() {
		return nil, apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "unknown status %q", string(target))
	}

	var req *domain.ProcurementRequest
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = m.requests.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return unknownRequest(err, requestID)
		}

		if !req.Status.CanTransitionTo(target) {
			return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "cannot move request %s from %s to %s", requestID, req.Status, target)
		}
		if target == domain.ProcurementAssigned && !m.gate.IsFullyAssigned(req) {
			return apperrors.NewWorkflowError(apperrors.CodeIncompleteAssignment, "%d of %d lines have a vendor",
				domain.CountAssigned(req.Lines), len(req.Lines))
		}

		ok, err := m.requests.UpdateStatus(ctx, requestID, req.Status, target)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "request %s changed concurrently", requestID)
		}
		req.Status = target
		req.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if apperrors.IsExpected(err) {
			m.logger.Warn("procurement transition rejected", zap.String("requestId", requestID), zap.String("target", string(target)), zap.Error(err))
		}
		return nil, err
	}

	m.logger.Info("procurement status changed", zap.String("requestId", requestID), zap.String("status", string(target)))
	m.publish(ctx, events.NewProcurementStatusChanged(*req))
	return req, nil
}

// publish runs after commit. A failing projection is logged, never returned:
// the committed transition stands on its own.
func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.events.Publish(ctx, e); err != nil {
		m.logger.Warn("event projection failed", zap.String("type", string(e.Type)), zap.String("key", e.Key), zap.Error(err))
	}
}

func unknownRequest(err error, requestID string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(apperrors.CodeUnknownRequest, "procurement request %s not found", requestID)
	}
	return err
}
