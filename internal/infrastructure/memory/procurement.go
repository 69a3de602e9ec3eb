package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type RequestRepository struct {
	s *Store
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.ProcurementRequest) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.data.requests[req.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("procurement request %s already exists", req.ID))
	}
	r.s.data.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (r *RequestRepository) FindByID(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
	defer r.s.lock(ctx)()
	return r.find(id)
}

func (r *RequestRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *RequestRepository) find(id string) (*domain.ProcurementRequest, error) {
	req, ok := r.s.data.requests[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("procurement request %s not found", id))
	}
	req = cloneRequest(req)
	return &req, nil
}

func (r *RequestRepository) FindByLineIDForUpdate(ctx context.Context, lineID string) (*domain.ProcurementRequest, error) {
	defer r.s.lock(ctx)()

	for id, req := range r.s.data.requests {
		if _, ok := req.Line(lineID); ok {
			return r.find(id)
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("procurement line %s not found", lineID))
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ProcurementStatus) (bool, error) {
	defer r.s.lock(ctx)()

	req, ok := r.s.data.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.UpdatedAt = time.Now().UTC()
	r.s.data.requests[id] = req
	return true, nil
}

// UpdateLineVendor writes the vendor binding, name snapshot and quoted price.
func (r *RequestRepository) UpdateLineVendor(ctx context.Context, line domain.ProcurementLineItem) error {
	defer r.s.lock(ctx)()

	return r.updateLine(line.RequestID, line.ID, func(l *domain.ProcurementLineItem) {
		l.VendorID = line.VendorID
		l.VendorName = line.VendorName
		l.QuotedPrice = line.QuotedPrice
	})
}

func (r *RequestRepository) SetLinePurchaseOrder(ctx context.Context, requestID, lineID, purchaseOrderID string) error {
	defer r.s.lock(ctx)()

	return r.updateLine(requestID, lineID, func(l *domain.ProcurementLineItem) {
		l.PurchaseOrderID = &purchaseOrderID
	})
}

func (r *RequestRepository) updateLine(requestID, lineID string, apply func(*domain.ProcurementLineItem)) error {
	req, ok := r.s.data.requests[requestID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("procurement request %s not found", requestID))
	}
	req = cloneRequest(req)
	for i := range req.Lines {
		if req.Lines[i].ID == lineID {
			apply(&req.Lines[i])
			req.UpdatedAt = time.Now().UTC()
			r.s.data.requests[requestID] = req
			return nil
		}
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("procurement line %s not found", lineID))
}

// ListPage returns up to limit requests matching filter, newest first,
// strictly after the cursor.
func (r *RequestRepository) ListPage(ctx context.Context, filter domain.RequestFilter, after *domain.RequestCursor, limit int) ([]domain.ProcurementRequest, error) {
	defer r.s.lock(ctx)()

	var matched []domain.ProcurementRequest
	for _, req := range r.s.data.requests {
		if filter.Matches(req) && after.After(req) {
			matched = append(matched, req)
		}
	}
	slices.SortFunc(matched, func(a, b domain.ProcurementRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	for i := range matched {
		matched[i] = cloneRequest(matched[i])
	}
	return matched, nil
}
