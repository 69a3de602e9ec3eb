package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fulfillment/internal/commons"
	"fulfillment/internal/domain"
	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/sourcing/service"
)

type AssignmentService interface {
	CompatibleVendorsForRequest(ctx context.Context, requestID string) (*service.CompatibleVendors, error)
	AssignVendor(ctx context.Context, in service.AssignVendorInput) (*domain.ProcurementLineItem, error)
	AssignmentHistory(ctx context.Context, lineID string) ([]domain.VendorAssignment, error)
	Progress(ctx context.Context, requestID string) (*service.AssignmentProgress, error)
	Finalize(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error)
}

type AssignmentController struct {
	engine AssignmentService
	logger *zap.Logger
}

func NewAssignmentController(engine AssignmentService, logger *zap.Logger) *AssignmentController {
	return &AssignmentController{
		engine: engine,
		logger: logger,
	}
}

func (c *AssignmentController) CompatibleVendors(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	result, err := c.engine.CompatibleVendorsForRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK,
		dto.NewCompatibleVendorsResponse(traceID, result.Vendors, result.ProductIDs, result.ExactMatch))
}

func (c *AssignmentController) Progress(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	p, err := c.engine.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.AssignmentProgressResponse{
		TraceID:       traceID,
		RequestID:     p.RequestID,
		Assigned:      p.Assigned,
		Total:         p.Total,
		FullyAssigned: p.FullyAssigned,
	})
}

func (c *AssignmentController) AssignVendor(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	var body dto.AssignVendorRequest
	if !commons.DecodeJSON(w, r, logger, traceID, &body) {
		return
	}
	if body.VendorID == "" {
		commons.WriteValidationError(w, logger, traceID, "vendorId is required", apperrors.ValidationDetail{
			Field:   "vendorId",
			Message: "vendorId is required",
		})
		return
	}

	line, err := c.engine.AssignVendor(r.Context(), service.AssignVendorInput{
		LineItemID:  chi.URLParam(r, "lineId"),
		VendorID:    body.VendorID,
		QuotedPrice: body.QuotedPrice,
	})
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewLineResponse(traceID, *line))
}

func (c *AssignmentController) History(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)
	lineID := chi.URLParam(r, "lineId")

	history, err := c.engine.AssignmentHistory(r.Context(), lineID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewAssignmentHistoryResponse(traceID, lineID, history))
}

func (c *AssignmentController) Finalize(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	orders, err := c.engine.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewPurchaseOrderListResponse(traceID, orders))
}
