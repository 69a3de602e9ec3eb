package controller

import (
	"context"
	"iter"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fulfillment/internal/commons"
	"fulfillment/internal/domain"
	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
)

const (
	defaultPartnerLimit = 20
	maxPartnerLimit     = 100
)

type DeliveryService interface {
	ListAvailablePartners(ctx context.Context, query string) iter.Seq2[domain.DeliveryPartner, error]
	Get(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error)
	Assign(ctx context.Context, leg domain.Leg, partnerID string) (*domain.DeliveryAssignment, error)
	Complete(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error)
}

type DeliveryController struct {
	engine DeliveryService
	logger *zap.Logger
}

func NewDeliveryController(engine DeliveryService, logger *zap.Logger) *DeliveryController {
	return &DeliveryController{
		engine: engine,
		logger: logger,
	}
}

// AvailablePartners answers GET /delivery-partners/available?q=&limit=
func (c *DeliveryController) AvailablePartners(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	limit := defaultPartnerLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxPartnerLimit {
			commons.WriteValidationError(w, logger, traceID, "invalid limit", apperrors.ValidationDetail{
				Field:   "limit",
				Message: "limit must be between 1 and " + strconv.Itoa(maxPartnerLimit),
			})
			return
		}
		limit = n
	}

	resp := dto.PartnerListResponse{TraceID: traceID, Partners: []dto.PartnerDTO{}}
	for p, err := range c.engine.ListAvailablePartners(r.Context(), r.URL.Query().Get("q")) {
		if err != nil {
			commons.WriteError(w, logger, traceID, err)
			return
		}
		resp.Partners = append(resp.Partners, dto.NewPartnerDTO(p))
		if len(resp.Partners) == limit {
			break
		}
	}
	commons.WriteJSON(w, logger, http.StatusOK, resp)
}

func (c *DeliveryController) Assign(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	var body dto.AssignDeliveryRequest
	if !commons.DecodeJSON(w, r, logger, traceID, &body) {
		return
	}

	var details []apperrors.ValidationDetail
	legType, err := domain.ParseLegType(body.LegType)
	if err != nil {
		details = append(details, apperrors.ValidationDetail{Field: "legType", Message: "legType must be purchase_order, procurement_request or order"})
	}
	if body.LegID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "legId", Message: "legId is required"})
	}
	if body.PartnerID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "partnerId", Message: "partnerId is required"})
	}
	if len(details) > 0 {
		commons.WriteValidationError(w, logger, traceID, "invalid delivery assignment", details...)
		return
	}

	a, err := c.engine.Assign(r.Context(), domain.Leg{Type: legType, ID: body.LegID}, body.PartnerID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusCreated, dto.NewDeliveryAssignmentResponse(traceID, *a))
}

func (c *DeliveryController) Get(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	a, err := c.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewDeliveryAssignmentResponse(traceID, *a))
}

func (c *DeliveryController) Complete(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	a, err := c.engine.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewDeliveryAssignmentResponse(traceID, *a))
}
