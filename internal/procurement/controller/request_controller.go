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
	defaultListLimit = 50
	maxListLimit     = 200
)

type RequestService interface {
	Get(ctx context.Context, requestID string) (*domain.ProcurementRequest, error)
	List(ctx context.Context, filter domain.RequestFilter) iter.Seq2[domain.ProcurementRequest, error]
	Transition(ctx context.Context, requestID string, target domain.ProcurementStatus) (*domain.ProcurementRequest, error)
}

type RequestController struct {
	requests RequestService
	logger   *zap.Logger
}

func NewRequestController(requests RequestService, logger *zap.Logger) *RequestController {
	return &RequestController{
		requests: requests,
		logger:   logger,
	}
}

func (c *RequestController) Get(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	req, err := c.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewProcurementRequestResponse(traceID, *req))
}

// List answers GET /procurement-requests?requestedBy=&status=&sourceOrderId=&limit=
func (c *RequestController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	filter, limit, details := parseListQuery(r)
	if len(details) > 0 {
		commons.WriteValidationError(w, logger, traceID, "invalid query", details...)
		return
	}

	resp := dto.ProcurementRequestListResponse{TraceID: traceID, Requests: []dto.ProcurementRequestDTO{}}
	for req, err := range c.requests.List(r.Context(), filter) {
		if err != nil {
			commons.WriteError(w, logger, traceID, err)
			return
		}
		if len(resp.Requests) == limit {
			resp.HasMore = true
			break
		}
		resp.Requests = append(resp.Requests, dto.NewProcurementRequestDTO(req))
	}
	commons.WriteJSON(w, logger, http.StatusOK, resp)
}

func parseListQuery(r *http.Request) (domain.RequestFilter, int, []apperrors.ValidationDetail) {
	q := r.URL.Query()
	filter := domain.RequestFilter{RequestedBy: q.Get("requestedBy")}
	var details []apperrors.ValidationDetail

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseProcurementStatus(s)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "status", Message: err.Error()})
		} else {
			filter.Status = status
		}
	}
	filter.SourceOrderID = q.Get("sourceOrderId")

	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			details = append(details, apperrors.ValidationDetail{Field: "limit", Message: "limit must be between 1 and " + strconv.Itoa(maxListLimit)})
		} else {
			limit = n
		}
	}
	return filter, limit, details
}

func (c *RequestController) Transition(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	var body dto.TransitionRequest
	if !commons.DecodeJSON(w, r, logger, traceID, &body) {
		return
	}
	if body.Status == "" {
		commons.WriteValidationError(w, logger, traceID, "status is required", apperrors.ValidationDetail{
			Field:   "status",
			Message: "status is required",
		})
		return
	}

	req, err := c.requests.Transition(r.Context(), chi.URLParam(r, "id"), domain.ProcurementStatus(body.Status))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewProcurementRequestResponse(traceID, *req))
}
