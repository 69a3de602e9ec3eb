package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfillment/internal/commons"
	"fulfillment/internal/domain"
	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
)

const maxLines = 100

type IntakeUseCase interface {
	ReportShortage(ctx context.Context, orderID string, lines []domain.RequestLine) (*domain.ProcurementRequest, error)
	SubmitRestockCart(ctx context.Context, franchiseID string, lines []domain.RequestLine) (*domain.ProcurementRequest, error)
}

type IntakeController struct {
	intake IntakeUseCase
	logger *zap.Logger
}

func NewIntakeController(intake IntakeUseCase, logger *zap.Logger) *IntakeController {
	return &IntakeController{
		intake: intake,
		logger: logger,
	}
}

func (c *IntakeController) ReportShortage(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	var body dto.ShortageRequest
	if !commons.DecodeJSON(w, r, logger, traceID, &body) {
		return
	}
	if err := validateLines(body.Lines); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	req, err := c.intake.ReportShortage(r.Context(), chi.URLParam(r, "orderId"), toRequestLines(body.Lines))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusCreated, dto.NewProcurementRequestResponse(traceID, *req))
}

func (c *IntakeController) SubmitRestock(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	var body dto.RestockRequest
	if !commons.DecodeJSON(w, r, logger, traceID, &body) {
		return
	}
	if err := validateLines(body.Lines); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	req, err := c.intake.SubmitRestockCart(r.Context(), chi.URLParam(r, "franchiseId"), toRequestLines(body.Lines))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusCreated, dto.NewProcurementRequestResponse(traceID, *req))
}

// validateLines checks request shape only. Quantities and catalog
// references are checked by the services.
func validateLines(lines []dto.LineRequest) error {
	if len(lines) == 0 {
		return apperrors.NewValidationError("lines is required", apperrors.ValidationDetail{
			Field:   "lines",
			Message: "lines must not be empty",
		})
	}
	if len(lines) > maxLines {
		msg := "lines exceeds maximum of " + strconv.Itoa(maxLines)
		return apperrors.NewValidationError(msg, apperrors.ValidationDetail{Field: "lines", Message: msg})
	}
	var details []apperrors.ValidationDetail
	for i, l := range lines {
		if l.ProductID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   "lines[" + strconv.Itoa(i) + "].productId",
				Message: "productId is required",
			})
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid lines", details...)
	}
	return nil
}

func toRequestLines(lines []dto.LineRequest) []domain.RequestLine {
	out := make([]domain.RequestLine, len(lines))
	for i, l := range lines {
		price := decimal.Zero
		if l.RequestedPrice != nil {
			price = *l.RequestedPrice
		}
		out[i] = domain.RequestLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			Unit:           l.Unit,
			RequestedPrice: price,
		}
	}
	return out
}
