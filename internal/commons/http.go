package commons

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
)

// Trace mints a trace id for one request and returns a logger carrying it.
func Trace(logger *zap.Logger) (string, *zap.Logger) {
	traceID := uuid.New().String()
	return traceID, logger.With(zap.String("traceId", traceID))
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func WriteValidationError(w http.ResponseWriter, logger *zap.Logger, traceID, message string, details ...apperrors.ValidationDetail) {
	WriteJSON(w, logger, http.StatusBadRequest, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    http.StatusBadRequest,
		Code:      "VALIDATION_ERROR",
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// DecodeJSON decodes the request body into v, answering 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, traceID string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		WriteValidationError(w, logger, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return false
	}
	return true
}

// StatusFor maps an application error to its HTTP status.
func StatusFor(err error) int {
	if we, ok := apperrors.IsWorkflowError(err); ok {
		switch we.Category() {
		case apperrors.CategoryInvalidInput:
			return http.StatusBadRequest
		case apperrors.CategoryBadReference:
			return http.StatusNotFound
		default:
			return http.StatusConflict
		}
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return http.StatusConflict
	}
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return http.StatusConflict
	}
	if _, ok := apperrors.IsInternalError(err); ok {
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// WriteError renders err. Faults are logged and their message hidden;
// expected workflow outcomes are logged at warn.
func WriteError(w http.ResponseWriter, logger *zap.Logger, traceID string, err error) {
	status := StatusFor(err)
	resp := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	if we, ok := apperrors.IsWorkflowError(err); ok {
		resp.Code = string(we.Code)
		resp.Category = string(we.Category())
		resp.Expected = apperrors.IsExpected(err)
		resp.Details = we.Details
		if resp.Expected {
			logger.Warn("workflow rejected", zap.String("code", resp.Code), zap.Error(err))
		} else {
			logger.Info("workflow rejected", zap.String("code", resp.Code), zap.Error(err))
		}
		WriteJSON(w, logger, status, resp)
		return
	}

	if ie, ok := apperrors.IsInternalError(err); ok {
		logger.Error("internal error", zap.String("operation", ie.Message), zap.NamedError("cause", ie.Cause))
		resp.Message = "an unexpected error occurred"
	} else if status == http.StatusInternalServerError {
		logger.Error("unexpected error", zap.Error(err))
		resp.Message = "an unexpected error occurred"
	}
	resp.Code = codeFor(err, status)
	if ve, ok := apperrors.IsValidationError(err); ok {
		resp.Details = ve.Details
	}
	WriteJSON(w, logger, status, resp)
}

func codeFor(err error, status int) string {
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return "DEADLOCK"
	}
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	}
	return "INTERNAL_ERROR"
}
