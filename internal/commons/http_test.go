package commons

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid line item", apperrors.NewWorkflowError(apperrors.CodeInvalidLineItem, "qty"), http.StatusBadRequest},
		{"unknown vendor", apperrors.NewWorkflowError(apperrors.CodeUnknownVendor, "v-1"), http.StatusNotFound},
		{"partner unavailable", apperrors.NewWorkflowError(apperrors.CodePartnerUnavailable, "p-1"), http.StatusConflict},
		{"not approved", apperrors.NewWorkflowError(apperrors.CodeNotApproved, "po-1"), http.StatusConflict},
		{"invalid transition", apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "skip"), http.StatusConflict},
		{"validation", apperrors.NewValidationError("bad"), http.StatusBadRequest},
		{"not found", apperrors.NewNotFoundError("gone"), http.StatusNotFound},
		{"deadlock", apperrors.NewDeadlockError("max retries exceeded"), http.StatusConflict},
		{"internal", apperrors.NewInternalError("querying products", errors.New("conn reset")), http.StatusInternalServerError},
		{"wrapped deadlock", apperrors.NewInternalError("updating status", apperrors.NewDeadlockError("retry")), http.StatusConflict},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteError_WorkflowErrorCarriesCodeAndExpectedFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, zap.NewNop(), "trace-1", apperrors.NewWorkflowError(apperrors.CodePartnerUnavailable, "partner p-1 is busy"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PARTNER_UNAVAILABLE", resp.Code)
	assert.Equal(t, "contention", resp.Category)
	assert.True(t, resp.Expected)
	assert.Equal(t, "trace-1", resp.TraceID)
}

func TestWriteError_HidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, zap.NewNop(), "trace-2", errors.New("dial tcp 10.0.0.1: refused"))

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, "an unexpected error occurred", resp.Message)
	assert.False(t, resp.Expected)
}

func TestWriteError_InternalErrorLogsCauseButHidesIt(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := httptest.NewRecorder()
	WriteError(rec, zap.New(core), "trace-3",
		apperrors.NewInternalError("locking purchase order", errors.New("Error 1205: Lock wait timeout exceeded")))

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, "an unexpected error occurred", resp.Message)
	assert.NotContains(t, rec.Body.String(), "Lock wait")

	entries := logs.FilterMessage("internal error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "locking purchase order", fields["operation"])
	assert.Contains(t, fields["cause"], "Lock wait")
}
