package controller

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	"fulfillment/internal/dto"
	apperrors "fulfillment/internal/errors"
)

type mockDeliveryService struct {
	ListAvailablePartnersFunc func(ctx context.Context, query string) iter.Seq2[domain.DeliveryPartner, error]
	GetFunc                   func(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error)
	AssignFunc                func(ctx context.Context, leg domain.Leg, partnerID string) (*domain.DeliveryAssignment, error)
	CompleteFunc              func(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error)
}

func (m *mockDeliveryService) ListAvailablePartners(ctx context.Context, query string) iter.Seq2[domain.DeliveryPartner, error] {
	return m.ListAvailablePartnersFunc(ctx, query)
}

func (m *mockDeliveryService) Get(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error) {
	return m.GetFunc(ctx, assignmentID)
}

func (m *mockDeliveryService) Assign(ctx context.Context, leg domain.Leg, partnerID string) (*domain.DeliveryAssignment, error) {
	return m.AssignFunc(ctx, leg, partnerID)
}

func (m *mockDeliveryService) Complete(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error) {
	return m.CompleteFunc(ctx, assignmentID)
}

func newRouter(svc DeliveryService) http.Handler {
	c := NewDeliveryController(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/delivery-partners/available", c.AvailablePartners)
	r.Post("/delivery-assignments", c.Assign)
	r.Get("/delivery-assignments/{id}", c.Get)
	r.Post("/delivery-assignments/{id}/complete", c.Complete)
	return r
}

func partners(n int) iter.Seq2[domain.DeliveryPartner, error] {
	return func(yield func(domain.DeliveryPartner, error) bool) {
		for i := 0; i < n; i++ {
			p := domain.DeliveryPartner{ID: string(rune('a' + i)), Status: domain.PartnerAvailable, Rating: decimal.NewFromInt(5)}
			if !yield(p, nil) {
				return
			}
		}
	}
}

func TestAvailablePartners_StopsAtLimit(t *testing.T) {
	var pulled int
	var gotQuery string
	svc := &mockDeliveryService{ListAvailablePartnersFunc: func(ctx context.Context, query string) iter.Seq2[domain.DeliveryPartner, error] {
		gotQuery = query
		return func(yield func(domain.DeliveryPartner, error) bool) {
			for p, err := range partners(10) {
				pulled++
				if !yield(p, err) {
					return
				}
			}
		}
	}}

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/delivery-partners/available?q=ana&limit=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.PartnerListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Partners, 3)
	assert.Equal(t, 3, pulled, "iteration stops once the page is full")
	assert.Equal(t, "ana", gotQuery)
	assert.NotEmpty(t, resp.TraceID)
}

func TestAvailablePartners_InvalidLimit(t *testing.T) {
	svc := &mockDeliveryService{}

	for _, limit := range []string{"0", "101", "ten"} {
		t.Run(limit, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/delivery-partners/available?limit="+limit, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAssign(t *testing.T) {
	now := time.Now().UTC()
	svc := &mockDeliveryService{AssignFunc: func(ctx context.Context, leg domain.Leg, partnerID string) (*domain.DeliveryAssignment, error) {
		if partnerID == "busy" {
			return nil, apperrors.NewWorkflowError(apperrors.CodePartnerUnavailable, "partner %s is busy", partnerID)
		}
		return &domain.DeliveryAssignment{ID: "da-1", Leg: leg, PartnerID: partnerID, PartnerName: "Ana", Status: domain.AssignmentActive, AssignedAt: now}, nil
	}}

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"created", `{"legType":"purchase_order","legId":"po-1","partnerId":"dp-1"}`, http.StatusCreated, ""},
		{"partner busy", `{"legType":"order","legId":"o-1","partnerId":"busy"}`, http.StatusConflict, "PARTNER_UNAVAILABLE"},
		{"bad leg type", `{"legType":"boat","legId":"x","partnerId":"dp-1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing fields", `{"legType":"order"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not json", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/delivery-assignments", strings.NewReader(tt.body))
			newRouter(svc).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantErr, resp.Code)
				return
			}
			var resp dto.DeliveryAssignmentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "da-1", resp.ID)
			assert.Equal(t, "purchase_order", resp.LegType)
			assert.Equal(t, "Ana", resp.PartnerName)
		})
	}
}

func TestGetAndComplete_PassPathID(t *testing.T) {
	var seen []string
	lookup := func(ctx context.Context, id string) (*domain.DeliveryAssignment, error) {
		seen = append(seen, id)
		if id == "missing" {
			return nil, apperrors.NewWorkflowError(apperrors.CodeUnknownAssignment, "delivery assignment %s not found", id)
		}
		return &domain.DeliveryAssignment{ID: id, Status: domain.AssignmentCompleted}, nil
	}
	svc := &mockDeliveryService{GetFunc: lookup, CompleteFunc: lookup}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/delivery-assignments/da-7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/delivery-assignments/da-8/complete", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/delivery-assignments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"da-7", "da-8", "missing"}, seen)
}
