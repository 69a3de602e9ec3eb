package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fulfillment/internal/commons"
	"fulfillment/internal/domain"
	"fulfillment/internal/dto"
)

type PurchaseOrderService interface {
	Get(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error)
	SubmitForApproval(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	Approve(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	MarkReadyForPickup(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	MarkPickedUp(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	MarkDelivered(ctx context.Context, id string) (*domain.PurchaseOrder, error)
}

type PurchaseOrderController struct {
	orders PurchaseOrderService
	logger *zap.Logger
}

func NewPurchaseOrderController(orders PurchaseOrderService, logger *zap.Logger) *PurchaseOrderController {
	return &PurchaseOrderController{
		orders: orders,
		logger: logger,
	}
}

func (c *PurchaseOrderController) Get(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.Get)
}

func (c *PurchaseOrderController) ListByRequest(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)

	orders, err := c.orders.ListByRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewPurchaseOrderListResponse(traceID, orders))
}

func (c *PurchaseOrderController) Submit(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.SubmitForApproval)
}

func (c *PurchaseOrderController) Approve(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.Approve)
}

func (c *PurchaseOrderController) Ready(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.MarkReadyForPickup)
}

func (c *PurchaseOrderController) PickedUp(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.MarkPickedUp)
}

func (c *PurchaseOrderController) Delivered(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.MarkDelivered)
}

func (c *PurchaseOrderController) respond(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id string) (*domain.PurchaseOrder, error)) {
	traceID, logger := commons.Trace(c.logger)

	po, err := action(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}
	commons.WriteJSON(w, logger, http.StatusOK, dto.NewPurchaseOrderResponse(traceID, *po))
}
