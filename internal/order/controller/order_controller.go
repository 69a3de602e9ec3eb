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

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error)
}

type OrderController struct {
	orders OrderReader
	logger *zap.Logger
}

func NewOrderController(orders OrderReader, logger *zap.Logger) *OrderController {
	return &OrderController{
		orders: orders,
		logger: logger,
	}
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.Trace(c.logger)
	orderID := chi.URLParam(r, "orderId")

	order, err := c.orders.Get(r.Context(), orderID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	history, err := c.orders.History(r.Context(), orderID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewOrderResponse(traceID, *order, history))
}
