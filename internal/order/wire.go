package order

import (
	"go.uber.org/zap"

	"fulfillment/internal/order/controller"
	"fulfillment/internal/order/service"
)

type Module struct {
	Store      *service.OrderStore
	Controller *controller.OrderController
}

func NewModule(tx service.TxRunner, repo service.OrderRepository, logger *zap.Logger) *Module {
	store := service.NewOrderStore(tx, repo, logger.Named("orders"))

	return &Module{
		Store:      store,
		Controller: controller.NewOrderController(store, logger),
	}
}
