package purchasing

import (
	"go.uber.org/zap"

	"fulfillment/internal/purchasing/controller"
	"fulfillment/internal/purchasing/service"
)

type Module struct {
	Lifecycle  *service.Lifecycle
	Controller *controller.PurchaseOrderController
}

func NewModule(tx service.TxRunner, orders service.PurchaseOrderRepository, publisher service.EventPublisher, logger *zap.Logger) *Module {
	lifecycle := service.NewLifecycle(tx, orders, publisher, logger.Named("purchasing"))

	return &Module{
		Lifecycle:  lifecycle,
		Controller: controller.NewPurchaseOrderController(lifecycle, logger),
	}
}
