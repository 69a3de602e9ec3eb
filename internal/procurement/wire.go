package procurement

import (
	"go.uber.org/zap"

	"fulfillment/internal/procurement/controller"
	"fulfillment/internal/procurement/service"
)

type Module struct {
	Manager    *service.Manager
	Controller *controller.RequestController
}

func NewModule(
	tx service.TxRunner,
	requests service.RequestRepository,
	catalog service.ProductCatalog,
	gate service.AssignmentGate,
	publisher service.EventPublisher,
	logger *zap.Logger,
	pageSize int,
) *Module {
	manager := service.NewManager(tx, requests, catalog, gate, publisher, logger.Named("procurement"), pageSize)

	return &Module{
		Manager:    manager,
		Controller: controller.NewRequestController(manager, logger),
	}
}
