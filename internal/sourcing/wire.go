package sourcing

import (
	"go.uber.org/zap"

	"fulfillment/internal/sourcing/controller"
	"fulfillment/internal/sourcing/service"
)

type Module struct {
	Engine     *service.Engine
	Controller *controller.AssignmentController
}

func NewModule(
	tx service.TxRunner,
	vendors service.VendorRepository,
	lines service.LineRepository,
	assignments service.AssignmentRepository,
	purchaseOrders service.PurchaseOrderWriter,
	logger *zap.Logger,
) *Module {
	engine := service.NewEngine(tx, vendors, lines, assignments, purchaseOrders, logger.Named("sourcing"))

	return &Module{
		Engine:     engine,
		Controller: controller.NewAssignmentController(engine, logger),
	}
}
