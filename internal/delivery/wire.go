package delivery

import (
	"go.uber.org/zap"

	"fulfillment/internal/delivery/controller"
	"fulfillment/internal/delivery/service"
)

type Module struct {
	Engine     *service.Engine
	Controller *controller.DeliveryController
}

type Deps struct {
	Tx             service.TxRunner
	Partners       service.PartnerRepository
	Assignments    service.AssignmentRepository
	PurchaseOrders service.PurchaseOrderReader
	Requests       service.RequestReader
	Orders         service.OrderReader
	Publisher      service.EventPublisher
	PageSize       int
}

func NewModule(deps Deps, logger *zap.Logger) *Module {
	legs := service.NewLegResolver(deps.PurchaseOrders, deps.Requests, deps.Orders)
	engine := service.NewEngine(deps.Tx, deps.Partners, deps.Assignments, legs, deps.Publisher, logger.Named("delivery"), deps.PageSize)

	return &Module{
		Engine:     engine,
		Controller: controller.NewDeliveryController(engine, logger),
	}
}
