package intake

import (
	"go.uber.org/zap"

	"fulfillment/internal/intake/controller"
	"fulfillment/internal/intake/usecase"
)

func NewModule(orders usecase.OrderStore, requests usecase.RequestCreator, logger *zap.Logger) *controller.IntakeController {
	uc := usecase.NewIntake(orders, requests, logger.Named("intake"))
	return controller.NewIntakeController(uc, logger)
}
