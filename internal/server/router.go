package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	deliverycontroller "fulfillment/internal/delivery/controller"
	intakecontroller "fulfillment/internal/intake/controller"
	ordercontroller "fulfillment/internal/order/controller"
	procurementcontroller "fulfillment/internal/procurement/controller"
	purchasingcontroller "fulfillment/internal/purchasing/controller"
	sourcingcontroller "fulfillment/internal/sourcing/controller"
)

type Controllers struct {
	Orders         *ordercontroller.OrderController
	Intake         *intakecontroller.IntakeController
	Requests       *procurementcontroller.RequestController
	Assignments    *sourcingcontroller.AssignmentController
	PurchaseOrders *purchasingcontroller.PurchaseOrderController
	Delivery       *deliverycontroller.DeliveryController
}

func NewRouter(c Controllers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/orders/{orderId}", func(r chi.Router) {
		r.Get("/", c.Orders.Get)
		r.Post("/shortages", c.Intake.ReportShortage)
	})
	r.Post("/franchises/{franchiseId}/restock", c.Intake.SubmitRestock)

	r.Route("/procurement-requests", func(r chi.Router) {
		r.Get("/", c.Requests.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.Requests.Get)
			r.Post("/transitions", c.Requests.Transition)
			r.Get("/compatible-vendors", c.Assignments.CompatibleVendors)
			r.Get("/assignment", c.Assignments.Progress)
			r.Post("/finalize", c.Assignments.Finalize)
			r.Get("/purchase-orders", c.PurchaseOrders.ListByRequest)
		})
	})
	r.Route("/procurement-lines/{lineId}", func(r chi.Router) {
		r.Put("/vendor", c.Assignments.AssignVendor)
		r.Get("/assignments", c.Assignments.History)
	})

	r.Route("/purchase-orders/{id}", func(r chi.Router) {
		r.Get("/", c.PurchaseOrders.Get)
		r.Post("/submit", c.PurchaseOrders.Submit)
		r.Post("/approve", c.PurchaseOrders.Approve)
		r.Post("/ready", c.PurchaseOrders.Ready)
		r.Post("/picked-up", c.PurchaseOrders.PickedUp)
		r.Post("/delivered", c.PurchaseOrders.Delivered)
	})

	r.Get("/delivery-partners/available", c.Delivery.AvailablePartners)
	r.Route("/delivery-assignments", func(r chi.Router) {
		r.Post("/", c.Delivery.Assign)
		r.Get("/{id}", c.Delivery.Get)
		r.Post("/{id}/complete", c.Delivery.Complete)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("requestId", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
