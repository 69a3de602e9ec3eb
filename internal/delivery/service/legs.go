package service

import (
	"context"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type PurchaseOrderReader interface {
	FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error)
}

type RequestReader interface {
	FindByID(ctx context.Context, id string) (*domain.ProcurementRequest, error)
}

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

// LegResolver decides whether the thing a leg moves is ready to be picked up.
type LegResolver struct {
	purchaseOrders PurchaseOrderReader
	requests       RequestReader
	orders         OrderReader
}

func NewLegResolver(purchaseOrders PurchaseOrderReader, requests RequestReader, orders OrderReader) *LegResolver {
	return &LegResolver{
		purchaseOrders: purchaseOrders,
		requests:       requests,
		orders:         orders,
	}
}

// CheckReady returns nil when the leg can take a partner. A missing
// reference maps to the matching UNKNOWN_* code, anything else not yet
// dispatchable to LEG_NOT_READY.
func (r *LegResolver) CheckReady(ctx context.Context, leg domain.Leg) error {
	switch leg.Type {
	case domain.LegPurchaseOrder:
		po, err := r.purchaseOrders.FindByID(ctx, leg.ID)
		if err != nil {
			return unknown(err, apperrors.CodeUnknownPurchaseOrder, "purchase order", leg.ID)
		}
		if po.DispatchStatus != domain.DispatchReadyForPickup {
			return notReady(leg, string(po.DispatchStatus))
		}
	case domain.LegProcurementRequest:
		req, err := r.requests.FindByID(ctx, leg.ID)
		if err != nil {
			return unknown(err, apperrors.CodeUnknownRequest, "procurement request", leg.ID)
		}
		if req.Status != domain.ProcurementReady {
			return notReady(leg, string(req.Status))
		}
	case domain.LegOrder:
		o, err := r.orders.FindByID(ctx, leg.ID)
		if err != nil {
			return unknown(err, apperrors.CodeUnknownOrder, "order", leg.ID)
		}
		if o.Status != domain.OrderStatusPlaced && o.Status != domain.OrderStatusProcessing {
			return notReady(leg, string(o.Status))
		}
	default:
		return apperrors.NewValidationError("invalid leg",
			apperrors.ValidationDetail{Field: "legType", Message: "legType must be purchase_order, procurement_request or order"})
	}
	return nil
}

func notReady(leg domain.Leg, state string) error {
	return apperrors.NewWorkflowError(apperrors.CodeLegNotReady, "%s %s is %s", leg.Type, leg.ID, state)
}

func unknown(err error, code apperrors.Code, what, id string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(code, "%s %s not found", what, id)
	}
	return err
}
