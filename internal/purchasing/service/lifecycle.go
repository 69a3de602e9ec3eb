package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/events"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PurchaseOrderRepository interface {
	FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListByRequest(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.PurchaseOrderStatus) (bool, error)
	UpdateDispatchStatus(ctx context.Context, id string, from, to domain.DispatchStatus) (bool, error)
	UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Lifecycle advances purchase orders through approval and dispatch.
type Lifecycle struct {
	tx     TxRunner
	orders PurchaseOrderRepository
	events EventPublisher
	logger *zap.Logger
}

func NewLifecycle(tx TxRunner, orders PurchaseOrderRepository, publisher EventPublisher, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		tx:     tx,
		orders: orders,
		events: publisher,
		logger: logger,
	}
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	po, err := l.orders.FindByID(ctx, id)
	if err != nil {
		return nil, unknownPurchaseOrder(err, id)
	}
	return po, nil
}

func (l *Lifecycle) ListByRequest(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error) {
	return l.orders.ListByRequest(ctx, requestID)
}

// SubmitForApproval moves a draft with at least one line to pending_approval.
func (l *Lifecycle) SubmitForApproval(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return l.advance(ctx, id, "submit", func(ctx context.Context, po *domain.PurchaseOrder) error {
		if err := checkStatus(po, domain.PurchaseOrderPendingApproval); err != nil {
			return err
		}
		if len(po.Lines) == 0 {
			return apperrors.NewWorkflowError(apperrors.CodeEmptyPurchaseOrder, "purchase order %s has no lines", po.ID)
		}
		return l.setStatus(ctx, po, domain.PurchaseOrderPendingApproval)
	})
}

func (l *Lifecycle) Approve(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return l.advance(ctx, id, "approve", func(ctx context.Context, po *domain.PurchaseOrder) error {
		if err := checkStatus(po, domain.PurchaseOrderApproved); err != nil {
			return err
		}
		return l.setStatus(ctx, po, domain.PurchaseOrderApproved)
	})
}

// MarkReadyForPickup stages an approved order for a delivery partner.
func (l *Lifecycle) MarkReadyForPickup(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return l.advance(ctx, id, "ready", func(ctx context.Context, po *domain.PurchaseOrder) error {
		if po.Status != domain.PurchaseOrderApproved {
			return apperrors.NewWorkflowError(apperrors.CodeNotApproved, "purchase order %s is %s", po.ID, po.Status)
		}
		return l.setDispatch(ctx, po, domain.DispatchReadyForPickup)
	})
}

func (l *Lifecycle) MarkPickedUp(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return l.advance(ctx, id, "picked_up", func(ctx context.Context, po *domain.PurchaseOrder) error {
		return l.setDispatch(ctx, po, domain.DispatchPickedUp)
	})
}

func (l *Lifecycle) MarkDelivered(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return l.advance(ctx, id, "delivered", func(ctx context.Context, po *domain.PurchaseOrder) error {
		return l.setDispatch(ctx, po, domain.DispatchDelivered)
	})
}

// RecordTotal recomputes the total from the current lines and persists it
// if the stored value has drifted. There is no way to set a total directly.
func (l *Lifecycle) RecordTotal(ctx context.Context, id string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		po, err := l.orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return unknownPurchaseOrder(err, id)
		}

		total = domain.LinesTotal(po.Lines)
		if total.Equal(po.TotalAmount) {
			return nil
		}
		l.logger.Warn("purchase order total drifted, recomputing",
			zap.String("purchaseOrderId", id),
			zap.String("stored", po.TotalAmount.String()),
			zap.String("computed", total.String()),
		)
		return l.orders.UpdateTotal(ctx, id, total)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (l *Lifecycle) advance(ctx context.Context, id, action string, fn func(ctx context.Context, po *domain.PurchaseOrder) error) (*domain.PurchaseOrder, error) {
	var po *domain.PurchaseOrder
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		po, err = l.orders.FindByIDForUpdate(ctx, id)
		if err != nil {
			return unknownPurchaseOrder(err, id)
		}
		return fn(ctx, po)
	})
	if err != nil {
		l.logger.Info("purchase order action rejected", zap.String("purchaseOrderId", id), zap.String("action", action), zap.Error(err))
		return nil, err
	}

	l.logger.Info("purchase order updated",
		zap.String("purchaseOrderId", id),
		zap.String("action", action),
		zap.String("status", string(po.Status)),
		zap.String("dispatchStatus", string(po.DispatchStatus)),
	)
	e := events.NewPurchaseOrderStatusChanged(*po)
	if err := l.events.Publish(ctx, e); err != nil {
		l.logger.Warn("event projection failed", zap.String("type", string(e.Type)), zap.String("key", e.Key), zap.Error(err))
	}
	return po, nil
}

func checkStatus(po *domain.PurchaseOrder, target domain.PurchaseOrderStatus) error {
	if !po.Status.CanTransitionTo(target) {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "cannot move purchase order %s from %s to %s", po.ID, po.Status, target)
	}
	return nil
}

func (l *Lifecycle) setStatus(ctx context.Context, po *domain.PurchaseOrder, target domain.PurchaseOrderStatus) error {
	ok, err := l.orders.UpdateStatus(ctx, po.ID, po.Status, target)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "purchase order %s changed concurrently", po.ID)
	}
	po.Status = target
	return nil
}

func (l *Lifecycle) setDispatch(ctx context.Context, po *domain.PurchaseOrder, target domain.DispatchStatus) error {
	if !po.DispatchStatus.CanTransitionTo(target) {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "cannot move purchase order %s dispatch from %s to %s", po.ID, po.DispatchStatus, target)
	}
	ok, err := l.orders.UpdateDispatchStatus(ctx, po.ID, po.DispatchStatus, target)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewWorkflowError(apperrors.CodeInvalidTransition, "purchase order %s changed concurrently", po.ID)
	}
	po.DispatchStatus = target
	return nil
}

func unknownPurchaseOrder(err error, id string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(apperrors.CodeUnknownPurchaseOrder, "purchase order %s not found", id)
	}
	return err
}
