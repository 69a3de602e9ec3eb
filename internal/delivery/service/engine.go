package service

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/events"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PartnerRepository interface {
	FindByID(ctx context.Context, id string) (*domain.DeliveryPartner, error)
	ListAvailablePage(ctx context.Context, query string, after *domain.PartnerCursor, limit int) ([]domain.DeliveryPartner, error)
	MarkBusyIfAvailable(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type AssignmentRepository interface {
	Insert(ctx context.Context, a *domain.DeliveryAssignment) error
	FindByID(ctx context.Context, id string) (*domain.DeliveryAssignment, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.DeliveryAssignment, error)
	FindActiveByLeg(ctx context.Context, leg domain.Leg) (*domain.DeliveryAssignment, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
}

// LegChecker reports whether a leg can be handed to a partner.
type LegChecker interface {
	CheckReady(ctx context.Context, leg domain.Leg) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Engine binds dispatch-ready legs to delivery partners. It is the only
// writer of partner availability.
type Engine struct {
	tx          TxRunner
	partners    PartnerRepository
	assignments AssignmentRepository
	legs        LegChecker
	events      EventPublisher
	logger      *zap.Logger
	pageSize    int
}

func NewEngine(
	tx TxRunner,
	partners PartnerRepository,
	assignments AssignmentRepository,
	legs LegChecker,
	publisher EventPublisher,
	logger *zap.Logger,
	pageSize int,
) *Engine {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Engine{
		tx:          tx,
		partners:    partners,
		assignments: assignments,
		legs:        legs,
		events:      publisher,
		logger:      logger,
		pageSize:    pageSize,
	}
}

func (e *Engine) Get(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error) {
	a, err := e.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, unknownAssignment(err, assignmentID)
	}
	return a, nil
}

// ListAvailablePartners yields available partners matching query on name or
// id, best rated first. Each range over the result starts a fresh scan.
func (e *Engine) ListAvailablePartners(ctx context.Context, query string) iter.Seq2[domain.DeliveryPartner, error] {
	return func(yield func(domain.DeliveryPartner, error) bool) {
		var cursor *domain.PartnerCursor
		for {
			page, err := e.partners.ListAvailablePage(ctx, query, cursor, e.pageSize)
			if err != nil {
				yield(domain.DeliveryPartner{}, err)
				return
			}
			for _, p := range page {
				if !yield(p, nil) {
					return
				}
			}
			if len(page) < e.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &domain.PartnerCursor{Rating: last.Rating, ID: last.ID}
		}
	}
}

// Assign reserves partnerID for leg. The availability flip and the
// assignment insert commit together, so of two concurrent callers racing
// for one partner exactly one wins and the other gets PARTNER_UNAVAILABLE.
func (e *Engine) Assign(ctx context.Context, leg domain.Leg, partnerID string) (*domain.DeliveryAssignment, error) {
	var assignment *domain.DeliveryAssignment
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.legs.CheckReady(ctx, leg); err != nil {
			return err
		}

		active, err := e.assignments.FindActiveByLeg(ctx, leg)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.NewWorkflowError(apperrors.CodeLegAlreadyAssigned, "%s %s is already assigned to %s", leg.Type, leg.ID, active.PartnerName)
		}

		partner, err := e.partners.FindByID(ctx, partnerID)
		if err != nil {
			if _, ok := apperrors.IsNotFoundError(err); ok {
				return apperrors.NewWorkflowError(apperrors.CodeUnknownPartner, "delivery partner %s not found", partnerID)
			}
			return err
		}

		reserved, err := e.partners.MarkBusyIfAvailable(ctx, partnerID)
		if err != nil {
			return err
		}
		if !reserved {
			return apperrors.NewWorkflowError(apperrors.CodePartnerUnavailable, "delivery partner %s is not available", partnerID)
		}

		assignment = &domain.DeliveryAssignment{
			ID:          uuid.NewString(),
			Leg:         leg,
			PartnerID:   partner.ID,
			PartnerName: partner.Name,
			Status:      domain.AssignmentActive,
			AssignedAt:  time.Now().UTC(),
		}
		return e.assignments.Insert(ctx, assignment)
	})
	if err != nil {
		if apperrors.IsExpected(err) {
			e.logger.Warn("delivery assignment rejected",
				zap.String("legType", string(leg.Type)),
				zap.String("legId", leg.ID),
				zap.String("partnerId", partnerID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	e.logger.Info("delivery partner assigned",
		zap.String("assignmentId", assignment.ID),
		zap.String("legType", string(leg.Type)),
		zap.String("legId", leg.ID),
		zap.String("partnerId", partnerID),
	)
	return assignment, nil
}

// Complete closes the assignment and frees its partner. Completing an
// already completed assignment returns it unchanged and emits nothing.
func (e *Engine) Complete(ctx context.Context, assignmentID string) (*domain.DeliveryAssignment, error) {
	var (
		assignment *domain.DeliveryAssignment
		first      bool
	)
	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = e.assignments.FindByIDForUpdate(ctx, assignmentID)
		if err != nil {
			return unknownAssignment(err, assignmentID)
		}
		if assignment.Status == domain.AssignmentCompleted {
			return nil
		}

		now := time.Now().UTC()
		first, err = e.assignments.MarkCompleted(ctx, assignmentID, now)
		if err != nil || !first {
			return err
		}
		assignment.Status = domain.AssignmentCompleted
		assignment.CompletedAt = &now
		return e.partners.Release(ctx, assignment.PartnerID)
	})
	if err != nil {
		return nil, err
	}
	if !first {
		e.logger.Debug("delivery assignment already completed", zap.String("assignmentId", assignmentID))
		return assignment, nil
	}

	e.logger.Info("delivery completed",
		zap.String("assignmentId", assignmentID),
		zap.String("partnerId", assignment.PartnerID),
	)
	ev := events.NewDeliveryCompleted(*assignment)
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.Warn("event projection failed", zap.String("type", string(ev.Type)), zap.String("key", ev.Key), zap.Error(err))
	}
	return assignment, nil
}

func unknownAssignment(err error, id string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewWorkflowError(apperrors.CodeUnknownAssignment, "delivery assignment %s not found", id)
	}
	return err
}
