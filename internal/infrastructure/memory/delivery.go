package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
)

type PartnerRepository struct {
	s *Store
}

func (r *PartnerRepository) Save(ctx context.Context, p domain.DeliveryPartner) error {
	defer r.s.lock(ctx)()
	r.s.data.partners[p.ID] = p
	return nil
}

func (r *PartnerRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryPartner, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.partners[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("delivery partner %s not found", id))
	}
	return &p, nil
}

// ListAvailablePage returns available partners whose name or id contains
// query (case-insensitive), best rated first.
func (r *PartnerRepository) ListAvailablePage(ctx context.Context, query string, after *domain.PartnerCursor, limit int) ([]domain.DeliveryPartner, error) {
	defer r.s.lock(ctx)()

	q := strings.ToLower(query)
	var out []domain.DeliveryPartner
	for _, p := range r.s.data.partners {
		if p.Status != domain.PartnerAvailable || !after.After(p) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.ID), q) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.DeliveryPartner) int {
		return cmp.Or(b.Rating.Cmp(a.Rating), cmp.Compare(a.ID, b.ID))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkBusyIfAvailable flips the partner to busy and reports whether it was
// available.
func (r *PartnerRepository) MarkBusyIfAvailable(ctx context.Context, id string) (bool, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.partners[id]
	if !ok || p.Status != domain.PartnerAvailable {
		return false, nil
	}
	p.Status = domain.PartnerBusy
	p.UpdatedAt = time.Now().UTC()
	r.s.data.partners[id] = p
	return true, nil
}

// Release makes a busy partner available again and counts the finished task.
func (r *PartnerRepository) Release(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.partners[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("delivery partner %s not found", id))
	}
	if p.Status == domain.PartnerBusy {
		p.Status = domain.PartnerAvailable
	}
	p.CompletedTasks++
	p.UpdatedAt = time.Now().UTC()
	r.s.data.partners[id] = p
	return nil
}

type DeliveryAssignmentRepository struct {
	s *Store
}

func (r *DeliveryAssignmentRepository) Insert(ctx context.Context, a *domain.DeliveryAssignment) error {
	defer r.s.lock(ctx)()

	if _, exists := r.s.data.deliveryAssignments[a.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("delivery assignment %s already exists", a.ID))
	}
	r.s.data.deliveryAssignments[a.ID] = *a
	return nil
}

func (r *DeliveryAssignmentRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryAssignment, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.data.deliveryAssignments[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("delivery assignment %s not found", id))
	}
	return &a, nil
}

func (r *DeliveryAssignmentRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.DeliveryAssignment, error) {
	return r.FindByID(ctx, id)
}

// FindActiveByLeg returns nil when the leg has no active assignment.
func (r *DeliveryAssignmentRepository) FindActiveByLeg(ctx context.Context, leg domain.Leg) (*domain.DeliveryAssignment, error) {
	defer r.s.lock(ctx)()

	for _, a := range r.s.data.deliveryAssignments {
		if a.Leg == leg && a.Status == domain.AssignmentActive {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *DeliveryAssignmentRepository) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.data.deliveryAssignments[id]
	if !ok || a.Status != domain.AssignmentActive {
		return false, nil
	}
	a.Status = domain.AssignmentCompleted
	a.CompletedAt = &at
	r.s.data.deliveryAssignments[id] = a
	return true, nil
}
