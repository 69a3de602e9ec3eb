package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

const assignmentColumns = `id, leg_type, leg_id, partner_id, partner_name, status, assigned_at, completed_at`

type MySQLAssignmentRepository struct {
	db *sql.DB
}

func NewMySQLAssignmentRepository(db *sql.DB) *MySQLAssignmentRepository {
	return &MySQLAssignmentRepository{db: db}
}

func (r *MySQLAssignmentRepository) Insert(ctx context.Context, a *domain.DeliveryAssignment) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO delivery_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Leg.Type, a.Leg.ID, a.PartnerID, a.PartnerName, a.Status, a.AssignedAt, a.CompletedAt,
	)
	if err != nil {
		if mysql.IsDuplicateEntry(err) {
			return apperrors.NewConflictError(fmt.Sprintf("delivery assignment %s already exists", a.ID))
		}
		return apperrors.NewInternalError("inserting delivery assignment", err)
	}
	return nil
}

func (r *MySQLAssignmentRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryAssignment, error) {
	return r.findOne(ctx, `SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = ?`, id)
}

func (r *MySQLAssignmentRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.DeliveryAssignment, error) {
	return r.findOne(ctx, `SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = ? FOR UPDATE`, id)
}

// FindActiveByLeg returns nil when the leg has no active assignment. The
// matching index range is locked so two assigns of one leg serialise.
func (r *MySQLAssignmentRepository) FindActiveByLeg(ctx context.Context, leg domain.Leg) (*domain.DeliveryAssignment, error) {
	a, err := r.findOne(ctx, `
		SELECT `+assignmentColumns+`
		FROM delivery_assignments
		WHERE leg_type = ? AND leg_id = ? AND status = ?
		LIMIT 1
		FOR UPDATE`,
		leg.Type, leg.ID, domain.AssignmentActive,
	)
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return nil, nil
	}
	return a, err
}

func (r *MySQLAssignmentRepository) findOne(ctx context.Context, query string, args ...any) (*domain.DeliveryAssignment, error) {
	var a domain.DeliveryAssignment
	var completed sql.NullTime
	err := mysql.Conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Leg.Type, &a.Leg.ID, &a.PartnerID, &a.PartnerName, &a.Status, &a.AssignedAt, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("delivery assignment not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying delivery assignment", err)
	}
	if completed.Valid {
		a.CompletedAt = &completed.Time
	}
	return &a, nil
}

func (r *MySQLAssignmentRepository) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE delivery_assignments SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		domain.AssignmentCompleted, at, id, domain.AssignmentActive,
	)
	if err != nil {
		return false, apperrors.NewInternalError("completing delivery assignment", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("getting rows affected", err)
	}
	return n == 1, nil
}
