package repository

import (
	"context"
	"database/sql"
	"time"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

type MySQLAssignmentRepository struct {
	db *sql.DB
}

func NewMySQLAssignmentRepository(db *sql.DB) *MySQLAssignmentRepository {
	return &MySQLAssignmentRepository{db: db}
}

// SupersedeActive deactivates the active assignment of lineID, if any.
func (r *MySQLAssignmentRepository) SupersedeActive(ctx context.Context, lineID string, at time.Time) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE vendor_assignments SET active = 0, superseded_at = ? WHERE line_item_id = ? AND active = 1`,
		at, lineID,
	)
	if err != nil {
		return apperrors.NewInternalError("superseding vendor assignment", err)
	}
	return nil
}

func (r *MySQLAssignmentRepository) Insert(ctx context.Context, a *domain.VendorAssignment) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO vendor_assignments (id, line_item_id, request_id, vendor_id, vendor_name, quoted_price, active, assigned_at, superseded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LineItemID, a.RequestID, a.VendorID, a.VendorName, a.QuotedPrice, a.Active, a.AssignedAt, a.SupersededAt,
	)
	if err != nil {
		return apperrors.NewInternalError("inserting vendor assignment", err)
	}
	return nil
}

// ListByLine returns every assignment ever made for lineID, oldest first.
func (r *MySQLAssignmentRepository) ListByLine(ctx context.Context, lineID string) ([]domain.VendorAssignment, error) {
	rows, err := mysql.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, line_item_id, request_id, vendor_id, vendor_name, quoted_price, active, assigned_at, superseded_at
		FROM vendor_assignments
		WHERE line_item_id = ?
		ORDER BY assigned_at, id`, lineID,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("querying vendor assignments", err)
	}
	defer rows.Close()

	var out []domain.VendorAssignment
	for rows.Next() {
		var a domain.VendorAssignment
		var superseded sql.NullTime
		err := rows.Scan(&a.ID, &a.LineItemID, &a.RequestID, &a.VendorID, &a.VendorName, &a.QuotedPrice, &a.Active, &a.AssignedAt, &superseded)
		if err != nil {
			return nil, apperrors.NewInternalError("scanning vendor assignment row", err)
		}
		if superseded.Valid {
			a.SupersededAt = &superseded.Time
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating vendor assignment rows", err)
	}
	return out, nil
}
