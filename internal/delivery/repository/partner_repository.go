package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

const partnerColumns = `id, name, status, vehicle_class, rating, completed_tasks, phone, email, created_at, updated_at`

type MySQLPartnerRepository struct {
	db *sql.DB
}

func NewMySQLPartnerRepository(db *sql.DB) *MySQLPartnerRepository {
	return &MySQLPartnerRepository{db: db}
}

func (r *MySQLPartnerRepository) Save(ctx context.Context, p domain.DeliveryPartner) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO delivery_partners (`+partnerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), status = VALUES(status), vehicle_class = VALUES(vehicle_class),
			rating = VALUES(rating), completed_tasks = VALUES(completed_tasks), phone = VALUES(phone),
			email = VALUES(email), updated_at = VALUES(updated_at)`,
		p.ID, p.Name, p.Status, p.VehicleClass, p.Rating, p.CompletedTasks, p.Phone, p.Email, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("saving delivery partner", err)
	}
	return nil
}

func (r *MySQLPartnerRepository) FindByID(ctx context.Context, id string) (*domain.DeliveryPartner, error) {
	p, err := scanPartner(mysql.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+partnerColumns+` FROM delivery_partners WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("delivery partner %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying delivery partner by id", err)
	}
	return p, nil
}

// ListAvailablePage returns available partners whose name or id contains
// query (case-insensitive), best rated first.
func (r *MySQLPartnerRepository) ListAvailablePage(ctx context.Context, query string, after *domain.PartnerCursor, limit int) ([]domain.DeliveryPartner, error) {
	sqlQuery := `SELECT ` + partnerColumns + ` FROM delivery_partners WHERE status = ?`
	args := []any{domain.PartnerAvailable}

	if query != "" {
		pattern := "%" + escapeLike(query) + "%"
		sqlQuery += ` AND (LOWER(name) LIKE LOWER(?) OR LOWER(id) LIKE LOWER(?))`
		args = append(args, pattern, pattern)
	}
	if after != nil {
		sqlQuery += ` AND (rating < ? OR (rating = ? AND id > ?))`
		args = append(args, after.Rating, after.Rating, after.ID)
	}
	sqlQuery += ` ORDER BY rating DESC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := mysql.Conn(ctx, r.db).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("listing available partners", err)
	}
	defer rows.Close()

	var out []domain.DeliveryPartner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("scanning delivery partner row", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating delivery partner rows", err)
	}
	return out, nil
}

// MarkBusyIfAvailable flips the partner to busy in a single conditional
// update and reports whether it was available. Concurrent callers for the
// same partner serialise on the row; only the first sees a changed row.
func (r *MySQLPartnerRepository) MarkBusyIfAvailable(ctx context.Context, id string) (bool, error) {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE delivery_partners SET status = ? WHERE id = ? AND status = ?`,
		domain.PartnerBusy, id, domain.PartnerAvailable,
	)
	if err != nil {
		return false, apperrors.NewInternalError("reserving delivery partner", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("getting rows affected", err)
	}
	return n == 1, nil
}

// Release makes a busy partner available again and counts the finished task.
func (r *MySQLPartnerRepository) Release(ctx context.Context, id string) error {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE delivery_partners
		SET status = CASE WHEN status = ? THEN ? ELSE status END,
			completed_tasks = completed_tasks + 1
		WHERE id = ?`,
		domain.PartnerBusy, domain.PartnerAvailable, id,
	)
	if err != nil {
		return apperrors.NewInternalError("releasing delivery partner", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("getting rows affected", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("delivery partner %s not found", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(row rowScanner) (*domain.DeliveryPartner, error) {
	var p domain.DeliveryPartner
	err := row.Scan(&p.ID, &p.Name, &p.Status, &p.VehicleClass, &p.Rating, &p.CompletedTasks,
		&p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
