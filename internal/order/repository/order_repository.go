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

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	conn := mysql.Conn(ctx, r.db)

	_, err := conn.ExecContext(ctx, `
		INSERT INTO orders (id, ordered_by, facility_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderedBy, o.FacilityID, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if mysql.IsDuplicateEntry(err) {
			return apperrors.NewConflictError(fmt.Sprintf("order %s already exists", o.ID))
		}
		return apperrors.NewInternalError("inserting order", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		_, err := conn.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit, unit_price, is_shortage, shortage_qty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.OrderID, item.ProductID, item.Quantity, item.Unit, item.UnitPrice, item.IsShortage, item.ShortageQty,
		)
		if err != nil {
			return apperrors.NewInternalError("inserting order item", err)
		}
	}

	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(ctx, id, "")
}

// FindByIDForUpdate locks the order row and its items until the surrounding
// transaction ends.
func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.find(ctx, id, " FOR UPDATE")
}

func (r *MySQLOrderRepository) find(ctx context.Context, id, lock string) (*domain.Order, error) {
	conn := mysql.Conn(ctx, r.db)

	var o domain.Order
	var facility sql.NullString
	err := conn.QueryRowContext(ctx, `
		SELECT id, ordered_by, facility_id, status, created_at, updated_at
		FROM orders
		WHERE id = ?`+lock, id,
	).Scan(&o.ID, &o.OrderedBy, &facility, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying order by id", err)
	}
	if facility.Valid {
		o.FacilityID = &facility.String
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit, unit_price, is_shortage, shortage_qty
		FROM order_items
		WHERE order_id = ?
		ORDER BY product_id, id`+lock, id,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("querying order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Unit, &it.UnitPrice, &it.IsShortage, &it.ShortageQty); err != nil {
			return nil, apperrors.NewInternalError("scanning order item row", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating order item rows", err)
	}

	return &o, nil
}

func (r *MySQLOrderRepository) UpdateItemShortage(ctx context.Context, item domain.OrderItem) error {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE order_items SET is_shortage = ?, shortage_qty = ? WHERE id = ? AND order_id = ?`,
		item.IsShortage, item.ShortageQty, item.ID, item.OrderID,
	)
	if err != nil {
		return apperrors.NewInternalError("updating order item shortage", err)
	}

	// MySQL reports 0 affected rows when the values are unchanged, so only a
	// missing row is an error.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		var exists bool
		err := mysql.Conn(ctx, r.db).QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM order_items WHERE id = ? AND order_id = ?)`, item.ID, item.OrderID,
		).Scan(&exists)
		if err != nil {
			return apperrors.NewInternalError("checking order item", err)
		}
		if !exists {
			return apperrors.NewNotFoundError(fmt.Sprintf("order item %s not found", item.ID))
		}
	}

	return nil
}

// UpdateStatus sets the status only if it still equals from.
func (r *MySQLOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`, to, id, from,
	)
	if err != nil {
		return false, apperrors.NewInternalError("updating order status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("getting rows affected", err)
	}
	return n == 1, nil
}

// AppendHistory records change unless an entry with the same event key
// exists for the order, in which case it returns false.
func (r *MySQLOrderRepository) AppendHistory(ctx context.Context, change domain.OrderStatusChange) (bool, error) {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, note, event_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		change.ID, change.OrderID, change.FromStatus, change.ToStatus, change.Note, change.EventKey, change.CreatedAt,
	)
	if mysql.IsDuplicateEntry(err) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewInternalError("inserting order history", err)
	}
	return true, nil
}

func (r *MySQLOrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusChange, error) {
	rows, err := mysql.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, note, event_key, created_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY created_at, id`, orderID,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("querying order history", err)
	}
	defer rows.Close()

	var out []domain.OrderStatusChange
	for rows.Next() {
		var h domain.OrderStatusChange
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.Note, &h.EventKey, &h.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("scanning order history row", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating order history rows", err)
	}
	return out, nil
}
