package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

const orderColumns = `id, request_id, vendor_id, vendor_name, franchise_id, total_amount,
	status, dispatch_status, created_at, updated_at`

type MySQLPurchaseOrderRepository struct {
	db *sql.DB
}

func NewMySQLPurchaseOrderRepository(db *sql.DB) *MySQLPurchaseOrderRepository {
	return &MySQLPurchaseOrderRepository{db: db}
}

func (r *MySQLPurchaseOrderRepository) Create(ctx context.Context, po *domain.PurchaseOrder) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO purchase_orders (id, request_id, vendor_id, vendor_name, franchise_id, total_amount,
			status, dispatch_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID, po.RequestID, po.VendorID, po.VendorName, po.FranchiseID, po.TotalAmount,
		po.Status, po.DispatchStatus, po.CreatedAt, po.UpdatedAt,
	)
	if err != nil {
		if mysql.IsDuplicateEntry(err) {
			return apperrors.NewConflictError(fmt.Sprintf("purchase order %s already exists", po.ID))
		}
		return apperrors.NewInternalError("inserting purchase order", err)
	}
	return r.insertLines(ctx, po.ID, 0, po.Lines)
}

// AppendLines stores lines on po and persists po's recomputed total.
func (r *MySQLPurchaseOrderRepository) AppendLines(ctx context.Context, po *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	if err := r.insertLines(ctx, po.ID, len(po.Lines)-len(lines), lines); err != nil {
		return err
	}
	return r.UpdateTotal(ctx, po.ID, po.TotalAmount)
}

func (r *MySQLPurchaseOrderRepository) insertLines(ctx context.Context, orderID string, offset int, lines []domain.PurchaseOrderLine) error {
	conn := mysql.Conn(ctx, r.db)
	for i, l := range lines {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO purchase_order_lines (id, purchase_order_id, position, source_line_id, product_id,
				product_name, quantity, unit, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, orderID, offset+i, l.SourceLineID, l.ProductID, l.ProductName, l.Quantity, l.Unit, l.UnitPrice,
		)
		if err != nil {
			return apperrors.NewInternalError("inserting purchase order line", err)
		}
	}
	return nil
}

func (r *MySQLPurchaseOrderRepository) FindByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return r.find(ctx, id, "")
}

func (r *MySQLPurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return r.find(ctx, id, " FOR UPDATE")
}

func (r *MySQLPurchaseOrderRepository) find(ctx context.Context, id, lock string) (*domain.PurchaseOrder, error) {
	orders, err := r.query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = ?`+lock, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("purchase order %s not found", id))
	}
	return &orders[0], nil
}

// FindDraftByRequestAndVendor returns nil when there is no draft order for
// the pair.
func (r *MySQLPurchaseOrderRepository) FindDraftByRequestAndVendor(ctx context.Context, requestID, vendorID string) (*domain.PurchaseOrder, error) {
	orders, err := r.query(ctx, `
		SELECT `+orderColumns+`
		FROM purchase_orders
		WHERE request_id = ? AND vendor_id = ? AND status = ?
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE`,
		requestID, vendorID, domain.PurchaseOrderDraft,
	)
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

func (r *MySQLPurchaseOrderRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.PurchaseOrder, error) {
	return r.query(ctx, `
		SELECT `+orderColumns+`
		FROM purchase_orders
		WHERE request_id = ?
		ORDER BY created_at, id`, requestID,
	)
}

func (r *MySQLPurchaseOrderRepository) query(ctx context.Context, query string, args ...any) ([]domain.PurchaseOrder, error) {
	conn := mysql.Conn(ctx, r.db)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("querying purchase orders", err)
	}
	defer rows.Close()

	var orders []domain.PurchaseOrder
	for rows.Next() {
		var po domain.PurchaseOrder
		var requestID sql.NullString
		err := rows.Scan(&po.ID, &requestID, &po.VendorID, &po.VendorName, &po.FranchiseID, &po.TotalAmount,
			&po.Status, &po.DispatchStatus, &po.CreatedAt, &po.UpdatedAt)
		if err != nil {
			return nil, apperrors.NewInternalError("scanning purchase order row", err)
		}
		if requestID.Valid {
			po.RequestID = &requestID.String
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating purchase order rows", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	lines, err := r.lines(ctx, conn, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *MySQLPurchaseOrderRepository) lines(ctx context.Context, conn mysql.DBTX, orderIDs []string) (map[string][]domain.PurchaseOrderLine, error) {
	placeholders := make([]string, len(orderIDs))
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, purchase_order_id, source_line_id, product_id, product_name, quantity, unit, unit_price
		FROM purchase_order_lines
		WHERE purchase_order_id IN (%s)
		ORDER BY purchase_order_id, position`,
		strings.Join(placeholders, ", "),
	), args...)
	if err != nil {
		return nil, apperrors.NewInternalError("querying purchase order lines", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.PurchaseOrderLine, len(orderIDs))
	for rows.Next() {
		var l domain.PurchaseOrderLine
		var source sql.NullString
		if err := rows.Scan(&l.ID, &l.OrderID, &source, &l.ProductID, &l.ProductName, &l.Quantity, &l.Unit, &l.UnitPrice); err != nil {
			return nil, apperrors.NewInternalError("scanning purchase order line row", err)
		}
		if source.Valid {
			l.SourceLineID = &source.String
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating purchase order line rows", err)
	}
	return out, nil
}

func (r *MySQLPurchaseOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PurchaseOrderStatus) (bool, error) {
	return r.compareAndSet(ctx, `UPDATE purchase_orders SET status = ? WHERE id = ? AND status = ?`, to, id, from)
}

// UpdateDispatchStatus only moves dispatch forward on approved orders.
func (r *MySQLPurchaseOrderRepository) UpdateDispatchStatus(ctx context.Context, id string, from, to domain.DispatchStatus) (bool, error) {
	return r.compareAndSet(ctx,
		`UPDATE purchase_orders SET dispatch_status = ? WHERE id = ? AND dispatch_status = ? AND status = ?`,
		to, id, from, domain.PurchaseOrderApproved,
	)
}

func (r *MySQLPurchaseOrderRepository) compareAndSet(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("updating purchase order", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("getting rows affected", err)
	}
	return n == 1, nil
}

func (r *MySQLPurchaseOrderRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE purchase_orders SET total_amount = ? WHERE id = ?`, total, id,
	)
	if err != nil {
		return apperrors.NewInternalError("updating purchase order total", err)
	}
	return nil
}
