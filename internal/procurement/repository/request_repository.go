package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

const requestColumns = `id, source, source_order_id, requested_by, status, created_at, updated_at`

const lineColumns = `id, request_id, product_id, product_name, quantity, unit,
	requested_price, quoted_price, vendor_id, vendor_name, purchase_order_id`

type MySQLRequestRepository struct {
	db *sql.DB
}

func NewMySQLRequestRepository(db *sql.DB) *MySQLRequestRepository {
	return &MySQLRequestRepository{db: db}
}

func (r *MySQLRequestRepository) Create(ctx context.Context, req *domain.ProcurementRequest) error {
	conn := mysql.Conn(ctx, r.db)

	_, err := conn.ExecContext(ctx, `
		INSERT INTO procurement_requests (id, source, source_order_id, requested_by, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Source, req.SourceOrderID, req.RequestedBy, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if mysql.IsDuplicateEntry(err) {
			return apperrors.NewConflictError(fmt.Sprintf("procurement request %s already exists", req.ID))
		}
		return apperrors.NewInternalError("inserting procurement request", err)
	}

	for i, l := range req.Lines {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO procurement_line_items (id, request_id, position, product_id, product_name, quantity, unit,
				requested_price, quoted_price, vendor_id, vendor_name, purchase_order_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, req.ID, i, l.ProductID, l.ProductName, l.Quantity, l.Unit,
			l.RequestedPrice, l.QuotedPrice, l.VendorID, l.VendorName, l.PurchaseOrderID,
		)
		if err != nil {
			return apperrors.NewInternalError("inserting procurement line", err)
		}
	}

	return nil
}

func (r *MySQLRequestRepository) FindByID(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
	return r.find(ctx, id, "")
}

// FindByIDForUpdate locks the request and all of its lines, so vendor
// assignment, finalize and transitions on one request are serialised.
func (r *MySQLRequestRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.ProcurementRequest, error) {
	return r.find(ctx, id, " FOR UPDATE")
}

func (r *MySQLRequestRepository) FindByLineIDForUpdate(ctx context.Context, lineID string) (*domain.ProcurementRequest, error) {
	var requestID string
	err := mysql.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT request_id FROM procurement_line_items WHERE id = ?`, lineID,
	).Scan(&requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("procurement line %s not found", lineID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying procurement line", err)
	}
	return r.FindByIDForUpdate(ctx, requestID)
}

func (r *MySQLRequestRepository) find(ctx context.Context, id, lock string) (*domain.ProcurementRequest, error) {
	conn := mysql.Conn(ctx, r.db)

	req, err := scanRequest(conn.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM procurement_requests WHERE id = ?`+lock, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("procurement request %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying procurement request by id", err)
	}

	lines, err := r.lines(ctx, conn, []string{id}, lock)
	if err != nil {
		return nil, err
	}
	req.Lines = lines[id]
	return req, nil
}

func (r *MySQLRequestRepository) lines(ctx context.Context, conn mysql.DBTX, requestIDs []string, lock string) (map[string][]domain.ProcurementLineItem, error) {
	placeholders := make([]string, len(requestIDs))
	args := make([]any, len(requestIDs))
	for i, id := range requestIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM procurement_line_items
		WHERE request_id IN (%s)
		ORDER BY request_id, position%s`,
		lineColumns, strings.Join(placeholders, ", "), lock,
	), args...)
	if err != nil {
		return nil, apperrors.NewInternalError("querying procurement lines", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.ProcurementLineItem, len(requestIDs))
	for rows.Next() {
		var l domain.ProcurementLineItem
		var vendorID, poID sql.NullString
		err := rows.Scan(
			&l.ID, &l.RequestID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Unit,
			&l.RequestedPrice, &l.QuotedPrice, &vendorID, &l.VendorName, &poID,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("scanning procurement line row", err)
		}
		if vendorID.Valid {
			l.VendorID = &vendorID.String
		}
		if poID.Valid {
			l.PurchaseOrderID = &poID.String
		}
		out[l.RequestID] = append(out[l.RequestID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating procurement line rows", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.ProcurementRequest, error) {
	var req domain.ProcurementRequest
	var sourceOrder sql.NullString
	err := row.Scan(&req.ID, &req.Source, &sourceOrder, &req.RequestedBy, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceOrder.Valid {
		req.SourceOrderID = &sourceOrder.String
	}
	return &req, nil
}

// UpdateStatus sets the status only if it still equals from.
func (r *MySQLRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ProcurementStatus) (bool, error) {
	result, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE procurement_requests SET status = ? WHERE id = ? AND status = ?`, to, id, from,
	)
	if err != nil {
		return false, apperrors.NewInternalError("updating procurement status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("getting rows affected", err)
	}
	return n == 1, nil
}

// UpdateLineVendor writes the vendor binding, name snapshot and quoted price.
func (r *MySQLRequestRepository) UpdateLineVendor(ctx context.Context, line domain.ProcurementLineItem) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE procurement_line_items
		SET vendor_id = ?, vendor_name = ?, quoted_price = ?
		WHERE id = ? AND request_id = ?`,
		line.VendorID, line.VendorName, line.QuotedPrice, line.ID, line.RequestID,
	)
	if err != nil {
		return apperrors.NewInternalError("updating line vendor", err)
	}
	return nil
}

func (r *MySQLRequestRepository) SetLinePurchaseOrder(ctx context.Context, requestID, lineID, purchaseOrderID string) error {
	_, err := mysql.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE procurement_line_items SET purchase_order_id = ? WHERE id = ? AND request_id = ?`,
		purchaseOrderID, lineID, requestID,
	)
	if err != nil {
		return apperrors.NewInternalError("linking line to purchase order", err)
	}
	return nil
}

// ListPage returns up to limit requests matching filter, newest first,
// strictly after the cursor.
func (r *MySQLRequestRepository) ListPage(ctx context.Context, filter domain.RequestFilter, after *domain.RequestCursor, limit int) ([]domain.ProcurementRequest, error) {
	var where []string
	var args []any
	if filter.RequestedBy != "" {
		where = append(where, "requested_by = ?")
		args = append(args, filter.RequestedBy)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SourceOrderID != "" {
		where = append(where, "source_order_id = ?")
		args = append(args, filter.SourceOrderID)
	}
	if after != nil {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}

	query := `SELECT ` + requestColumns + ` FROM procurement_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	conn := mysql.Conn(ctx, r.db)
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("listing procurement requests", err)
	}
	defer rows.Close()

	var page []domain.ProcurementRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("scanning procurement request row", err)
		}
		page = append(page, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating procurement request rows", err)
	}
	if len(page) == 0 {
		return nil, nil
	}

	ids := make([]string, len(page))
	for i := range page {
		ids[i] = page[i].ID
	}
	lines, err := r.lines(ctx, conn, ids, "")
	if err != nil {
		return nil, err
	}
	for i := range page {
		page[i].Lines = lines[page[i].ID]
	}
	return page, nil
}
