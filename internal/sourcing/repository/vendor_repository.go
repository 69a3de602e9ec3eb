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

type MySQLVendorRepository struct {
	db *sql.DB
}

func NewMySQLVendorRepository(db *sql.DB) *MySQLVendorRepository {
	return &MySQLVendorRepository{db: db}
}

func (r *MySQLVendorRepository) Save(ctx context.Context, v domain.Vendor) error {
	conn := mysql.Conn(ctx, r.db)

	_, err := conn.ExecContext(ctx, `
		INSERT INTO vendors (id, name, capacity, rating, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), capacity = VALUES(capacity),
			rating = VALUES(rating), is_active = VALUES(is_active), updated_at = VALUES(updated_at)`,
		v.ID, v.Name, v.Capacity, v.Rating, v.Active, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("saving vendor", err)
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM vendor_products WHERE vendor_id = ?`, v.ID); err != nil {
		return apperrors.NewInternalError("clearing vendor catalog", err)
	}
	for _, p := range v.Products {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO vendor_products (vendor_id, product_id, price) VALUES (?, ?, ?)`,
			v.ID, p.ProductID, p.Price,
		)
		if err != nil {
			return apperrors.NewInternalError("saving vendor product", err)
		}
	}
	return nil
}

func (r *MySQLVendorRepository) FindByID(ctx context.Context, id string) (*domain.Vendor, error) {
	conn := mysql.Conn(ctx, r.db)

	var v domain.Vendor
	err := conn.QueryRowContext(ctx, `
		SELECT id, name, capacity, rating, is_active, created_at, updated_at
		FROM vendors
		WHERE id = ?`, id,
	).Scan(&v.ID, &v.Name, &v.Capacity, &v.Rating, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("vendor %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("querying vendor by id", err)
	}

	catalogs, err := r.catalogs(ctx, conn, []string{id})
	if err != nil {
		return nil, err
	}
	v.Products = catalogs[id]
	return &v, nil
}

// ListActive returns active vendors ordered by name.
func (r *MySQLVendorRepository) ListActive(ctx context.Context) ([]domain.Vendor, error) {
	conn := mysql.Conn(ctx, r.db)

	rows, err := conn.QueryContext(ctx, `
		SELECT id, name, capacity, rating, is_active, created_at, updated_at
		FROM vendors
		WHERE is_active = 1
		ORDER BY name, id`,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("listing vendors", err)
	}
	defer rows.Close()

	var vendors []domain.Vendor
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.Rating, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, apperrors.NewInternalError("scanning vendor row", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating vendor rows", err)
	}
	if len(vendors) == 0 {
		return nil, nil
	}

	ids := make([]string, len(vendors))
	for i := range vendors {
		ids[i] = vendors[i].ID
	}
	catalogs, err := r.catalogs(ctx, conn, ids)
	if err != nil {
		return nil, err
	}
	for i := range vendors {
		vendors[i].Products = catalogs[vendors[i].ID]
	}
	return vendors, nil
}

func (r *MySQLVendorRepository) catalogs(ctx context.Context, conn mysql.DBTX, vendorIDs []string) (map[string][]domain.VendorProduct, error) {
	placeholders := make([]string, len(vendorIDs))
	args := make([]any, len(vendorIDs))
	for i, id := range vendorIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT vendor_id, product_id, price
		FROM vendor_products
		WHERE vendor_id IN (%s)
		ORDER BY vendor_id, product_id`,
		strings.Join(placeholders, ", "),
	), args...)
	if err != nil {
		return nil, apperrors.NewInternalError("querying vendor products", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.VendorProduct, len(vendorIDs))
	for rows.Next() {
		var vendorID string
		var p domain.VendorProduct
		if err := rows.Scan(&vendorID, &p.ProductID, &p.Price); err != nil {
			return nil, apperrors.NewInternalError("scanning vendor product row", err)
		}
		out[vendorID] = append(out[vendorID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating vendor product rows", err)
	}
	return out, nil
}
