package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fulfillment/internal/domain"
	apperrors "fulfillment/internal/errors"
	"fulfillment/internal/infrastructure/mysql"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// FindByIDs returns the products among ids that exist, deleted ones
// included so callers can tell "unknown" from "not procurable".
func (r *MySQLRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, name, unit, price, is_active, is_deleted
		FROM products
		WHERE id IN (%s)
		ORDER BY id`,
		strings.Join(placeholders, ", "),
	)

	rows, err := mysql.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("querying products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.Price, &p.IsActive, &p.IsDeleted); err != nil {
			return nil, apperrors.NewInternalError("scanning product row", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("iterating product rows", err)
	}

	return products, nil
}
