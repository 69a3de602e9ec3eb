package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment/internal/testutil"
)

// Unit Tests

func TestNewMySQLRepository(t *testing.T) {
	db := &sql.DB{}
	repo := NewMySQLRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestRepository_FindByIDs_EmptyList(t *testing.T) {
	repo := NewMySQLRepository(nil)

	products, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, products)
}

// Integration Tests

func TestRepository_FindByIDs_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLRepository(db)

	_, err := db.Exec(`
		INSERT INTO products (id, name, unit, price, is_active, is_deleted)
		VALUES ('prod-a', 'Flour', 'kg', 1.20, 1, 0),
		       ('prod-b', 'Sugar', 'kg', 0.90, 0, 0),
		       ('prod-c', 'Salt', 'kg', 0.30, 1, 1)
	`)
	require.NoError(t, err)

	products, err := repo.FindByIDs(context.Background(), []string{"prod-a", "prod-b", "prod-c", "prod-x"})
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "Flour", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("1.20")))
	assert.True(t, products[0].Procurable())
	assert.False(t, products[1].Procurable())
	assert.False(t, products[2].Procurable())
}
