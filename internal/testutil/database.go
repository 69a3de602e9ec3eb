package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"fulfillment/internal/infrastructure/mysql"
)

// SetupTestDB connects to the fulfillment_test database on localhost:3306
// and skips the test when it is not reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "root:@tcp(localhost:3306)/fulfillment_test?parseTime=true&loc=UTC"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables applies the production schema.
func SetupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

var tables = []string{
	"delivery_assignments",
	"delivery_partners",
	"purchase_order_lines",
	"purchase_orders",
	"vendor_assignments",
	"vendor_products",
	"vendors",
	"procurement_line_items",
	"procurement_requests",
	"order_status_history",
	"order_items",
	"orders",
	"products",
}

// CleanupTestDB empties every table and closes db.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// NewTxManager returns a transaction runner over db for repository tests.
func NewTxManager(db *sql.DB) *mysql.TxManager {
	return mysql.NewTxManager(db, zap.NewNop(), 5*time.Second, 3)
}
