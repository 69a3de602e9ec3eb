package mysql

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"go.uber.org/zap"

	apperrors "fulfillment/internal/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Conn returns the transaction carried by ctx, falling back to db.
func Conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

type TxManager struct {
	db          *sql.DB
	logger      *zap.Logger
	timeout     time.Duration
	maxAttempts int
}

func NewTxManager(db *sql.DB, logger *zap.Logger, timeout time.Duration, maxAttempts int) *TxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxManager{
		db:          db,
		logger:      logger,
		timeout:     timeout,
		maxAttempts: maxAttempts,
	}
}

// WithinTx runs fn in a REPEATABLE READ transaction whose handle travels in
// the context passed to fn. A nested call joins the outer transaction.
// Deadlocks roll back and re-run fn; fn must therefore not have side effects
// outside the database.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := m.run(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsDeadlock(err) {
			return err
		}
		if attempt == m.maxAttempts {
			break
		}

		m.logger.Warn("deadlock detected, retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", m.maxAttempts))
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}

func (m *TxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tx, err := m.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		m.logger.Error("failed to begin transaction", zap.Error(err))
		return apperrors.NewInternalError("beginning transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if err := fn(context.WithValue(txCtx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		m.logger.Error("failed to commit transaction", zap.Error(err))
		return apperrors.NewInternalError("committing transaction", err)
	}
	return nil
}

// backoff grows from 50ms, doubling per attempt, with ±20% jitter.
func backoff(attempt int) time.Duration {
	base := 50 * time.Millisecond << (attempt - 1)
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(base) * jitter)
}
