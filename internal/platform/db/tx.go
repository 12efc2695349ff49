package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// SQLSTATE codes PostgreSQL raises when concurrent writers collide.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// WithTx executes fn within a RepeatableRead transaction. A commit or
// statement lost to a concurrent writer is reported as shared.ErrConflict so
// callers can reload and retry.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return conflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return conflict(fmt.Errorf("platform/db: commit tx: %w", err))
	}
	return nil
}

func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected) {
		return fmt.Errorf("%w: concurrent update: %w", shared.ErrConflict, err)
	}
	return err
}
