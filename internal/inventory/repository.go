package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/platform/db"
)

// TxRepository exposes transactional stock ledger operations.
type TxRepository interface {
	accounting.PeriodReader
	EntryWriter
	LockStock(ctx context.Context, itemID, locationID int64) error
	ClosingStock(ctx context.Context, itemID, locationID int64, date time.Time) (decimal.Decimal, error)
	ListEntries(ctx context.Context, filter StockCardFilter) ([]Entry, error)
}

// Repository persists stock entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepo struct {
	accounting.PeriodReader
	tx pgx.Tx
}

// NewTxRepository binds stock ledger queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{PeriodReader: accounting.NewTxRepository(tx), tx: tx}
}

func (r *txRepo) DeleteEntries(ctx context.Context, key SourceKey) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM stock_entries WHERE source_kind=$1 AND source_id=$2`, key.Kind, key.ID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepo) InsertEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO stock_entries (item_id, quantity, rate, movement_type, source_kind, source_id, source_number, location_id, entry_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, e.ItemID, e.Quantity, nullDecimal(e.Rate), e.MovementType, e.SourceKind, e.SourceID, e.SourceNumber, e.LocationID, e.Date)
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("stock entry %d: %w", i, err)
		}
	}
	return results.Close()
}

func (r *txRepo) LockStock(ctx context.Context, itemID, locationID int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, fmt.Sprintf("stock:%d:%d", itemID, locationID))
	return err
}

func (r *txRepo) ClosingStock(ctx context.Context, itemID, locationID int64, date time.Time) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_entries
WHERE item_id=$1 AND location_id=$2 AND entry_date <= $3::date`, itemID, locationID, date).Scan(&qty)
	return qty, err
}

func (r *txRepo) ListEntries(ctx context.Context, filter StockCardFilter) ([]Entry, error) {
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultStockCardLimit
	}
	rows, err := r.tx.Query(ctx, `SELECT id, item_id, quantity, rate, movement_type, source_kind, source_id, source_number, location_id, entry_date, created_at
FROM stock_entries
WHERE item_id=$1 AND location_id=$2
  AND ($3::date IS NULL OR entry_date >= $3::date)
  AND ($4::date IS NULL OR entry_date <= $4::date)
ORDER BY entry_date, id
LIMIT $5`, filter.ItemID, filter.LocationID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			rate decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Quantity, &rate, &e.MovementType, &e.SourceKind, &e.SourceID, &e.SourceNumber, &e.LocationID, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		if rate.Valid {
			v := rate.Decimal
			e.Rate = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}
