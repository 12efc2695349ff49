package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists settings.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, settings []Setting) error
	List(ctx context.Context) ([]Setting, error)
}

// PgRepository stores settings in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Get loads one value.
func (r *PgRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

// Upsert writes all settings in one batch.
func (r *PgRepository) Upsert(ctx context.Context, settings []Setting) error {
	batch := &pgx.Batch{}
	for _, s := range settings {
		batch.Queue(`INSERT INTO app_settings (key, value, updated_at) VALUES ($1,$2,NOW())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, s.Key, s.Value)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// List returns every stored setting ordered by key.
func (r *PgRepository) List(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM app_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
