package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version string
	Name    string
	Up      string
}

// migrateLockID serialises concurrent Migrate calls across processes.
const migrateLockID = 7314002

// Migrate applies every migration not yet recorded in schema_migrations, in
// version order, inside a single transaction. It returns the applied versions.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]string, error) {
	var applied []string
	err := WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockID); err != nil {
			return fmt.Errorf("platform/db: migrate lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
			return fmt.Errorf("platform/db: migrate bookkeeping: %w", err)
		}
		rows, err := tx.Query(ctx, `SELECT version FROM schema_migrations`)
		if err != nil {
			return err
		}
		done, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		pending, err := Pending(done, migrations)
		if err != nil {
			return err
		}
		for _, m := range pending {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("platform/db: migration %s_%s: %w", m.Version, m.Name, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
				return err
			}
			applied = append(applied, m.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// Pending returns the migrations whose version is not in done, sorted by
// version. Duplicate or empty versions are rejected.
func Pending(done []string, migrations []Migration) ([]Migration, error) {
	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		if m.Version == "" {
			return nil, fmt.Errorf("platform/db: migration %q has no version", m.Name)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("platform/db: duplicate migration version %s", m.Version)
		}
		seen[m.Version] = true
	}
	applied := make(map[string]bool, len(done))
	for _, v := range done {
		applied[v] = true
	}
	var out []Migration
	for _, m := range migrations {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
