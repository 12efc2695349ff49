package shared

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationLease is how long an uncompleted reservation blocks retries of
// the same key. After it a retry takes the reservation over.
const ReservationLease = 2 * time.Minute

// RequestKey identifies a keyed client request. Hash fingerprints the request
// body so a reused key with a different body is refused.
type RequestKey struct {
	Key    string
	Module string
	Hash   string
}

// NewRequestKey builds a key whose hash covers body.
func NewRequestKey(key, module string, body []byte) RequestKey {
	sum := sha256.Sum256(body)
	return RequestKey{Key: key, Module: module, Hash: hex.EncodeToString(sum[:])}
}

func (k RequestKey) validate() error {
	if k.Key == "" || k.Module == "" {
		return errors.New("idempotency key and module required")
	}
	return nil
}

// IdempotencyStore remembers which client keys already produced a result so a
// retried request returns the original outcome instead of writing twice.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

var (
	// ErrIdempotencyConflict indicates a duplicate key still being processed.
	ErrIdempotencyConflict = errors.New("idempotent request already in progress")
	// ErrIdempotencyMismatch indicates a key reused with a different request body.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

// reservation is the stored state of a key another request already claimed.
type reservation struct {
	resultID  *int64
	hash      string
	createdAt time.Time
}

// resolve decides what a new request carrying hash gets. takeOver reports an
// abandoned reservation the caller may claim.
func (r reservation) resolve(hash string, now time.Time) (resultID int64, done, takeOver bool, err error) {
	if r.hash != hash {
		return 0, false, false, ErrIdempotencyMismatch
	}
	if r.resultID != nil {
		return *r.resultID, true, false, nil
	}
	if now.Sub(r.createdAt) >= ReservationLease {
		return 0, false, true, nil
	}
	return 0, false, false, ErrIdempotencyConflict
}

// Reserve claims key. When the key already completed, the stored result id is
// returned with done=true. A key claimed but not completed yields
// ErrIdempotencyConflict until its lease runs out.
func (s *IdempotencyStore) Reserve(ctx context.Context, key RequestKey) (resultID int64, done bool, err error) {
	if s == nil {
		return 0, false, errors.New("idempotency store not initialised")
	}
	if err := key.validate(); err != nil {
		return 0, false, err
	}
	now := s.now()
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, request_hash, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (key, module) DO NOTHING`, key.Key, key.Module, key.Hash, now)
	if err != nil {
		return 0, false, err
	}
	if tag.RowsAffected() == 1 {
		return 0, false, nil
	}
	var stored reservation
	err = s.pool.QueryRow(ctx, `SELECT result_id, request_hash, created_at FROM idempotency_keys WHERE key=$1 AND module=$2`, key.Key, key.Module).
		Scan(&stored.resultID, &stored.hash, &stored.createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrIdempotencyConflict
		}
		return 0, false, err
	}
	resultID, done, takeOver, err := stored.resolve(key.Hash, now)
	if err != nil || !takeOver {
		return resultID, done, err
	}
	tag, err = s.pool.Exec(ctx, `UPDATE idempotency_keys SET created_at=$3
WHERE key=$1 AND module=$2 AND result_id IS NULL AND created_at=$4`, key.Key, key.Module, now, stored.createdAt)
	if err != nil {
		return 0, false, err
	}
	if tag.RowsAffected() == 0 {
		return 0, false, ErrIdempotencyConflict
	}
	return 0, false, nil
}

// Execer runs a statement. pgx.Tx and *pgxpool.Pool satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CompleteRequest stores the result id of a reserved key through q, normally
// the transaction that produced the result, so the key and the write commit
// together. A key that is no longer reserved fails the caller's transaction.
func CompleteRequest(ctx context.Context, q Execer, key RequestKey, resultID int64) error {
	if err := key.validate(); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `UPDATE idempotency_keys SET result_id=$3
WHERE key=$1 AND module=$2 AND request_hash=$4 AND result_id IS NULL`, key.Key, key.Module, resultID, key.Hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: key %s is not reserved", ErrIdempotencyConflict, key.Key)
	}
	return nil
}

// Release removes an uncompleted reservation after failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, key RequestKey) error {
	if s == nil {
		return nil
	}
	if err := key.validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2 AND result_id IS NULL`, key.Key, key.Module)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
