package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       int64          `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Platform string         `json:"platform,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger writes and reads audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry. A zero actor is taken from ctx.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ActorID == 0 {
		actor := ActorFromContext(ctx)
		log.ActorID, log.Platform = actor.ID, actor.Platform
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, platform, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, log.ActorID, log.Platform, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// Trail returns the records of one entity, oldest first.
func (l *AuditLogger) Trail(ctx context.Context, entity, entityID string) ([]AuditLog, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, actor_id, platform, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE entity = $1 AND entity_id = $2 ORDER BY occurred_at, id`, entity, entityID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditLog, error) {
		var (
			log  AuditLog
			meta []byte
		)
		if err := row.Scan(&log.ID, &log.ActorID, &log.Platform, &log.Action, &log.Entity, &log.EntityID, &meta, &log.At); err != nil {
			return AuditLog{}, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &log.Meta); err != nil {
				return AuditLog{}, err
			}
		}
		return log, nil
	})
}
