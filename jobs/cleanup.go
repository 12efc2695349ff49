package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bakery-erp/internal/jobs"
)

// TaskIdempotencyCleanup prunes expired idempotency keys.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// IdempotencyCleanupPayload sets the key retention in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the scheduled cleanup.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyPruner deletes idempotency keys older than a retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob prunes replay keys no client will resend.
type IdempotencyCleanupJob struct {
	pruner  KeyPruner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires the job.
func NewIdempotencyCleanupJob(pruner KeyPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{pruner: pruner, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 72
	}
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.pruner.Cleanup(ctx, retention); err != nil {
		j.logger.Warn("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
