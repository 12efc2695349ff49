package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bakery-erp/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	// IntegrityLookbackDays and IdempotencyRetention parameterise triggered runs.
	IntegrityLookbackDays int
	IdempotencyRetention  time.Duration
}

// NewJobsCLI initialises the helpers using the provided Redis connection.
func NewJobsCLI(opts asynq.RedisConnOpt) *JobsCLI {
	return &JobsCLI{
		client:                asynq.NewClient(opts),
		inspector:             asynq.NewInspector(opts),
		IntegrityLookbackDays: 7,
		IdempotencyRetention:  72 * time.Hour,
	}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// Trigger enqueues a scheduled job by task type.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskVoucherIntegrity:
		task, err = jobs.NewVoucherIntegrityTask(c.IntegrityLookbackDays)
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask(c.IdempotencyRetention)
	default:
		return "", fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// QueueStats summarises one queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports the state of the worker queues.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	var out []QueueStats
	for _, name := range []string{jobs.QueueNotifications, jobs.QueueDefault} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats := QueueStats{Queue: name}
		info, err := c.inspector.GetQueueInfo(name)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, err
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}
