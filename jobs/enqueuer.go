package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
)

// Enqueuer hands committed events to the worker. It implements
// posting.Notifier and inventory.Notifier.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

var (
	_ posting.Notifier   = (*Enqueuer)(nil)
	_ inventory.Notifier = (*Enqueuer)(nil)
)

// NewEnqueuer constructs an Enqueuer over an asynq client.
func NewEnqueuer(redisOpts asynq.RedisConnOpt, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{client: asynq.NewClient(redisOpts), logger: logger}
}

// TransactionPosted enqueues TaskTransactionPosted.
func (e *Enqueuer) TransactionPosted(ctx context.Context, evt posting.PostedEvent) error {
	task, err := NewTransactionPostedTask(evt)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, slog.String("number", evt.Number), slog.String("action", string(evt.Action)))
}

// StockAdjusted enqueues TaskStockAdjusted.
func (e *Enqueuer) StockAdjusted(ctx context.Context, evt inventory.AdjustmentPostedEvent) error {
	task, err := NewStockAdjustedTask(evt)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, slog.Int64("item_id", evt.ItemID), slog.Int64("location_id", evt.LocationID))
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, attrs ...any) error {
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.logger.Debug("task already enqueued", append([]any{slog.String("type", task.Type())}, attrs...)...)
		return nil
	}
	if err != nil {
		return err
	}
	e.logger.Debug("task enqueued", append([]any{slog.String("type", task.Type()), slog.String("task_id", info.ID)}, attrs...)...)
	return nil
}

// Close releases client resources.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
