package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/odyssey-erp/bakery-erp/internal/jobs"
)

// Notification is one message for downstream consumers such as receipt
// printers or push gateways.
type Notification struct {
	Topic   string
	Key     string
	Message string
	Payload []byte
}

// Sink delivers notifications.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// RedisStreamSink appends notifications to one Redis stream per topic.
type RedisStreamSink struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// NewRedisStreamSink builds a sink writing to "<prefix>:<topic>" streams
// trimmed to roughly maxLen entries.
func NewRedisStreamSink(client *redis.Client, prefix string, maxLen int64) *RedisStreamSink {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisStreamSink{client: client, prefix: prefix, maxLen: maxLen}
}

// Stream returns the stream name of topic.
func (s *RedisStreamSink) Stream(topic string) string {
	return s.prefix + ":" + topic
}

// Publish implements Sink.
func (s *RedisStreamSink) Publish(ctx context.Context, n Notification) error {
	args := &redis.XAddArgs{
		Stream: s.Stream(n.Topic),
		Values: map[string]any{"key": n.Key, "message": n.Message, "payload": string(n.Payload)},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// NotificationJob turns posted events into human readable notifications.
type NotificationJob struct {
	sink    Sink
	printer *message.Printer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewNotificationJob wires the job. lang selects number formatting, e.g. "en-IN".
func NewNotificationJob(sink Sink, lang string, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &NotificationJob{sink: sink, printer: message.NewPrinter(tag), logger: logger, metrics: metrics}
}

// HandleTransactionPosted processes TaskTransactionPosted.
func (j *NotificationJob) HandleTransactionPosted(ctx context.Context, t *asynq.Task) error {
	var payload TransactionPostedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskTransactionPosted)
	grand, _ := payload.GrandTotal.Float64()
	n := Notification{
		Topic:   payload.Kind,
		Key:     payload.Number,
		Message: j.printer.Sprintf("%s %s %s (revision %d), grand total %.2f", payload.Kind, payload.Number, payload.Action, payload.Revision, grand),
		Payload: t.Payload(),
	}
	err := j.sink.Publish(ctx, n)
	if err != nil {
		j.logger.Warn("publish posted notification", slog.String("number", payload.Number), slog.Any("error", err))
	}
	return tracker.End(err)
}

// HandleStockAdjusted processes TaskStockAdjusted.
func (j *NotificationJob) HandleStockAdjusted(ctx context.Context, t *asynq.Task) error {
	var payload StockAdjustedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskStockAdjusted)
	qty, _ := payload.Quantity.Float64()
	n := Notification{
		Topic:   "stock",
		Key:     fmt.Sprintf("%d@%d", payload.ItemID, payload.LocationID),
		Message: j.printer.Sprintf("item %d at location %d adjusted by %.3f (%s)", payload.ItemID, payload.LocationID, qty, payload.Reference),
		Payload: t.Payload(),
	}
	err := j.sink.Publish(ctx, n)
	if err != nil {
		j.logger.Warn("publish stock notification", slog.Int64("item_id", payload.ItemID), slog.Any("error", err))
	}
	return tracker.End(err)
}
