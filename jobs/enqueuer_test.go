package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postedEvent() posting.PostedEvent {
	return posting.PostedEvent{
		Kind:       posting.KindSale,
		ID:         41,
		Number:     "SAL/2025/000041",
		Action:     posting.ActionSaved,
		Revision:   2,
		GrandTotal: decimal.RequireFromString("1234.5"),
		ActorID:    7,
		PostedAt:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestTransactionPostedTaskPayload(t *testing.T) {
	task, err := NewTransactionPostedTask(postedEvent())
	require.NoError(t, err)
	require.Equal(t, TaskTransactionPosted, task.Type())

	var payload TransactionPostedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "sale", payload.Kind)
	require.Equal(t, "SAL/2025/000041", payload.Number)
	require.Equal(t, 2, payload.Revision)
	require.True(t, decimal.RequireFromString("1234.5").Equal(payload.GrandTotal))
}

func TestEnqueuerDeduplicatesRedeliveredEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	enq := NewEnqueuer(asynq.RedisClientOpt{Addr: mr.Addr()}, discardLogger())
	t.Cleanup(func() { _ = enq.Close() })
	ctx := context.Background()

	require.NoError(t, enq.TransactionPosted(ctx, postedEvent()))
	require.NoError(t, enq.TransactionPosted(ctx, postedEvent()))

	pending, err := mr.List("asynq:{" + QueueNotifications + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	next := postedEvent()
	next.Revision = 3
	require.NoError(t, enq.TransactionPosted(ctx, next))
	pending, err = mr.List("asynq:{" + QueueNotifications + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestEnqueuerStockAdjusted(t *testing.T) {
	mr := miniredis.RunT(t)
	enq := NewEnqueuer(asynq.RedisClientOpt{Addr: mr.Addr()}, discardLogger())
	t.Cleanup(func() { _ = enq.Close() })

	err := enq.StockAdjusted(context.Background(), inventory.AdjustmentPostedEvent{
		ItemID: 3, LocationID: 2, Quantity: decimal.RequireFromString("-1.5"), Reference: "COUNT-9",
	})
	require.NoError(t, err)
	pending, err := mr.List("asynq:{" + QueueNotifications + "}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
