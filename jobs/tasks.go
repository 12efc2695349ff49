package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries post-commit notifications.
	QueueNotifications = "notifications"

	// TaskTransactionPosted announces a saved, deleted or recovered transaction.
	TaskTransactionPosted = "posting:transaction_posted"
	// TaskStockAdjusted announces a manual stock count correction.
	TaskStockAdjusted = "inventory:stock_adjusted"
	// TaskVoucherIntegrity scans recent vouchers for broken double entry.
	TaskVoucherIntegrity = "accounting:voucher_integrity"
)

// TransactionPostedPayload is the wire form of posting.PostedEvent.
type TransactionPostedPayload struct {
	Kind       string          `json:"kind"`
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	Action     string          `json:"action"`
	Revision   int             `json:"revision"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ActorID    int64           `json:"actor_id"`
	PostedAt   time.Time       `json:"posted_at"`
}

// NewTransactionPostedTask builds the task for evt. The task id makes a
// redelivered event for the same revision a no-op.
func NewTransactionPostedTask(evt posting.PostedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(TransactionPostedPayload{
		Kind:       string(evt.Kind),
		ID:         evt.ID,
		Number:     evt.Number,
		Action:     string(evt.Action),
		Revision:   evt.Revision,
		GrandTotal: evt.GrandTotal,
		ActorID:    evt.ActorID,
		PostedAt:   evt.PostedAt,
	})
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s:%d:%d:%s", evt.Kind, evt.ID, evt.Revision, evt.Action)
	return asynq.NewTask(TaskTransactionPosted, body,
		asynq.Queue(QueueNotifications), asynq.TaskID(id), asynq.MaxRetry(10)), nil
}

// StockAdjustedPayload is the wire form of inventory.AdjustmentPostedEvent.
type StockAdjustedPayload struct {
	ItemID     int64           `json:"item_id"`
	LocationID int64           `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reference  string          `json:"reference"`
	PostedAt   time.Time       `json:"posted_at"`
}

// NewStockAdjustedTask builds the task for evt.
func NewStockAdjustedTask(evt inventory.AdjustmentPostedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(StockAdjustedPayload(evt))
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAdjusted, body, asynq.Queue(QueueNotifications), asynq.MaxRetry(10)), nil
}

// VoucherIntegrityPayload bounds the integrity scan.
type VoucherIntegrityPayload struct {
	LookbackDays int `json:"lookback_days"`
}

// NewVoucherIntegrityTask builds the scheduled integrity scan.
func NewVoucherIntegrityTask(lookbackDays int) (*asynq.Task, error) {
	body, err := json.Marshal(VoucherIntegrityPayload{LookbackDays: lookbackDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVoucherIntegrity, body, asynq.Queue(QueueDefault)), nil
}
