package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentPostedEvent announces a manual stock correction.
type AdjustmentPostedEvent struct {
	ItemID     int64           `json:"item_id"`
	LocationID int64           `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reference  string          `json:"reference"`
	PostedAt   time.Time       `json:"posted_at"`
}

// Notifier receives inventory events after commit.
type Notifier interface {
	StockAdjusted(ctx context.Context, evt AdjustmentPostedEvent) error
}
