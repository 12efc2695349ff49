package posting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PostedEvent announces a committed transaction write to downstream consumers
// such as printing or export.
type PostedEvent struct {
	Kind       Kind            `json:"kind"`
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	Action     Action          `json:"action"`
	Revision   int             `json:"revision"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ActorID    int64           `json:"actor_id"`
	PostedAt   time.Time       `json:"posted_at"`
}

// Notifier publishes posted events. Failures never undo the write.
type Notifier interface {
	TransactionPosted(ctx context.Context, evt PostedEvent) error
}

// Metrics counts posting outcomes.
type Metrics interface {
	ObservePosting(kind, action string)
	ObservePostingFailure(kind, reason string)
}
