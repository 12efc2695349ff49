package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	jobmetrics "github.com/odyssey-erp/bakery-erp/internal/jobs"
)

// IntegrityChecker finds vouchers that break double entry.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, from time.Time) ([]accounting.Imbalance, error)
}

// VoucherIntegrityJob re-verifies recently posted vouchers.
type VoucherIntegrityJob struct {
	checker IntegrityChecker
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewVoucherIntegrityJob wires the job.
func NewVoucherIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *VoucherIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoucherIntegrityJob{checker: checker, logger: logger, metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle processes TaskVoucherIntegrity. Findings fail the run without retry;
// the voucher ids are logged by the checker.
func (j *VoucherIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload VoucherIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = 7
	}
	tracker := j.metrics.Track(TaskVoucherIntegrity)
	from := j.clock().AddDate(0, 0, -payload.LookbackDays)
	found, err := j.checker.CheckIntegrity(ctx, from)
	if err != nil {
		return tracker.End(err)
	}
	if len(found) > 0 {
		return tracker.End(fmt.Errorf("%d unbalanced vouchers since %s: %w", len(found), from.Format(time.DateOnly), asynq.SkipRetry))
	}
	j.logger.Info("voucher integrity verified", slog.Int("lookback_days", payload.LookbackDays))
	return tracker.End(nil)
}
