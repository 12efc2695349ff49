package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// PeriodReader loads financial periods inside a unit of work.
type PeriodReader interface {
	PeriodByDate(ctx context.Context, date time.Time) (Period, error)
	PeriodByID(ctx context.Context, id int64) (Period, error)
}

// PeriodGuard resolves the period governing a date and blocks writes against
// locked or inactive periods.
type PeriodGuard struct{}

// Resolve returns the period covering date.
func (PeriodGuard) Resolve(ctx context.Context, reader PeriodReader, date time.Time) (Period, error) {
	period, err := reader.PeriodByDate(ctx, date)
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotFound) {
			return Period{}, fmt.Errorf("%w: no period covers %s", shared.ErrPeriodNotFound, date.Format("2006-01-02"))
		}
		return Period{}, err
	}
	return period, nil
}

// Validate fails with shared.ErrPeriodLocked when the period accepts no writes.
func (PeriodGuard) Validate(period Period) error {
	if period.Locked {
		return fmt.Errorf("%w: period %s is locked", shared.ErrPeriodLocked, period.Code)
	}
	if !period.Active {
		return fmt.Errorf("%w: period %s is inactive", shared.ErrPeriodLocked, period.Code)
	}
	return nil
}

// ResolveOpen resolves the period of date and validates it.
func (g PeriodGuard) ResolveOpen(ctx context.Context, reader PeriodReader, date time.Time) (Period, error) {
	period, err := g.Resolve(ctx, reader, date)
	if err != nil {
		return Period{}, err
	}
	if err := g.Validate(period); err != nil {
		return Period{}, err
	}
	return period, nil
}

// CheckPersisted validates the period a stored record was posted into. Records
// saved before periods existed carry no period id and fall back to their date.
func (g PeriodGuard) CheckPersisted(ctx context.Context, reader PeriodReader, periodID int64, date time.Time) error {
	if periodID == 0 {
		_, err := g.ResolveOpen(ctx, reader, date)
		return err
	}
	period, err := reader.PeriodByID(ctx, periodID)
	if err != nil {
		return err
	}
	return g.Validate(period)
}
