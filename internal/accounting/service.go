package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages financial periods and exposes posted vouchers.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	authz     shared.Authorizer
	logger    *slog.Logger
	validator *validator.Validate
	guard     PeriodGuard
	now       func() time.Time
}

// NewService constructs the accounting service.
func NewService(repo RepositoryPort, audit AuditPort, authz shared.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		authz:     authz,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePeriod inserts a new active, unlocked period. Periods never overlap.
func (s *Service) CreatePeriod(ctx context.Context, input PeriodInput) (Period, error) {
	input.Code = strings.TrimSpace(input.Code)
	if err := s.validator.Struct(input); err != nil {
		return Period{}, shared.Validationf("%v", err)
	}
	if input.EndDate.Before(input.StartDate) {
		return Period{}, shared.Validationf("period end %s precedes start %s", input.EndDate.Format("2006-01-02"), input.StartDate.Format("2006-01-02"))
	}
	if err := shared.Authorize(ctx, s.authz, shared.PermPeriodCreate); err != nil {
		return Period{}, err
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlaps, err := tx.CountOverlappingPeriods(ctx, input.StartDate, input.EndDate)
		if err != nil {
			return err
		}
		if overlaps > 0 {
			return fmt.Errorf("%w: %w", shared.ErrConflict, ErrPeriodOverlap)
		}
		created, err = tx.InsertPeriod(ctx, Period{
			Code:      input.Code,
			StartDate: input.StartDate,
			EndDate:   input.EndDate,
			Active:    true,
		})
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, input.ActorID, "period.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// SetPeriodLocked locks or unlocks a period.
func (s *Service) SetPeriodLocked(ctx context.Context, id int64, locked bool, actorID int64) (Period, error) {
	if id <= 0 {
		return Period{}, shared.Validationf("period id required")
	}
	if err := shared.Authorize(ctx, s.authz, shared.PermPeriodLock); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePeriodLocked(ctx, id, locked); err != nil {
			return err
		}
		var err error
		period, err = tx.PeriodByID(ctx, id)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	action := "period.unlock"
	if locked {
		action = "period.lock"
	}
	s.record(ctx, actorID, action, id, map[string]any{"code": period.Code})
	return period, nil
}

// ListPeriods returns all periods ordered by start date.
func (s *Service) ListPeriods(ctx context.Context) ([]Period, error) {
	var periods []Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		periods, err = tx.ListPeriods(ctx)
		return err
	})
	return periods, err
}

// ResolvePeriod returns the period covering date.
func (s *Service) ResolvePeriod(ctx context.Context, date time.Time) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		period, err = s.guard.Resolve(ctx, tx, date)
		return err
	})
	return period, err
}

// VouchersByReference lists the vouchers posted for a transaction number.
func (s *Service) VouchersByReference(ctx context.Context, number string, includeInactive bool) ([]Voucher, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.Validationf("reference number required")
	}
	var vouchers []Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		vouchers, err = tx.VouchersByReference(ctx, number, includeInactive)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vouchers) == 0 {
		return nil, fmt.Errorf("%w: %w for %s", shared.ErrNotFound, ErrVoucherNotFound, number)
	}
	return vouchers, nil
}

// CheckIntegrity lists active vouchers dated on or after from that break the
// double-entry invariant. Each one is logged at ERROR.
func (s *Service) CheckIntegrity(ctx context.Context, from time.Time) ([]Imbalance, error) {
	var found []Imbalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		found, err = tx.UnbalancedVouchers(ctx, from)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, im := range found {
		s.logger.Error("unbalanced voucher",
			slog.Int64("voucher_id", im.VoucherID),
			slog.String("reference", im.ReferenceNumber),
			slog.String("debit", im.TotalDebit.String()),
			slog.String("credit", im.TotalCredit.String()))
	}
	return found, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "period",
		EntityID: fmt.Sprintf("%d", periodID),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
