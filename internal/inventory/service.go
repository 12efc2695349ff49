package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service answers stock queries and posts manual adjustments.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	authz     shared.Authorizer
	notifier  Notifier
	logger    *slog.Logger
	validator *validator.Validate
	guard     accounting.PeriodGuard
	now       func() time.Time
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit      AuditPort
	Authorizer shared.Authorizer
	Notifier   Notifier
	Logger     *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     cfg.Audit,
		authz:     cfg.Authorizer,
		notifier:  cfg.Notifier,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
	}
}

// ClosingStock returns the sum of signed quantities of item at location dated on or before date.
func (s *Service) ClosingStock(ctx context.Context, itemID, locationID int64, date time.Time) (decimal.Decimal, error) {
	if itemID <= 0 || locationID <= 0 {
		return decimal.Zero, shared.Validationf("item and location required")
	}
	var qty decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		qty, err = tx.ClosingStock(ctx, itemID, locationID, date)
		return err
	})
	return qty, err
}

// Adjust books the difference between a counted quantity and the closing
// stock as one Adjustment entry. Nothing is written when they already agree.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (AdjustmentResult, error) {
	if err := s.validator.Struct(input); err != nil {
		return AdjustmentResult{}, shared.Validationf("%v", err)
	}
	if input.TargetQuantity.IsNegative() {
		return AdjustmentResult{}, shared.Validationf("target quantity must not be negative")
	}
	if !input.TargetQuantity.Equal(input.TargetQuantity.Round(QuantityPlaces)) {
		return AdjustmentResult{}, shared.Validationf("target quantity carries more than %d decimal places", QuantityPlaces)
	}
	if input.Rate != nil && input.Rate.IsNegative() {
		return AdjustmentResult{}, shared.Validationf("rate must not be negative")
	}
	if err := shared.Authorize(ctx, s.authz, shared.PermStockAdjust); err != nil {
		return AdjustmentResult{}, err
	}
	result := AdjustmentResult{Target: input.TargetQuantity}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.guard.ResolveOpen(ctx, tx, input.Date); err != nil {
			return err
		}
		if err := tx.LockStock(ctx, input.ItemID, input.LocationID); err != nil {
			return err
		}
		closing, err := tx.ClosingStock(ctx, input.ItemID, input.LocationID, input.Date)
		if err != nil {
			return err
		}
		result.Closing = closing
		diff := input.TargetQuantity.Sub(closing)
		if diff.IsZero() {
			return nil
		}
		entry := Entry{
			ItemID:       input.ItemID,
			Quantity:     diff,
			Rate:         input.Rate,
			MovementType: MovementAdjustment,
			SourceKind:   SourceKindAdjustment,
			SourceNumber: input.Reference,
			LocationID:   input.LocationID,
			Date:         input.Date,
		}
		if err := tx.InsertEntries(ctx, []Entry{entry}); err != nil {
			return err
		}
		result.Entry = &entry
		return nil
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	if result.Entry == nil {
		return result, nil
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Platform: shared.ActorFromContext(ctx).Platform,
			Action:   "inventory:adjust",
			Entity:   "stock_entry",
			EntityID: fmt.Sprintf("%d:%d", input.ItemID, input.LocationID),
			Meta: map[string]any{
				"closing":   result.Closing.String(),
				"target":    input.TargetQuantity.String(),
				"reference": input.Reference,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit adjustment", slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		evt := AdjustmentPostedEvent{
			ItemID:     input.ItemID,
			LocationID: input.LocationID,
			Quantity:   result.Entry.Quantity,
			Reference:  input.Reference,
			PostedAt:   s.now(),
		}
		if err := s.notifier.StockAdjusted(ctx, evt); err != nil {
			s.logger.Warn("notify adjustment", slog.Any("error", err))
		}
	}
	return result, nil
}

// lastDate bounds an open-ended stock card.
var lastDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// StockCard lists the movements of item at location with running balances.
// The opening balance covers everything dated before filter.From and the
// closing balance everything up to filter.To, whatever the listing limit.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) (StockCard, error) {
	if filter.ItemID <= 0 || filter.LocationID <= 0 {
		return StockCard{}, shared.Validationf("item and location required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return StockCard{}, shared.Validationf("stock card range is inverted")
	}
	if filter.Limit <= 0 || filter.Limit > DefaultStockCardLimit {
		filter.Limit = DefaultStockCardLimit
	}
	card := StockCard{ItemID: filter.ItemID, LocationID: filter.LocationID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !filter.From.IsZero() {
			opening, err := tx.ClosingStock(ctx, filter.ItemID, filter.LocationID, filter.From.AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			card.Opening = opening
		}
		entries, err := tx.ListEntries(ctx, filter)
		if err != nil {
			return err
		}
		balance := card.Opening
		card.Entries = make([]StockCardEntry, 0, len(entries))
		for _, e := range entries {
			balance = balance.Add(e.Quantity)
			row := StockCardEntry{
				EntryID:      e.ID,
				Date:         e.Date,
				MovementType: e.MovementType,
				SourceNumber: e.SourceNumber,
				Balance:      balance,
				Rate:         e.Rate,
			}
			if e.Quantity.IsPositive() {
				row.QtyIn = e.Quantity
			} else {
				row.QtyOut = e.Quantity.Neg()
			}
			card.Entries = append(card.Entries, row)
		}
		cutoff := filter.To
		if cutoff.IsZero() {
			cutoff = lastDate
		}
		closing, err := tx.ClosingStock(ctx, filter.ItemID, filter.LocationID, cutoff)
		if err != nil {
			return err
		}
		card.Closing = closing
		card.Truncated = len(entries) >= filter.Limit
		return nil
	})
	return card, err
}
