package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// EntryWriter is the slice of TxRepository the ledger needs for supersession.
type EntryWriter interface {
	DeleteEntries(ctx context.Context, key SourceKey) (int64, error)
	InsertEntries(ctx context.Context, entries []Entry) error
}

// Ledger derives stock entries from movements and replaces them atomically.
type Ledger struct {
	logger *slog.Logger
}

// NewLedger constructs a Ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger}
}

// Build derives the entries of a movement. Centrally produced items explode
// into raw material entries at the central location: sales consume, transfers
// out of the central location consume, transfers into it replenish.
func (l *Ledger) Build(m Movement) ([]Entry, error) {
	b := entryBuilder{m: m}
	for _, line := range m.Lines {
		rate := line.Rate
		switch m.Rule {
		case RuleSale:
			b.add(line.ItemID, line.Quantity.Neg(), &rate, MovementSale, m.LocationID)
			if err := b.explode(line, decimal.NewFromInt(-1), MovementConsumption); err != nil {
				return nil, err
			}
		case RuleSaleReturn:
			location := m.LocationID
			if m.ReturnToCentral && m.CentralLocationID != 0 {
				location = m.CentralLocationID
			}
			b.add(line.ItemID, line.Quantity, &rate, MovementSaleReturn, location)
		case RulePurchase:
			b.add(line.ItemID, line.Quantity, &rate, MovementPurchase, m.LocationID)
		case RulePurchaseReturn:
			b.add(line.ItemID, line.Quantity.Neg(), &rate, MovementPurchaseReturn, m.LocationID)
		case RuleTransfer:
			if m.DestinationLocationID == 0 || m.DestinationLocationID == m.LocationID {
				return nil, shared.Validationf("transfer needs distinct source and destination locations")
			}
			b.add(line.ItemID, line.Quantity.Neg(), &rate, MovementTransferOut, m.LocationID)
			b.add(line.ItemID, line.Quantity, &rate, MovementTransferIn, m.DestinationLocationID)
			if m.CentralLocationID != 0 && m.LocationID == m.CentralLocationID {
				if err := b.explode(line, decimal.NewFromInt(-1), MovementConsumption); err != nil {
					return nil, err
				}
			}
			if m.CentralLocationID != 0 && m.DestinationLocationID == m.CentralLocationID {
				if err := b.explode(line, decimal.NewFromInt(1), MovementReplenishment); err != nil {
					return nil, err
				}
			}
		default:
			return nil, shared.Validationf("unknown stock rule %d", m.Rule)
		}
	}
	return b.entries, nil
}

// Supersede deletes every entry owned by key and inserts the replacements.
func (l *Ledger) Supersede(ctx context.Context, w EntryWriter, key SourceKey, entries []Entry) error {
	for idx, entry := range entries {
		if entry.Key() != key {
			err := shared.Invariantf("stock entry %d belongs to %s/%d, superseding %s/%d", idx, entry.SourceKind, entry.SourceID, key.Kind, key.ID)
			l.logger.Error("stock supersession invariant violated", slog.Any("error", err))
			return err
		}
	}
	if _, err := w.DeleteEntries(ctx, key); err != nil {
		return fmt.Errorf("delete stock entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if err := w.InsertEntries(ctx, entries); err != nil {
		return fmt.Errorf("insert stock entries: %w", err)
	}
	return nil
}

// Remove deletes every entry owned by key.
func (l *Ledger) Remove(ctx context.Context, w EntryWriter, key SourceKey) error {
	if _, err := w.DeleteEntries(ctx, key); err != nil {
		return fmt.Errorf("delete stock entries: %w", err)
	}
	return nil
}

type entryBuilder struct {
	m       Movement
	entries []Entry
}

func (b *entryBuilder) add(item int64, qty decimal.Decimal, rate *decimal.Decimal, mt MovementType, location int64) {
	b.entries = append(b.entries, Entry{
		ItemID:       item,
		Quantity:     qty,
		Rate:         rate,
		MovementType: mt,
		SourceKind:   b.m.Source.Kind,
		SourceID:     b.m.Source.ID,
		SourceNumber: b.m.Number,
		LocationID:   location,
		Date:         b.m.Date,
	})
}

func (b *entryBuilder) explode(line MovementLine, sign decimal.Decimal, mt MovementType) error {
	components, ok := b.m.Recipes[line.ItemID]
	if !ok || len(components) == 0 {
		return nil
	}
	if b.m.CentralLocationID == 0 {
		return fmt.Errorf("%w: %w for item %d", shared.ErrValidation, ErrCentralLocationMissing, line.ItemID)
	}
	for _, c := range components {
		b.add(c.MaterialID, c.QuantityPerUnit.Mul(line.Quantity).Round(QuantityPlaces).Mul(sign), nil, mt, b.m.CentralLocationID)
	}
	return nil
}
