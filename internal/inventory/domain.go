package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates stock ledger movement kinds.
type MovementType string

const (
	MovementPurchase       MovementType = "PURCHASE"
	MovementPurchaseReturn MovementType = "PURCHASE_RETURN"
	MovementSale           MovementType = "SALE"
	MovementSaleReturn     MovementType = "SALE_RETURN"
	MovementTransferOut    MovementType = "TRANSFER_OUT"
	MovementTransferIn     MovementType = "TRANSFER_IN"
	MovementConsumption    MovementType = "CONSUMPTION"
	MovementReplenishment  MovementType = "REPLENISHMENT"
	MovementAdjustment     MovementType = "ADJUSTMENT"
)

// QuantityPlaces is the scale stock quantities are stored with.
const QuantityPlaces = 4

// SourceKindAdjustment tags entries created by manual stock counts.
const SourceKindAdjustment = "adjustment"

// SourceKey identifies the transaction that owns a set of entries. All entries
// under one key are replaced together.
type SourceKey struct {
	Kind string
	ID   int64
}

// Entry is one signed quantity movement for an item at a location.
type Entry struct {
	ID           int64
	ItemID       int64
	Quantity     decimal.Decimal
	Rate         *decimal.Decimal
	MovementType MovementType
	SourceKind   string
	SourceID     int64
	SourceNumber string
	LocationID   int64
	Date         time.Time
	CreatedAt    time.Time
}

// Key returns the supersession key of the entry.
func (e Entry) Key() SourceKey {
	return SourceKey{Kind: e.SourceKind, ID: e.SourceID}
}

// Component is one raw material of a recipe.
type Component struct {
	MaterialID      int64           `json:"material_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// Recipes maps a centrally produced item to its components.
type Recipes map[int64][]Component

// Rule selects how a movement turns into entries.
type Rule int

const (
	RuleSale Rule = iota + 1
	RuleSaleReturn
	RulePurchase
	RulePurchaseReturn
	RuleTransfer
)

// MovementLine is one item quantity of a transaction.
type MovementLine struct {
	ItemID   int64
	Quantity decimal.Decimal
	Rate     decimal.Decimal
}

// Movement describes a transaction from the stock ledger's point of view.
type Movement struct {
	Rule                  Rule
	Source                SourceKey
	Number                string
	Date                  time.Time
	LocationID            int64
	DestinationLocationID int64
	CentralLocationID     int64
	ReturnToCentral       bool
	Lines                 []MovementLine
	Recipes               Recipes
}

// AdjustmentInput describes a manual stock count.
type AdjustmentInput struct {
	ItemID         int64            `json:"item_id" validate:"required,gt=0"`
	LocationID     int64            `json:"location_id" validate:"required,gt=0"`
	Date           time.Time        `json:"date" validate:"required"`
	TargetQuantity decimal.Decimal  `json:"target_quantity"`
	Rate           *decimal.Decimal `json:"rate,omitempty"`
	Reference      string           `json:"reference" validate:"max=64"`
	ActorID        int64            `json:"-"`
}

// AdjustmentResult reports what an adjustment posted. Entry is nil when the
// counted quantity already matched.
type AdjustmentResult struct {
	Closing decimal.Decimal `json:"closing"`
	Target  decimal.Decimal `json:"target"`
	Entry   *Entry          `json:"entry,omitempty"`
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	ItemID     int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// StockCardEntry is one movement with its running balance.
type StockCardEntry struct {
	EntryID      int64            `json:"entry_id"`
	Date         time.Time        `json:"date"`
	MovementType MovementType     `json:"movement_type"`
	SourceNumber string           `json:"source_number"`
	QtyIn        decimal.Decimal  `json:"qty_in"`
	QtyOut       decimal.Decimal  `json:"qty_out"`
	Balance      decimal.Decimal  `json:"balance"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
}

// StockCard is the opening balance plus the movements of a window.
type StockCard struct {
	ItemID     int64            `json:"item_id"`
	LocationID int64            `json:"location_id"`
	Opening    decimal.Decimal  `json:"opening"`
	Entries    []StockCardEntry `json:"entries"`
	Closing    decimal.Decimal  `json:"closing"`
	// Truncated is set when the listing hit its limit. Closing still covers
	// the whole window.
	Truncated bool `json:"truncated"`
}

// DefaultStockCardLimit caps the movements a stock card lists.
const DefaultStockCardLimit = 500

// ErrCentralLocationMissing indicates a recipe explosion without a configured central location.
var ErrCentralLocationMissing = errors.New("inventory: central location not configured")
