package posting

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the transaction kinds handled by the poster.
type Kind string

const (
	KindSale           Kind = "sale"
	KindSaleReturn     Kind = "sale_return"
	KindPurchase       Kind = "purchase"
	KindPurchaseReturn Kind = "purchase_return"
	KindStockTransfer  Kind = "stock_transfer"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindSale, KindSaleReturn, KindPurchase, KindPurchaseReturn, KindStockTransfer}

// ParseKind validates a kind received from a caller.
func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// Header is the persisted transaction document.
type Header struct {
	ID                    int64           `json:"id"`
	Kind                  Kind            `json:"kind"`
	Number                string          `json:"number"`
	Date                  time.Time       `json:"date"`
	LocationID            int64           `json:"location_id"`
	DestinationLocationID int64           `json:"destination_location_id,omitempty"`
	PartyID               int64           `json:"party_id,omitempty"`
	PeriodID              int64           `json:"period_id"`
	ExtraChargesPercent   decimal.Decimal `json:"extra_charges_percent"`
	DiscountPercent       decimal.Decimal `json:"discount_percent"`
	RoundOff              decimal.Decimal `json:"round_off"`
	RoundOffManual        bool            `json:"round_off_manual"`
	BaseTotal             decimal.Decimal `json:"base_total"`
	LineDiscount          decimal.Decimal `json:"line_discount"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	SubTotal              decimal.Decimal `json:"sub_total"`
	ExtraCharges          decimal.Decimal `json:"extra_charges"`
	HeaderDiscount        decimal.Decimal `json:"header_discount"`
	Total                 decimal.Decimal `json:"total"`
	GrandTotal            decimal.Decimal `json:"grand_total"`
	CashPayment           decimal.Decimal `json:"cash_payment"`
	BankPayment           decimal.Decimal `json:"bank_payment"`
	Remarks               string          `json:"remarks,omitempty"`
	Revision              int             `json:"revision"`
	Active                bool            `json:"active"`
	CreatedBy             int64           `json:"created_by"`
	CreatedAt             time.Time       `json:"created_at"`
	ModifiedBy            int64           `json:"modified_by"`
	ModifiedAt            time.Time       `json:"modified_at"`
	Platform              string          `json:"platform,omitempty"`
}

// DiscountAmount is the sum of line and header discounts.
func (h Header) DiscountAmount() decimal.Decimal {
	return h.LineDiscount.Add(h.HeaderDiscount)
}

// Line is one item row of a transaction. Each save writes a new revision of
// every line and retires the previous one.
type Line struct {
	ID              int64           `json:"id"`
	HeaderID        int64           `json:"header_id"`
	Revision        int             `json:"revision"`
	ItemID          int64           `json:"item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	TaxID           int64           `json:"tax_id,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	CGSTPercent     decimal.Decimal `json:"cgst_percent"`
	SGSTPercent     decimal.Decimal `json:"sgst_percent"`
	IGSTPercent     decimal.Decimal `json:"igst_percent"`
	Inclusive       bool            `json:"inclusive"`
	BaseTotal       decimal.Decimal `json:"base_total"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	AfterDiscount   decimal.Decimal `json:"after_discount"`
	CGSTAmount      decimal.Decimal `json:"cgst_amount"`
	SGSTAmount      decimal.Decimal `json:"sgst_amount"`
	IGSTAmount      decimal.Decimal `json:"igst_amount"`
	Total           decimal.Decimal `json:"total"`
	NetRate         decimal.Decimal `json:"net_rate"`
	Remarks         string          `json:"remarks,omitempty"`
	Active          bool            `json:"active"`
}

// Cart is the unit a caller saves: the header plus its current lines. A
// non-zero Header.Revision is the revision the caller last read.
type Cart struct {
	Header Header `json:"header"`
	Lines  []Line `json:"lines"`
}

// Document is a loaded header with its active lines.
type Document struct {
	Header Header `json:"header"`
	Lines  []Line `json:"lines"`
}

// Action names the write that produced a posted event.
type Action string

const (
	ActionSaved     Action = "saved"
	ActionDeleted   Action = "deleted"
	ActionRecovered Action = "recovered"
)

var (
	// ErrUnknownKind indicates an unsupported transaction kind.
	ErrUnknownKind = errors.New("posting: unknown transaction kind")
	// ErrInactive indicates a write against a deleted transaction.
	ErrInactive = errors.New("posting: transaction is deleted")
	// ErrAlreadyActive indicates a recover of a transaction that was never deleted.
	ErrAlreadyActive = errors.New("posting: transaction is active")
)
