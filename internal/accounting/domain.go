package accounting

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherType enumerates the posting shapes the ledger knows how to build.
type VoucherType string

const (
	VoucherSale           VoucherType = "SALE"
	VoucherSaleReturn     VoucherType = "SALE_RETURN"
	VoucherPurchase       VoucherType = "PURCHASE"
	VoucherPurchaseReturn VoucherType = "PURCHASE_RETURN"
	VoucherTransferOut    VoucherType = "TRANSFER_OUT"
	VoucherTransferIn     VoucherType = "TRANSFER_IN"
)

// AmountPlaces is the precision voucher lines are posted with.
const AmountPlaces = 2

// Period represents a financial period window.
type Period struct {
	ID        int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Locked    bool
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether date falls inside the period, both ends inclusive.
func (p Period) Contains(date time.Time) bool {
	day := truncateDay(date)
	return !day.Before(truncateDay(p.StartDate)) && !day.After(truncateDay(p.EndDate))
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !truncateDay(p.EndDate).Before(truncateDay(other.StartDate)) &&
		!truncateDay(other.EndDate).Before(truncateDay(p.StartDate))
}

// Voucher is one balanced double-entry posting.
type Voucher struct {
	ID              int64
	Type            VoucherType
	ReferenceNumber string
	ReferenceID     int64
	SourceID        uuid.UUID
	PeriodID        int64
	LocationID      int64
	Date            time.Time
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	Active          bool
	CreatedBy       int64
	CreatedAt       time.Time
	Lines           []VoucherLine
}

// VoucherLine stores a debit or a credit against one account.
type VoucherLine struct {
	ID            int64
	VoucherID     int64
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReferenceID   int64
	ReferenceType string
	Remarks       string
}

// Overview carries the computed figures of a transaction that a voucher is derived from.
type Overview struct {
	ReferenceID           int64
	ReferenceNumber       string
	ReferenceType         string
	Date                  time.Time
	PeriodID              int64
	LocationID            int64
	DestinationLocationID int64
	GrandTotal            decimal.Decimal
	TaxAmount             decimal.Decimal
	CashPayment           decimal.Decimal
	BankPayment           decimal.Decimal
	ActorID               int64
}

// ControlAccounts holds the configured ledger accounts vouchers post against.
type ControlAccounts struct {
	Cash             int64
	Bank             int64
	GST              int64
	Sales            int64
	Purchase         int64
	TransferClearing int64
}

// Reference identifies the vouchers superseded by a new posting. Vouchers are
// matched by ReferenceNumber, or by ReferenceID and type when Types is set.
type Reference struct {
	Number string
	ID     int64
	Types  []VoucherType
}

// Matches reports whether v is addressed by the reference.
func (r Reference) Matches(v Voucher) bool {
	if len(r.Types) == 0 {
		return v.ReferenceNumber == r.Number
	}
	if v.ReferenceID != r.ID {
		return false
	}
	for _, vt := range r.Types {
		if v.Type == vt {
			return true
		}
	}
	return false
}

// Imbalance describes an active voucher whose stored totals disagree with
// each other or with its lines.
type Imbalance struct {
	VoucherID       int64           `json:"voucher_id"`
	Type            VoucherType     `json:"type"`
	ReferenceNumber string          `json:"reference_number"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	LineDebit       decimal.Decimal `json:"line_debit"`
	LineCredit      decimal.Decimal `json:"line_credit"`
}

// PeriodInput captures a new financial period.
type PeriodInput struct {
	Code      string    `json:"code" validate:"required,max=32"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	ActorID   int64     `json:"-"`
}

var (
	// ErrPeriodOverlap indicates a new period intersects an existing one.
	ErrPeriodOverlap = errors.New("accounting: period overlaps an existing period")
	// ErrVoucherNotFound indicates no voucher matched the reference.
	ErrVoucherNotFound = errors.New("accounting: voucher not found")
)

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
