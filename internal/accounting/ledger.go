package accounting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// VoucherWriter is the slice of TxRepository the ledger needs for supersession.
type VoucherWriter interface {
	DeactivateVouchers(ctx context.Context, ref Reference) (int64, error)
	InsertVoucher(ctx context.Context, voucher Voucher) (int64, error)
}

// Ledger builds balanced vouchers and supersedes them inside a unit of work.
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

// BuildVouchers builds one voucher per type. It returns nothing when both the
// taxable amount and the tax amount of the overview are zero.
func (l *Ledger) BuildVouchers(types []VoucherType, ov Overview, accounts ControlAccounts) ([]Voucher, error) {
	tax := ov.TaxAmount.Round(AmountPlaces)
	taxable := ov.GrandTotal.Round(AmountPlaces).Sub(tax)
	if taxable.IsZero() && tax.IsZero() {
		return nil, nil
	}
	vouchers := make([]Voucher, 0, len(types))
	for _, vt := range types {
		voucher, err := l.BuildVoucher(vt, ov, accounts)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, voucher)
	}
	return vouchers, nil
}

// BuildVoucher maps an overview to a 2 to 4 line voucher against the control
// accounts. The voucher balances or an error wrapping shared.ErrPostingInvariant
// is returned.
func (l *Ledger) BuildVoucher(vt VoucherType, ov Overview, accounts ControlAccounts) (Voucher, error) {
	grand := ov.GrandTotal.Round(AmountPlaces)
	tax := ov.TaxAmount.Round(AmountPlaces)
	taxable := grand.Sub(tax)
	bank := ov.BankPayment.Round(AmountPlaces)
	cash := grand.Sub(bank)

	b := voucherBuilder{ov: ov}
	switch vt {
	case VoucherSale:
		b.debit("cash", accounts.Cash, cash)
		b.debit("bank", accounts.Bank, bank)
		b.credit("sales", accounts.Sales, taxable)
		b.credit("gst", accounts.GST, tax)
	case VoucherSaleReturn:
		b.debit("sales", accounts.Sales, taxable)
		b.debit("gst", accounts.GST, tax)
		b.credit("cash", accounts.Cash, cash)
		b.credit("bank", accounts.Bank, bank)
	case VoucherPurchase:
		b.debit("purchase", accounts.Purchase, taxable)
		b.debit("gst", accounts.GST, tax)
		b.credit("cash", accounts.Cash, cash)
		b.credit("bank", accounts.Bank, bank)
	case VoucherPurchaseReturn:
		b.debit("cash", accounts.Cash, cash)
		b.debit("bank", accounts.Bank, bank)
		b.credit("purchase", accounts.Purchase, taxable)
		b.credit("gst", accounts.GST, tax)
	case VoucherTransferOut:
		b.debit("transfer_clearing", accounts.TransferClearing, grand)
		b.credit("purchase", accounts.Purchase, grand)
	case VoucherTransferIn:
		b.debit("purchase", accounts.Purchase, grand)
		b.credit("transfer_clearing", accounts.TransferClearing, grand)
	default:
		return Voucher{}, shared.Validationf("unknown voucher type %q", vt)
	}
	if b.err != nil {
		return Voucher{}, b.err
	}

	voucher := Voucher{
		Type:            vt,
		ReferenceNumber: ov.ReferenceNumber,
		ReferenceID:     ov.ReferenceID,
		SourceID:        uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", vt, ov.ReferenceID))),
		PeriodID:        ov.PeriodID,
		LocationID:      ov.LocationID,
		Date:            ov.Date,
		Active:          true,
		CreatedBy:       ov.ActorID,
		Lines:           b.lines,
	}
	if vt == VoucherTransferIn && ov.DestinationLocationID != 0 {
		voucher.LocationID = ov.DestinationLocationID
	}
	if err := l.seal(&voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// seal totals the voucher and enforces the double-entry invariants.
func (l *Ledger) seal(v *Voucher) error {
	var debit, credit decimal.Decimal
	for idx, line := range v.Lines {
		hasDebit, hasCredit := line.Debit.IsPositive(), line.Credit.IsPositive()
		if hasDebit == hasCredit || line.Debit.IsNegative() || line.Credit.IsNegative() {
			return l.invariant(v, "line %d must carry exactly one positive side", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if len(v.Lines) < 2 {
		return l.invariant(v, "voucher requires at least two lines, got %d", len(v.Lines))
	}
	if !debit.Equal(credit) {
		return l.invariant(v, "debit %s != credit %s", debit, credit)
	}
	v.TotalDebit = debit
	v.TotalCredit = credit
	return nil
}

func (l *Ledger) invariant(v *Voucher, format string, args ...any) error {
	err := shared.Invariantf("voucher %s/%s: "+format, append([]any{v.Type, v.ReferenceNumber}, args...)...)
	l.logger.Error("voucher invariant violated", slog.String("type", string(v.Type)), slog.String("reference", v.ReferenceNumber), slog.Any("error", err))
	return err
}

// Supersede deactivates every active voucher matching ref and inserts the
// replacements. It returns the new voucher ids.
func (l *Ledger) Supersede(ctx context.Context, w VoucherWriter, ref Reference, vouchers []Voucher) ([]int64, error) {
	if _, err := w.DeactivateVouchers(ctx, ref); err != nil {
		return nil, fmt.Errorf("deactivate vouchers: %w", err)
	}
	ids := make([]int64, 0, len(vouchers))
	for _, voucher := range vouchers {
		id, err := w.InsertVoucher(ctx, voucher)
		if err != nil {
			return nil, fmt.Errorf("insert voucher %s: %w", voucher.Type, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Deactivate retires every active voucher matching ref.
func (l *Ledger) Deactivate(ctx context.Context, w VoucherWriter, ref Reference) error {
	if _, err := w.DeactivateVouchers(ctx, ref); err != nil {
		return fmt.Errorf("deactivate vouchers: %w", err)
	}
	return nil
}

type voucherBuilder struct {
	ov    Overview
	lines []VoucherLine
	err   error
}

func (b *voucherBuilder) debit(name string, account int64, amount decimal.Decimal) {
	b.add(name, account, amount, true)
}

func (b *voucherBuilder) credit(name string, account int64, amount decimal.Decimal) {
	b.add(name, account, amount, false)
}

func (b *voucherBuilder) add(name string, account int64, amount decimal.Decimal, debit bool) {
	if b.err != nil || amount.IsZero() {
		return
	}
	if account == 0 {
		b.err = shared.Validationf("control account %q is not configured", name)
		return
	}
	line := VoucherLine{
		AccountID:     account,
		ReferenceID:   b.ov.ReferenceID,
		ReferenceType: b.ov.ReferenceType,
		Remarks:       b.ov.ReferenceNumber,
	}
	if debit {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	b.lines = append(b.lines, line)
}
