package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

var testAccounts = ControlAccounts{Cash: 1, Bank: 2, GST: 3, Sales: 4, Purchase: 5, TransferClearing: 6}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func sampleOverview() Overview {
	return Overview{
		ReferenceID:     42,
		ReferenceNumber: "SL/2025/000042",
		ReferenceType:   "sale",
		Date:            time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
		PeriodID:        7,
		LocationID:      3,
		GrandTotal:      dec("202"),
		TaxAmount:       dec("21.60"),
		CashPayment:     dec("100"),
		BankPayment:     dec("50"),
	}
}

func sides(v Voucher) (map[int64]decimal.Decimal, map[int64]decimal.Decimal) {
	debit := map[int64]decimal.Decimal{}
	credit := map[int64]decimal.Decimal{}
	for _, line := range v.Lines {
		if line.Debit.IsPositive() {
			debit[line.AccountID] = line.Debit
		}
		if line.Credit.IsPositive() {
			credit[line.AccountID] = line.Credit
		}
	}
	return debit, credit
}

func requireBalanced(t *testing.T, v Voucher) {
	t.Helper()
	var debit, credit decimal.Decimal
	for _, line := range v.Lines {
		require.NotEqual(t, line.Debit.IsPositive(), line.Credit.IsPositive(), "line must carry exactly one side")
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
	require.True(t, v.TotalDebit.Equal(v.TotalCredit))
	require.True(t, v.TotalDebit.Equal(debit))
}

func TestBuildSaleVoucher(t *testing.T) {
	ledger := NewLedger(nil)
	v, err := ledger.BuildVoucher(VoucherSale, sampleOverview(), testAccounts)
	require.NoError(t, err)
	requireBalanced(t, v)

	debit, credit := sides(v)
	require.True(t, debit[testAccounts.Cash].Equal(dec("152")), "cash takes its payment plus the unallocated remainder")
	require.True(t, debit[testAccounts.Bank].Equal(dec("50")))
	require.True(t, credit[testAccounts.Sales].Equal(dec("180.40")))
	require.True(t, credit[testAccounts.GST].Equal(dec("21.60")))
	require.Len(t, v.Lines, 4)
	require.Equal(t, "SL/2025/000042", v.ReferenceNumber)
	require.Equal(t, int64(7), v.PeriodID)
}

func TestBuildReturnVouchersMirror(t *testing.T) {
	ledger := NewLedger(nil)
	sale, err := ledger.BuildVoucher(VoucherSale, sampleOverview(), testAccounts)
	require.NoError(t, err)
	ret, err := ledger.BuildVoucher(VoucherSaleReturn, sampleOverview(), testAccounts)
	require.NoError(t, err)
	requireBalanced(t, ret)

	saleDebit, saleCredit := sides(sale)
	retDebit, retCredit := sides(ret)
	require.Equal(t, len(saleDebit), len(retCredit))
	for account, amount := range saleDebit {
		require.True(t, retCredit[account].Equal(amount))
	}
	for account, amount := range saleCredit {
		require.True(t, retDebit[account].Equal(amount))
	}

	purchase, err := ledger.BuildVoucher(VoucherPurchase, sampleOverview(), testAccounts)
	require.NoError(t, err)
	purchaseReturn, err := ledger.BuildVoucher(VoucherPurchaseReturn, sampleOverview(), testAccounts)
	require.NoError(t, err)
	requireBalanced(t, purchase)
	requireBalanced(t, purchaseReturn)

	pDebit, pCredit := sides(purchase)
	require.True(t, pDebit[testAccounts.Purchase].Equal(dec("180.40")))
	require.True(t, pDebit[testAccounts.GST].Equal(dec("21.60")))
	require.True(t, pCredit[testAccounts.Cash].Equal(dec("152")))
	prDebit, prCredit := sides(purchaseReturn)
	require.True(t, prCredit[testAccounts.Purchase].Equal(dec("180.40")))
	require.True(t, prDebit[testAccounts.Bank].Equal(dec("50")))
}

func TestBuildTransferVouchers(t *testing.T) {
	ledger := NewLedger(nil)
	ov := sampleOverview()
	ov.DestinationLocationID = 9
	ov.TaxAmount = decimal.Zero
	vouchers, err := ledger.BuildVouchers([]VoucherType{VoucherTransferOut, VoucherTransferIn}, ov, testAccounts)
	require.NoError(t, err)
	require.Len(t, vouchers, 2)

	out, in := vouchers[0], vouchers[1]
	requireBalanced(t, out)
	requireBalanced(t, in)
	require.Equal(t, int64(3), out.LocationID)
	require.Equal(t, int64(9), in.LocationID)

	outDebit, outCredit := sides(out)
	require.True(t, outDebit[testAccounts.TransferClearing].Equal(dec("202")))
	require.True(t, outCredit[testAccounts.Purchase].Equal(dec("202")))
	inDebit, inCredit := sides(in)
	require.True(t, inDebit[testAccounts.Purchase].Equal(dec("202")))
	require.True(t, inCredit[testAccounts.TransferClearing].Equal(dec("202")))
	require.NotEqual(t, out.SourceID, in.SourceID)
}

func TestBuildVouchersSkipsZeroAmounts(t *testing.T) {
	ov := sampleOverview()
	ov.GrandTotal = decimal.Zero
	ov.TaxAmount = decimal.Zero
	vouchers, err := NewLedger(nil).BuildVouchers([]VoucherType{VoucherSale}, ov, testAccounts)
	require.NoError(t, err)
	require.Empty(t, vouchers)
}

func TestBuildVoucherRoundsToTwoPlaces(t *testing.T) {
	ov := sampleOverview()
	ov.GrandTotal = dec("180")
	ov.TaxAmount = dec("20.3774")
	ov.BankPayment = decimal.Zero
	v, err := NewLedger(nil).BuildVoucher(VoucherSale, ov, testAccounts)
	require.NoError(t, err)
	requireBalanced(t, v)
	_, credit := sides(v)
	require.True(t, credit[testAccounts.GST].Equal(dec("20.38")))
	require.True(t, credit[testAccounts.Sales].Equal(dec("159.62")))
}

func TestBuildVoucherMissingControlAccount(t *testing.T) {
	accounts := testAccounts
	accounts.GST = 0
	_, err := NewLedger(nil).BuildVoucher(VoucherSale, sampleOverview(), accounts)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBuildVoucherOverpaidIsInvariantViolation(t *testing.T) {
	ov := sampleOverview()
	ov.BankPayment = dec("500")
	_, err := NewLedger(nil).BuildVoucher(VoucherSale, ov, testAccounts)
	require.True(t, errors.Is(err, shared.ErrPostingInvariant))
}

type memoryVouchers struct {
	vouchers []Voucher
}

func (m *memoryVouchers) DeactivateVouchers(_ context.Context, ref Reference) (int64, error) {
	var n int64
	for i := range m.vouchers {
		v := &m.vouchers[i]
		if !v.Active || !ref.Matches(*v) {
			continue
		}
		v.Active = false
		n++
	}
	return n, nil
}

func (m *memoryVouchers) InsertVoucher(_ context.Context, v Voucher) (int64, error) {
	v.ID = int64(len(m.vouchers) + 1)
	m.vouchers = append(m.vouchers, v)
	return v.ID, nil
}

func (m *memoryVouchers) active() []Voucher {
	var out []Voucher
	for _, v := range m.vouchers {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

func TestSupersedeDeactivatesPriorVoucher(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(nil)
	store := &memoryVouchers{}
	ov := sampleOverview()
	ref := Reference{Number: ov.ReferenceNumber}

	first, err := ledger.BuildVouchers([]VoucherType{VoucherSale}, ov, testAccounts)
	require.NoError(t, err)
	_, err = ledger.Supersede(ctx, store, ref, first)
	require.NoError(t, err)

	ov.GrandTotal = dec("300")
	second, err := ledger.BuildVouchers([]VoucherType{VoucherSale}, ov, testAccounts)
	require.NoError(t, err)
	ids, err := ledger.Supersede(ctx, store, ref, second)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids)

	active := store.active()
	require.Len(t, active, 1)
	require.True(t, active[0].TotalDebit.Equal(dec("300")))
	require.Len(t, store.vouchers, 2)

	require.NoError(t, ledger.Deactivate(ctx, store, ref))
	require.Empty(t, store.active())
}

func TestSupersedeTransferLegsByTypeAndID(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(nil)
	store := &memoryVouchers{}
	store.vouchers = []Voucher{
		{ID: 1, Type: VoucherTransferOut, ReferenceID: 42, ReferenceNumber: "TR/2025/000042", Active: true},
		{ID: 2, Type: VoucherTransferIn, ReferenceID: 42, ReferenceNumber: "TR/2025/000042", Active: true},
		{ID: 3, Type: VoucherSale, ReferenceID: 42, ReferenceNumber: "SL/2025/000042", Active: true},
	}
	ref := Reference{ID: 42, Types: []VoucherType{VoucherTransferOut, VoucherTransferIn}}
	require.NoError(t, ledger.Deactivate(ctx, store, ref))

	active := store.active()
	require.Len(t, active, 1)
	require.Equal(t, VoucherSale, active[0].Type)
}
