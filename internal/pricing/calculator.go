// Package pricing computes line and header figures for transaction carts.
// Every function here is pure; callers persist the results.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// AmountPlaces is the precision money amounts are rounded to. It matches the
// scale of the amount columns of transactions and transaction_lines.
const AmountPlaces = 4

var hundred = decimal.NewFromInt(100)

// LineInput holds the caller-supplied figures of one cart line.
type LineInput struct {
	Rate            decimal.Decimal
	Quantity        decimal.Decimal
	DiscountPercent decimal.Decimal
	CGSTPercent     decimal.Decimal
	SGSTPercent     decimal.Decimal
	IGSTPercent     decimal.Decimal
	Inclusive       bool
}

// GST holds the tax percents a tax master entry applies to a line.
type GST struct {
	CGST decimal.Decimal
	SGST decimal.Decimal
	IGST decimal.Decimal
}

// LineResult holds the computed figures of one line.
type LineResult struct {
	BaseTotal      decimal.Decimal
	DiscountAmount decimal.Decimal
	AfterDiscount  decimal.Decimal
	CGSTAmount     decimal.Decimal
	SGSTAmount     decimal.Decimal
	IGSTAmount     decimal.Decimal
	Total          decimal.Decimal
	NetRate        decimal.Decimal
}

// TaxAmount returns the sum of all tax components of the line.
func (r LineResult) TaxAmount() decimal.Decimal {
	return r.CGSTAmount.Add(r.SGSTAmount).Add(r.IGSTAmount)
}

// Adjustments are the header-level percentages applied on top of the lines.
// A nil RoundOff asks for the automatic round-off.
type Adjustments struct {
	ExtraChargesPercent decimal.Decimal
	DiscountPercent     decimal.Decimal
	RoundOff            *decimal.Decimal
}

// Totals are the header aggregates.
type Totals struct {
	BaseTotal      decimal.Decimal
	LineDiscount   decimal.Decimal
	TaxAmount      decimal.Decimal
	SubTotal       decimal.Decimal
	ExtraCharges   decimal.Decimal
	HeaderDiscount decimal.Decimal
	Total          decimal.Decimal
	RoundOff       decimal.Decimal
	GrandTotal     decimal.Decimal
}

// DiscountAmount is the line discount plus the header discount.
func (t Totals) DiscountAmount() decimal.Decimal {
	return t.LineDiscount.Add(t.HeaderDiscount)
}

// TaxableAmount is everything in the grand total except tax.
func (t Totals) TaxableAmount() decimal.Decimal {
	return t.GrandTotal.Sub(t.TaxAmount)
}

// CalculateLine computes one line. Inclusive lines back the tax out of the
// discounted price; exclusive lines add it on top.
func CalculateLine(in LineInput, adj Adjustments) LineResult {
	var res LineResult
	res.BaseTotal = in.Rate.Mul(in.Quantity).Round(AmountPlaces)
	res.DiscountAmount = percentOf(res.BaseTotal, in.DiscountPercent)
	res.AfterDiscount = res.BaseTotal.Sub(res.DiscountAmount)

	if in.Inclusive {
		res.CGSTAmount = backOut(res.AfterDiscount, in.CGSTPercent)
		res.SGSTAmount = backOut(res.AfterDiscount, in.SGSTPercent)
		res.IGSTAmount = backOut(res.AfterDiscount, in.IGSTPercent)
		res.Total = res.AfterDiscount
	} else {
		res.CGSTAmount = percentOf(res.AfterDiscount, in.CGSTPercent)
		res.SGSTAmount = percentOf(res.AfterDiscount, in.SGSTPercent)
		res.IGSTAmount = percentOf(res.AfterDiscount, in.IGSTPercent)
		res.Total = res.AfterDiscount.Add(res.TaxAmount())
	}
	res.NetRate = NetRate(res.Total, in.Quantity, adj)
	return res
}

// NetRate is the effective per-unit price after header extra charges (first)
// and header discount (second). A zero quantity yields zero.
func NetRate(total, qty decimal.Decimal, adj Adjustments) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	rate := total.Div(qty)
	rate = rate.Mul(hundred.Add(adj.ExtraChargesPercent)).Div(hundred)
	rate = rate.Mul(hundred.Sub(adj.DiscountPercent)).Div(hundred)
	return rate.Round(AmountPlaces)
}

// CalculateTotals aggregates computed lines into header totals.
func CalculateTotals(lines []LineResult, adj Adjustments) Totals {
	var t Totals
	for _, line := range lines {
		t.BaseTotal = t.BaseTotal.Add(line.BaseTotal)
		t.LineDiscount = t.LineDiscount.Add(line.DiscountAmount)
		t.TaxAmount = t.TaxAmount.Add(line.TaxAmount())
		t.SubTotal = t.SubTotal.Add(line.Total)
	}
	t.ExtraCharges = percentOf(t.SubTotal, adj.ExtraChargesPercent)
	afterExtra := t.SubTotal.Add(t.ExtraCharges)
	t.HeaderDiscount = percentOf(afterExtra, adj.DiscountPercent)
	t.Total = afterExtra.Sub(t.HeaderDiscount)
	if adj.RoundOff != nil {
		t.RoundOff = *adj.RoundOff
	} else {
		t.RoundOff = AutoRoundOff(t.Total)
	}
	t.GrandTotal = t.Total.Add(t.RoundOff)
	return t
}

// FitsScale reports whether d is representable with at most places decimals.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// AutoRoundOff returns the amount that brings total to the nearest whole unit.
func AutoRoundOff(total decimal.Decimal) decimal.Decimal {
	return total.Round(0).Sub(total)
}

// ValidateTaxPolicy enforces the configuration rules a line must satisfy before
// it is calculated: CGST+SGST or IGST but never both, and inclusive pricing
// never combined with header extra charges.
func ValidateTaxPolicy(in LineInput, extraChargesPercent decimal.Decimal) error {
	for _, pct := range []decimal.Decimal{in.CGSTPercent, in.SGSTPercent, in.IGSTPercent} {
		if pct.IsNegative() {
			return shared.Validationf("tax percent must not be negative")
		}
	}
	split := in.CGSTPercent.IsPositive() || in.SGSTPercent.IsPositive()
	if split && in.IGSTPercent.IsPositive() {
		return shared.Validationf("line cannot carry both CGST/SGST and IGST")
	}
	if in.Inclusive && extraChargesPercent.IsPositive() {
		return shared.Validationf("inclusive pricing cannot be combined with extra charges")
	}
	return nil
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(pct).Div(hundred).Round(AmountPlaces)
}

func backOut(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(pct).Div(hundred.Add(pct)).Round(AmountPlaces)
}
