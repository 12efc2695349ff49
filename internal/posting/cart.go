package posting

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/pricing"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// validateCart rejects carts the pipeline must never write.
func validateCart(policy Policy, cart Cart) error {
	h := cart.Header
	if len(cart.Lines) == 0 {
		return shared.Validationf("cart has no lines")
	}
	if h.Date.IsZero() {
		return shared.Validationf("transaction date required")
	}
	if h.LocationID <= 0 {
		return shared.Validationf("location required")
	}
	if policy.Transfer {
		if h.DestinationLocationID <= 0 || h.DestinationLocationID == h.LocationID {
			return shared.Validationf("transfer needs distinct source and destination locations")
		}
	} else if h.DestinationLocationID != 0 {
		return shared.Validationf("%s does not take a destination location", policy.Kind)
	}
	if h.ExtraChargesPercent.IsNegative() {
		return shared.Validationf("extra charges must not be negative")
	}
	if !inPercentRange(h.DiscountPercent) {
		return shared.Validationf("header discount must be between 0 and 100")
	}
	if h.CashPayment.IsNegative() || h.BankPayment.IsNegative() {
		return shared.Validationf("payments must not be negative")
	}
	if !policy.Payments && (!h.CashPayment.IsZero() || !h.BankPayment.IsZero()) {
		return shared.Validationf("%s does not take payments", policy.Kind)
	}
	if h.RoundOffManual && !fitsScale(h.RoundOff) {
		return shared.Validationf("round-off carries more than %d decimal places", pricing.AmountPlaces)
	}
	if !fitsScale(h.ExtraChargesPercent, h.DiscountPercent, h.CashPayment, h.BankPayment) {
		return shared.Validationf("header figures carry more than %d decimal places", pricing.AmountPlaces)
	}
	for i, line := range cart.Lines {
		if line.ItemID <= 0 {
			return shared.Validationf("line %d: item required", i+1)
		}
		if !line.Quantity.IsPositive() {
			return shared.Validationf("line %d: quantity must be positive", i+1)
		}
		if line.Rate.IsNegative() {
			return shared.Validationf("line %d: rate must not be negative", i+1)
		}
		if !inPercentRange(line.DiscountPercent) {
			return shared.Validationf("line %d: discount must be between 0 and 100", i+1)
		}
		if !fitsScale(line.Quantity, line.Rate, line.DiscountPercent, line.CGSTPercent, line.SGSTPercent, line.IGSTPercent) {
			return shared.Validationf("line %d: figures carry more than %d decimal places", i+1, pricing.AmountPlaces)
		}
		if err := pricing.ValidateTaxPolicy(lineInput(line), h.ExtraChargesPercent); err != nil {
			return shared.Validationf("line %d: %v", i+1, err)
		}
	}
	return nil
}

// validateTotals rejects recomputed totals no voucher can carry: a negative
// grand total, or a tax amount the grand total does not cover.
func validateTotals(policy Policy, h Header) error {
	if h.GrandTotal.IsNegative() {
		return shared.Validationf("grand total %s must not be negative", h.GrandTotal.StringFixed(2))
	}
	if !policy.Transfer && h.GrandTotal.LessThan(h.TaxAmount) {
		return shared.Validationf("grand total %s is below tax amount %s; lower the header discount or round-off",
			h.GrandTotal.StringFixed(2), h.TaxAmount.StringFixed(2))
	}
	if policy.Payments {
		paid := h.CashPayment.Add(h.BankPayment)
		if paid.GreaterThan(h.GrandTotal.Round(accounting.AmountPlaces)) {
			return shared.Validationf("payments %s exceed grand total %s", paid.StringFixed(2), h.GrandTotal.StringFixed(2))
		}
	}
	return nil
}

func fitsScale(values ...decimal.Decimal) bool {
	for _, v := range values {
		if !pricing.FitsScale(v, pricing.AmountPlaces) {
			return false
		}
	}
	return true
}

func inPercentRange(pct decimal.Decimal) bool {
	return !pct.IsNegative() && !pct.GreaterThan(hundred)
}

func lineInput(line Line) pricing.LineInput {
	return pricing.LineInput{
		Rate:            line.Rate,
		Quantity:        line.Quantity,
		DiscountPercent: line.DiscountPercent,
		CGSTPercent:     line.CGSTPercent,
		SGSTPercent:     line.SGSTPercent,
		IGSTPercent:     line.IGSTPercent,
		Inclusive:       line.Inclusive,
	}
}

func adjustments(h Header) pricing.Adjustments {
	adj := pricing.Adjustments{ExtraChargesPercent: h.ExtraChargesPercent, DiscountPercent: h.DiscountPercent}
	if h.RoundOffManual {
		roundOff := h.RoundOff
		adj.RoundOff = &roundOff
	}
	return adj
}

// recompute overwrites every derived figure of the cart. Caller-supplied
// totals are never trusted.
func recompute(cart Cart) (Header, []Line) {
	h := cart.Header
	adj := adjustments(h)
	lines := make([]Line, len(cart.Lines))
	results := make([]pricing.LineResult, len(cart.Lines))
	for i, line := range cart.Lines {
		res := pricing.CalculateLine(lineInput(line), adj)
		line.BaseTotal = res.BaseTotal
		line.DiscountAmount = res.DiscountAmount
		line.AfterDiscount = res.AfterDiscount
		line.CGSTAmount = res.CGSTAmount
		line.SGSTAmount = res.SGSTAmount
		line.IGSTAmount = res.IGSTAmount
		line.Total = res.Total
		line.NetRate = res.NetRate
		lines[i] = line
		results[i] = res
	}
	totals := pricing.CalculateTotals(results, adj)
	h.BaseTotal = totals.BaseTotal
	h.LineDiscount = totals.LineDiscount
	h.TaxAmount = totals.TaxAmount
	h.SubTotal = totals.SubTotal
	h.ExtraCharges = totals.ExtraCharges
	h.HeaderDiscount = totals.HeaderDiscount
	h.Total = totals.Total
	h.RoundOff = totals.RoundOff
	h.GrandTotal = totals.GrandTotal
	return h, lines
}
