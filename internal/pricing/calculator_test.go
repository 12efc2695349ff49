package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got)
}

func sampleLine(inclusive bool) LineInput {
	return LineInput{
		Rate:            d("100"),
		Quantity:        d("2"),
		DiscountPercent: d("10"),
		CGSTPercent:     d("6"),
		SGSTPercent:     d("6"),
		Inclusive:       inclusive,
	}
}

func TestCalculateLineExclusive(t *testing.T) {
	res := CalculateLine(sampleLine(false), Adjustments{})

	requireDecimal(t, "200", res.BaseTotal)
	requireDecimal(t, "20", res.DiscountAmount)
	requireDecimal(t, "180", res.AfterDiscount)
	requireDecimal(t, "10.80", res.CGSTAmount)
	requireDecimal(t, "10.80", res.SGSTAmount)
	requireDecimal(t, "0", res.IGSTAmount)
	requireDecimal(t, "201.60", res.Total)
	requireDecimal(t, "100.80", res.NetRate)
	require.True(t, res.Total.Equal(res.AfterDiscount.Add(res.CGSTAmount).Add(res.SGSTAmount).Add(res.IGSTAmount)))
}

func TestCalculateLineInclusive(t *testing.T) {
	res := CalculateLine(sampleLine(true), Adjustments{})

	requireDecimal(t, "10.1887", res.CGSTAmount)
	requireDecimal(t, "10.1887", res.SGSTAmount)
	requireDecimal(t, "180", res.Total)
	require.True(t, res.AfterDiscount.Equal(res.Total))
}

func TestCalculateLineKeepsStoredScale(t *testing.T) {
	res := CalculateLine(LineInput{Rate: d("10.0049"), Quantity: d("1.5"), DiscountPercent: d("3.5"), IGSTPercent: d("18")}, Adjustments{})

	requireDecimal(t, "15.0074", res.BaseTotal)
	for _, v := range []decimal.Decimal{res.BaseTotal, res.DiscountAmount, res.AfterDiscount, res.IGSTAmount, res.Total, res.NetRate} {
		require.True(t, FitsScale(v, AmountPlaces), v.String())
	}
	require.True(t, res.Total.Equal(res.AfterDiscount.Add(res.IGSTAmount)))
}

func TestFitsScale(t *testing.T) {
	require.True(t, FitsScale(d("10.1887"), 4))
	require.True(t, FitsScale(d("10.50000"), 4))
	require.False(t, FitsScale(d("10.00001"), 4))
}

func TestNetRateZeroQuantity(t *testing.T) {
	in := sampleLine(false)
	in.Quantity = decimal.Zero
	res := CalculateLine(in, Adjustments{ExtraChargesPercent: d("5")})
	require.True(t, res.NetRate.IsZero())
	require.True(t, res.Total.IsZero())
}

func TestNetRateAppliesExtraThenDiscount(t *testing.T) {
	rate := NetRate(d("200"), d("2"), Adjustments{ExtraChargesPercent: d("10"), DiscountPercent: d("50")})
	// 100 * 1.10 * 0.50
	requireDecimal(t, "55", rate)
}

func TestCalculateTotals(t *testing.T) {
	adj := Adjustments{ExtraChargesPercent: d("5"), DiscountPercent: d("10")}
	lines := []LineResult{
		CalculateLine(sampleLine(false), adj),
		CalculateLine(LineInput{Rate: d("50"), Quantity: d("3"), IGSTPercent: d("12")}, adj),
	}
	totals := CalculateTotals(lines, adj)

	requireDecimal(t, "350", totals.BaseTotal)
	requireDecimal(t, "20", totals.LineDiscount)
	requireDecimal(t, "39.60", totals.TaxAmount)
	requireDecimal(t, "369.60", totals.SubTotal)
	requireDecimal(t, "18.48", totals.ExtraCharges)
	requireDecimal(t, "38.808", totals.HeaderDiscount)
	requireDecimal(t, "349.272", totals.Total)
	requireDecimal(t, "-0.272", totals.RoundOff)
	requireDecimal(t, "349", totals.GrandTotal)
	requireDecimal(t, "309.40", totals.TaxableAmount())
}

func TestCalculateTotalsManualRoundOff(t *testing.T) {
	manual := d("0.40")
	totals := CalculateTotals([]LineResult{CalculateLine(sampleLine(false), Adjustments{})}, Adjustments{RoundOff: &manual})
	requireDecimal(t, "0.40", totals.RoundOff)
	requireDecimal(t, "202", totals.GrandTotal)
}

func TestCalculateTotalsEmpty(t *testing.T) {
	totals := CalculateTotals(nil, Adjustments{})
	require.True(t, totals.GrandTotal.IsZero())
	require.True(t, totals.RoundOff.IsZero())
}

func TestValidateTaxPolicy(t *testing.T) {
	cases := []struct {
		name  string
		in    LineInput
		extra decimal.Decimal
		ok    bool
	}{
		{name: "split", in: LineInput{CGSTPercent: d("6"), SGSTPercent: d("6")}, ok: true},
		{name: "igst", in: LineInput{IGSTPercent: d("12")}, ok: true},
		{name: "no tax", in: LineInput{}, ok: true},
		{name: "both", in: LineInput{CGSTPercent: d("6"), IGSTPercent: d("12")}},
		{name: "all three", in: LineInput{CGSTPercent: d("6"), SGSTPercent: d("6"), IGSTPercent: d("12")}},
		{name: "negative", in: LineInput{SGSTPercent: d("-1")}},
		{name: "inclusive with extra", in: LineInput{Inclusive: true}, extra: d("2")},
		{name: "exclusive with extra", in: LineInput{}, extra: d("2"), ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTaxPolicy(tc.in, tc.extra)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, shared.ErrValidation))
		})
	}
}
