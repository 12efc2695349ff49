package posting

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type counter map[string]int64

func (c counter) NextSequence(_ context.Context, prefix string, year int) (int64, error) {
	key := fmt.Sprintf("%s/%d", prefix, year)
	c[key]++
	return c[key], nil
}

func TestGenerateNumberFormatsPerKind(t *testing.T) {
	gen := NewNumberGenerator(nil)
	seq := counter{}
	ctx := context.Background()

	num, err := gen.GenerateNumber(ctx, seq, KindSale, day(2025, 6, 1))
	require.NoError(t, err)
	require.Equal(t, "SAL/2025/000001", num)

	num, err = gen.GenerateNumber(ctx, seq, KindSale, day(2025, 6, 2))
	require.NoError(t, err)
	require.Equal(t, "SAL/2025/000002", num)

	num, err = gen.GenerateNumber(ctx, seq, KindStockTransfer, day(2026, 1, 2))
	require.NoError(t, err)
	require.Equal(t, "STR/2026/000001", num)

	_, err = gen.GenerateNumber(ctx, seq, Kind("gift"), day(2025, 6, 1))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestNumberPrefixOverrides(t *testing.T) {
	gen := NewNumberGenerator(map[Kind]string{KindPurchase: " grn ", KindSale: "  "})
	seq := counter{}

	num, err := gen.GenerateNumber(context.Background(), seq, KindPurchase, day(2025, 6, 1))
	require.NoError(t, err)
	require.Equal(t, "GRN/2025/000001", num)

	num, err = gen.GenerateNumber(context.Background(), seq, KindSale, day(2025, 6, 1))
	require.NoError(t, err)
	require.Equal(t, "SAL/2025/000001", num)
}

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds {
		parsed, err := ParseKind(string(kind))
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}
	_, err := ParseKind("SALE")
	require.ErrorIs(t, err, ErrUnknownKind)
}
