package fixedpoint

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	got, err := ToDecimal(big.NewInt(1_000_000_000), 6)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)), "got %s", got)

	got, err = ToDecimal(big.NewInt(123456789), 8)
	require.NoError(t, err)
	assert.Equal(t, "1.23456789", got.String())

	got, err = ToDecimal(nil, 18)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestToDecimalWideValues(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := ToDecimal(maxUint256, 18)
	require.NoError(t, err)

	back, err := FromDecimal(got, 18)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Cmp(maxUint256))
}

func TestToDecimalNegative(t *testing.T) {
	_, err := ToDecimal(big.NewInt(-1), 6)
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
}

func TestFromDecimalRounding(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1.5", 0, "2"},
		{"2.5", 0, "3"},
		{"0.4", 0, "0"},
		{"123.456", 6, "123456000"},
		{"0.0000005", 6, "1"},
		{"0.00000049", 6, "0"},
		{"1", 18, "1000000000000000000"},
	}
	for _, tc := range cases {
		got, err := FromDecimal(decimal.RequireFromString(tc.in), tc.decimals)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), "%s @ %d", tc.in, tc.decimals)
	}
}

func TestFromDecimalNegative(t *testing.T) {
	_, err := FromDecimal(decimal.RequireFromString("-0.01"), 2)
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Contains(t, err.Error(), "-0.01")
}

func TestFromFloatNonFinite(t *testing.T) {
	_, err := FromFloat(-1, 6)
	assert.Error(t, err)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = FromFloat(v, 6)
		var domainErr *DomainError
		require.True(t, errors.As(err, &domainErr), "%v", v)
		assert.Equal(t, "non-finite value", domainErr.Reason)
	}

	got, err := FromFloat(123.456, 6)
	require.NoError(t, err)
	assert.Equal(t, "123456000", got.String())
}

func TestRoundTrip(t *testing.T) {
	values := []string{"0", "1", "0.000001", "123.456", "999999.999999", "2000", "0.825", "35000.123456"}
	tolerance := decimal.RequireFromString("0.000001")

	for d := uint8(0); d <= 18; d++ {
		for _, raw := range values {
			v := decimal.RequireFromString(raw)
			scaled, err := FromDecimal(v, d)
			require.NoError(t, err)
			back, err := ToDecimal(scaled, d)
			require.NoError(t, err)

			diff := back.Sub(v).Abs()
			limit := tolerance.Mul(decimal.Max(v, decimal.NewFromInt(1)))
			if d < 6 {
				// Below six decimals the scale itself cannot carry six fractional digits.
				limit = decimal.New(1, -int32(d)).Div(decimal.NewFromInt(2))
			}
			assert.True(t, diff.LessThanOrEqual(limit), "d=%d v=%s back=%s", d, raw, back)
		}
	}
}

func TestFloatToDecimal(t *testing.T) {
	got, err := FloatToDecimal(-0.25)
	require.NoError(t, err)
	assert.Equal(t, "-0.25", got.String())

	_, err = FloatToDecimal(math.NaN())
	assert.Error(t, err)
	_, err = FloatToDecimal(math.Inf(1))
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(big.NewInt(1_500_000), 6))
	assert.Equal(t, "10000", FormatAmount(new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18)), 18))
	assert.Equal(t, "42", FormatAmount(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatAmount(nil, 6))
}
