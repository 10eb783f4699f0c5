// Package fixedpoint converts between on-chain integer amounts and decimals.
//
// Conversions are exact: raw amounts of any width (uint256 included) are
// carried as big integers and scaled by 10^decimals without passing through
// float64. Precision is only lost when a caller asks for a float.
package fixedpoint

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common on-chain scales.
const (
	PriceDecimals  uint8 = 8
	FactorDecimals uint8 = 18
	RateDecimals   uint8 = 18
)

// DomainError reports a numeric input outside the converter's domain.
type DomainError struct {
	Value  string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("fixedpoint: %s: %s", e.Reason, e.Value)
}

// ToDecimal divides raw by 10^decimals. A nil raw value converts to zero.
// raw is interpreted as unsigned; a negative big.Int is rejected.
func ToDecimal(raw *big.Int, decimals uint8) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, nil
	}
	if raw.Sign() < 0 {
		return decimal.Zero, &DomainError{Value: raw.String(), Reason: "negative raw amount"}
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

// MustToDecimal is ToDecimal for values known to be unsigned, such as
// decoded uint outputs. It panics on negative input.
func MustToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	d, err := ToDecimal(raw, decimals)
	if err != nil {
		panic(err)
	}
	return d
}

// FromUint64 converts a uint64 fixed-point value.
func FromUint64(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

// FromDecimal multiplies value by 10^decimals and rounds half away from zero.
func FromDecimal(value decimal.Decimal, decimals uint8) (*big.Int, error) {
	if value.IsNegative() {
		return nil, &DomainError{Value: value.String(), Reason: "negative decimal value"}
	}
	return value.Shift(int32(decimals)).Round(0).BigInt(), nil
}

// FloatToDecimal converts a float64 flag or config value. NaN and infinities
// are rejected; decimal.NewFromFloat panics on them.
func FloatToDecimal(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, &DomainError{Value: fmt.Sprintf("%v", value), Reason: "non-finite value"}
	}
	return decimal.NewFromFloat(value), nil
}

// FromFloat is FromDecimal for float64 input. NaN and infinities are rejected.
func FromFloat(value float64, decimals uint8) (*big.Int, error) {
	d, err := FloatToDecimal(value)
	if err != nil {
		return nil, err
	}
	return FromDecimal(d, decimals)
}

// FormatAmount renders raw/10^decimals exactly, without trailing zeros.
func FormatAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}
