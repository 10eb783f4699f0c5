// Package report renders assessments and positions for terminal output.
package report

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Address shortens an address to 0x1234...abcd.
func Address(addr common.Address) string {
	hex := strings.ToLower(addr.Hex())
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// Money renders a USD amount with thousands separators and two decimals.
func Money(value decimal.Decimal) string {
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", value.Round(2).InexactFloat64())
}

// Percent renders a ratio such as 0.05 as 5.00%.
func Percent(ratio decimal.Decimal) string {
	return ratio.Mul(hundred).StringFixed(2) + "%"
}

// Amount renders a token amount with at most places fractional digits and
// the symbol appended.
func Amount(value decimal.Decimal, places int32, symbol string) string {
	s := value.Round(places).String()
	if symbol == "" {
		return s
	}
	return s + " " + symbol
}
