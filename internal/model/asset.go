package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetRole distinguishes the base asset of a market from its collateral.
type AssetRole uint8

const (
	RoleBase AssetRole = iota + 1
	RoleCollateral
)

func (r AssetRole) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleCollateral:
		return "collateral"
	default:
		return fmt.Sprintf("AssetRole(%d)", uint8(r))
	}
}

func (r AssetRole) MarshalText() ([]byte, error) {
	switch r {
	case RoleBase, RoleCollateral:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("invalid asset role %d", uint8(r))
	}
}

func (r *AssetRole) UnmarshalText(text []byte) error {
	switch string(text) {
	case "base":
		*r = RoleBase
	case "collateral":
		*r = RoleCollateral
	default:
		return fmt.Errorf("invalid asset role %q", string(text))
	}
	return nil
}

// Asset is a token participating in a market. Risk factors are zero for the
// base asset. Caps are in the token's native precision.
type Asset struct {
	Address            common.Address  `json:"address"`
	Symbol             string          `json:"symbol"`
	Decimals           uint8           `json:"decimals"`
	Role               AssetRole       `json:"role"`
	PriceFeed          common.Address  `json:"price_feed"`
	Price              decimal.Decimal `json:"price"`
	CollateralFactor   decimal.Decimal `json:"collateral_factor"`
	LiquidationFactor  decimal.Decimal `json:"liquidation_factor"`
	LiquidationPenalty decimal.Decimal `json:"liquidation_penalty"`
	SupplyCap          *big.Int        `json:"supply_cap"`
	BorrowCap          *big.Int        `json:"borrow_cap"`
	// TotalSupplied is the amount of this asset held by the market, in
	// decimal units. Zero when unknown.
	TotalSupplied decimal.Decimal `json:"total_supplied"`
}

func (a Asset) validate() error {
	if a.Price.IsNegative() {
		return fmt.Errorf("asset %s: negative price %s", a.Symbol, a.Price)
	}
	for name, f := range map[string]decimal.Decimal{
		"collateral factor":   a.CollateralFactor,
		"liquidation factor":  a.LiquidationFactor,
		"liquidation penalty": a.LiquidationPenalty,
	} {
		if f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("asset %s: %s %s outside [0,1]", a.Symbol, name, f)
		}
	}
	return nil
}

func (a Asset) clone() Asset {
	a.SupplyCap = cloneBig(a.SupplyCap)
	a.BorrowCap = cloneBig(a.BorrowCap)
	return a
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
