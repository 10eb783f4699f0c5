package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// HealthFactorSentinel is reported when an account has nothing borrowed.
// It means "unconstrained" and is not a real ratio.
var HealthFactorSentinel = decimal.NewFromInt(100)

// UserPosition is one account's exposure within a market.
type UserPosition struct {
	Account              common.Address                     `json:"account"`
	Market               common.Address                     `json:"market"`
	BaseBalance          decimal.Decimal                    `json:"base_balance"`
	CollateralBalances   map[common.Address]decimal.Decimal `json:"collateral_balances"`
	TotalCollateralValue decimal.Decimal                    `json:"total_collateral_value"`
	TotalBorrowValue     decimal.Decimal                    `json:"total_borrow_value"`
	HealthFactor         decimal.Decimal                    `json:"health_factor"`
}

// NewUserPosition derives collateral value, borrow value and health factor
// from balances and market prices. baseBalance is negative when the account
// is a net borrower. Non-positive collateral balances are dropped.
func NewUserPosition(market MarketSnapshot, account common.Address, baseBalance decimal.Decimal, collateral map[common.Address]decimal.Decimal) (UserPosition, error) {
	balances := make(map[common.Address]decimal.Decimal, len(collateral))
	totalCollateral := decimal.Zero
	weighted := decimal.Zero

	for addr, amount := range collateral {
		if !amount.IsPositive() {
			continue
		}
		asset, ok := market.Collateral[addr]
		if !ok {
			return UserPosition{}, fmt.Errorf("collateral %s not listed in market %s", addr.Hex(), market.Name)
		}
		value := amount.Mul(asset.Price)
		balances[addr] = amount
		totalCollateral = totalCollateral.Add(value)
		weighted = weighted.Add(value.Mul(asset.LiquidationFactor))
	}

	borrowValue := decimal.Zero
	if baseBalance.IsNegative() {
		borrowValue = baseBalance.Neg().Mul(market.BaseAsset.Price)
	}

	health := HealthFactorSentinel
	if borrowValue.IsPositive() {
		health = weighted.Div(borrowValue)
	}

	return UserPosition{
		Account:              account,
		Market:               market.Address,
		BaseBalance:          baseBalance,
		CollateralBalances:   balances,
		TotalCollateralValue: totalCollateral,
		TotalBorrowValue:     borrowValue,
		HealthFactor:         health,
	}, nil
}

// Borrowing reports whether the position has anything to liquidate.
func (p UserPosition) Borrowing() bool {
	return p.TotalBorrowValue.IsPositive()
}
