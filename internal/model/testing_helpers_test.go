package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	usdcAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	wethAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	cometProxy  = common.HexToAddress("0xc3d688B66703497DAA19211EEdff47f25384cdc3")
)

func testMarketState() MarketState {
	return MarketState{
		Name:    "USDC",
		Address: cometProxy,
		Source:  SourceFallback,
		Base: Asset{
			Address:   usdcAddress,
			Symbol:    "USDC",
			Decimals:  6,
			Role:      RoleBase,
			Price:     decimal.NewFromInt(1),
			SupplyCap: big.NewInt(0),
			BorrowCap: big.NewInt(0),
		},
		Collateral: []Asset{{
			Address:            wethAddress,
			Symbol:             "WETH",
			Decimals:           18,
			Role:               RoleCollateral,
			Price:              decimal.NewFromInt(2000),
			CollateralFactor:   decimal.RequireFromString("0.8"),
			LiquidationFactor:  decimal.RequireFromString("0.825"),
			LiquidationPenalty: decimal.RequireFromString("0.05"),
			SupplyCap:          big.NewInt(0),
			BorrowCap:          big.NewInt(0),
			TotalSupplied:      decimal.NewFromInt(10),
		}},
		TotalSupply: decimal.NewFromInt(1_000_000_000),
		TotalBorrow: decimal.NewFromInt(900_000_000),
	}
}
