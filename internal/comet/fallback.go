package comet

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cometguard/internal/fixedpoint"
	"cometguard/internal/model"
)

// Well-known mainnet addresses used by the fallback dataset.
var (
	USDCAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	WETHAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	WBTCAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// FallbackPosition is the raw balance set of a fallback account.
type FallbackPosition struct {
	BaseBalance decimal.Decimal
	Collateral  map[common.Address]decimal.Decimal
}

// FallbackSource serves a fixed USDC market for local development. Its
// snapshots are tagged model.SourceFallback.
type FallbackSource struct {
	comet     common.Address
	positions map[common.Address]FallbackPosition
	now       func() time.Time
}

// NewFallbackSource builds the deterministic source for the given market
// address. positions overrides balances per account; other accounts get
// DefaultFallbackPosition.
func NewFallbackSource(comet common.Address, positions map[common.Address]FallbackPosition, logger *zap.Logger) *FallbackSource {
	if logger != nil {
		logger.Warn("ledger acquisition not configured, serving fallback market data", zap.String("market", comet.Hex()))
	}
	if positions == nil {
		positions = map[common.Address]FallbackPosition{}
	}
	return &FallbackSource{comet: comet, positions: positions, now: time.Now}
}

// DefaultFallbackPosition supplies 1000 USDC against 0.5 WETH.
func DefaultFallbackPosition() FallbackPosition {
	return FallbackPosition{
		BaseBalance: decimal.NewFromInt(1000),
		Collateral: map[common.Address]decimal.Decimal{
			WETHAddress: decimal.RequireFromString("0.5"),
		},
	}
}

func (s *FallbackSource) Markets(ctx context.Context) ([]model.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := model.NewMarketSnapshot(s.marketState())
	if err != nil {
		return nil, err
	}
	return []model.MarketSnapshot{snap}, nil
}

func (s *FallbackSource) UserPosition(ctx context.Context, market model.MarketSnapshot, account common.Address) (model.UserPosition, error) {
	if err := ctx.Err(); err != nil {
		return model.UserPosition{}, err
	}
	pos, ok := s.positions[account]
	if !ok {
		pos = DefaultFallbackPosition()
	}
	return model.NewUserPosition(market, account, pos.BaseBalance, pos.Collateral)
}

func (s *FallbackSource) marketState() model.MarketState {
	return model.MarketState{
		Name:    "USDC",
		Address: s.comet,
		Source:  model.SourceFallback,
		Base: model.Asset{
			Address:       USDCAddress,
			Symbol:        "USDC",
			Decimals:      6,
			Role:          model.RoleBase,
			Price:         decimal.NewFromInt(1),
			SupplyCap:     big.NewInt(0),
			BorrowCap:     big.NewInt(0),
			TotalSupplied: decimal.NewFromInt(1_000_000_000),
		},
		Collateral: []model.Asset{
			{
				Address:            WETHAddress,
				Symbol:             "WETH",
				Decimals:           18,
				Role:               model.RoleCollateral,
				Price:              decimal.NewFromInt(2000),
				CollateralFactor:   decimal.RequireFromString("0.825"),
				LiquidationFactor:  decimal.RequireFromString("0.91"),
				LiquidationPenalty: decimal.RequireFromString("0.05"),
				SupplyCap:          mustRaw("10000", 18),
				BorrowCap:          big.NewInt(0),
				TotalSupplied:      decimal.NewFromInt(5000),
			},
			{
				Address:            WBTCAddress,
				Symbol:             "WBTC",
				Decimals:           8,
				Role:               model.RoleCollateral,
				Price:              decimal.NewFromInt(35000),
				CollateralFactor:   decimal.RequireFromString("0.80"),
				LiquidationFactor:  decimal.RequireFromString("0.88"),
				LiquidationPenalty: decimal.RequireFromString("0.05"),
				SupplyCap:          mustRaw("5000", 8),
				BorrowCap:          big.NewInt(0),
				TotalSupplied:      decimal.NewFromInt(1000),
			},
		},
		TotalSupply: decimal.NewFromInt(1_000_000_000),
		TotalBorrow: decimal.NewFromInt(750_000_000),
		// Per-second rates as Comet reports them, roughly 1.25% and 3.25% APR.
		SupplyRatePerSecond: fixedpoint.FromUint64(396372399, fixedpoint.RateDecimals),
		BorrowRatePerSecond: fixedpoint.FromUint64(1030568239, fixedpoint.RateDecimals),
		Reserves:            decimal.NewFromInt(50_000_000),
		FetchedAt:           s.now().UTC(),
	}
}

func mustRaw(value string, decimals uint8) *big.Int {
	raw, err := fixedpoint.FromDecimal(decimal.RequireFromString(value), decimals)
	if err != nil {
		panic(err)
	}
	return raw
}
