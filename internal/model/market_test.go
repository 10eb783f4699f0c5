package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarketSnapshotDerivesUtilization(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	assert.True(t, snap.UtilizationRate.Equal(decimal.RequireFromString("0.9")), "utilization %s", snap.UtilizationRate)
	assert.Len(t, snap.Collateral, 1)
	assert.Equal(t, SourceFallback, snap.Source)
}

func TestNewMarketSnapshotZeroSupply(t *testing.T) {
	state := testMarketState()
	state.TotalSupply = decimal.Zero
	state.TotalBorrow = decimal.Zero

	snap, err := NewMarketSnapshot(state)
	require.NoError(t, err)
	assert.True(t, snap.UtilizationRate.IsZero())
}

func TestNewMarketSnapshotAnnualizesRates(t *testing.T) {
	state := testMarketState()
	state.SupplyRatePerSecond = decimal.RequireFromString("0.000000001")
	state.BorrowRatePerSecond = decimal.RequireFromString("0.000000002")

	snap, err := NewMarketSnapshot(state)
	require.NoError(t, err)
	assert.Equal(t, "0.031536", snap.SupplyAPR.String())
	assert.Equal(t, "0.063072", snap.BorrowAPR.String())
}

func TestNewMarketSnapshotRejectsInvalidState(t *testing.T) {
	dup := testMarketState()
	dup.Collateral = append(dup.Collateral, dup.Collateral[0])
	_, err := NewMarketSnapshot(dup)
	assert.ErrorContains(t, err, "duplicate collateral")

	wrongRole := testMarketState()
	wrongRole.Base.Role = RoleCollateral
	_, err = NewMarketSnapshot(wrongRole)
	assert.Error(t, err)

	negative := testMarketState()
	negative.TotalBorrow = decimal.NewFromInt(-1)
	_, err = NewMarketSnapshot(negative)
	assert.Error(t, err)

	badFactor := testMarketState()
	badFactor.Collateral[0].LiquidationFactor = decimal.RequireFromString("1.2")
	_, err = NewMarketSnapshot(badFactor)
	assert.ErrorContains(t, err, "liquidation factor")
}

func TestMarketSnapshotMetrics(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	metrics := snap.Metrics()
	// 1e9 USDC at $1 plus 10 WETH at $2000.
	assert.Equal(t, "1000020000", metrics.TVL.String())
	assert.Equal(t, "900000000", metrics.TotalBorrowUSD.String())
}

func TestMarketSnapshotJSONKeysByAddress(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded struct {
		Collateral map[common.Address]json.RawMessage `json:"collateral_assets"`
		BaseAsset  struct {
			Role string `json:"role"`
		} `json:"base_asset"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	_, ok := decoded.Collateral[wethAddress]
	assert.True(t, ok, "collateral keys: %v", decoded.Collateral)
	assert.Equal(t, "base", decoded.BaseAsset.Role)
}

func TestCollateralAssetsOrdered(t *testing.T) {
	state := testMarketState()
	second := state.Collateral[0]
	second.Address = common.HexToAddress("0x0000000000000000000000000000000000000001")
	second.Symbol = "LOW"
	state.Collateral = append(state.Collateral, second)

	snap, err := NewMarketSnapshot(state)
	require.NoError(t, err)

	assets := snap.CollateralAssets()
	require.Len(t, assets, 2)
	assert.Equal(t, "LOW", assets[0].Symbol)
}

func TestMarketSnapshotCloneIsDeep(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)
	snap.BaseAsset.SupplyCap = big.NewInt(7)

	clone := snap.Clone()
	weth := clone.Collateral[wethAddress]
	weth.Price = decimal.NewFromInt(1)
	clone.Collateral[wethAddress] = weth
	clone.Collateral[common.HexToAddress("0x01")] = Asset{Symbol: "NEW"}
	clone.BaseAsset.SupplyCap.SetInt64(42)

	assert.Equal(t, "2000", snap.Collateral[wethAddress].Price.String())
	assert.Len(t, snap.Collateral, 1)
	assert.Equal(t, int64(7), snap.BaseAsset.SupplyCap.Int64())

	var empty MarketSnapshot
	assert.Nil(t, empty.Clone().Collateral)
}
