package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var account = common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")

func TestNewUserPositionHealthFactor(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	pos, err := NewUserPosition(snap, account, decimal.NewFromInt(-1000), map[common.Address]decimal.Decimal{
		wethAddress: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	assert.Equal(t, "1.65", pos.HealthFactor.String())
	assert.Equal(t, "2000", pos.TotalCollateralValue.String())
	assert.Equal(t, "1000", pos.TotalBorrowValue.String())
	assert.True(t, pos.Borrowing())
}

func TestNewUserPositionSentinel(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	pos, err := NewUserPosition(snap, account, decimal.NewFromInt(1000), map[common.Address]decimal.Decimal{
		wethAddress: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)

	assert.True(t, pos.HealthFactor.Equal(HealthFactorSentinel))
	assert.Equal(t, "100", pos.HealthFactor.String())
	assert.True(t, pos.TotalBorrowValue.IsZero())
	assert.False(t, pos.Borrowing())
}

func TestNewUserPositionDropsEmptyBalances(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	pos, err := NewUserPosition(snap, account, decimal.Zero, map[common.Address]decimal.Decimal{
		wethAddress: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Empty(t, pos.CollateralBalances)
	assert.True(t, pos.TotalCollateralValue.IsZero())
}

func TestNewUserPositionUnknownCollateral(t *testing.T) {
	snap, err := NewMarketSnapshot(testMarketState())
	require.NoError(t, err)

	_, err = NewUserPosition(snap, account, decimal.Zero, map[common.Address]decimal.Decimal{
		common.HexToAddress("0x9999999999999999999999999999999999999999"): decimal.NewFromInt(1),
	})
	assert.ErrorContains(t, err, "not listed")
}
