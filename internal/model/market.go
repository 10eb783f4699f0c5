package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SecondsPerYear annualizes per-second on-chain rates.
const SecondsPerYear = 31_536_000

// SourceKind tags where a snapshot came from.
type SourceKind string

const (
	SourceLedger   SourceKind = "ledger"
	SourceFallback SourceKind = "fallback"
)

// MarketState is the normalized input to NewMarketSnapshot.
type MarketState struct {
	Name                string
	Address             common.Address
	Source              SourceKind
	Base                Asset
	Collateral          []Asset
	TotalSupply         decimal.Decimal
	TotalBorrow         decimal.Decimal
	SupplyRatePerSecond decimal.Decimal
	BorrowRatePerSecond decimal.Decimal
	Reserves            decimal.Decimal
	Block               uint64
	FetchedAt           time.Time
}

// MarketSnapshot is the immutable state of one lending market at FetchedAt.
// Build it with NewMarketSnapshot so derived fields stay consistent.
type MarketSnapshot struct {
	Name            string                   `json:"name"`
	Address         common.Address           `json:"address"`
	Source          SourceKind               `json:"source"`
	BaseAsset       Asset                    `json:"base_asset"`
	Collateral      map[common.Address]Asset `json:"collateral_assets"`
	TotalSupply     decimal.Decimal          `json:"total_supply"`
	TotalBorrow     decimal.Decimal          `json:"total_borrow"`
	UtilizationRate decimal.Decimal          `json:"utilization_rate"`
	SupplyAPR       decimal.Decimal          `json:"supply_apr"`
	BorrowAPR       decimal.Decimal          `json:"borrow_apr"`
	Reserves        decimal.Decimal          `json:"reserves"`
	Block           uint64                   `json:"block,omitempty"`
	FetchedAt       time.Time                `json:"fetched_at"`
}

// NewMarketSnapshot validates state and derives utilization and APRs.
func NewMarketSnapshot(state MarketState) (MarketSnapshot, error) {
	if state.Base.Role != RoleBase {
		return MarketSnapshot{}, fmt.Errorf("market %s: base asset has role %s", state.Name, state.Base.Role)
	}
	if err := state.Base.validate(); err != nil {
		return MarketSnapshot{}, err
	}
	if state.TotalSupply.IsNegative() || state.TotalBorrow.IsNegative() {
		return MarketSnapshot{}, fmt.Errorf("market %s: negative totals supply=%s borrow=%s", state.Name, state.TotalSupply, state.TotalBorrow)
	}

	collateral := make(map[common.Address]Asset, len(state.Collateral))
	for _, asset := range state.Collateral {
		if asset.Role != RoleCollateral {
			return MarketSnapshot{}, fmt.Errorf("market %s: asset %s has role %s", state.Name, asset.Symbol, asset.Role)
		}
		if asset.Address == state.Base.Address {
			return MarketSnapshot{}, fmt.Errorf("market %s: collateral %s equals base asset", state.Name, asset.Address.Hex())
		}
		if _, dup := collateral[asset.Address]; dup {
			return MarketSnapshot{}, fmt.Errorf("market %s: duplicate collateral %s", state.Name, asset.Address.Hex())
		}
		if err := asset.validate(); err != nil {
			return MarketSnapshot{}, err
		}
		collateral[asset.Address] = asset
	}

	year := decimal.NewFromInt(SecondsPerYear)
	return MarketSnapshot{
		Name:            state.Name,
		Address:         state.Address,
		Source:          state.Source,
		BaseAsset:       state.Base,
		Collateral:      collateral,
		TotalSupply:     state.TotalSupply,
		TotalBorrow:     state.TotalBorrow,
		UtilizationRate: Utilization(state.TotalSupply, state.TotalBorrow),
		SupplyAPR:       state.SupplyRatePerSecond.Mul(year),
		BorrowAPR:       state.BorrowRatePerSecond.Mul(year),
		Reserves:        state.Reserves,
		Block:           state.Block,
		FetchedAt:       state.FetchedAt,
	}, nil
}

// Utilization returns borrow/supply, or zero when supply is not positive.
func Utilization(totalSupply, totalBorrow decimal.Decimal) decimal.Decimal {
	if !totalSupply.IsPositive() {
		return decimal.Zero
	}
	return totalBorrow.Div(totalSupply)
}

// Clone returns a copy that shares no maps or big integers with m.
func (m MarketSnapshot) Clone() MarketSnapshot {
	out := m
	out.BaseAsset = m.BaseAsset.clone()
	if m.Collateral != nil {
		out.Collateral = make(map[common.Address]Asset, len(m.Collateral))
		for addr, asset := range m.Collateral {
			out.Collateral[addr] = asset.clone()
		}
	}
	return out
}

// CollateralAssets returns collateral assets ordered by address.
func (m MarketSnapshot) CollateralAssets() []Asset {
	out := make([]Asset, 0, len(m.Collateral))
	for _, asset := range m.Collateral {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Cmp(out[j].Address) < 0
	})
	return out
}

// ProtocolMetrics are market-wide USD figures derived from a snapshot.
type ProtocolMetrics struct {
	TVL             decimal.Decimal `json:"tvl"`
	TotalBorrowUSD  decimal.Decimal `json:"total_borrow_usd"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
	SuppliersCount  uint64          `json:"suppliers_count"`
	BorrowersCount  uint64          `json:"borrowers_count"`
	Reserves        decimal.Decimal `json:"reserves"`
}

// Metrics computes protocol metrics. Account counts need event indexing and
// are left at zero.
func (m MarketSnapshot) Metrics() ProtocolMetrics {
	tvl := m.TotalSupply.Mul(m.BaseAsset.Price)
	for _, asset := range m.Collateral {
		tvl = tvl.Add(asset.TotalSupplied.Mul(asset.Price))
	}
	return ProtocolMetrics{
		TVL:             tvl,
		TotalBorrowUSD:  m.TotalBorrow.Mul(m.BaseAsset.Price),
		UtilizationRate: m.UtilizationRate,
		Reserves:        m.Reserves,
	}
}
