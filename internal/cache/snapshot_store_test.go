package cache

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cometguard/internal/model"
)

var market = common.HexToAddress("0xc3d688B66703497DAA19211EEdff47f25384cdc3")

func snapshotNamed(name string) model.MarketSnapshot {
	return model.MarketSnapshot{Name: name, Address: market, TotalSupply: decimal.NewFromInt(1)}
}

func TestSnapshotStoreTTL(t *testing.T) {
	store := NewSnapshotStore(DefaultTTL)
	key := MarketKey(market)
	now := time.Unix(1_700_000_000, 0)

	store.Put(key, snapshotNamed("USDC"), now)

	got, ok := store.Get(key, now.Add(DefaultTTL-time.Second))
	require.True(t, ok)
	assert.Equal(t, "USDC", got.Name)

	_, ok = store.Get(key, now.Add(DefaultTTL))
	assert.False(t, ok, "entry must expire exactly at TTL")

	_, ok = store.Get(key, now.Add(DefaultTTL+time.Second))
	assert.False(t, ok)
}

func TestSnapshotStoreMissingKey(t *testing.T) {
	store := NewSnapshotStore(0)
	assert.Equal(t, DefaultTTL, store.TTL())

	_, ok := store.Get("market:unknown", time.Now())
	assert.False(t, ok)
}

func TestSnapshotStorePutReplaces(t *testing.T) {
	store := NewSnapshotStore(time.Minute)
	key := MarketKey(market)
	now := time.Unix(1_700_000_000, 0)

	store.Put(key, snapshotNamed("old"), now)
	store.Put(key, snapshotNamed("new"), now.Add(30*time.Second))

	got, ok := store.Get(key, now.Add(80*time.Second))
	require.True(t, ok, "replacement must reset insertion time")
	assert.Equal(t, "new", got.Name)
}

func TestMarketKeyCaseInsensitive(t *testing.T) {
	lower := common.HexToAddress("0xc3d688b66703497daa19211eedff47f25384cdc3")
	assert.Equal(t, MarketKey(market), MarketKey(lower))
}

func TestSnapshotStoreConcurrentAccess(t *testing.T) {
	store := NewSnapshotStore(time.Minute)
	key := MarketKey(market)
	now := time.Unix(1_700_000_000, 0)
	store.Put(key, snapshotNamed("w0"), now)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				store.Put(key, snapshotNamed("w"), now)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, ok := store.Get(key, now.Add(time.Second))
				if !ok || got.Address != market {
					t.Errorf("torn or missing entry: %+v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotStoreIsolatesCallers(t *testing.T) {
	store := NewSnapshotStore(time.Minute)
	key := MarketKey(market)
	now := time.Unix(1_700_000_000, 0)
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	snap := snapshotNamed("USDC")
	snap.BaseAsset = model.Asset{Symbol: "USDC", SupplyCap: big.NewInt(0)}
	snap.Collateral = map[common.Address]model.Asset{
		weth: {Symbol: "WETH", Price: decimal.NewFromInt(2000), SupplyCap: big.NewInt(100)},
	}
	store.Put(key, snap, now)

	// writes to the value passed to Put stay out of the cache
	snap.Collateral[weth] = model.Asset{Symbol: "WETH", Price: decimal.NewFromInt(3)}
	snap.BaseAsset.SupplyCap.SetInt64(9)

	got, ok := store.Get(key, now.Add(time.Second))
	require.True(t, ok)
	asset := got.Collateral[weth]
	asset.Price = decimal.NewFromInt(1)
	got.Collateral[weth] = asset
	got.BaseAsset.SupplyCap.SetInt64(42)

	again, ok := store.Get(key, now.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, "2000", again.Collateral[weth].Price.String())
	assert.Equal(t, int64(100), again.Collateral[weth].SupplyCap.Int64())
	assert.Equal(t, int64(0), again.BaseAsset.SupplyCap.Int64())
}
