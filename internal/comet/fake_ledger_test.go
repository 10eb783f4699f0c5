package comet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	testComet    = common.HexToAddress("0xc3d688B66703497DAA19211EEdff47f25384cdc3")
	usdcFeed     = common.HexToAddress("0x8fFfFfd4AfB6115b954Bd326cbe7B4BA576818f6")
	wethFeed     = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	borrower     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	supplier     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	e18          = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	usdcUnit     = big.NewInt(1_000_000)
	priceUnit    = big.NewInt(100_000_000)
	errCallFails = fmt.Errorf("execution reverted")
)

func mul(a *big.Int, b int64) *big.Int {
	return new(big.Int).Mul(a, big.NewInt(b))
}

func factor(permille int64) uint64 {
	return new(big.Int).Div(mul(e18, permille), big.NewInt(1000)).Uint64()
}

// fakeLedger answers eth_calls for a single USDC market with WETH collateral.
type fakeLedger struct {
	t *testing.T

	mu    sync.Mutex
	calls int
	// failures maps "address:method" or "method" to an error.
	failures       map[string]error
	bytes32Symbols map[common.Address]bool
	wethScale      uint64
	block          *big.Int
	seenBlocks     []*big.Int
	balances       map[common.Address]*big.Int
	borrows        map[common.Address]*big.Int
	collateral     map[common.Address]*big.Int
}

func newFakeLedger(t *testing.T) *fakeLedger {
	return &fakeLedger{
		t:              t,
		failures:       map[string]error{},
		bytes32Symbols: map[common.Address]bool{},
		wethScale:      e18.Uint64(),
		balances:       map[common.Address]*big.Int{supplier: mul(usdcUnit, 1000)},
		borrows:        map[common.Address]*big.Int{borrower: mul(usdcUnit, 1000)},
		collateral:     map[common.Address]*big.Int{borrower: new(big.Int).Set(e18), supplier: big.NewInt(0)},
	}
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLedger) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.seenBlocks = append(f.seenBlocks, block)
	f.mu.Unlock()

	require.NotNil(f.t, msg.To)
	to := *msg.To
	method, err := f.method(msg.Data)
	require.NoError(f.t, err)

	if err := f.failures[to.Hex()+":"+method.Name]; err != nil {
		return nil, err
	}
	if err := f.failures[method.Name]; err != nil {
		return nil, err
	}

	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)

	if method.Name == "getAssetInfo" {
		return f.assetInfo(args[0].(uint8))
	}
	if method.Name == "symbol" && f.bytes32Symbols[to] {
		return common.RightPadBytes([]byte(f.symbol(to)), 32), nil
	}

	out, err := f.respond(to, method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeLedger) method(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	cometABI, err := CometABI()
	if err != nil {
		return nil, err
	}
	if m, err := cometABI.MethodById(data[:4]); err == nil {
		return m, nil
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}
	return erc20.MethodById(data[:4])
}

func (f *fakeLedger) symbol(token common.Address) string {
	switch token {
	case USDCAddress:
		return "USDC"
	case WETHAddress:
		return "WETH"
	}
	return "???"
}

func (f *fakeLedger) respond(to common.Address, method string, args []interface{}) ([]interface{}, error) {
	switch to {
	case USDCAddress, WETHAddress:
		switch method {
		case "decimals":
			if to == USDCAddress {
				return []interface{}{uint8(6)}, nil
			}
			return []interface{}{uint8(18)}, nil
		case "symbol":
			return []interface{}{f.symbol(to)}, nil
		}
	case testComet:
		switch method {
		case "baseToken":
			return []interface{}{USDCAddress}, nil
		case "baseTokenPriceFeed":
			return []interface{}{usdcFeed}, nil
		case "getPrice":
			switch args[0].(common.Address) {
			case usdcFeed:
				return []interface{}{new(big.Int).Set(priceUnit)}, nil
			case wethFeed:
				return []interface{}{mul(priceUnit, 2000)}, nil
			}
		case "totalSupply":
			return []interface{}{mul(usdcUnit, 1_000_000_000)}, nil
		case "totalBorrow":
			return []interface{}{mul(usdcUnit, 900_000_000)}, nil
		case "getUtilization":
			return []interface{}{new(big.Int).Div(mul(e18, 9), big.NewInt(10))}, nil
		case "getSupplyRate":
			return []interface{}{uint64(396372399)}, nil
		case "getBorrowRate":
			return []interface{}{uint64(1030568239)}, nil
		case "getReserves":
			return []interface{}{mul(usdcUnit, -5)}, nil
		case "numAssets":
			return []interface{}{uint8(1)}, nil
		case "totalsCollateral":
			return []interface{}{mul(e18, 5000), big.NewInt(0)}, nil
		case "balanceOf":
			return []interface{}{f.lookup(f.balances, args[0])}, nil
		case "borrowBalanceOf":
			return []interface{}{f.lookup(f.borrows, args[0])}, nil
		case "collateralBalanceOf":
			return []interface{}{f.lookup(f.collateral, args[0])}, nil
		}
	}
	return nil, fmt.Errorf("unexpected call %s on %s", method, to.Hex())
}

func (f *fakeLedger) lookup(m map[common.Address]*big.Int, key interface{}) *big.Int {
	if v, ok := m[key.(common.Address)]; ok {
		return v
	}
	return big.NewInt(0)
}

// assetInfo encodes the static AssetInfo tuple word by word.
func (f *fakeLedger) assetInfo(i uint8) ([]byte, error) {
	if i != 0 {
		return nil, errCallFails
	}
	words := [][]byte{
		common.LeftPadBytes([]byte{0}, 32),
		common.LeftPadBytes(WETHAddress.Bytes(), 32),
		common.LeftPadBytes(wethFeed.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(f.wethScale).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(factor(800)).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(factor(825)).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(factor(950)).Bytes(), 32),
		common.LeftPadBytes(mul(e18, 10_000).Bytes(), 32),
	}
	out := make([]byte, 0, 32*len(words))
	for _, w := range words {
		out = append(out, w...)
	}
	return out, nil
}

// pinnedLedger adds LatestBlockNumber so reads are pinned to a block.
type pinnedLedger struct {
	*fakeLedger
	latest uint64
}

func (p pinnedLedger) LatestBlockNumber(context.Context) (uint64, error) {
	return p.latest, nil
}
