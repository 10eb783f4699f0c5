package comet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// tokenMeta is the ERC20 metadata a market snapshot needs.
type tokenMeta struct {
	Decimals uint8
	Symbol   string
}

// tokenMetaCache caches immutable ERC20 metadata by address.
type tokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]tokenMeta
}

func newTokenMetaCache() *tokenMetaCache {
	return &tokenMetaCache{data: make(map[common.Address]tokenMeta)}
}

func (c *tokenMetaCache) Get(address common.Address) (tokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *tokenMetaCache) Set(address common.Address, meta tokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// fetchTokenMeta reads decimals and symbol. Tokens returning bytes32
// symbols (MKR style) are handled by a second attempt.
func fetchTokenMeta(ctx context.Context, r reader, token common.Address) (tokenMeta, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := r.call(ctx, token, stringABI, "decimals")
	if err != nil {
		return tokenMeta{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return tokenMeta{}, acquisitionErr(token, "decimals", err)
	}

	meta := tokenMeta{Decimals: decimals}
	if values, err := r.call(ctx, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
			return meta, nil
		}
	}
	values, err = r.call(ctx, token, bytes32ABI, "symbol")
	if err != nil {
		return tokenMeta{}, err
	}
	symbol, ok := bytes32ToString(values[0])
	if !ok {
		return tokenMeta{}, acquisitionErr(token, "symbol", fmt.Errorf("unsupported symbol type %T", values[0]))
	}
	meta.Symbol = symbol
	return meta, nil
}
