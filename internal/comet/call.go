package comet

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the read-only contract call capability. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// blockNumberReader lets a caller pin all reads of one snapshot to a block.
type blockNumberReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// reader issues eth_calls against a fixed block (nil means latest).
type reader struct {
	caller Caller
	block  *big.Int
}

func (r reader) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, acquisitionErr(contract, method, fmt.Errorf("pack: %w", err))
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, r.block)
	if err != nil {
		return nil, acquisitionErr(contract, method, fmt.Errorf("call: %w", err))
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, acquisitionErr(contract, method, fmt.Errorf("unpack: %w", err))
	}
	if len(values) == 0 {
		return nil, acquisitionErr(contract, method, fmt.Errorf("empty response"))
	}
	return values, nil
}

func (r reader) address(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (common.Address, error) {
	values, err := r.call(ctx, contract, parsed, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, acquisitionErr(contract, method, err)
	}
	return addr, nil
}

func (r reader) bigInt(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	values, err := r.call(ctx, contract, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return nil, acquisitionErr(contract, method, err)
	}
	return v, nil
}

func acquisitionErr(contract common.Address, field string, err error) *AcquisitionError {
	return &AcquisitionError{Contract: contract.Hex(), Field: field, Err: err}
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
