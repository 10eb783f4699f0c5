// Package comet acquires Compound III (Comet) market state and account
// positions, either from a live ledger or from a deterministic dataset.
package comet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"cometguard/internal/model"
)

// Source produces market snapshots and account positions.
type Source interface {
	// Markets returns the current snapshot of every known market.
	Markets(ctx context.Context) ([]model.MarketSnapshot, error)
	// UserPosition returns account's position in market.
	UserPosition(ctx context.Context, market model.MarketSnapshot, account common.Address) (model.UserPosition, error)
}

var (
	_ Source = (*LedgerSource)(nil)
	_ Source = (*FallbackSource)(nil)
)
