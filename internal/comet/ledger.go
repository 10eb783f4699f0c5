package comet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cometguard/internal/cache"
	"cometguard/internal/fixedpoint"
	"cometguard/internal/metrics"
	"cometguard/internal/model"
)

// LedgerConfig selects the market read by a LedgerSource.
type LedgerConfig struct {
	Comet common.Address
	// AssetIndexes limits which collateral assets are read. Empty means all
	// of numAssets().
	AssetIndexes []int
}

// LedgerSource reads market state through read-only contract calls and
// caches snapshots per market.
type LedgerSource struct {
	cfg     LedgerConfig
	caller  Caller
	store   *cache.SnapshotStore
	tokens  *tokenMetaCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewLedgerSource builds a LedgerSource. A nil store gets a default-TTL store.
func NewLedgerSource(cfg LedgerConfig, caller Caller, store *cache.SnapshotStore, m *metrics.Metrics, logger *zap.Logger) *LedgerSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = cache.NewSnapshotStore(cache.DefaultTTL)
	}
	return &LedgerSource{
		cfg:     cfg,
		caller:  caller,
		store:   store,
		tokens:  newTokenMetaCache(),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Markets returns the configured market, from cache when still fresh.
func (s *LedgerSource) Markets(ctx context.Context) ([]model.MarketSnapshot, error) {
	key := cache.MarketKey(s.cfg.Comet)
	if snap, ok := s.store.Get(key, s.now()); ok {
		s.metrics.CacheHit()
		s.logger.Debug("market cache hit", zap.String("market", s.cfg.Comet.Hex()))
		return []model.MarketSnapshot{snap}, nil
	}
	s.metrics.CacheMiss()

	start := time.Now()
	snap, err := s.fetchMarket(ctx)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}
	s.metrics.ObserveAcquisition(time.Since(start))
	s.metrics.ObserveMarket(snap)

	s.store.Put(key, snap, s.now())
	return []model.MarketSnapshot{snap}, nil
}

func (s *LedgerSource) fetchMarket(ctx context.Context) (model.MarketSnapshot, error) {
	if s.caller == nil {
		return model.MarketSnapshot{}, &AcquisitionError{Contract: "rpc", Field: "caller", Err: ErrNoCaller}
	}
	cometABI, err := CometABI()
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("parse comet abi: %w", err)
	}

	r, err := s.pinnedReader(ctx)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	comet := s.cfg.Comet

	s.logger.Debug("fetch market", zap.String("market", comet.Hex()), zap.Stringer("block", r.block))

	baseToken, err := r.address(ctx, comet, cometABI, "baseToken")
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	baseMeta, err := s.tokenMeta(ctx, r, baseToken)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	baseFeed, err := r.address(ctx, comet, cometABI, "baseTokenPriceFeed")
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	basePrice, err := r.bigInt(ctx, comet, cometABI, "getPrice", baseFeed)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	totalSupply, err := r.bigInt(ctx, comet, cometABI, "totalSupply")
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	totalBorrow, err := r.bigInt(ctx, comet, cometABI, "totalBorrow")
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	utilization, err := r.bigInt(ctx, comet, cometABI, "getUtilization")
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	supplyRate, err := r.bigInt(ctx, comet, cometABI, "getSupplyRate", utilization)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	borrowRate, err := r.bigInt(ctx, comet, cometABI, "getBorrowRate", utilization)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	reserves, err := r.bigInt(ctx, comet, cometABI, "getReserves")
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	indexes, err := s.assetIndexes(ctx, r)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	collateral := make([]model.Asset, 0, len(indexes))
	for _, idx := range indexes {
		asset, err := s.fetchCollateral(ctx, r, idx)
		if err != nil {
			return model.MarketSnapshot{}, withFieldPrefix(err, fmt.Sprintf("asset[%d]", idx))
		}
		collateral = append(collateral, asset)
	}

	base := model.Asset{
		Address:   baseToken,
		Symbol:    baseMeta.Symbol,
		Decimals:  baseMeta.Decimals,
		Role:      model.RoleBase,
		PriceFeed: baseFeed,
		Price:     fixedpoint.MustToDecimal(basePrice, fixedpoint.PriceDecimals),
		SupplyCap: big.NewInt(0),
		BorrowCap: big.NewInt(0),
	}
	base.TotalSupplied = fixedpoint.MustToDecimal(totalSupply, base.Decimals)

	var block uint64
	if r.block != nil {
		block = r.block.Uint64()
	}

	snap, err := model.NewMarketSnapshot(model.MarketState{
		Name:                base.Symbol,
		Address:             comet,
		Source:              model.SourceLedger,
		Base:                base,
		Collateral:          collateral,
		TotalSupply:         base.TotalSupplied,
		TotalBorrow:         fixedpoint.MustToDecimal(totalBorrow, base.Decimals),
		SupplyRatePerSecond: fixedpoint.MustToDecimal(supplyRate, fixedpoint.RateDecimals),
		BorrowRatePerSecond: fixedpoint.MustToDecimal(borrowRate, fixedpoint.RateDecimals),
		Reserves:            decimal.NewFromBigInt(reserves, -int32(base.Decimals)),
		Block:               block,
		FetchedAt:           s.now().UTC(),
	})
	if err != nil {
		return model.MarketSnapshot{}, acquisitionErr(comet, "snapshot", err)
	}
	return snap, nil
}

func (s *LedgerSource) fetchCollateral(ctx context.Context, r reader, idx int) (model.Asset, error) {
	cometABI, err := CometABI()
	if err != nil {
		return model.Asset{}, err
	}
	comet := s.cfg.Comet
	field := "getAssetInfo"

	values, err := r.call(ctx, comet, cometABI, "getAssetInfo", uint8(idx))
	if err != nil {
		return model.Asset{}, err
	}
	info, err := decodeAssetInfo(values[0])
	if err != nil {
		return model.Asset{}, acquisitionErr(comet, field, err)
	}

	meta, err := s.tokenMeta(ctx, r, info.Asset)
	if err != nil {
		return model.Asset{}, err
	}
	if scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(meta.Decimals)), nil); info.Scale == 0 || !scale.IsUint64() || scale.Uint64() != info.Scale {
		return model.Asset{}, acquisitionErr(comet, field, fmt.Errorf("scale %d does not match %d decimals", info.Scale, meta.Decimals))
	}
	price, err := r.bigInt(ctx, comet, cometABI, "getPrice", info.PriceFeed)
	if err != nil {
		return model.Asset{}, err
	}
	totals, err := r.call(ctx, comet, cometABI, "totalsCollateral", info.Asset)
	if err != nil {
		return model.Asset{}, err
	}
	supplied, err := asBigInt(totals[0])
	if err != nil {
		return model.Asset{}, acquisitionErr(comet, "totalsCollateral", err)
	}

	one := decimal.NewFromInt(1)
	return model.Asset{
		Address:            info.Asset,
		Symbol:             meta.Symbol,
		Decimals:           meta.Decimals,
		Role:               model.RoleCollateral,
		PriceFeed:          info.PriceFeed,
		Price:              fixedpoint.MustToDecimal(price, fixedpoint.PriceDecimals),
		CollateralFactor:   fixedpoint.FromUint64(info.BorrowCollateralFactor, fixedpoint.FactorDecimals),
		LiquidationFactor:  fixedpoint.FromUint64(info.LiquidateCollateralFactor, fixedpoint.FactorDecimals),
		LiquidationPenalty: one.Sub(fixedpoint.FromUint64(info.LiquidationFactor, fixedpoint.FactorDecimals)),
		SupplyCap:          info.SupplyCap,
		BorrowCap:          big.NewInt(0),
		TotalSupplied:      fixedpoint.MustToDecimal(supplied, meta.Decimals),
	}, nil
}

// UserPosition reads account balances in market and derives the position.
func (s *LedgerSource) UserPosition(ctx context.Context, market model.MarketSnapshot, account common.Address) (model.UserPosition, error) {
	pos, err := s.fetchPosition(ctx, market, account)
	if err != nil {
		s.recordFailure(err)
		return model.UserPosition{}, err
	}
	return pos, nil
}

func (s *LedgerSource) fetchPosition(ctx context.Context, market model.MarketSnapshot, account common.Address) (model.UserPosition, error) {
	if s.caller == nil {
		return model.UserPosition{}, &AcquisitionError{Contract: "rpc", Field: "caller", Err: ErrNoCaller}
	}
	cometABI, err := CometABI()
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("parse comet abi: %w", err)
	}
	r, err := s.pinnedReader(ctx)
	if err != nil {
		return model.UserPosition{}, err
	}
	comet := market.Address
	baseDecimals := market.BaseAsset.Decimals

	supplied, err := r.bigInt(ctx, comet, cometABI, "balanceOf", account)
	if err != nil {
		return model.UserPosition{}, err
	}
	borrowed, err := r.bigInt(ctx, comet, cometABI, "borrowBalanceOf", account)
	if err != nil {
		return model.UserPosition{}, err
	}

	baseBalance := fixedpoint.MustToDecimal(supplied, baseDecimals)
	if borrowed.Sign() != 0 {
		baseBalance = fixedpoint.MustToDecimal(borrowed, baseDecimals).Neg()
	}

	balances := make(map[common.Address]decimal.Decimal, len(market.Collateral))
	for _, asset := range market.CollateralAssets() {
		raw, err := r.bigInt(ctx, comet, cometABI, "collateralBalanceOf", account, asset.Address)
		if err != nil {
			return model.UserPosition{}, withFieldPrefix(err, asset.Symbol)
		}
		if raw.Sign() > 0 {
			balances[asset.Address] = fixedpoint.MustToDecimal(raw, asset.Decimals)
		}
	}

	pos, err := model.NewUserPosition(market, account, baseBalance, balances)
	if err != nil {
		return model.UserPosition{}, acquisitionErr(comet, "position", err)
	}
	return pos, nil
}

func (s *LedgerSource) pinnedReader(ctx context.Context) (reader, error) {
	r := reader{caller: s.caller}
	br, ok := s.caller.(blockNumberReader)
	if !ok {
		return r, nil
	}
	block, err := br.LatestBlockNumber(ctx)
	if err != nil {
		return reader{}, &AcquisitionError{Contract: "rpc", Field: "blockNumber", Err: err}
	}
	r.block = new(big.Int).SetUint64(block)
	return r, nil
}

func (s *LedgerSource) assetIndexes(ctx context.Context, r reader) ([]int, error) {
	if len(s.cfg.AssetIndexes) > 0 {
		return s.cfg.AssetIndexes, nil
	}
	cometABI, err := CometABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, s.cfg.Comet, cometABI, "numAssets")
	if err != nil {
		return nil, err
	}
	n, err := asUint8(values[0])
	if err != nil {
		return nil, acquisitionErr(s.cfg.Comet, "numAssets", err)
	}
	indexes := make([]int, 0, n)
	for i := 0; i < int(n); i++ {
		indexes = append(indexes, i)
	}
	return indexes, nil
}

func (s *LedgerSource) tokenMeta(ctx context.Context, r reader, token common.Address) (tokenMeta, error) {
	if meta, ok := s.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := fetchTokenMeta(ctx, r, token)
	if err != nil {
		return tokenMeta{}, err
	}
	s.tokens.Set(token, meta)
	return meta, nil
}

func (s *LedgerSource) recordFailure(err error) {
	field := "unknown"
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		field = acqErr.Field
	}
	s.metrics.AcquisitionFailed(field)
	s.logger.Warn("acquisition failed", zap.String("field", field), zap.Error(err))
}

func decodeAssetInfo(value interface{}) (info cometAssetInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode asset info: %v", r)
		}
	}()
	converted := abi.ConvertType(value, new(cometAssetInfo))
	out, ok := converted.(*cometAssetInfo)
	if !ok {
		return cometAssetInfo{}, fmt.Errorf("unexpected asset info type %T", converted)
	}
	if out.SupplyCap == nil {
		out.SupplyCap = big.NewInt(0)
	}
	return *out, nil
}
