package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cometguard/internal/cache"
	"cometguard/internal/chain"
	"cometguard/internal/comet"
	"cometguard/internal/config"
	"cometguard/internal/metrics"
	"cometguard/internal/orchestrator"
	"cometguard/internal/risk"
	"cometguard/internal/storage"
	"cometguard/internal/storage/postgres"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	service *orchestrator.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp loads configuration and builds the source, engine and sinks.
// persist selects whether assessments go to the configured sinks.
func newApp(ctx context.Context, cmd *cobra.Command, persist bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	m := metrics.New(prometheus.DefaultRegisterer)

	source, err := a.newSource(ctx, m)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine, err := risk.NewEngine(risk.Config{
		UtilizationThreshold: cfg.UtilizationThreshold,
		LiquidationBuffer:    cfg.LiquidationBuffer,
		MaxPriceVolatility:   cfg.MaxPriceVolatility,
	})
	if err != nil {
		a.Close()
		return nil, &config.ConfigError{Key: "risk", Reason: err.Error()}
	}

	var sink storage.Sink
	if persist {
		sink, err = a.newSink(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.service = orchestrator.NewService(source, engine, sink, m, logger)
	return a, nil
}

func (a *app) newSource(ctx context.Context, m *metrics.Metrics) (comet.Source, error) {
	market, err := a.cfg.CometAddress()
	if err != nil {
		return nil, err
	}
	if !a.cfg.LedgerConfigured() {
		return comet.NewFallbackSource(market, nil, a.logger), nil
	}

	client, err := chain.NewClient(ctx, a.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	if err := client.CheckChainID(ctx, a.cfg.ChainID); err != nil {
		return nil, &config.ConfigError{Key: "chain-id", Reason: err.Error()}
	}

	a.logger.Info("ledger source",
		zap.String("market", market.Hex()),
		zap.Uint64("chain_id", a.cfg.ChainID),
		zap.Ints("asset_indexes", a.cfg.AssetIndexes),
		zap.Duration("cache_ttl", a.cfg.CacheTTL),
	)
	return comet.NewLedgerSource(comet.LedgerConfig{
		Comet:        market,
		AssetIndexes: a.cfg.AssetIndexes,
	}, client, cache.NewSnapshotStore(a.cfg.CacheTTL), m, a.logger), nil
}

func (a *app) newSink(ctx context.Context) (storage.Sink, error) {
	var sinks []storage.Sink
	if a.cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(a.cfg.Out))
	}
	if a.cfg.PGDSN != "" {
		store, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return storage.Multi(sinks...), nil
}

func (a *app) openStore(ctx context.Context) (*postgres.Store, error) {
	store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
