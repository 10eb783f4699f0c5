package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cometguard/internal/config"
	"cometguard/internal/risk"
)

func main() {
	root := &cobra.Command{
		Use:          "cometguard",
		Short:        "Risk monitor for Compound V3 markets",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "Ethereum JSON-RPC URL; empty serves the offline dataset")
	flags.Bool("offline", false, "use the deterministic offline dataset")
	flags.String("comet", config.DefaultComet, "Comet proxy address")
	flags.String("configurator", config.DefaultConfigurator, "Configurator address")
	flags.Uint64("chain-id", 1, "expected chain id of the RPC endpoint")
	flags.IntSlice("asset-indexes", nil, "collateral asset indexes to read (default all)")
	flags.Float64("utilization-threshold", risk.DefaultUtilizationThreshold, "utilization threshold in (0,1)")
	flags.Float64("liquidation-buffer", risk.DefaultLiquidationBuffer, "health factor buffer above 1.0")
	flags.Float64("max-price-volatility", risk.DefaultMaxPriceVolatility, "maximum tolerated price volatility")
	flags.Duration("cache-ttl", config.DefaultCacheTTL, "market snapshot cache TTL")
	flags.String("out", "", "append assessments to this JSONL file")
	flags.String("pg-dsn", "", "Postgres DSN for assessment history")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newAssessCmd(), newCheckUserCmd(), newSimulateCmd(), newWatchCmd(), newHistoryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
