package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cometguard/internal/config"
	"cometguard/internal/fixedpoint"
	"cometguard/internal/model"
	"cometguard/internal/orchestrator"
	"cometguard/internal/report"
	"cometguard/internal/risk"
)

func newAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess risks for Compound V3 markets",
		RunE:  runAssess,
	}
	cmd.Flags().String("market", "", "only report this Comet proxy address")
	cmd.Flags().Bool("details", false, "also print protocol metrics")
	return cmd
}

func newCheckUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-user",
		Short: "Check a user's position for liquidation risk",
		RunE:  runCheckUser,
	}
	cmd.Flags().String("market", "", "Comet proxy address (default first market)")
	cmd.Flags().String("user", "", "account address")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a utilization shock",
		RunE:  runSimulate,
	}
	cmd.Flags().String("market", "", "Comet proxy address (default first market)")
	cmd.Flags().Float64("delta", risk.DefaultSimulationDelta, "utilization change to apply")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Assess markets periodically",
		RunE:  runWatch,
	}
	cmd.Flags().String("market", "", "only watch this Comet proxy address")
	cmd.Flags().Duration("interval", config.DefaultInterval, "polling interval")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show persisted assessments from Postgres",
		RunE:  runHistory,
	}
	cmd.Flags().String("market", "", "Comet proxy address (default configured comet)")
	cmd.Flags().Int("limit", 20, "maximum rows")
	cmd.Flags().String("since", "", "only show assessments after this time (unix seconds or RFC3339)")
	return cmd
}

func marketFlag(cmd *cobra.Command) (common.Address, error) {
	raw, _ := cmd.Flags().GetString("market")
	if raw == "" {
		return common.Address{}, nil
	}
	return config.ParseAddress("market", raw)
}

func runAssess(cmd *cobra.Command, _ []string) error {
	market, err := marketFlag(cmd)
	if err != nil {
		return err
	}
	details, _ := cmd.Flags().GetBool("details")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	assessments, err := a.service.Assess(ctx, market)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report.WriteAssessments(out, assessments); err != nil {
		return err
	}
	if !details {
		return nil
	}
	markets, err := a.service.Markets(ctx, market)
	if err != nil {
		return err
	}
	for _, snap := range markets {
		if err := report.WriteMarketMetrics(out, snap); err != nil {
			return err
		}
	}
	return nil
}

func runCheckUser(cmd *cobra.Command, _ []string) error {
	market, err := marketFlag(cmd)
	if err != nil {
		return err
	}
	rawUser, _ := cmd.Flags().GetString("user")
	user, err := config.ParseAddress("user", rawUser)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	check, err := a.service.CheckUser(ctx, market, user)
	if errors.Is(err, orchestrator.ErrMarketNotFound) {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No matching markets found")
		return err
	}
	if err != nil {
		return err
	}
	return report.WriteUserCheck(cmd.OutOrStdout(), check)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	market, err := marketFlag(cmd)
	if err != nil {
		return err
	}
	rawDelta, _ := cmd.Flags().GetFloat64("delta")
	delta, err := fixedpoint.FloatToDecimal(rawDelta)
	if err != nil {
		return &config.ConfigError{Key: "delta", Reason: err.Error()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	sim, err := a.service.Simulate(ctx, market, delta)
	if errors.Is(err, orchestrator.ErrMarketNotFound) {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No matching markets found")
		return err
	}
	if err != nil {
		return err
	}
	return report.WriteSimulation(cmd.OutOrStdout(), sim)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	market, err := marketFlag(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a.logger.Info("watch start",
		zap.Duration("interval", a.cfg.Interval),
		zap.String("metrics_addr", a.cfg.MetricsAddr),
		zap.Bool("ledger", a.cfg.LedgerConfigured()),
	)

	out := cmd.OutOrStdout()
	err = a.service.Watch(ctx, market, a.cfg.Interval, func(assessments []model.RiskAssessment) {
		if err := report.WriteAssessments(out, assessments); err != nil {
			a.logger.Warn("write report", zap.Error(err))
		}
	})
	if errors.Is(err, context.Canceled) {
		a.logger.Info("watch stopped")
		return nil
	}
	return err
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return &config.ConfigError{Key: "pg-dsn", Reason: "required for history"}
	}
	market, err := marketFlag(cmd)
	if err != nil {
		return err
	}
	if market == (common.Address{}) {
		if market, err = cfg.CometAddress(); err != nil {
			return err
		}
	}
	limit, _ := cmd.Flags().GetInt("limit")
	rawSince, _ := cmd.Flags().GetString("since")
	since, err := config.ParseTimestamp(rawSince)
	if err != nil {
		return &config.ConfigError{Key: "since", Reason: err.Error()}
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, logger: logger}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	assessments, err := store.RecentAssessments(ctx, market, since, limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return report.WriteHistory(cmd.OutOrStdout(), market, assessments)
}
