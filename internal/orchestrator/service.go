// Package orchestrator wires market acquisition to the risk engine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cometguard/internal/comet"
	"cometguard/internal/metrics"
	"cometguard/internal/model"
	"cometguard/internal/risk"
	"cometguard/internal/storage"
)

// ErrMarketNotFound is returned when a market filter matches nothing.
var ErrMarketNotFound = errors.New("no matching market")

// ErrStore marks a failure to persist assessments that were otherwise
// produced. Assess returns the assessments alongside it.
var ErrStore = errors.New("store assessments")

// UserCheck is the result of a liquidation-proximity check for one account.
type UserCheck struct {
	Market   model.MarketSnapshot
	Position model.UserPosition
	Findings []model.RiskFinding
	Score    int
}

// Simulation is the outcome of shocking one market's utilization.
type Simulation struct {
	Market   model.MarketSnapshot
	Delta    decimal.Decimal
	Findings []model.RiskFinding
	Score    int
	// ScoreChange is Score minus the score of the unshocked assessment.
	ScoreChange int
}

// Service composes a market data source, the risk engine and an optional sink.
type Service struct {
	source  comet.Source
	engine  *risk.Engine
	sink    storage.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService builds a Service. sink and m may be nil.
func NewService(source comet.Source, engine *risk.Engine, sink storage.Sink, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:  source,
		engine:  engine,
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
}

// AssessAll fetches every known market and assesses each one.
func (s *Service) AssessAll(ctx context.Context) ([]model.RiskAssessment, error) {
	return s.Assess(ctx, common.Address{})
}

// Assess assesses the markets matching market (the zero address matches all)
// and hands the results to the sink. An acquisition failure aborts the whole
// call; nothing is reported or persisted for it.
func (s *Service) Assess(ctx context.Context, market common.Address) ([]model.RiskAssessment, error) {
	markets, err := s.markets(ctx, market)
	if err != nil {
		return nil, err
	}

	assessments := make([]model.RiskAssessment, 0, len(markets))
	for _, snap := range markets {
		a := s.engine.AssessMarket(snap)
		s.metrics.ObserveAssessment(a)
		s.logger.Info("market assessed",
			zap.String("market", a.MarketName),
			zap.String("address", a.MarketAddress.Hex()),
			zap.String("source", string(a.Source)),
			zap.Int("findings", len(a.Findings)),
			zap.Int("score", a.RiskScore),
		)
		assessments = append(assessments, a)
	}

	if s.sink != nil && len(assessments) > 0 {
		if err := s.sink.PutAssessments(ctx, assessments); err != nil {
			return assessments, fmt.Errorf("%w: %w", ErrStore, err)
		}
	}
	return assessments, nil
}

// CheckUser reads account's position in the first market matching market and
// runs the liquidation-proximity rule on it.
func (s *Service) CheckUser(ctx context.Context, market, account common.Address) (UserCheck, error) {
	snap, err := s.firstMarket(ctx, market)
	if err != nil {
		return UserCheck{}, err
	}
	pos, err := s.source.UserPosition(ctx, snap, account)
	if err != nil {
		return UserCheck{}, fmt.Errorf("user position %s: %w", account.Hex(), err)
	}

	findings := []model.RiskFinding{}
	if f, ok := s.engine.CheckLiquidation(pos); ok {
		findings = append(findings, f)
	}
	s.logger.Info("user checked",
		zap.String("account", account.Hex()),
		zap.String("market", snap.Address.Hex()),
		zap.String("health_factor", pos.HealthFactor.String()),
		zap.Int("findings", len(findings)),
	)
	return UserCheck{
		Market:   snap,
		Position: pos,
		Findings: findings,
		Score:    risk.Score(findings),
	}, nil
}

// Simulate shocks the utilization of the first market matching market by delta.
func (s *Service) Simulate(ctx context.Context, market common.Address, delta decimal.Decimal) (Simulation, error) {
	snap, err := s.firstMarket(ctx, market)
	if err != nil {
		return Simulation{}, err
	}

	findings := s.engine.SimulateUtilization(snap, delta)
	score := risk.Score(findings)
	current := s.engine.AssessMarket(snap).RiskScore
	s.logger.Info("utilization simulated",
		zap.String("market", snap.Address.Hex()),
		zap.String("delta", delta.String()),
		zap.Int("score", score),
	)
	return Simulation{
		Market:      snap,
		Delta:       delta,
		Findings:    findings,
		Score:       score,
		ScoreChange: score - current,
	}, nil
}

// Markets returns the snapshots matching market (the zero address matches all).
func (s *Service) Markets(ctx context.Context, market common.Address) ([]model.MarketSnapshot, error) {
	return s.markets(ctx, market)
}

func (s *Service) markets(ctx context.Context, market common.Address) ([]model.MarketSnapshot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("market source is nil")
	}
	if s.engine == nil {
		return nil, fmt.Errorf("risk engine is nil")
	}
	all, err := s.source.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	if market == (common.Address{}) {
		return all, nil
	}
	filtered := make([]model.MarketSnapshot, 0, 1)
	for _, snap := range all {
		if snap.Address == market {
			filtered = append(filtered, snap)
		}
	}
	return filtered, nil
}

func (s *Service) firstMarket(ctx context.Context, market common.Address) (model.MarketSnapshot, error) {
	markets, err := s.markets(ctx, market)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	if len(markets) == 0 {
		return model.MarketSnapshot{}, ErrMarketNotFound
	}
	return markets[0], nil
}
