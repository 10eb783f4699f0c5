// Package risk scores market snapshots and user positions.
//
// The engine is stateless apart from its thresholds and may be shared between
// goroutines. All comparisons are exact decimal comparisons with strict
// inequalities: a utilization of exactly threshold+0.05 is Medium, not High,
// and a health factor of exactly 1+buffer produces no finding.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cometguard/internal/fixedpoint"
	"cometguard/internal/model"
)

// Defaults used when a Config field is left at zero.
const (
	DefaultUtilizationThreshold = 0.85
	DefaultLiquidationBuffer    = 0.05
	DefaultMaxPriceVolatility   = 0.10
	// DefaultSimulationDelta is the utilization shock applied by the
	// simulate command when none is given.
	DefaultSimulationDelta = 0.10
)

// MaxScore caps RiskAssessment.RiskScore.
const MaxScore = 100

var (
	highStep     = decimal.RequireFromString("0.05")
	criticalStep = decimal.RequireFromString("0.10")
	one          = decimal.NewFromInt(1)
	two          = decimal.NewFromInt(2)
	hundred      = decimal.NewFromInt(100)
)

// Config holds rule thresholds.
type Config struct {
	UtilizationThreshold float64
	LiquidationBuffer    float64
	// MaxPriceVolatility is carried for a future PriceVolatility rule.
	MaxPriceVolatility float64
}

// Engine evaluates rule checks.
type Engine struct {
	threshold     decimal.Decimal
	buffer        decimal.Decimal
	maxVolatility decimal.Decimal
	now           func() time.Time
}

// NewEngine validates cfg and builds an Engine. A zero threshold selects the
// default; a zero buffer is kept as is.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.UtilizationThreshold == 0 {
		cfg.UtilizationThreshold = DefaultUtilizationThreshold
	}
	if cfg.MaxPriceVolatility == 0 {
		cfg.MaxPriceVolatility = DefaultMaxPriceVolatility
	}
	if cfg.UtilizationThreshold <= 0 || cfg.UtilizationThreshold >= 1 {
		return nil, fmt.Errorf("utilization threshold %v outside (0,1)", cfg.UtilizationThreshold)
	}
	if cfg.LiquidationBuffer < 0 {
		return nil, fmt.Errorf("liquidation buffer %v is negative", cfg.LiquidationBuffer)
	}
	threshold, err := fixedpoint.FloatToDecimal(cfg.UtilizationThreshold)
	if err != nil {
		return nil, fmt.Errorf("utilization threshold: %w", err)
	}
	buffer, err := fixedpoint.FloatToDecimal(cfg.LiquidationBuffer)
	if err != nil {
		return nil, fmt.Errorf("liquidation buffer: %w", err)
	}
	maxVolatility, err := fixedpoint.FloatToDecimal(cfg.MaxPriceVolatility)
	if err != nil {
		return nil, fmt.Errorf("max price volatility: %w", err)
	}
	return &Engine{
		threshold:     threshold,
		buffer:        buffer,
		maxVolatility: maxVolatility,
		now:           time.Now,
	}, nil
}

// Threshold returns the configured utilization threshold.
func (e *Engine) Threshold() decimal.Decimal { return e.threshold }

// Buffer returns the configured liquidation buffer.
func (e *Engine) Buffer() decimal.Decimal { return e.buffer }

// MaxPriceVolatility returns the configured volatility limit. No rule reads it yet.
func (e *Engine) MaxPriceVolatility() decimal.Decimal { return e.maxVolatility }

// AssessMarket runs every market-level rule against snap and scores the result.
func (e *Engine) AssessMarket(snap model.MarketSnapshot) model.RiskAssessment {
	now := e.now().UTC()

	findings := make([]model.RiskFinding, 0, 1)
	if f, ok := e.checkUtilization(snap, snap.UtilizationRate, now); ok {
		findings = append(findings, f)
	}

	return model.RiskAssessment{
		MarketName:    snap.Name,
		MarketAddress: snap.Address,
		Source:        snap.Source,
		Findings:      findings,
		RiskScore:     Score(findings),
		Timestamp:     now,
	}
}

// CheckUtilization returns the HighUtilization finding for snap, if any.
func (e *Engine) CheckUtilization(snap model.MarketSnapshot) (model.RiskFinding, bool) {
	return e.checkUtilization(snap, snap.UtilizationRate, e.now().UTC())
}

func (e *Engine) checkUtilization(snap model.MarketSnapshot, utilization decimal.Decimal, now time.Time) (model.RiskFinding, bool) {
	severity, ok := e.utilizationSeverity(utilization)
	if !ok {
		return model.RiskFinding{}, false
	}
	return model.RiskFinding{
		Category: model.CategoryHighUtilization,
		Severity: severity,
		Description: fmt.Sprintf("Market utilization is %s, which exceeds the recommended threshold of %s",
			percent(utilization), percent(e.threshold)),
		Metadata: map[string]any{
			"current_utilization": utilization,
			"threshold":           e.threshold,
			"base_asset":          snap.BaseAsset.Symbol,
			"total_supply":        snap.TotalSupply,
			"total_borrow":        snap.TotalBorrow,
		},
		Timestamp: now,
	}, true
}

func (e *Engine) utilizationSeverity(utilization decimal.Decimal) (model.Severity, bool) {
	switch {
	case !utilization.GreaterThan(e.threshold):
		return 0, false
	case utilization.GreaterThan(e.threshold.Add(criticalStep)):
		return model.SeverityCritical, true
	case utilization.GreaterThan(e.threshold.Add(highStep)):
		return model.SeverityHigh, true
	default:
		return model.SeverityMedium, true
	}
}

// CheckLiquidation returns a LiquidationCascade finding when pos is within
// the buffer of liquidation. Positions without debt never produce one.
func (e *Engine) CheckLiquidation(pos model.UserPosition) (model.RiskFinding, bool) {
	if !pos.TotalBorrowValue.IsPositive() {
		return model.RiskFinding{}, false
	}
	hf := pos.HealthFactor
	if !hf.LessThan(one.Add(e.buffer)) {
		return model.RiskFinding{}, false
	}

	severity := model.SeverityMedium
	switch {
	case hf.LessThan(one):
		severity = model.SeverityCritical
	case hf.LessThan(one.Add(e.buffer.Div(two))):
		severity = model.SeverityHigh
	}

	return model.RiskFinding{
		Category: model.CategoryLiquidationCascade,
		Severity: severity,
		Description: fmt.Sprintf("User position has a health factor of %s, which is close to or below the liquidation threshold",
			hf.StringFixed(2)),
		Metadata: map[string]any{
			"account":          pos.Account.Hex(),
			"health_factor":    hf,
			"buffer":           e.buffer,
			"collateral_value": pos.TotalCollateralValue,
			"borrow_value":     pos.TotalBorrowValue,
		},
		Timestamp: e.now().UTC(),
	}, true
}

// SimulateUtilization evaluates the utilization rule as if utilization were
// delta higher. snap is not modified.
func (e *Engine) SimulateUtilization(snap model.MarketSnapshot, delta decimal.Decimal) []model.RiskFinding {
	simulated := snap.UtilizationRate.Add(delta)
	f, ok := e.checkUtilization(snap, simulated, e.now().UTC())
	if !ok {
		return []model.RiskFinding{}
	}
	f.Description = fmt.Sprintf("Simulated %s change in utilization would result in %s utilization, exceeding the threshold of %s",
		percent(delta), percent(simulated), percent(e.threshold))
	f.Metadata["simulated_utilization"] = simulated
	f.Metadata["current_utilization"] = snap.UtilizationRate
	f.Metadata["delta"] = delta
	return []model.RiskFinding{f}
}

// Score sums severity weights and caps the total at MaxScore.
func Score(findings []model.RiskFinding) int {
	total := 0
	for _, f := range findings {
		total += f.Severity.Weight()
		if total >= MaxScore {
			return MaxScore
		}
	}
	return total
}

func percent(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(2) + "%"
}
