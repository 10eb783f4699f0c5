package report

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"cometguard/internal/fixedpoint"
	"cometguard/internal/model"
	"cometguard/internal/orchestrator"
)

// WriteAssessments prints one block per assessment.
func WriteAssessments(w io.Writer, assessments []model.RiskAssessment) error {
	p := &printer{w: w}
	p.line("=== RISK ASSESSMENT REPORT ===")
	if len(assessments) == 0 {
		p.line("No matching markets found")
	}
	for _, a := range assessments {
		p.line("")
		p.line("Market: %s (%s) [%s]", a.MarketName, Address(a.MarketAddress), a.Source)
		p.line("Assessed: %s", a.Timestamp.Format("2006-01-02 15:04:05 MST"))
		p.line("Risk Score: %d/100", a.RiskScore)
		p.findings(a.Findings, "No risks identified")
	}
	return p.err
}

// WriteMarketMetrics prints protocol-wide figures for a snapshot.
func WriteMarketMetrics(w io.Writer, snap model.MarketSnapshot) error {
	m := snap.Metrics()
	p := &printer{w: w}
	p.line("")
	p.line("Market: %s (%s)", snap.Name, Address(snap.Address))
	p.line("TVL: %s", Money(m.TVL))
	p.line("Total Borrow: %s", Money(m.TotalBorrowUSD))
	p.line("Utilization: %s", Percent(m.UtilizationRate))
	p.line("Supply APR: %s", Percent(snap.SupplyAPR))
	p.line("Borrow APR: %s", Percent(snap.BorrowAPR))
	p.line("Reserves: %s", Amount(m.Reserves, 2, snap.BaseAsset.Symbol))
	for _, asset := range snap.CollateralAssets() {
		p.line("  %s @ %s  cf %s  lf %s  supplied %s  cap %s",
			asset.Symbol, Money(asset.Price),
			Percent(asset.CollateralFactor), Percent(asset.LiquidationFactor),
			Amount(asset.TotalSupplied, 4, asset.Symbol),
			fixedpoint.FormatAmount(asset.SupplyCap, asset.Decimals))
	}
	return p.err
}

// WriteUserCheck prints a position and its liquidation findings.
func WriteUserCheck(w io.Writer, check orchestrator.UserCheck) error {
	pos := check.Position
	market := check.Market
	p := &printer{w: w}
	p.line("=== USER POSITION CHECK ===")
	p.line("Market: %s (%s) [%s]", market.Name, Address(market.Address), market.Source)
	p.line("User: %s", Address(pos.Account))
	p.line("")
	p.line("Base Balance: %s", Amount(pos.BaseBalance, 2, market.BaseAsset.Symbol))
	for _, asset := range market.CollateralAssets() {
		amount, ok := pos.CollateralBalances[asset.Address]
		if !ok {
			continue
		}
		p.line("Collateral: %s (worth %s)", Amount(amount, 6, asset.Symbol), Money(amount.Mul(asset.Price)))
	}
	p.line("Collateral Value: %s", Money(pos.TotalCollateralValue))
	p.line("Borrow Value: %s", Money(pos.TotalBorrowValue))
	if pos.Borrowing() {
		p.line("Health Factor: %s", pos.HealthFactor.StringFixed(2))
	} else {
		p.line("Health Factor: n/a (no borrow)")
	}
	p.line("Risk Score: %d/100", check.Score)
	p.findings(check.Findings, "Position Status: Healthy")
	return p.err
}

// WriteSimulation prints the findings a utilization shock would produce.
func WriteSimulation(w io.Writer, sim orchestrator.Simulation) error {
	market := sim.Market
	p := &printer{w: w}
	p.line("=== MARKET SIMULATION ===")
	p.line("Market: %s (%s) [%s]", market.Name, Address(market.Address), market.Source)
	p.line("Utilization: %s -> %s", Percent(market.UtilizationRate), Percent(market.UtilizationRate.Add(sim.Delta)))
	p.line("Simulated Score: %d/100 (%s)", sim.Score, signed(sim.ScoreChange))
	p.findings(sim.Findings, "No risks under the simulated utilization")
	return p.err
}

// WriteHistory prints persisted assessments for one market.
func WriteHistory(w io.Writer, market common.Address, assessments []model.RiskAssessment) error {
	p := &printer{w: w}
	p.line("=== ASSESSMENT HISTORY %s ===", Address(market))
	if len(assessments) == 0 {
		p.line("No assessments recorded")
	}
	for _, a := range assessments {
		p.line("%s  score %3d  findings %d  [%s]", a.Timestamp.Format("2006-01-02 15:04:05"), a.RiskScore, len(a.Findings), a.Source)
	}
	return p.err
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// printer keeps the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) findings(findings []model.RiskFinding, empty string) {
	if len(findings) == 0 {
		p.line("%s", empty)
		return
	}
	p.line("")
	p.line("Risks Identified:")
	for i, f := range findings {
		p.line("%d. [%s] %s: %s", i+1, f.Severity, f.Category, f.Description)
	}
}
