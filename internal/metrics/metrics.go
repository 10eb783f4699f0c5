// Package metrics exposes Prometheus instrumentation for acquisition and
// scoring. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cometguard/internal/model"
)

const namespace = "cometguard"

type Metrics struct {
	cacheLookups        *prometheus.CounterVec
	acquisitionErrors   *prometheus.CounterVec
	acquisitionDuration prometheus.Histogram
	riskScore           *prometheus.GaugeVec
	utilization         *prometheus.GaugeVec
	findings            *prometheus.CounterVec
}

// New creates collectors and registers them with reg. A nil reg leaves the
// collectors unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Market snapshot cache lookups by result.",
		}, []string{"result"}),
		acquisitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_errors_total",
			Help:      "Failed ledger reads by field.",
		}, []string{"field"}),
		acquisitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquisition_duration_seconds",
			Help:      "Time to acquire a full market snapshot from the ledger.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		riskScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_risk_score",
			Help:      "Latest risk score per market.",
		}, []string{"market"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_utilization_ratio",
			Help:      "Latest utilization per market.",
		}, []string{"market"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_findings_total",
			Help:      "Risk findings by category and severity.",
		}, []string{"category", "severity"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.cacheLookups,
			m.acquisitionErrors,
			m.acquisitionDuration,
			m.riskScore,
			m.utilization,
			m.findings,
		)
	}
	return m
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) AcquisitionFailed(field string) {
	if m == nil {
		return
	}
	m.acquisitionErrors.WithLabelValues(field).Inc()
}

func (m *Metrics) ObserveAcquisition(d time.Duration) {
	if m == nil {
		return
	}
	m.acquisitionDuration.Observe(d.Seconds())
}

// ObserveMarket records the utilization of a fetched snapshot.
func (m *Metrics) ObserveMarket(snapshot model.MarketSnapshot) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(snapshot.Address.Hex()).Set(snapshot.UtilizationRate.InexactFloat64())
}

// ObserveAssessment records score and findings of an assessment.
func (m *Metrics) ObserveAssessment(a model.RiskAssessment) {
	if m == nil {
		return
	}
	m.riskScore.WithLabelValues(a.MarketAddress.Hex()).Set(float64(a.RiskScore))
	for _, f := range a.Findings {
		m.findings.WithLabelValues(f.Category.String(), f.Severity.String()).Inc()
	}
}
