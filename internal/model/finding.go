package model

import (
	"fmt"
	"time"
)

// Severity is ordered: Low < Medium < High < Critical.
type Severity uint8

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// Weight is the severity's contribution to a risk score.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 15
	case SeverityHigh:
		return 30
	case SeverityCritical:
		return 50
	default:
		return 0
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(name), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	for sev, name := range severityNames {
		if name == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("invalid severity %q", string(text))
}

// Category classifies a finding. Only HighUtilization and LiquidationCascade
// have checks today; the rest keep the schema stable for future rules.
type Category uint8

const (
	CategoryHighUtilization Category = iota + 1
	CategoryPriceVolatility
	CategoryConcentration
	CategoryLiquidationCascade
	CategoryOracleReliability
	CategorySmartContractRisk
)

var categoryNames = map[Category]string{
	CategoryHighUtilization:    "HighUtilization",
	CategoryPriceVolatility:    "PriceVolatility",
	CategoryConcentration:      "Concentration",
	CategoryLiquidationCascade: "LiquidationCascade",
	CategoryOracleReliability:  "OracleReliability",
	CategorySmartContractRisk:  "SmartContractRisk",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

func (c Category) MarshalText() ([]byte, error) {
	name, ok := categoryNames[c]
	if !ok {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(name), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("invalid category %q", string(text))
}

// RiskFinding is one rule violation.
type RiskFinding struct {
	Category    Category       `json:"category"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}
