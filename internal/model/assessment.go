package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RiskAssessment is the scored result for one market. Findings keep rule
// evaluation order.
type RiskAssessment struct {
	MarketName    string         `json:"market_name"`
	MarketAddress common.Address `json:"market_address"`
	Source        SourceKind     `json:"source"`
	Findings      []RiskFinding  `json:"findings"`
	RiskScore     int            `json:"risk_score"`
	Timestamp     time.Time      `json:"timestamp"`
}
