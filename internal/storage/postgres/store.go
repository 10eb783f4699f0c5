package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cometguard/internal/model"
	"cometguard/internal/storage"
)

var _ storage.Sink = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS risk_assessments (
	market_address TEXT NOT NULL,
	market_name TEXT NOT NULL,
	source TEXT NOT NULL,
	risk_score SMALLINT NOT NULL,
	finding_count INTEGER NOT NULL,
	findings JSONB NOT NULL,
	assessed_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (market_address, assessed_at)
)`

// DefaultHistoryLimit bounds RecentAssessments when no limit is given.
const DefaultHistoryLimit = 20

// Store provides Postgres persistence for risk assessments.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the assessment table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create risk_assessments: %w", err)
	}
	return nil
}

// PutAssessments inserts assessments, replacing any row with the same market
// and timestamp.
func (s *Store) PutAssessments(ctx context.Context, assessments []model.RiskAssessment) error {
	if len(assessments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range assessments {
		findings := a.Findings
		if findings == nil {
			findings = []model.RiskFinding{}
		}
		payload, err := json.Marshal(findings)
		if err != nil {
			return fmt.Errorf("marshal findings for %s: %w", a.MarketName, err)
		}
		batch.Queue(`
			INSERT INTO risk_assessments (
				market_address, market_name, source, risk_score, finding_count, findings, assessed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (market_address, assessed_at)
			DO UPDATE SET
				market_name = EXCLUDED.market_name,
				source = EXCLUDED.source,
				risk_score = EXCLUDED.risk_score,
				finding_count = EXCLUDED.finding_count,
				findings = EXCLUDED.findings
		`,
			addressKey(a.MarketAddress),
			a.MarketName,
			string(a.Source),
			a.RiskScore,
			len(findings),
			payload,
			a.Timestamp.UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range assessments {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentAssessments returns assessments for market newer than since, most
// recent first. A zero since disables the time filter.
func (s *Store) RecentAssessments(ctx context.Context, market common.Address, since time.Time, limit int) ([]model.RiskAssessment, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT market_address, market_name, source, risk_score, findings, assessed_at
		FROM risk_assessments
		WHERE market_address = $1 AND assessed_at >= $2
		ORDER BY assessed_at DESC
		LIMIT $3
	`, addressKey(market), since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RiskAssessment
	for rows.Next() {
		var (
			address  string
			name     string
			source   string
			score    int16
			findings []byte
			at       time.Time
		)
		if err := rows.Scan(&address, &name, &source, &score, &findings, &at); err != nil {
			return nil, err
		}
		a := model.RiskAssessment{
			MarketName:    name,
			MarketAddress: common.HexToAddress(address),
			Source:        model.SourceKind(source),
			RiskScore:     int(score),
			Timestamp:     at.UTC(),
		}
		if err := json.Unmarshal(findings, &a.Findings); err != nil {
			return nil, fmt.Errorf("decode findings for %s at %s: %w", address, at, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func addressKey(addr common.Address) string {
	return addr.Hex()
}
