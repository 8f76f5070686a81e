package clickhouse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tradegate/internal/domain/regime"
	"tradegate/pkg/errors"
)

// Compile-time check
var _ regime.Repository = (*RegimeRepository)(nil)

// RegimeRepository implements regime.Repository for ClickHouse
type RegimeRepository struct {
	conn driver.Conn
}

// NewRegimeRepository creates a new regime repository
func NewRegimeRepository(conn driver.Conn) *RegimeRepository {
	return &RegimeRepository{conn: conn}
}

// Migrate creates the snapshot table
func (r *RegimeRepository) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS regime_snapshots (
			timestamp          DateTime64(3, 'UTC'),
			vol_regime         LowCardinality(String),
			correlation_regime LowCardinality(String),
			risk_appetite      LowCardinality(String),
			vix_current        Float64,
			vix_percentile     Float64,
			vix_change_pct     Float64,
			avg_correlation    Float64,
			put_call_ratio     Float64,
			gamma_direction    LowCardinality(String),
			macro_proximity    LowCardinality(String),
			atr_ratio          Float64,
			details            String
		) ENGINE = MergeTree()
		ORDER BY timestamp
	`
	if err := r.conn.Exec(ctx, query); err != nil {
		return errors.Wrap(err, "failed to create regime_snapshots")
	}
	return nil
}

// Store stores a new regime snapshot
func (r *RegimeRepository) Store(ctx context.Context, s *regime.Snapshot) error {
	details, err := json.Marshal(s.Details)
	if err != nil {
		return errors.Wrap(err, "failed to encode regime details")
	}

	query := `
		INSERT INTO regime_snapshots (
			timestamp, vol_regime, correlation_regime, risk_appetite,
			vix_current, vix_percentile, vix_change_pct, avg_correlation,
			put_call_ratio, gamma_direction, macro_proximity, atr_ratio, details
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	err = r.conn.Exec(ctx, query,
		s.Timestamp.UTC(),
		s.VolRegime.String(),
		s.CorrelationRegime.String(),
		s.RiskAppetite.String(),
		s.Details.Volatility.VIXCurrent,
		s.Details.Volatility.VIXPercentile,
		s.Details.Volatility.VIXChangePct,
		s.Details.Correlation.AvgCorrelation,
		s.Details.Gamma.PutCallRatio,
		string(s.Details.Gamma.Direction),
		string(s.Details.Macro.Proximity),
		s.Details.RealizedVol.Ratio,
		string(details),
	)
	if err != nil {
		return errors.Wrap(err, "failed to store regime snapshot")
	}

	return nil
}

// GetLatest retrieves the most recent snapshot
func (r *RegimeRepository) GetLatest(ctx context.Context) (*regime.Snapshot, error) {
	snaps, err := r.History(ctx, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errors.NewNotFound("regime snapshot", "latest")
	}
	return snaps[0], nil
}

// History returns snapshots taken at or after since, newest first
func (r *RegimeRepository) History(ctx context.Context, since time.Time, limit int) ([]*regime.Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT timestamp, vol_regime, correlation_regime, risk_appetite, details
		FROM regime_snapshots
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get regime history")
	}
	defer rows.Close()

	var snaps []*regime.Snapshot

	for rows.Next() {
		var (
			s                                 regime.Snapshot
			volStr, corrStr, appetite, detail string
		)

		if err := rows.Scan(&s.Timestamp, &volStr, &corrStr, &appetite, &detail); err != nil {
			return nil, errors.Wrap(err, "failed to scan regime row")
		}

		s.VolRegime = regime.VolRegime(volStr)
		s.CorrelationRegime = regime.CorrelationRegime(corrStr)
		s.RiskAppetite = regime.RiskAppetite(appetite)
		if err := json.Unmarshal([]byte(detail), &s.Details); err != nil {
			return nil, errors.Wrap(err, "failed to decode regime details")
		}

		snaps = append(snaps, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate regime rows")
	}

	return snaps, nil
}
