package risk

import "time"

// Level is a coarse low/medium/high grading shared by the concentration metrics
type Level string

const (
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	LevelUnknown Level = "unknown"
)

// Valid checks if level is valid
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelUnknown:
		return true
	}
	return false
}

// String returns string representation
func (l Level) String() string {
	return string(l)
}

// UnknownBucket labels positions that carry no expiry bucket
const UnknownBucket = "unknown"

// Position is one line of the book as the risk engine sees it.
// Notional is treated as absolute exposure.
type Position struct {
	Symbol       string     `json:"symbol"`
	Delta        float64    `json:"delta"`
	Vega         float64    `json:"vega"`
	Gamma        float64    `json:"gamma"`
	Notional     float64    `json:"notional"`
	EarningsDate *time.Time `json:"earnings_date,omitempty"`
	ExpiryBucket string     `json:"expiry_bucket,omitempty"`
}

// Bucket returns the expiry bucket, defaulting to "unknown"
func (p Position) Bucket() string {
	if p.ExpiryBucket == "" {
		return UnknownBucket
	}
	return p.ExpiryBucket
}

// CorrelationConcentration is the average pairwise return correlation across held symbols.
// AvgPairwise is nil when it could not be computed.
type CorrelationConcentration struct {
	AvgPairwise *float64 `json:"avg_pairwise_correlation"`
	Level       Level    `json:"level"`
}

// EarningsCluster is a pair of adjacent earnings dates close enough to compound event risk
type EarningsCluster struct {
	DateA   string `json:"date_a"`
	DateB   string `json:"date_b"`
	GapDays int    `json:"gap_days"`
}

// EarningsClusterRisk grades how many adjacent earnings pairs fall inside the cluster window
type EarningsClusterRisk struct {
	Level    Level             `json:"level"`
	Count    int               `json:"count"`
	Clusters []EarningsCluster `json:"clusters"`
}

// GammaConvexity reports the expiry bucket holding the largest share of |gamma|
type GammaConvexity struct {
	Level          Level    `json:"level"`
	DominantBucket string   `json:"dominant_bucket,omitempty"`
	DominantPct    *float64 `json:"dominant_pct"`
}

// PortfolioSnapshot aggregates a position list
type PortfolioSnapshot struct {
	Delta                    float64                  `json:"portfolio_delta"`
	Vega                     float64                  `json:"portfolio_vega"`
	Gamma                    float64                  `json:"portfolio_gamma"`
	TotalNotional            float64                  `json:"total_notional"`
	SectorConcentration      map[string]float64       `json:"sector_concentration"`
	VegaBuckets              map[string]float64       `json:"vega_buckets"`
	GammaBuckets             map[string]float64       `json:"gamma_buckets"`
	CorrelationConcentration CorrelationConcentration `json:"correlation_concentration"`
	EarningsCluster          EarningsClusterRisk      `json:"earnings_cluster_detail"`
	GammaConvexity           GammaConvexity           `json:"gamma_convexity"`
	Timestamp                time.Time                `json:"timestamp"`
}

// EarningsClusterLevel mirrors EarningsCluster.Level for flat consumers
func (s *PortfolioSnapshot) EarningsClusterLevel() Level {
	return s.EarningsCluster.Level
}

// EmptySnapshot is the zero, low-everywhere snapshot for an empty book
func EmptySnapshot(now time.Time) *PortfolioSnapshot {
	return &PortfolioSnapshot{
		SectorConcentration:      map[string]float64{},
		VegaBuckets:              map[string]float64{},
		GammaBuckets:             map[string]float64{},
		CorrelationConcentration: CorrelationConcentration{Level: LevelLow},
		EarningsCluster:          EarningsClusterRisk{Level: LevelLow, Clusters: []EarningsCluster{}},
		GammaConvexity:           GammaConvexity{Level: LevelLow},
		Timestamp:                now,
	}
}

// TicketVerdict is the before/after risk evaluation of one proposed ticket
type TicketVerdict struct {
	DeltaBefore         float64            `json:"portfolio_delta_before"`
	VegaBefore          float64            `json:"portfolio_vega_before"`
	GammaBefore         float64            `json:"portfolio_gamma_before"`
	DeltaAfter          float64            `json:"portfolio_delta_after"`
	VegaAfter           float64            `json:"portfolio_vega_after"`
	GammaAfter          float64            `json:"portfolio_gamma_after"`
	MaxLossTrade        float64            `json:"max_loss_trade"`
	MaxLossWeek         float64            `json:"max_loss_week"`
	SectorConcentration map[string]float64 `json:"sector_concentration"`
	RiskLimitsPass      bool               `json:"risk_limits_pass"`
	Reasons             []string           `json:"reasons"`
}

// Limits are the hard per-trade and weekly caps, in percent of equity
type Limits struct {
	MaxTradeRiskPct   float64
	MaxWeeklyLossPct  float64
	KillSwitchPct     float64
	ClusterWindowDays int
}

// DefaultLimits returns the stock 1.5% / 5% / 3% limits with a three-day cluster window
func DefaultLimits() Limits {
	return Limits{
		MaxTradeRiskPct:   1.5,
		MaxWeeklyLossPct:  5.0,
		KillSwitchPct:     3.0,
		ClusterWindowDays: 3,
	}
}
