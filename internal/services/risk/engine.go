package riskservice

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradegate/internal/adapters/config"
	"tradegate/internal/domain/risk"
	"tradegate/internal/indicators"
	"tradegate/internal/metrics"
	"tradegate/pkg/logger"
)

const (
	corrLowLevel  = 0.4
	corrHighLevel = 0.7

	convexityHighPct   = 70.0
	convexityMediumPct = 50.0

	defaultCorrelationWindow = 60
)

var hundred = decimal.NewFromInt(100)

// Engine aggregates positions into portfolio risk and checks tickets against hard limits.
// It keeps no state between calls.
type Engine struct {
	sectors    risk.SectorLookup
	returns    risk.ReturnsSource
	limits     risk.Limits
	corrWindow int
	now        func() time.Time
	log        *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the snapshot timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCorrelationWindow sets how many trailing daily returns feed the correlation estimate
func WithCorrelationWindow(n int) Option {
	return func(e *Engine) {
		if n > 1 {
			e.corrWindow = n
		}
	}
}

// NewEngine creates a risk engine. returns may be nil, in which case correlation is reported as unknown.
func NewEngine(sectors risk.SectorLookup, returns risk.ReturnsSource, limits risk.Limits, log *logger.Logger, opts ...Option) *Engine {
	if sectors == nil {
		sectors = risk.DefaultSectors
	}
	e := &Engine{
		sectors:    sectors,
		returns:    returns,
		limits:     limits,
		corrWindow: defaultCorrelationWindow,
		now:        time.Now,
		log:        log.Component("risk_engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LimitsFromConfig maps the env config section onto risk limits
func LimitsFromConfig(cfg config.RiskConfig) risk.Limits {
	return risk.Limits{
		MaxTradeRiskPct:   cfg.MaxTradeRiskPct,
		MaxWeeklyLossPct:  cfg.MaxWeeklyLossPct,
		KillSwitchPct:     cfg.KillSwitchPct,
		ClusterWindowDays: cfg.ClusterWindowDays,
	}
}

// Limits returns the configured hard limits
func (e *Engine) Limits() risk.Limits {
	return e.limits
}

// PortfolioRisk sums Greeks and notional across positions and grades sector,
// correlation, earnings and gamma concentration. An empty book yields EmptySnapshot.
func (e *Engine) PortfolioRisk(ctx context.Context, positions []risk.Position) *risk.PortfolioSnapshot {
	now := e.now().UTC()
	if len(positions) == 0 {
		return risk.EmptySnapshot(now)
	}

	var delta, vega, gamma, total float64
	sectorNotional := map[string]float64{}
	vegaBuckets := map[string]float64{}
	gammaBuckets := map[string]float64{}
	var earnings []time.Time
	seen := map[string]bool{}
	var symbols []string

	for _, p := range positions {
		notional := math.Abs(p.Notional)
		delta += p.Delta
		vega += p.Vega
		gamma += p.Gamma
		total += notional

		sectorNotional[e.sectors.Sector(p.Symbol)] += notional
		vegaBuckets[p.Bucket()] += p.Vega
		gammaBuckets[p.Bucket()] += p.Gamma

		if p.EarningsDate != nil {
			earnings = append(earnings, *p.EarningsDate)
		}
		if p.Symbol != "" && !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}

	sectors := map[string]float64{}
	if total > 0 {
		for s, v := range sectorNotional {
			sectors[s] = indicators.Round(v/total*100, 1)
		}
	}

	return &risk.PortfolioSnapshot{
		Delta:                    indicators.Round(delta, 4),
		Vega:                     indicators.Round(vega, 2),
		Gamma:                    indicators.Round(gamma, 4),
		TotalNotional:            indicators.Round(total, 2),
		SectorConcentration:      sectors,
		VegaBuckets:              vegaBuckets,
		GammaBuckets:             gammaBuckets,
		CorrelationConcentration: e.correlationConcentration(ctx, symbols),
		EarningsCluster:          EarningsClusters(earnings, e.limits.ClusterWindowDays),
		GammaConvexity:           GammaConcentration(gammaBuckets),
		Timestamp:                now,
	}
}

func (e *Engine) correlationConcentration(ctx context.Context, symbols []string) risk.CorrelationConcentration {
	res := risk.CorrelationConcentration{Level: risk.LevelUnknown}
	if len(symbols) < 2 {
		res.Level = risk.LevelLow
		return res
	}
	if e.returns == nil {
		return res
	}

	closes, err := e.returns.AlignedCloses(ctx, symbols)
	if err != nil {
		e.log.Warnw("correlation data unavailable", "symbols", symbols, "error", err)
		return res
	}
	if len(closes) < 2 {
		return res
	}

	names := make([]string, 0, len(closes))
	for s := range closes {
		names = append(names, s)
	}
	sort.Strings(names)

	series := make([][]float64, 0, len(names))
	for _, s := range names {
		series = append(series, indicators.Tail(indicators.Returns(closes[s]), e.corrWindow))
	}

	avg, ok := indicators.AvgPairwiseCorrelation(series)
	if !ok {
		return res
	}

	rounded := indicators.Round(avg, 4)
	res.AvgPairwise = &rounded
	switch {
	case avg > corrHighLevel:
		res.Level = risk.LevelHigh
	case avg < corrLowLevel:
		res.Level = risk.LevelLow
	default:
		res.Level = risk.LevelMedium
	}
	return res
}

// EarningsClusters counts adjacent earnings dates at most windowDays apart.
// Three or more clusters is high, one or more medium.
func EarningsClusters(dates []time.Time, windowDays int) risk.EarningsClusterRisk {
	res := risk.EarningsClusterRisk{Level: risk.LevelLow, Count: len(dates), Clusters: []risk.EarningsCluster{}}
	if len(dates) < 2 {
		return res
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for i := 1; i < len(sorted); i++ {
		gap := int(math.Floor(sorted[i].Sub(sorted[i-1]).Hours() / 24))
		if gap <= windowDays {
			res.Clusters = append(res.Clusters, risk.EarningsCluster{
				DateA:   sorted[i-1].Format("2006-01-02"),
				DateB:   sorted[i].Format("2006-01-02"),
				GapDays: gap,
			})
		}
	}

	switch n := len(res.Clusters); {
	case n >= 3:
		res.Level = risk.LevelHigh
	case n >= 1:
		res.Level = risk.LevelMedium
	}
	return res
}

// GammaConcentration finds the expiry bucket with the largest share of total |gamma|
func GammaConcentration(buckets map[string]float64) risk.GammaConvexity {
	res := risk.GammaConvexity{Level: risk.LevelLow}

	total := 0.0
	for _, g := range buckets {
		total += math.Abs(g)
	}
	if total == 0 {
		return res
	}

	names := make([]string, 0, len(buckets))
	for b := range buckets {
		names = append(names, b)
	}
	sort.Strings(names)

	best := -1.0
	for _, b := range names {
		if pct := math.Abs(buckets[b]) / total * 100; pct > best {
			best = pct
			res.DominantBucket = b
		}
	}

	pct := indicators.Round(best, 1)
	res.DominantPct = &pct
	switch {
	case pct > convexityHighPct:
		res.Level = risk.LevelHigh
	case pct > convexityMediumPct:
		res.Level = risk.LevelMedium
	}
	return res
}

// TicketRiskInput is everything EvaluateTicketRisk needs about the book and the proposed trade
type TicketRiskInput struct {
	MaxLoss                 float64
	Position                risk.Position
	Existing                []risk.Position
	Equity                  float64
	WeeklyRealizedPnL       float64
	ExistingWeeklyMaxLosses float64
}

// EvaluateTicketRisk compares the book before and after the ticket and applies the
// per-trade, weekly and kill-switch limits. All three are skipped when equity is not positive.
func (e *Engine) EvaluateTicketRisk(ctx context.Context, in TicketRiskInput) *risk.TicketVerdict {
	before := e.PortfolioRisk(ctx, in.Existing)

	after := make([]risk.Position, 0, len(in.Existing)+1)
	after = append(after, in.Existing...)
	after = append(after, in.Position)
	afterSnap := e.PortfolioRisk(ctx, after)

	maxLossTrade := decimal.NewFromFloat(in.MaxLoss)
	maxLossWeek := decimal.NewFromFloat(in.ExistingWeeklyMaxLosses).Add(maxLossTrade)
	reasons := e.limitBreaches(maxLossTrade, maxLossWeek, in.Equity, in.WeeklyRealizedPnL)

	verdict := &risk.TicketVerdict{
		DeltaBefore:         before.Delta,
		VegaBefore:          before.Vega,
		GammaBefore:         before.Gamma,
		DeltaAfter:          afterSnap.Delta,
		VegaAfter:           afterSnap.Vega,
		GammaAfter:          afterSnap.Gamma,
		MaxLossTrade:        maxLossTrade.Round(2).InexactFloat64(),
		MaxLossWeek:         maxLossWeek.Round(2).InexactFloat64(),
		SectorConcentration: afterSnap.SectorConcentration,
		RiskLimitsPass:      len(reasons) == 0,
		Reasons:             reasons,
	}

	metrics.RecordGate("risk", verdict.RiskLimitsPass)
	if !verdict.RiskLimitsPass {
		e.log.Infow("ticket breaches risk limits",
			"symbol", in.Position.Symbol,
			"max_loss", verdict.MaxLossTrade,
			"reasons", reasons,
		)
	}
	return verdict
}

func (e *Engine) limitBreaches(maxLossTrade, maxLossWeek decimal.Decimal, equity, weeklyPnL float64) []string {
	reasons := []string{}
	if equity <= 0 {
		return reasons
	}
	eq := decimal.NewFromFloat(equity)

	tradeCap := decimal.NewFromFloat(e.limits.MaxTradeRiskPct)
	if pct := maxLossTrade.Div(eq).Mul(hundred); pct.GreaterThan(tradeCap) {
		reasons = append(reasons, "Trade max loss "+pct.StringFixed(1)+"% exceeds "+tradeCap.StringFixed(1)+"% of equity")
	}

	weekCap := decimal.NewFromFloat(e.limits.MaxWeeklyLossPct)
	if pct := maxLossWeek.Div(eq).Mul(hundred); pct.GreaterThan(weekCap) {
		reasons = append(reasons, "Weekly max loss "+pct.StringFixed(1)+"% exceeds "+weekCap.StringFixed(1)+"% of equity")
	}

	if weeklyPnL < 0 {
		killCap := decimal.NewFromFloat(e.limits.KillSwitchPct)
		if pct := decimal.NewFromFloat(weeklyPnL).Abs().Div(eq).Mul(hundred); pct.GreaterThan(killCap) {
			reasons = append(reasons, "Weekly realized drawdown "+pct.StringFixed(1)+"% exceeds "+killCap.StringFixed(1)+"% kill switch")
		}
	}
	return reasons
}
