package breaker

import (
	"fmt"
	"math"
	"time"

	"tradegate/internal/adapters/config"
	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/regime"
	"tradegate/internal/metrics"
	"tradegate/pkg/logger"
)

// Thresholds configure the kill switches
type Thresholds struct {
	WeeklyDrawdownPct  float64
	VIXPercentileLimit float64
	VIXSpikePct        float64
	MacroBlackoutDays  int
}

// DefaultThresholds: 5% weekly drawdown, VIX percentile 80, 20% VIX spike, one day either side of an event
func DefaultThresholds() Thresholds {
	return Thresholds{
		WeeklyDrawdownPct:  5.0,
		VIXPercentileLimit: 80.0,
		VIXSpikePct:        20.0,
		MacroBlackoutDays:  1,
	}
}

// ThresholdsFromConfig maps the env config section onto Thresholds
func ThresholdsFromConfig(cfg config.CircuitBreakerConfig) Thresholds {
	return Thresholds{
		WeeklyDrawdownPct:  cfg.WeeklyDrawdownPct,
		VIXPercentileLimit: cfg.VIXPercentileLimit,
		VIXSpikePct:        cfg.VIXSpikePct,
		MacroBlackoutDays:  cfg.MacroBlackoutDays,
	}
}

// Input carries the point-in-time readings the breaker checks.
// RegimeLabel and MacroProximityElevated are optional.
type Input struct {
	WeeklyPnLPct           float64
	VIXPercentile          float64
	VIXDayChangePct        float64
	CalendarEvents         []macro.Event
	RegimeLabel            *regime.VolRegime
	MacroProximityElevated *bool
}

// Result is the combined verdict. Every tripped switch adds a reason.
type Result struct {
	TradingAllowed bool     `json:"trading_allowed"`
	Reasons        []string `json:"reasons"`
}

// Breaker evaluates the independent kill switches
type Breaker struct {
	thresholds Thresholds
	now        func() time.Time
	log        *logger.Logger
}

// Option configures a Breaker
type Option func(*Breaker)

// WithClock overrides the wall clock used for the blackout window
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a circuit breaker
func New(thresholds Thresholds, log *logger.Logger, opts ...Option) *Breaker {
	b := &Breaker{
		thresholds: thresholds,
		now:        time.Now,
		log:        log.Component("circuit_breaker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Thresholds returns the configured limits
func (b *Breaker) Thresholds() Thresholds {
	return b.thresholds
}

// CheckAll runs every switch and collects all reasons
func (b *Breaker) CheckAll(in Input) Result {
	reasons := []string{}
	t := b.thresholds

	if b.WeeklyDrawdownTripped(in.WeeklyPnLPct) {
		reasons = append(reasons, fmt.Sprintf("Weekly P&L drawdown (%.2f%%) exceeds limit (%.2f%%)", in.WeeklyPnLPct, t.WeeklyDrawdownPct))
	}
	if b.VIXPercentileTripped(in.VIXPercentile) {
		reasons = append(reasons, fmt.Sprintf("VIX percentile (%.1f) breaches threshold (%.1f)", in.VIXPercentile, t.VIXPercentileLimit))
	}
	if b.VIXSpikeTripped(in.VIXDayChangePct) {
		reasons = append(reasons, fmt.Sprintf("VIX day-over-day spike (%.2f%%) exceeds limit (%.2f%%)", in.VIXDayChangePct, t.VIXSpikePct))
	}
	if ev, ok := b.MacroBlackout(in.CalendarEvents); ok {
		reasons = append(reasons, fmt.Sprintf("Inside macro-event blackout window (±%d day(s)) around %s on %s", t.MacroBlackoutDays, ev.Name, ev.Date))
	}
	if in.RegimeLabel != nil && *in.RegimeLabel == regime.VolStressed {
		reasons = append(reasons, "Regime is stressed, no trading")
	}
	if in.MacroProximityElevated != nil && *in.MacroProximityElevated {
		reasons = append(reasons, "Macro proximity elevated, no trading")
	}

	allowed := len(reasons) == 0
	metrics.RecordGate("circuit_breaker", allowed)
	if !allowed {
		b.log.Warnw("circuit breaker tripped", "reasons", reasons)
	}

	return Result{TradingAllowed: allowed, Reasons: reasons}
}

// WeeklyDrawdownTripped is strict: a loss exactly at the threshold does not trip
func (b *Breaker) WeeklyDrawdownTripped(weeklyPnLPct float64) bool {
	return weeklyPnLPct < -b.thresholds.WeeklyDrawdownPct
}

// VIXPercentileTripped trips at or above the limit
func (b *Breaker) VIXPercentileTripped(percentile float64) bool {
	return percentile >= b.thresholds.VIXPercentileLimit
}

// VIXSpikeTripped trips strictly above the spike limit
func (b *Breaker) VIXSpikeTripped(dayChangePct float64) bool {
	return dayChangePct > b.thresholds.VIXSpikePct
}

// MacroBlackout returns the first event whose date is within the blackout days of today.
// Events with unparseable dates are skipped.
func (b *Breaker) MacroBlackout(events []macro.Event) (macro.Event, bool) {
	now := b.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, ev := range events {
		day, ok := ev.Day()
		if !ok {
			b.log.Debugw("skipping calendar event with bad date", "event", ev.Name, "date", ev.Date)
			continue
		}
		gap := math.Abs(today.Sub(day).Hours() / 24)
		if int(math.Round(gap)) <= b.thresholds.MacroBlackoutDays {
			return ev, true
		}
	}
	return macro.Event{}, false
}
