package regimeservice

import (
	"context"
	"fmt"
	"time"

	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/regime"
	"tradegate/internal/metrics"
)

// ShouldTrade applies the hard regime gate to snap, classifying first when snap is nil.
// Every rule that fires adds a reason; trading is allowed only when none fire.
func (c *Classifier) ShouldTrade(ctx context.Context, snap *regime.Snapshot) (regime.TradeGate, error) {
	if snap == nil {
		var err error
		if snap, err = c.Classify(ctx); err != nil {
			return regime.TradeGate{}, err
		}
	}

	reasons := []string{}
	vol := snap.Details.Volatility

	if snap.VolRegime == regime.VolStressed {
		reasons = append(reasons, "Volatility regime is stressed")
	}
	if snap.MacroElevated() {
		reasons = append(reasons, "Macro-event proximity is elevated")
	}
	if vol.VIXChangePct > c.cfg.VIXSpikePct {
		reasons = append(reasons, fmt.Sprintf("VIX spiked %.2f%% day over day (limit %.2f%%)", vol.VIXChangePct, c.cfg.VIXSpikePct))
	}
	if vol.VIXCurrent > c.cfg.VIXCeiling {
		reasons = append(reasons, fmt.Sprintf("VIX at %.2f is above hard ceiling %.2f", vol.VIXCurrent, c.cfg.VIXCeiling))
	}
	if ev, ok := c.upcomingEvent(ctx); ok {
		reasons = append(reasons, fmt.Sprintf("%s on %s within %s", ev.Name, ev.Date, formatWindow(c.cfg.MacroEventWindow)))
	}
	if rv := snap.Details.RealizedVol; !rv.Insufficient && rv.Ratio > c.cfg.ATRAccelerationRatio {
		reasons = append(reasons, fmt.Sprintf("ATR acceleration: 5d/20d ratio %.2f exceeds %.2f", rv.Ratio, c.cfg.ATRAccelerationRatio))
	}

	gate := regime.TradeGate{Allowed: len(reasons) == 0, Reasons: reasons}
	metrics.RecordGate("regime", gate.Allowed)
	if !gate.Allowed {
		c.log.Warnw("regime gate blocked trading", "reasons", reasons)
		c.log.Breadcrumb(ctx, "regime gate blocked", map[string]interface{}{"reasons": reasons})
	}
	return gate, nil
}

// ShouldTradeNow classifies the current market and gates on the result
func (c *Classifier) ShouldTradeNow(ctx context.Context) (regime.TradeGate, error) {
	return c.ShouldTrade(ctx, nil)
}

// upcomingEvent returns the first calendar event starting within the configured window.
// An all-day event stays in scope until its day has ended.
func (c *Classifier) upcomingEvent(ctx context.Context) (macro.Event, bool) {
	now := c.now().UTC()
	for _, ev := range c.events(ctx, now) {
		at, ok := ev.At()
		if !ok {
			continue
		}
		until := at.Sub(now)
		if until > c.cfg.MacroEventWindow {
			continue
		}
		if until >= 0 || (ev.AllDay() && until > -24*time.Hour) {
			return ev, true
		}
	}
	return macro.Event{}, false
}

// events merges the configured calendar with the provider's feed. A provider
// failure degrades to the configured calendar alone.
func (c *Classifier) events(ctx context.Context, now time.Time) []macro.Event {
	var out []macro.Event
	if c.calendar != nil {
		out = append(out, c.calendar.Events(now)...)
	}
	fed, err := c.provider.CalendarEvents(ctx)
	if err != nil {
		c.log.Warnw("macro calendar unavailable, continuing without it", "error", err)
		return out
	}
	return append(out, fed...)
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return d.String()
}
