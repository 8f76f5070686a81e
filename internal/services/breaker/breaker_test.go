package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/regime"
	"tradegate/pkg/logger"
)

var fixedNow = time.Date(2026, time.March, 17, 14, 30, 0, 0, time.UTC)

func newTestBreaker() *Breaker {
	return New(DefaultThresholds(), logger.NewNop(), WithClock(func() time.Time { return fixedNow }))
}

func TestCheckAllClean(t *testing.T) {
	res := newTestBreaker().CheckAll(Input{WeeklyPnLPct: 1.2, VIXPercentile: 40, VIXDayChangePct: 3})

	assert.True(t, res.TradingAllowed)
	assert.Empty(t, res.Reasons)
	assert.NotNil(t, res.Reasons)
}

func TestWeeklyDrawdownBoundary(t *testing.T) {
	b := newTestBreaker()

	assert.True(t, b.CheckAll(Input{WeeklyPnLPct: -5.0}).TradingAllowed, "exactly at the limit is allowed")

	res := b.CheckAll(Input{WeeklyPnLPct: -5.01})
	assert.False(t, res.TradingAllowed)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, "Weekly P&L drawdown (-5.01%) exceeds limit (5.00%)", res.Reasons[0])
}

func TestVIXChecks(t *testing.T) {
	b := newTestBreaker()

	tests := []struct {
		name       string
		percentile float64
		change     float64
		allowed    bool
	}{
		{"percentile below", 79.9, 0, true},
		{"percentile at limit", 80, 0, false},
		{"spike at limit", 10, 20, true},
		{"spike above limit", 10, 20.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.CheckAll(Input{VIXPercentile: tt.percentile, VIXDayChangePct: tt.change})
			assert.Equal(t, tt.allowed, res.TradingAllowed)
		})
	}
}

func TestMacroBlackout(t *testing.T) {
	b := newTestBreaker()

	tests := []struct {
		name    string
		date    string
		blocked bool
	}{
		{"event today", "2026-03-17", true},
		{"event tomorrow", "2026-03-18", true},
		{"event yesterday", "2026-03-16", true},
		{"event in two days", "2026-03-19", false},
		{"timestamped event tomorrow", "2026-03-18T18:00:00Z", true},
		{"garbage date", "soon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.CheckAll(Input{CalendarEvents: []macro.Event{{Name: "FOMC", Date: tt.date}}})
			assert.Equal(t, !tt.blocked, res.TradingAllowed)
			if tt.blocked {
				assert.Contains(t, res.Reasons[0], "blackout")
				assert.Contains(t, res.Reasons[0], "FOMC")
			}
		})
	}
}

func TestExternalRegimeFlags(t *testing.T) {
	b := newTestBreaker()
	stressed := regime.VolStressed
	expanding := regime.VolExpanding
	elevated := true
	calm := false

	res := b.CheckAll(Input{RegimeLabel: &stressed, MacroProximityElevated: &elevated})
	assert.False(t, res.TradingAllowed)
	assert.Equal(t, []string{"Regime is stressed, no trading", "Macro proximity elevated, no trading"}, res.Reasons)

	res = b.CheckAll(Input{RegimeLabel: &expanding, MacroProximityElevated: &calm})
	assert.True(t, res.TradingAllowed)
}

func TestAllReasonsAccumulate(t *testing.T) {
	stressed := regime.VolStressed
	elevated := true

	res := newTestBreaker().CheckAll(Input{
		WeeklyPnLPct:           -8,
		VIXPercentile:          95,
		VIXDayChangePct:        31,
		CalendarEvents:         []macro.Event{{Name: "CPI", Date: "2026-03-17"}},
		RegimeLabel:            &stressed,
		MacroProximityElevated: &elevated,
	})

	assert.False(t, res.TradingAllowed)
	assert.Len(t, res.Reasons, 6)
}

func TestCustomThresholds(t *testing.T) {
	b := New(Thresholds{WeeklyDrawdownPct: 2, VIXPercentileLimit: 90, VIXSpikePct: 50, MacroBlackoutDays: 0}, logger.NewNop(),
		WithClock(func() time.Time { return fixedNow }))

	assert.False(t, b.CheckAll(Input{WeeklyPnLPct: -2.5}).TradingAllowed)
	assert.True(t, b.CheckAll(Input{VIXPercentile: 85}).TradingAllowed)
	assert.True(t, b.CheckAll(Input{CalendarEvents: []macro.Event{{Name: "NFP", Date: "2026-03-18"}}}).TradingAllowed)
}
