package pricing

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/option"
)

func atm(kind option.Kind) option.Inputs {
	return option.Inputs{Spot: 100, Strike: 100, T: 0.5, Sigma: 0.25, Rate: 0.05, Kind: kind}
}

func TestPriceReferenceValues(t *testing.T) {
	e := NewEngine()

	call := e.Greeks(atm(option.KindCall))
	assert.InDelta(t, 8.2600, call.Price, 1e-3)
	assert.InDelta(t, 0.5909, call.Delta, 1e-3)
	assert.InDelta(t, 0.02198, call.Gamma, 1e-4)
	assert.InDelta(t, 0.2747, call.VegaPer1Pct, 1e-3)
	assert.InDelta(t, -0.02578, call.Theta, 1e-4)
	assert.InDelta(t, 0.2541, call.RhoPer1Pct, 1e-3)
	assert.Equal(t, 0.25, call.ImpliedVolatility)

	put := e.Greeks(atm(option.KindPut))
	assert.InDelta(t, 5.7910, put.Price, 1e-3)
	assert.InDelta(t, -0.4091, put.Delta, 1e-3)
	assert.InDelta(t, -0.01242, put.Theta, 1e-4)
	assert.InDelta(t, -0.2335, put.RhoPer1Pct, 1e-3)
}

func TestPriceTwentyVolScenario(t *testing.T) {
	in := atm(option.KindCall)
	in.Sigma = 0.20

	g := NewEngine().Greeks(in)
	assert.InDelta(t, 6.89, g.Price, 0.05)
	assert.InDelta(t, 0.56, g.Delta, 0.05)
}

func TestPutCallParity(t *testing.T) {
	e := NewEngine()

	for _, spot := range []float64{60, 95, 100, 140} {
		for _, q := range []float64{0, 0.02, 0.07} {
			for _, tt := range []float64{0.05, 0.5, 2} {
				t.Run(fmt.Sprintf("S=%v q=%v T=%v", spot, q, tt), func(t *testing.T) {
					in := option.Inputs{Spot: spot, Strike: 100, T: tt, Sigma: 0.3, Rate: 0.04, DividendYield: q, Kind: option.KindCall}
					call := e.Price(in)
					in.Kind = option.KindPut
					put := e.Price(in)

					parity := spot*math.Exp(-q*tt) - 100*math.Exp(-0.04*tt)
					assert.InDelta(t, parity, call-put, 1e-8)
				})
			}
		}
	}
}

func TestDeltaSpread(t *testing.T) {
	e := NewEngine()
	in := option.Inputs{Spot: 105, Strike: 100, T: 0.75, Sigma: 0.35, Rate: 0.03, DividendYield: 0.015, Kind: option.KindCall}
	call := e.Greeks(in)
	in.Kind = option.KindPut
	put := e.Greeks(in)

	assert.InDelta(t, math.Exp(-0.015*0.75), call.Delta-put.Delta, 1e-2)
	assert.Greater(t, call.Gamma, 0.0)
	assert.Greater(t, put.Gamma, 0.0)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
}

func TestGreeksAtExpiry(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name  string
		spot  float64
		kind  option.Kind
		delta float64
		price float64
	}{
		{"call ITM", 110, option.KindCall, 1, 10},
		{"call OTM", 90, option.KindCall, 0, 0},
		{"call ATM", 100, option.KindCall, 0, 0},
		{"put ITM", 90, option.KindPut, -1, 10},
		{"put OTM", 110, option.KindPut, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := e.Greeks(option.Inputs{Spot: tt.spot, Strike: 100, T: 0, Sigma: 0.3, Rate: 0.05, Kind: tt.kind})

			assert.Equal(t, tt.delta, g.Delta)
			assert.Equal(t, tt.price, g.Price)
			assert.Zero(t, g.Gamma)
			assert.Zero(t, g.VegaPer1Pct)
			assert.Zero(t, g.Theta)
			assert.Zero(t, g.RhoPer1Pct)
		})
	}
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	e := NewEngine()

	for _, q := range []float64{0, 0.03} {
		for _, sigma := range []float64{0.05, 0.15, 0.3, 0.6, 1.2, 1.9} {
			for _, kind := range []option.Kind{option.KindCall, option.KindPut} {
				t.Run(fmt.Sprintf("%s q=%v sigma=%v", kind, q, sigma), func(t *testing.T) {
					in := option.Inputs{Spot: 100, Strike: 100, T: 0.5, Sigma: sigma, Rate: 0.05, DividendYield: q, Kind: kind}
					price := e.Price(in)

					in.Sigma = 0
					solved := e.ImpliedVolatility(price, in, IVOptions{InitialGuess: 0.3, Tolerance: 1e-8, MaxIter: 100})
					assert.InDelta(t, sigma, solved, 1e-3)
				})
			}
		}
	}
}

func TestImpliedVolatilityDegenerateVega(t *testing.T) {
	// expired option has no vega, so the initial guess comes back untouched
	in := option.Inputs{Spot: 100, Strike: 90, T: 0, Rate: 0.05, Kind: option.KindCall}
	got := NewEngine().ImpliedVolatility(12, in, DefaultIVOptions())
	assert.Equal(t, 0.3, got)
}

func TestImpliedVolatilityFloorsAtOnePercent(t *testing.T) {
	// a price below the zero-vol value pushes the step negative and must clamp
	in := option.Inputs{Spot: 100, Strike: 100, T: 0.5, Rate: 0.05, Kind: option.KindCall}
	got := NewEngine().ImpliedVolatility(0.5, in, IVOptions{InitialGuess: 0.3, Tolerance: 1e-6, MaxIter: 1})
	assert.Equal(t, 0.01, got)
}

func TestOptionMetrics(t *testing.T) {
	e := NewEngine()

	call := e.OptionMetrics(atm(option.KindCall))
	require.InDelta(t, 8.26, call.Price, 1e-2)
	assert.InDelta(t, 108.26, call.Breakeven, 1e-2)
	assert.Zero(t, call.IntrinsicValue)
	assert.InDelta(t, call.Price, call.TimeValue, 1e-12)
	assert.InDelta(t, 0.5211, call.ProbabilityITM, 1e-3)

	put := e.OptionMetrics(option.Inputs{Spot: 90, Strike: 100, T: 0.25, Sigma: 0.3, Rate: 0.05, Kind: option.KindPut})
	assert.Equal(t, 10.0, put.IntrinsicValue)
	assert.InDelta(t, 100-put.Price, put.Breakeven, 1e-12)
	assert.Greater(t, put.ProbabilityITM, 0.5)
}
