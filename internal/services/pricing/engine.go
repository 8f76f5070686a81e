package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"tradegate/internal/domain/option"
	"tradegate/internal/metrics"
)

const daysPerYear = 365.0

// IVOptions tunes the implied volatility solver
type IVOptions struct {
	InitialGuess float64
	Tolerance    float64
	MaxIter      int
}

// DefaultIVOptions starts at 30% vol, stops within 1e-4 of the market price, and gives up after 100 steps
func DefaultIVOptions() IVOptions {
	return IVOptions{InitialGuess: 0.3, Tolerance: 1e-4, MaxIter: 100}
}

// Engine prices European options under Black-Scholes-Merton with a continuous dividend yield.
// Callers guarantee Sigma > 0 and T >= 0; the engine does not validate inputs.
type Engine struct {
	norm distuv.Normal
}

// NewEngine creates a pricing engine
func NewEngine() *Engine {
	return &Engine{norm: distuv.UnitNormal}
}

func (e *Engine) cdf(x float64) float64 { return e.norm.CDF(x) }
func (e *Engine) pdf(x float64) float64 { return e.norm.Prob(x) }

// d1d2 uses the dividend-adjusted drift r-q+σ²/2
func d1d2(in option.Inputs) (float64, float64) {
	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate-in.DividendYield+0.5*in.Sigma*in.Sigma)*in.T) / (in.Sigma * sqrtT)
	return d1, d1 - in.Sigma*sqrtT
}

// Price returns the option value, or intrinsic value once expired
func (e *Engine) Price(in option.Inputs) float64 {
	if in.Expired() {
		return in.Intrinsic()
	}

	d1, d2 := d1d2(in)
	discS := in.Spot * math.Exp(-in.DividendYield*in.T)
	discK := in.Strike * math.Exp(-in.Rate*in.T)

	if in.Kind == option.KindCall {
		return discS*e.cdf(d1) - discK*e.cdf(d2)
	}
	return discK*e.cdf(-d2) - discS*e.cdf(-d1)
}

// Greeks returns price and sensitivities. Sigma is echoed as ImpliedVolatility.
func (e *Engine) Greeks(in option.Inputs) option.Greeks {
	if in.Expired() {
		return option.Greeks{
			Price:             in.Intrinsic(),
			Delta:             expiredDelta(in),
			ImpliedVolatility: in.Sigma,
		}
	}

	d1, d2 := d1d2(in)
	sqrtT := math.Sqrt(in.T)
	divDisc := math.Exp(-in.DividendYield * in.T)
	rateDisc := math.Exp(-in.Rate * in.T)
	pdfD1 := e.pdf(d1)

	g := option.Greeks{
		Price:             e.Price(in),
		Gamma:             divDisc * pdfD1 / (in.Spot * in.Sigma * sqrtT),
		VegaPer1Pct:       e.rawVega(in, d1) / 100,
		ImpliedVolatility: in.Sigma,
	}

	decay := -in.Spot * divDisc * pdfD1 * in.Sigma / (2 * sqrtT)
	if in.Kind == option.KindCall {
		g.Delta = divDisc * e.cdf(d1)
		g.Theta = (decay +
			in.DividendYield*in.Spot*divDisc*e.cdf(d1) -
			in.Rate*in.Strike*rateDisc*e.cdf(d2)) / daysPerYear
		g.RhoPer1Pct = in.Strike * in.T * rateDisc * e.cdf(d2) / 100
	} else {
		g.Delta = -divDisc * e.cdf(-d1)
		g.Theta = (decay -
			in.DividendYield*in.Spot*divDisc*e.cdf(-d1) +
			in.Rate*in.Strike*rateDisc*e.cdf(-d2)) / daysPerYear
		g.RhoPer1Pct = -in.Strike * in.T * rateDisc * e.cdf(-d2) / 100
	}

	return g
}

func expiredDelta(in option.Inputs) float64 {
	if in.Kind == option.KindCall {
		if in.Spot > in.Strike {
			return 1
		}
		return 0
	}
	if in.Strike > in.Spot {
		return -1
	}
	return 0
}

// rawVega is dPrice/dSigma without the per-1% scaling
func (e *Engine) rawVega(in option.Inputs, d1 float64) float64 {
	return in.Spot * math.Exp(-in.DividendYield*in.T) * e.pdf(d1) * math.Sqrt(in.T)
}

// ImpliedVolatility solves for the sigma that reproduces marketPrice by Newton-Raphson
// on raw vega. in.Sigma is ignored. Non-convergence is not an error: the best
// estimate after opts.MaxIter steps is returned.
func (e *Engine) ImpliedVolatility(marketPrice float64, in option.Inputs, opts IVOptions) float64 {
	sigma := opts.InitialGuess
	iterations := 0
	defer func() { metrics.IVSolverIterations.Observe(float64(iterations)) }()

	for i := 0; i < opts.MaxIter; i++ {
		iterations = i + 1

		in.Sigma = sigma
		diff := marketPrice - e.Price(in)
		if math.Abs(diff) < opts.Tolerance {
			return sigma
		}

		vega := 0.0
		if !in.Expired() {
			d1, _ := d1d2(in)
			vega = e.rawVega(in, d1)
		}
		if vega == 0 {
			return sigma
		}

		sigma += diff / vega
		if sigma <= 0 {
			sigma = 0.01
		}
	}

	return sigma
}

// OptionMetrics adds probability ITM, breakeven and the intrinsic/time value split to Greeks.
// Probability ITM uses the risk-neutral drift r-q-σ²/2.
func (e *Engine) OptionMetrics(in option.Inputs) option.Metrics {
	g := e.Greeks(in)
	intrinsic := in.Intrinsic()

	m := option.Metrics{
		Greeks:         g,
		IntrinsicValue: intrinsic,
		TimeValue:      g.Price - intrinsic,
	}

	if in.Kind == option.KindCall {
		m.Breakeven = in.Strike + g.Price
	} else {
		m.Breakeven = in.Strike - g.Price
	}

	if in.Expired() {
		if intrinsic > 0 {
			m.ProbabilityITM = 1
		}
		return m
	}

	d2 := (math.Log(in.Spot/in.Strike) + (in.Rate-in.DividendYield-0.5*in.Sigma*in.Sigma)*in.T) / (in.Sigma * math.Sqrt(in.T))
	if in.Kind == option.KindCall {
		m.ProbabilityITM = e.cdf(d2)
	} else {
		m.ProbabilityITM = e.cdf(-d2)
	}
	return m
}
