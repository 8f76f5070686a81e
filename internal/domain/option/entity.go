package option

// Kind is the option right
type Kind string

const (
	KindCall Kind = "call"
	KindPut  Kind = "put"
)

// Valid checks if option kind is valid
func (k Kind) Valid() bool {
	switch k {
	case KindCall, KindPut:
		return true
	}
	return false
}

// String returns string representation
func (k Kind) String() string {
	return string(k)
}

// Inputs are the Black-Scholes-Merton quote inputs.
// T is years to expiry, Sigma, Rate and DividendYield are annualized decimals.
type Inputs struct {
	Spot          float64 `json:"spot"`
	Strike        float64 `json:"strike"`
	T             float64 `json:"t"`
	Sigma         float64 `json:"sigma"`
	Rate          float64 `json:"rate"`
	DividendYield float64 `json:"dividend_yield"`
	Kind          Kind    `json:"kind"`
}

// Expired reports whether the option is at or past expiry
func (in Inputs) Expired() bool {
	return in.T <= 0
}

// Intrinsic returns the exercise value at the current spot
func (in Inputs) Intrinsic() float64 {
	if in.Kind == KindCall {
		return max(in.Spot-in.Strike, 0)
	}
	return max(in.Strike-in.Spot, 0)
}

// Greeks is the full pricing result.
// VegaPer1Pct and RhoPer1Pct are per one percentage point, Theta is per calendar day.
type Greeks struct {
	Price             float64 `json:"price"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	VegaPer1Pct       float64 `json:"vega"`
	Theta             float64 `json:"theta"`
	RhoPer1Pct        float64 `json:"rho"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}

// Metrics extends Greeks with the derived quantities a trader reads off a quote
type Metrics struct {
	Greeks
	ProbabilityITM float64 `json:"probability_itm"`
	Breakeven      float64 `json:"breakeven_price"`
	IntrinsicValue float64 `json:"intrinsic_value"`
	TimeValue      float64 `json:"time_value"`
}
