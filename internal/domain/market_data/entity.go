package market_data

import (
	"slices"
	"time"
)

// Bar is one daily OHLCV candle
type Bar struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Date   time.Time `json:"date" yaml:"date"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Window is a lookback span for history requests
type Window string

const (
	Window1Month  Window = "1mo"
	Window3Months Window = "3mo"
	Window6Months Window = "6mo"
	Window1Year   Window = "1y"
)

// Valid checks if window is valid
func (w Window) Valid() bool {
	switch w {
	case Window1Month, Window3Months, Window6Months, Window1Year:
		return true
	}
	return false
}

// String returns string representation
func (w Window) String() string {
	return string(w)
}

// Days returns the approximate calendar span of the window
func (w Window) Days() int {
	switch w {
	case Window1Month:
		return 31
	case Window3Months:
		return 92
	case Window6Months:
		return 183
	default:
		return 366
	}
}

// OptionContract is one strike on one side of a chain
type OptionContract struct {
	Strike            float64 `json:"strike" yaml:"strike"`
	Bid               float64 `json:"bid" yaml:"bid"`
	Ask               float64 `json:"ask" yaml:"ask"`
	LastPrice         float64 `json:"last_price" yaml:"last_price"`
	Volume            float64 `json:"volume" yaml:"volume"`
	OpenInterest      float64 `json:"open_interest" yaml:"open_interest"`
	ImpliedVolatility float64 `json:"implied_volatility" yaml:"implied_volatility"`
}

// Mid returns the bid/ask midpoint, or last price when the book is empty
func (c OptionContract) Mid() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return c.LastPrice
}

// OptionChain holds the calls and puts listed for one expiry
type OptionChain struct {
	Symbol string           `json:"symbol" yaml:"symbol"`
	Expiry string           `json:"expiry" yaml:"expiry"`
	Calls  []OptionContract `json:"calls" yaml:"calls"`
	Puts   []OptionContract `json:"puts" yaml:"puts"`
}

// Clone returns a deep copy of the chain
func (c *OptionChain) Clone() *OptionChain {
	if c == nil {
		return nil
	}
	out := *c
	out.Calls = slices.Clone(c.Calls)
	out.Puts = slices.Clone(c.Puts)
	return &out
}

// OpenInterest returns the summed call and put open interest
func (c *OptionChain) OpenInterest() (calls, puts float64) {
	for _, k := range c.Calls {
		calls += k.OpenInterest
	}
	for _, k := range c.Puts {
		puts += k.OpenInterest
	}
	return calls, puts
}

// Closes extracts the close series from bars
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
