package regime

import "time"

// VolRegime classifies VIX against its trailing year
type VolRegime string

const (
	VolCompressed VolRegime = "compressed"
	VolExpanding  VolRegime = "expanding"
	VolStressed   VolRegime = "stressed"
)

// Valid checks if volatility regime is valid
func (v VolRegime) Valid() bool {
	switch v {
	case VolCompressed, VolExpanding, VolStressed:
		return true
	}
	return false
}

// String returns string representation
func (v VolRegime) String() string {
	return string(v)
}

// CorrelationRegime classifies average sector cross-correlation
type CorrelationRegime string

const (
	CorrelationLow    CorrelationRegime = "low"
	CorrelationMedium CorrelationRegime = "medium"
	CorrelationHigh   CorrelationRegime = "high"
)

// Valid checks if correlation regime is valid
func (c CorrelationRegime) Valid() bool {
	switch c {
	case CorrelationLow, CorrelationMedium, CorrelationHigh:
		return true
	}
	return false
}

// String returns string representation
func (c CorrelationRegime) String() string {
	return string(c)
}

// GammaDirection is the inferred dealer gamma posture
type GammaDirection string

const (
	GammaPositive GammaDirection = "positive"
	GammaNeutral  GammaDirection = "neutral"
	GammaNegative GammaDirection = "negative"
)

// Valid checks if gamma direction is valid
func (g GammaDirection) Valid() bool {
	switch g {
	case GammaPositive, GammaNeutral, GammaNegative:
		return true
	}
	return false
}

// String returns string representation
func (g GammaDirection) String() string {
	return string(g)
}

// MacroProximity flags unusual stress in rates, gold and dollar proxies
type MacroProximity string

const (
	MacroNormal   MacroProximity = "normal"
	MacroElevated MacroProximity = "elevated"
)

// String returns string representation
func (m MacroProximity) String() string {
	return string(m)
}

// RiskAppetite is the combined risk-on/off reading
type RiskAppetite string

const (
	RiskOn      RiskAppetite = "risk_on"
	RiskNeutral RiskAppetite = "neutral"
	RiskOff     RiskAppetite = "risk_off"
)

// Valid checks if risk appetite is valid
func (r RiskAppetite) Valid() bool {
	switch r {
	case RiskOn, RiskNeutral, RiskOff:
		return true
	}
	return false
}

// String returns string representation
func (r RiskAppetite) String() string {
	return string(r)
}

// VolatilityDetail backs the volatility regime label.
// Insufficient is set when the VIX series was too short or unavailable.
type VolatilityDetail struct {
	Regime        VolRegime `json:"regime"`
	VIXCurrent    float64   `json:"vix_current"`
	VIXPrevious   float64   `json:"vix_previous"`
	VIXChangePct  float64   `json:"vix_change_pct"`
	VIXPercentile float64   `json:"vix_percentile"`
	VIXSMA20      float64   `json:"vix_sma20"`
	Observations  int       `json:"observations"`
	Insufficient  bool      `json:"insufficient_data,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// CorrelationDetail backs the correlation regime label
type CorrelationDetail struct {
	Regime         CorrelationRegime `json:"regime"`
	AvgCorrelation float64           `json:"avg_correlation"`
	Symbols        []string          `json:"symbols,omitempty"`
	Insufficient   bool              `json:"insufficient_data,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// GammaDetail backs the gamma direction label
type GammaDetail struct {
	Direction    GammaDirection `json:"direction"`
	PutCallRatio float64        `json:"put_call_oi_ratio"`
	Expiry       string         `json:"expiry,omitempty"`
	Insufficient bool           `json:"insufficient_data,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// MacroDetail backs the macro proximity flag
type MacroDetail struct {
	Proximity    MacroProximity `json:"proximity"`
	Signals      []string       `json:"signals"`
	Insufficient bool           `json:"insufficient_data,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// RealizedVolDetail compares short and long average true range on the index
type RealizedVolDetail struct {
	ATRShort     float64 `json:"atr_short"`
	ATRLong      float64 `json:"atr_long"`
	Ratio        float64 `json:"atr_ratio"`
	Insufficient bool    `json:"insufficient_data,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Details keeps the raw sub-signal values behind a snapshot
type Details struct {
	Volatility  VolatilityDetail  `json:"volatility"`
	Correlation CorrelationDetail `json:"correlation"`
	Gamma       GammaDetail       `json:"gamma"`
	Macro       MacroDetail       `json:"macro"`
	RealizedVol RealizedVolDetail `json:"realized_vol"`
}

// Snapshot is one classification of the market
type Snapshot struct {
	VolRegime         VolRegime         `json:"vol_regime"`
	CorrelationRegime CorrelationRegime `json:"correlation_regime"`
	RiskAppetite      RiskAppetite      `json:"risk_appetite"`
	Details           Details           `json:"details"`
	Timestamp         time.Time         `json:"timestamp"`
}

// MacroElevated reports whether the macro proximity flag is raised
func (s *Snapshot) MacroElevated() bool {
	return s.Details.Macro.Proximity == MacroElevated
}

// TradeGate is the hard regime gate decision
type TradeGate struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons"`
}
