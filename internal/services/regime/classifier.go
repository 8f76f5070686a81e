package regimeservice

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradegate/internal/adapters/config"
	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/market_data"
	"tradegate/internal/domain/regime"
	"tradegate/internal/indicators"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

const (
	minVIXObservations   = 20
	minMacroObservations = 10
	correlationWindow    = 20

	volCompressedPctl = 25.0
	volStressedPctl   = 75.0

	corrLowThreshold  = 0.3
	corrHighThreshold = 0.6

	putCallNegative = 1.2
	putCallPositive = 0.8

	macroSpikeRatio = 1.5

	atrShortPeriod = 5
	atrLongPeriod  = 20
)

// Config holds the instrument baskets and hard-gate thresholds
type Config struct {
	SectorETFs           []string
	MacroSymbols         []string
	IndexSymbol          string
	VIXSpikePct          float64
	VIXCeiling           float64
	MacroEventWindow     time.Duration
	ATRAccelerationRatio float64
}

// DefaultConfig uses the nine SPDR sector ETFs, TLT/GLD/UUP as macro proxies and SPY as the index
func DefaultConfig() Config {
	return Config{
		SectorETFs:           []string{"XLK", "XLF", "XLE", "XLV", "XLY", "XLP", "XLI", "XLU", "XLB"},
		MacroSymbols:         []string{"TLT", "GLD", "UUP"},
		IndexSymbol:          "SPY",
		VIXSpikePct:          10,
		VIXCeiling:           35,
		MacroEventWindow:     48 * time.Hour,
		ATRAccelerationRatio: 1.5,
	}
}

// ConfigFromEnv overlays env thresholds on the default baskets
func ConfigFromEnv(cfg config.RegimeConfig) Config {
	c := DefaultConfig()
	c.VIXSpikePct = cfg.VIXSpikePct
	c.VIXCeiling = cfg.VIXCeiling
	c.MacroEventWindow = cfg.MacroEventWindow
	c.ATRAccelerationRatio = cfg.ATRAccelerationRatio
	return c
}

// Classifier combines VIX percentile, sector correlation, dealer gamma and macro
// stress into a regime snapshot and a hard trade gate. It holds no state between calls.
type Classifier struct {
	provider market_data.Provider
	calendar macro.Calendar
	cfg      Config
	now      func() time.Time
	log      *logger.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithCalendar sets the macro calendar consulted by the trade gate
func WithCalendar(cal macro.Calendar) Option {
	return func(c *Classifier) { c.calendar = cal }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier creates a regime classifier over a market data provider
func NewClassifier(provider market_data.Provider, cfg Config, log *logger.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		log:      log.Component("regime_classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs every sub-signal concurrently. A failing sub-signal is logged and
// falls back to its neutral default with Insufficient set; it never fails the snapshot.
// The only error is a cancelled context.
func (c *Classifier) Classify(ctx context.Context) (*regime.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		vol      regime.VolatilityDetail
		corr     regime.CorrelationDetail
		gamma    regime.GammaDetail
		macroDet regime.MacroDetail
		realized regime.RealizedVolDetail
	)

	wg.Add(5)
	go func() { defer wg.Done(); vol = c.ClassifyVolatility(ctx) }()
	go func() { defer wg.Done(); corr = c.ClassifyCorrelation(ctx) }()
	go func() { defer wg.Done(); gamma = c.EstimateGammaDirection(ctx) }()
	go func() { defer wg.Done(); macroDet = c.AssessMacroProximity(ctx) }()
	go func() { defer wg.Done(); realized = c.RealizedVolatility(ctx) }()
	wg.Wait()

	snap := &regime.Snapshot{
		VolRegime:         vol.Regime,
		CorrelationRegime: corr.Regime,
		RiskAppetite:      RiskAppetite(vol.Regime, corr.Regime, gamma.Direction, macroDet.Proximity == regime.MacroElevated),
		Details: regime.Details{
			Volatility:  vol,
			Correlation: corr,
			Gamma:       gamma,
			Macro:       macroDet,
			RealizedVol: realized,
		},
		Timestamp: c.now().UTC(),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	publish(snap)
	c.log.Infow("regime classified",
		"vol_regime", snap.VolRegime,
		"correlation_regime", snap.CorrelationRegime,
		"risk_appetite", snap.RiskAppetite,
		"vix", vol.VIXCurrent,
		"vix_percentile", vol.VIXPercentile,
	)
	return snap, nil
}

func publish(snap *regime.Snapshot) {
	metrics.RegimeVIXPercentile.Set(snap.Details.Volatility.VIXPercentile)
	metrics.RegimeAvgCorrelation.Set(snap.Details.Correlation.AvgCorrelation)
	metrics.SetRegimeLabel("vol", snap.VolRegime.String(), []string{"compressed", "expanding", "stressed"})
	metrics.SetRegimeLabel("correlation", snap.CorrelationRegime.String(), []string{"low", "medium", "high"})
	metrics.SetRegimeLabel("risk_appetite", snap.RiskAppetite.String(), []string{"risk_on", "neutral", "risk_off"})
}

// ClassifyVolatility ranks the latest VIX close within its trailing year
func (c *Classifier) ClassifyVolatility(ctx context.Context) regime.VolatilityDetail {
	res := regime.VolatilityDetail{Regime: regime.VolExpanding}

	bars, err := c.provider.VIXHistory(ctx, market_data.Window1Year)
	if err != nil {
		c.signalFailed("volatility", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	closes := market_data.Closes(bars)
	res.Observations = len(closes)
	if len(closes) < minVIXObservations {
		c.log.Warnw("not enough VIX history", "observations", len(closes), "required", minVIXObservations)
		metrics.SubSignalFailures.WithLabelValues("volatility").Inc()
		res.Insufficient = true
		return res
	}

	current := closes[len(closes)-1]
	previous := closes[len(closes)-2]
	percentile := indicators.PercentileRank(closes, current)

	res.VIXCurrent = indicators.Round(current, 2)
	res.VIXPrevious = indicators.Round(previous, 2)
	if previous > 0 {
		res.VIXChangePct = indicators.Round((current-previous)/previous*100, 2)
	}
	res.VIXPercentile = indicators.Round(percentile, 1)
	res.VIXSMA20 = indicators.Round(indicators.SMA(closes, 20), 2)

	switch {
	case percentile <= volCompressedPctl:
		res.Regime = regime.VolCompressed
	case percentile >= volStressedPctl:
		res.Regime = regime.VolStressed
	default:
		res.Regime = regime.VolExpanding
	}
	return res
}

// ClassifyCorrelation averages the pairwise correlation of the last 20 daily returns across the sector basket
func (c *Classifier) ClassifyCorrelation(ctx context.Context) regime.CorrelationDetail {
	res := regime.CorrelationDetail{Regime: regime.CorrelationMedium}

	series := make(map[string][]market_data.Bar, len(c.cfg.SectorETFs))
	for _, sym := range c.cfg.SectorETFs {
		bars, err := c.provider.History(ctx, sym, market_data.Window3Months)
		if err != nil {
			c.log.Debugw("sector history unavailable", "symbol", sym, "error", err)
			continue
		}
		series[sym] = bars
	}

	aligned := indicators.AlignCloses(series)
	if len(aligned) < 2 {
		err := errors.Wrapf(errors.ErrInsufficientData, "%d sector series available", len(aligned))
		c.signalFailed("correlation", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	symbols := make([]string, 0, len(aligned))
	for sym := range aligned {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	returns := make([][]float64, 0, len(symbols))
	for _, sym := range symbols {
		r := indicators.Returns(aligned[sym])
		if len(r) < correlationWindow {
			err := errors.Wrapf(errors.ErrInsufficientData, "%d aligned returns, need %d", len(r), correlationWindow)
			c.signalFailed("correlation", err)
			res.Insufficient = true
			res.Error = err.Error()
			return res
		}
		returns = append(returns, indicators.Tail(r, correlationWindow))
	}

	avg, ok := indicators.AvgPairwiseCorrelation(returns)
	if !ok {
		err := errors.Wrap(errors.ErrInsufficientData, "no defined sector correlations")
		c.signalFailed("correlation", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	res.AvgCorrelation = indicators.Round(avg, 4)
	res.Symbols = symbols
	switch {
	case avg < corrLowThreshold:
		res.Regime = regime.CorrelationLow
	case avg > corrHighThreshold:
		res.Regime = regime.CorrelationHigh
	default:
		res.Regime = regime.CorrelationMedium
	}
	return res
}

// EstimateGammaDirection infers dealer gamma from the front expiry put/call open interest ratio
func (c *Classifier) EstimateGammaDirection(ctx context.Context) regime.GammaDetail {
	res := regime.GammaDetail{Direction: regime.GammaNeutral}

	expirations, err := c.provider.Expirations(ctx, c.cfg.IndexSymbol)
	if err == nil && len(expirations) == 0 {
		err = errors.ErrNoExpirations
	}
	if err != nil {
		c.signalFailed("gamma", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	chain, err := c.provider.OptionChain(ctx, c.cfg.IndexSymbol, expirations[0])
	if err != nil {
		c.signalFailed("gamma", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}
	res.Expiry = chain.Expiry

	callOI, putOI := chain.OpenInterest()
	if callOI <= 0 {
		res.Insufficient = true
		return res
	}

	ratio := putOI / callOI
	res.PutCallRatio = indicators.Round(ratio, 4)
	switch {
	case ratio > putCallNegative:
		res.Direction = regime.GammaNegative
	case ratio < putCallPositive:
		res.Direction = regime.GammaPositive
	}
	return res
}

// AssessMacroProximity flags an instrument whose last five returns are more than
// 1.5x as volatile as its full month
func (c *Classifier) AssessMacroProximity(ctx context.Context) regime.MacroDetail {
	res := regime.MacroDetail{Proximity: regime.MacroNormal, Signals: []string{}}
	usable := 0

	for _, sym := range c.cfg.MacroSymbols {
		bars, err := c.provider.History(ctx, sym, market_data.Window1Month)
		if err != nil {
			c.log.Warnw("macro proxy history unavailable", "symbol", sym, "error", err)
			continue
		}
		if len(bars) < minMacroObservations {
			continue
		}
		usable++

		returns := indicators.Returns(market_data.Closes(bars))
		recent := indicators.StdDev(indicators.Tail(returns, 5))
		full := indicators.StdDev(returns)
		if full > 0 && recent/full > macroSpikeRatio {
			res.Proximity = regime.MacroElevated
			res.Signals = append(res.Signals, fmt.Sprintf("%s volatility spike", sym))
		}
	}

	if usable == 0 {
		metrics.SubSignalFailures.WithLabelValues("macro").Inc()
		res.Insufficient = true
	}
	return res
}

// RealizedVolatility compares 5-day and 20-day average true range on the index
func (c *Classifier) RealizedVolatility(ctx context.Context) regime.RealizedVolDetail {
	var res regime.RealizedVolDetail

	bars, err := c.provider.History(ctx, c.cfg.IndexSymbol, market_data.Window3Months)
	if err != nil {
		c.signalFailed("realized_vol", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	data, err := indicators.PrepareData(bars)
	if err == nil {
		res.ATRShort, err = indicators.LastATR(data, atrShortPeriod)
	}
	if err == nil {
		res.ATRLong, err = indicators.LastATR(data, atrLongPeriod)
	}
	if err != nil {
		c.signalFailed("realized_vol", err)
		res.Insufficient = true
		res.Error = err.Error()
		return res
	}

	if res.ATRLong > 0 {
		res.Ratio = indicators.Round(res.ATRShort/res.ATRLong, 3)
	}
	res.ATRShort = indicators.Round(res.ATRShort, 4)
	res.ATRLong = indicators.Round(res.ATRLong, 4)
	return res
}

func (c *Classifier) signalFailed(signal string, err error) {
	metrics.SubSignalFailures.WithLabelValues(signal).Inc()
	c.log.Warnw("regime sub-signal defaulted", "signal", signal, "error", err)
}

// RiskAppetite tallies fixed integer contributions per sub-signal. Three or more
// risk-off points wins, then three or more risk-on points; anything else is neutral.
func RiskAppetite(vol regime.VolRegime, corr regime.CorrelationRegime, gamma regime.GammaDirection, macroElevated bool) regime.RiskAppetite {
	off, on := 0, 0

	switch vol {
	case regime.VolStressed:
		off += 2
	case regime.VolCompressed:
		on += 2
	}
	switch corr {
	case regime.CorrelationHigh:
		off++
	case regime.CorrelationLow:
		on++
	}
	switch gamma {
	case regime.GammaNegative:
		off++
	case regime.GammaPositive:
		on++
	}
	if macroElevated {
		off++
	}

	switch {
	case off >= 3:
		return regime.RiskOff
	case on >= 3:
		return regime.RiskOn
	default:
		return regime.RiskNeutral
	}
}
