package indicators

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"tradegate/internal/domain/market_data"
	"tradegate/pkg/errors"
)

// TalibData holds bar series in the layout ta-lib expects, oldest first
type TalibData struct {
	High  []float64
	Low   []float64
	Close []float64
}

// PrepareData splits bars into ta-lib input slices. Bars must already be oldest first.
func PrepareData(bars []market_data.Bar) (*TalibData, error) {
	if len(bars) == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "no bars provided")
	}
	data := &TalibData{
		High:  make([]float64, len(bars)),
		Low:   make([]float64, len(bars)),
		Close: make([]float64, len(bars)),
	}
	for i, b := range bars {
		data.High[i] = b.High
		data.Low[i] = b.Low
		data.Close[i] = b.Close
	}
	return data, nil
}

// LastATR returns the most recent Wilder average true range over period bars
func LastATR(data *TalibData, period int) (float64, error) {
	if len(data.Close) <= period {
		return 0, errors.Wrapf(errors.ErrInsufficientData, "ATR(%d) needs more than %d bars, got %d", period, period, len(data.Close))
	}
	values := talib.Atr(data.High, data.Low, data.Close, period)
	return values[len(values)-1], nil
}

// PercentileRank is the share of values strictly below current, times 100
func PercentileRank(values []float64, current float64) float64 {
	if len(values) == 0 {
		return 0
	}
	below := 0
	for _, v := range values {
		if v < current {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}

// SMA is the simple mean of the last n values
func SMA(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return math.NaN()
	}
	return stat.Mean(values[len(values)-n:], nil)
}

// Returns computes simple period-over-period returns, skipping zero denominators
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// StdDev is the sample standard deviation
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// AlignCloses keeps only the dates every series has, returning each series'
// closes on those dates oldest first. Empty series are dropped.
func AlignCloses(series map[string][]market_data.Bar) map[string][]float64 {
	counts := map[time.Time]int{}
	present := 0
	for _, bars := range series {
		if len(bars) == 0 {
			continue
		}
		present++
		seen := map[time.Time]bool{}
		for _, b := range bars {
			d := dayOf(b.Date)
			if !seen[d] {
				seen[d] = true
				counts[d]++
			}
		}
	}

	var common []time.Time
	for d, n := range counts {
		if n == present {
			common = append(common, d)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })

	out := make(map[string][]float64, present)
	for sym, bars := range series {
		if len(bars) == 0 {
			continue
		}
		byDay := make(map[time.Time]float64, len(bars))
		for _, b := range bars {
			byDay[dayOf(b.Date)] = b.Close
		}
		closes := make([]float64, len(common))
		for i, d := range common {
			closes[i] = byDay[d]
		}
		out[sym] = closes
	}
	return out
}

// AvgPairwiseCorrelation is the mean of the upper triangle of the Pearson
// correlation matrix across the given return series. Pairs with an undefined
// correlation (a flat series) are left out. ok is false when no pair qualified.
func AvgPairwiseCorrelation(returns [][]float64) (float64, bool) {
	sum := 0.0
	n := 0
	for i := 0; i < len(returns); i++ {
		for j := i + 1; j < len(returns); j++ {
			if len(returns[i]) != len(returns[j]) || len(returns[i]) < 2 {
				continue
			}
			c := stat.Correlation(returns[i], returns[j], nil)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				continue
			}
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Tail returns the last n values, or all of them when there are fewer
func Tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// Round rounds to the given number of decimals
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
