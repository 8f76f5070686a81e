package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/market_data"
	"tradegate/pkg/errors"
)

func day(d int) time.Time {
	return time.Date(2026, time.January, 1, 16, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestPercentileRank(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18}

	assert.Equal(t, 0.0, PercentileRank(values, 10))
	assert.Equal(t, 80.0, PercentileRank(values, 18))
	assert.Equal(t, 40.0, PercentileRank(values, 13))
	assert.Equal(t, 0.0, PercentileRank(nil, 5))
}

func TestSMAAndStdDev(t *testing.T) {
	assert.Equal(t, 3.0, SMA([]float64{100, 2, 3, 4}, 3))
	assert.True(t, math.IsNaN(SMA([]float64{1}, 3)))
	assert.InDelta(t, 1.5811, StdDev([]float64{1, 2, 3, 4, 5}), 1e-4)
	assert.Zero(t, StdDev([]float64{7}))
}

func TestReturns(t *testing.T) {
	r := Returns([]float64{100, 110, 99})
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-12)
	assert.InDelta(t, -0.10, r[1], 1e-12)
}

func TestAlignClosesKeepsCommonDates(t *testing.T) {
	series := map[string][]market_data.Bar{
		"XLK": {{Date: day(0), Close: 1}, {Date: day(1), Close: 2}, {Date: day(2), Close: 3}},
		"XLF": {{Date: day(1), Close: 20}, {Date: day(2), Close: 30}, {Date: day(3), Close: 40}},
		"XLE": nil,
	}

	aligned := AlignCloses(series)
	assert.Len(t, aligned, 2)
	assert.Equal(t, []float64{2, 3}, aligned["XLK"])
	assert.Equal(t, []float64{20, 30}, aligned["XLF"])
}

func TestAvgPairwiseCorrelation(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, -0.01, 0.02}
	b := []float64{0.02, -0.04, 0.06, -0.02, 0.04}
	c := []float64{-0.01, 0.02, -0.03, 0.01, -0.02}

	avg, ok := AvgPairwiseCorrelation([][]float64{a, b, c})
	require.True(t, ok)
	// pairs: (a,b)=1, (a,c)=-1, (b,c)=-1
	assert.InDelta(t, -1.0/3.0, avg, 1e-9)

	_, ok = AvgPairwiseCorrelation([][]float64{a})
	assert.False(t, ok)
}

func TestLastATR(t *testing.T) {
	bars := make([]market_data.Bar, 30)
	for i := range bars {
		bars[i] = market_data.Bar{Date: day(i), High: 102, Low: 98, Close: 100}
	}
	data, err := PrepareData(bars)
	require.NoError(t, err)

	atr, err := LastATR(data, 5)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, atr, 1e-9)

	_, err = LastATR(data, 40)
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2345, 2))
	assert.Equal(t, 33.3, Round(33.333, 1))
}
