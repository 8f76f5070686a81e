package market_data

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/market_data"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

var asOf = time.Date(2026, time.March, 17, 0, 0, 0, 0, time.UTC)

type countingProvider struct {
	*StaticProvider
	mu    sync.Mutex
	calls map[string]int
}

func newCountingProvider() *countingProvider {
	return &countingProvider{StaticProvider: NewStaticProvider(asOf), calls: map[string]int{}}
}

func (c *countingProvider) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

func (c *countingProvider) History(ctx context.Context, symbol string, window market_data.Window) ([]market_data.Bar, error) {
	c.count("history")
	return c.StaticProvider.History(ctx, symbol, window)
}

func (c *countingProvider) CalendarEvents(ctx context.Context) ([]macro.Event, error) {
	c.count("calendar")
	return c.StaticProvider.CalendarEvents(ctx)
}

type mapCache struct {
	data map[string][]byte
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func bars(n int) []market_data.Bar {
	out := make([]market_data.Bar, n)
	for i := range out {
		out[i] = market_data.Bar{Date: asOf.AddDate(0, 0, i-n+1), Close: float64(100 + i)}
	}
	return out
}

func TestCachedProviderServesFromMemory(t *testing.T) {
	upstream := newCountingProvider()
	upstream.SetHistory("spy", bars(10))
	p := NewCachedProvider(upstream, CacheOptions{TTL: time.Minute, Size: 8}, nil, logger.NewNop())
	ctx := context.Background()

	first, err := p.History(ctx, "SPY", market_data.Window1Month)
	require.NoError(t, err)
	second, err := p.History(ctx, "spy", market_data.Window1Month)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, upstream.calls["history"])

	p.Purge()
	_, err = p.History(ctx, "SPY", market_data.Window1Month)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls["history"])
}

func TestCachedProviderReturnsCopies(t *testing.T) {
	upstream := newCountingProvider()
	upstream.SetHistory("SPY", bars(10))
	upstream.SetChain(&market_data.OptionChain{
		Symbol: "SPY",
		Expiry: "2026-03-20",
		Puts:   []market_data.OptionContract{{Strike: 100, OpenInterest: 500}},
	})
	p := NewCachedProvider(upstream, CacheOptions{TTL: time.Minute, Size: 8}, nil, logger.NewNop())
	ctx := context.Background()

	first, err := p.History(ctx, "SPY", market_data.Window1Month)
	require.NoError(t, err)
	want := first[0].Close
	first[0].Close = -1
	first = first[:2]

	second, err := p.History(ctx, "SPY", market_data.Window1Month)
	require.NoError(t, err)
	assert.Len(t, second, 10)
	assert.Equal(t, want, second[0].Close)
	assert.Equal(t, 1, upstream.calls["history"])

	chain, err := p.OptionChain(ctx, "SPY", "2026-03-20")
	require.NoError(t, err)
	chain.Puts[0].OpenInterest = 0
	chain.Puts = nil

	again, err := p.OptionChain(ctx, "SPY", "2026-03-20")
	require.NoError(t, err)
	require.Len(t, again.Puts, 1)
	assert.Equal(t, 500.0, again.Puts[0].OpenInterest)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	upstream := newCountingProvider()
	p := NewCachedProvider(upstream, CacheOptions{}, nil, logger.NewNop())
	ctx := context.Background()

	_, err := p.History(ctx, "QQQ", market_data.Window1Month)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	upstream.SetHistory("QQQ", bars(3))
	got, err := p.History(ctx, "QQQ", market_data.Window1Month)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCachedProviderRemoteTier(t *testing.T) {
	upstream := newCountingProvider()
	upstream.SetHistory("XLK", bars(5))
	remote := &mapCache{data: map[string][]byte{}}
	ctx := context.Background()

	warm := NewCachedProvider(upstream, CacheOptions{}, remote, logger.NewNop())
	_, err := warm.History(ctx, "XLK", market_data.Window1Month)
	require.NoError(t, err)
	assert.Contains(t, remote.data, "history:XLK:1mo")

	cold := NewCachedProvider(upstream, CacheOptions{}, remote, logger.NewNop())
	got, err := cold.History(ctx, "XLK", market_data.Window1Month)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, upstream.calls["history"], "second instance reads through the shared tier")
}

func TestCachedProviderCalendarFailureIsEmpty(t *testing.T) {
	upstream := newCountingProvider()
	upstream.FailCalendar(errors.ErrUnavailable)
	p := NewCachedProvider(upstream, CacheOptions{}, nil, logger.NewNop())

	events, err := p.CalendarEvents(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	upstream.SetCalendar([]macro.Event{{Name: "CPI", Date: "2026-03-12"}})
	events, err = p.CalendarEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCachedProviderRespectsCancelledContext(t *testing.T) {
	upstream := newCountingProvider()
	upstream.SetHistory("SPY", bars(3))
	p := NewCachedProvider(upstream, CacheOptions{RequestsPerSecond: 0.001, Burst: 1}, nil, logger.NewNop())

	_, err := p.History(context.Background(), "SPY", market_data.Window1Month)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.History(ctx, "SPY", market_data.Window1Year)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
}

func TestStaticProviderWindowsAndChains(t *testing.T) {
	p := NewStaticProvider(asOf)
	p.SetHistory("SPY", bars(60))
	p.SetChain(&market_data.OptionChain{Symbol: "spy", Expiry: "2026-04-17"})
	p.SetChain(&market_data.OptionChain{Symbol: "SPY", Expiry: "2026-03-20"})
	ctx := context.Background()

	month, err := p.History(ctx, "SPY", market_data.Window1Month)
	require.NoError(t, err)
	assert.Len(t, month, 32)

	exp, err := p.Expirations(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-20", "2026-04-17"}, exp)

	spot, err := p.Spot(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 159.0, spot)

	_, err = p.OptionChain(ctx, "SPY", "2027-01-15")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	content := `as_of: 2026-03-17T00:00:00Z
spots:
  spy: 512.3
history:
  ^VIX:
    - {date: 2026-03-16T00:00:00Z, close: 18.2}
    - {date: 2026-03-17T00:00:00Z, close: 19.1}
chains:
  SPY:
    - expiry: "2026-03-20"
      calls: [{strike: 510, open_interest: 1000}]
      puts: [{strike: 510, open_interest: 1500}]
calendar:
  - {event: FOMC, date: "2026-03-18", type: fomc}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadFixtures(path)
	require.NoError(t, err)
	ctx := context.Background()

	spot, err := p.Spot(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 512.3, spot)

	vix, err := p.VIXHistory(ctx, market_data.Window1Year)
	require.NoError(t, err)
	assert.Equal(t, []float64{18.2, 19.1}, market_data.Closes(vix))

	chain, err := p.OptionChain(ctx, "SPY", "2026-03-20")
	require.NoError(t, err)
	calls, puts := chain.OpenInterest()
	assert.Equal(t, 1000.0, calls)
	assert.Equal(t, 1500.0, puts)

	events, err := p.CalendarEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "FOMC", events[0].Name)
}
