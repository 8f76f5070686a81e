package market_data

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"tradegate/internal/adapters/config"
	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/market_data"
	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// RemoteCache is a shared cache tier, implemented by the redis adapter
type RemoteCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheOptions bound the cache and the upstream request rate
type CacheOptions struct {
	TTL               time.Duration
	Size              int
	RequestsPerSecond float64
	Burst             int
}

// CacheOptionsFromConfig maps the env config section onto CacheOptions
func CacheOptionsFromConfig(cfg config.MarketDataConfig) CacheOptions {
	return CacheOptions{
		TTL:               cfg.CacheTTL,
		Size:              cfg.CacheSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
}

// CachedProvider fronts an upstream provider with a bounded TTL cache, an optional
// shared remote tier and a rate limiter. Each instance owns its cache, and
// slices and chains are copied on the way out so callers may modify them.
type CachedProvider struct {
	upstream market_data.Provider
	local    *expirable.LRU[string, any]
	remote   RemoteCache
	limiter  *rate.Limiter
	ttl      time.Duration
	log      *logger.Logger
}

var _ market_data.Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps upstream. remote may be nil.
func NewCachedProvider(upstream market_data.Provider, opts CacheOptions, remote RemoteCache, log *logger.Logger) *CachedProvider {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &CachedProvider{
		upstream: upstream,
		local:    expirable.NewLRU[string, any](opts.Size, nil, opts.TTL),
		remote:   remote,
		limiter:  rate.NewLimiter(limit, burst),
		ttl:      opts.TTL,
		log:      log.Component("market_data_cache"),
	}
}

// Purge drops every locally cached entry
func (p *CachedProvider) Purge() {
	p.local.Purge()
}

// Spot returns the cached spot price
func (p *CachedProvider) Spot(ctx context.Context, symbol string) (float64, error) {
	return fetch(ctx, p, "spot", "spot:"+normalize(symbol), func(ctx context.Context) (float64, error) {
		return p.upstream.Spot(ctx, symbol)
	})
}

// History returns cached bars
func (p *CachedProvider) History(ctx context.Context, symbol string, window market_data.Window) ([]market_data.Bar, error) {
	key := fmt.Sprintf("history:%s:%s", normalize(symbol), window)
	bars, err := fetch(ctx, p, "history", key, func(ctx context.Context) ([]market_data.Bar, error) {
		return p.upstream.History(ctx, symbol, window)
	})
	return slices.Clone(bars), err
}

// Expirations returns cached expiries
func (p *CachedProvider) Expirations(ctx context.Context, symbol string) ([]string, error) {
	expiries, err := fetch(ctx, p, "expirations", "expirations:"+normalize(symbol), func(ctx context.Context) ([]string, error) {
		return p.upstream.Expirations(ctx, symbol)
	})
	return slices.Clone(expiries), err
}

// OptionChain returns a cached chain
func (p *CachedProvider) OptionChain(ctx context.Context, symbol, expiry string) (*market_data.OptionChain, error) {
	key := fmt.Sprintf("chain:%s:%s", normalize(symbol), expiry)
	chain, err := fetch(ctx, p, "option_chain", key, func(ctx context.Context) (*market_data.OptionChain, error) {
		return p.upstream.OptionChain(ctx, symbol, expiry)
	})
	return chain.Clone(), err
}

// VIXHistory returns cached VIX bars
func (p *CachedProvider) VIXHistory(ctx context.Context, window market_data.Window) ([]market_data.Bar, error) {
	bars, err := fetch(ctx, p, "vix_history", "vix:"+window.String(), func(ctx context.Context) ([]market_data.Bar, error) {
		return p.upstream.VIXHistory(ctx, window)
	})
	return slices.Clone(bars), err
}

// CalendarEvents never fails: an upstream error yields an empty, uncached list
func (p *CachedProvider) CalendarEvents(ctx context.Context) ([]macro.Event, error) {
	events, err := fetch(ctx, p, "calendar", "calendar", func(ctx context.Context) ([]macro.Event, error) {
		return p.upstream.CalendarEvents(ctx)
	})
	if err != nil {
		p.log.Warnw("macro calendar fetch failed, using empty calendar", "error", err)
		return []macro.Event{}, nil
	}
	return slices.Clone(events), nil
}

// fetch serves key from memory, then the remote tier, then upstream. Errors are not cached.
func fetch[T any](ctx context.Context, p *CachedProvider, method, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := p.local.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.RecordMarketDataRequest(method, "memory")
			return typed, nil
		}
	}

	var zero T
	if p.remote != nil {
		var v T
		err := p.remote.Get(ctx, key, &v)
		switch {
		case err == nil:
			metrics.RecordMarketDataRequest(method, "redis")
			p.local.Add(key, v)
			return v, nil
		case !errors.Is(err, errors.ErrNotFound):
			p.log.Debugw("remote cache read failed", "key", key, "error", err)
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return zero, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	start := time.Now()
	v, err := load(ctx)
	metrics.MarketDataLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	metrics.RecordMarketDataRequest(method, "upstream")
	if err != nil {
		return zero, errors.Wrapf(err, "market data %s", method)
	}

	p.local.Add(key, v)
	if p.remote != nil {
		if err := p.remote.Set(ctx, key, v, p.ttl); err != nil {
			p.log.Debugw("remote cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}
