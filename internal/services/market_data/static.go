package market_data

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tradegate/internal/domain/macro"
	"tradegate/internal/domain/market_data"
	"tradegate/pkg/errors"
)

// VIXSymbol is the key VIX history is stored under
const VIXSymbol = "^VIX"

// Fixtures is the YAML layout read by LoadFixtures
type Fixtures struct {
	AsOf     time.Time                            `yaml:"as_of"`
	Spots    map[string]float64                   `yaml:"spots"`
	History  map[string][]market_data.Bar         `yaml:"history"`
	Chains   map[string][]market_data.OptionChain `yaml:"chains"`
	Calendar []macro.Event                        `yaml:"calendar"`
}

// StaticProvider serves market data from memory. It backs offline runs and tests.
type StaticProvider struct {
	mu       sync.RWMutex
	asOf     time.Time
	spots    map[string]float64
	history  map[string][]market_data.Bar
	chains   map[string]map[string]*market_data.OptionChain
	calendar []macro.Event
	calErr   error
}

var _ market_data.Provider = (*StaticProvider)(nil)

// NewStaticProvider creates an empty provider whose history windows end at asOf
func NewStaticProvider(asOf time.Time) *StaticProvider {
	return &StaticProvider{
		asOf:    asOf,
		spots:   map[string]float64{},
		history: map[string][]market_data.Bar{},
		chains:  map[string]map[string]*market_data.OptionChain{},
	}
}

// LoadFixtures builds a StaticProvider from a YAML fixture file
func LoadFixtures(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixtures %s", path)
	}

	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parse fixtures %s", path)
	}

	p := NewStaticProvider(f.AsOf)
	for sym, spot := range f.Spots {
		p.SetSpot(sym, spot)
	}
	for sym, bars := range f.History {
		p.SetHistory(sym, bars)
	}
	for sym, chains := range f.Chains {
		for i := range chains {
			chains[i].Symbol = sym
			p.SetChain(&chains[i])
		}
	}
	p.SetCalendar(f.Calendar)
	return p, nil
}

// SetSpot sets the spot price for symbol
func (p *StaticProvider) SetSpot(symbol string, spot float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spots[normalize(symbol)] = spot
}

// SetHistory replaces the bar history for symbol, sorting it oldest first
func (p *StaticProvider) SetHistory(symbol string, bars []market_data.Bar) {
	sorted := make([]market_data.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[normalize(symbol)] = sorted
}

// SetChain adds or replaces the chain for chain.Symbol and chain.Expiry
func (p *StaticProvider) SetChain(chain *market_data.OptionChain) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sym := normalize(chain.Symbol)
	if p.chains[sym] == nil {
		p.chains[sym] = map[string]*market_data.OptionChain{}
	}
	p.chains[sym][chain.Expiry] = chain
}

// SetCalendar replaces the macro calendar
func (p *StaticProvider) SetCalendar(events []macro.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calendar = events
	p.calErr = nil
}

// FailCalendar makes CalendarEvents return err until SetCalendar is called
func (p *StaticProvider) FailCalendar(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calErr = err
}

// Spot returns the configured spot, falling back to the last close
func (p *StaticProvider) Spot(ctx context.Context, symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sym := normalize(symbol)
	if spot, ok := p.spots[sym]; ok {
		return spot, nil
	}
	if bars := p.history[sym]; len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return 0, errors.NewNotFound("spot", sym)
}

// History returns the bars inside window, measured back from the provider's as-of date
func (p *StaticProvider) History(ctx context.Context, symbol string, window market_data.Window) ([]market_data.Bar, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sym := normalize(symbol)
	bars, ok := p.history[sym]
	if !ok {
		return nil, errors.NewNotFound("history", sym)
	}

	end := p.asOf
	if end.IsZero() && len(bars) > 0 {
		end = bars[len(bars)-1].Date
	}
	start := end.AddDate(0, 0, -window.Days())

	out := make([]market_data.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Expirations lists the chain expiries for symbol, nearest first
func (p *StaticProvider) Expirations(ctx context.Context, symbol string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	chains, ok := p.chains[normalize(symbol)]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, len(chains))
	for exp := range chains {
		out = append(out, exp)
	}
	sort.Strings(out)
	return out, nil
}

// OptionChain returns the chain for symbol and expiry
func (p *StaticProvider) OptionChain(ctx context.Context, symbol, expiry string) (*market_data.OptionChain, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sym := normalize(symbol)
	chain, ok := p.chains[sym][expiry]
	if !ok {
		return nil, errors.NewNotFound("option chain", sym+" "+expiry)
	}
	return chain, nil
}

// VIXHistory is History for the VIX index
func (p *StaticProvider) VIXHistory(ctx context.Context, window market_data.Window) ([]market_data.Bar, error) {
	return p.History(ctx, VIXSymbol, window)
}

// CalendarEvents returns the configured macro calendar
func (p *StaticProvider) CalendarEvents(ctx context.Context) ([]macro.Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.calErr != nil {
		return nil, p.calErr
	}
	out := make([]macro.Event, len(p.calendar))
	copy(out, p.calendar)
	return out, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
