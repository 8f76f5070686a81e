package riskservice

import (
	"context"

	"tradegate/internal/domain/market_data"
	"tradegate/internal/domain/risk"
	"tradegate/internal/indicators"
	"tradegate/pkg/logger"
)

// MarketReturns loads daily closes from a market data provider and aligns them on common dates
type MarketReturns struct {
	provider market_data.Provider
	window   market_data.Window
	log      *logger.Logger
}

var _ risk.ReturnsSource = (*MarketReturns)(nil)

// NewMarketReturns creates a returns source over provider using a three-month window
func NewMarketReturns(provider market_data.Provider, log *logger.Logger) *MarketReturns {
	return &MarketReturns{
		provider: provider,
		window:   market_data.Window3Months,
		log:      log.Component("risk_returns"),
	}
}

// AlignedCloses skips symbols whose history cannot be loaded. Only a cancelled context is an error.
func (m *MarketReturns) AlignedCloses(ctx context.Context, symbols []string) (map[string][]float64, error) {
	series := make(map[string][]market_data.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := m.provider.History(ctx, sym, m.window)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.log.Debugw("history unavailable for correlation", "symbol", sym, "error", err)
			continue
		}
		series[sym] = bars
	}
	return indicators.AlignCloses(series), nil
}
