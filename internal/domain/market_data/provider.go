package market_data

import (
	"context"

	"tradegate/internal/domain/macro"
)

// Provider is the market data boundary every engine reads through.
// Implementations return bars oldest first.
type Provider interface {
	Spot(ctx context.Context, symbol string) (float64, error)
	History(ctx context.Context, symbol string, window Window) ([]Bar, error)
	Expirations(ctx context.Context, symbol string) ([]string, error)
	OptionChain(ctx context.Context, symbol, expiry string) (*OptionChain, error)
	VIXHistory(ctx context.Context, window Window) ([]Bar, error)
	CalendarEvents(ctx context.Context) ([]macro.Event, error)
}
