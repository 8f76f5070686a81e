package ticket

import (
	"context"
	"time"
)

// Fill is a broker execution recorded against an approved ticket
type Fill struct {
	ID       int64     `db:"id" json:"id"`
	TicketID string    `db:"ticket_id" json:"ticket_id"`
	Price    float64   `db:"fill_price" json:"fill_price"`
	Qty      int       `db:"fill_qty" json:"fill_qty"`
	FilledAt time.Time `db:"filled_at" json:"filled_at"`
}

// DailyPnL is one end-of-day P&L mark
type DailyPnL struct {
	ID         int64     `db:"id" json:"id"`
	Date       string    `db:"date" json:"date"`
	Realized   float64   `db:"realized" json:"realized"`
	Unrealized float64   `db:"unrealized" json:"unrealized"`
	Total      float64   `db:"total" json:"total"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// Ledger keeps fills and daily P&L next to the tickets they belong to
type Ledger interface {
	RecordFill(ctx context.Context, f *Fill) error
	RecordDailyPnL(ctx context.Context, p *DailyPnL) error
	// RealizedSince sums realized P&L for every mark dated on or after since (YYYY-MM-DD)
	RealizedSince(ctx context.Context, since string) (float64, error)
	// ApprovedMaxLossSince sums max_loss of tickets approved at or after since
	ApprovedMaxLossSince(ctx context.Context, since time.Time) (float64, error)
}
