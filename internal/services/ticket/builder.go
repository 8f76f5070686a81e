package ticketservice

import (
	"time"

	"github.com/google/uuid"

	"tradegate/internal/domain/regime"
	"tradegate/internal/domain/ticket"
)

// BuildInput carries everything a signal pipeline knows about a proposed trade.
// Nil optional parts fall back to structural defaults.
type BuildInput struct {
	ID              string
	Underlying      string
	Strategy        string
	Legs            []ticket.LegInput
	MidCredit       float64
	LimitCredit     *float64
	MaxLoss         float64
	Width           float64
	Expiry          *string
	DTE             *int
	PopEstimate     *float64
	EdgeMetrics     *ticket.EdgeMetrics
	RegimeGate      *ticket.RegimeGate
	RiskGate        *ticket.RiskGate
	ConfidenceScore float64
	Exits           *ticket.Exits
	DataTimestamp   time.Time
}

// Build assembles a pending ticket. Legs in either accepted shape are normalized,
// the limit credit defaults to the mid, both gates default to passed with no reasons,
// and exits default to 50% take-profit, 2x stop and a 21 day time stop.
func Build(in BuildInput) *ticket.Ticket {
	return BuildAt(in, time.Now())
}

// BuildAt is Build with an explicit creation time
func BuildAt(in BuildInput, now time.Time) *ticket.Ticket {
	now = now.UTC()

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	limit := in.MidCredit
	if in.LimitCredit != nil {
		limit = *in.LimitCredit
	}

	dataTS := in.DataTimestamp.UTC()
	if in.DataTimestamp.IsZero() {
		dataTS = now
	}

	t := &ticket.Ticket{
		ID:              id,
		Strategy:        in.Strategy,
		Underlying:      in.Underlying,
		Timestamp:       now,
		DataTimestamp:   dataTS,
		Expiry:          in.Expiry,
		DTE:             in.DTE,
		Legs:            ticket.NormalizeLegs(in.Legs),
		MidCredit:       in.MidCredit,
		LimitCredit:     limit,
		Width:           in.Width,
		MaxLoss:         in.MaxLoss,
		PopEstimate:     in.PopEstimate,
		RegimeGate:      ticket.RegimeGate{Passed: true, Reasons: []string{}},
		RiskGate:        ticket.RiskGate{Passed: true, Reasons: []string{}},
		ConfidenceScore: in.ConfidenceScore,
		Exits:           ticket.DefaultExits(),
		Status:          ticket.StatusPending,
	}

	if in.EdgeMetrics != nil {
		t.EdgeMetrics = *in.EdgeMetrics
	}
	if in.RegimeGate != nil {
		t.RegimeGate = ticket.RegimeGate{Passed: in.RegimeGate.Passed, Reasons: nonNil(in.RegimeGate.Reasons)}
	}
	if in.RiskGate != nil {
		t.RiskGate = *in.RiskGate
		t.RiskGate.Reasons = nonNil(in.RiskGate.Reasons)
	}
	if in.Exits != nil {
		t.Exits = *in.Exits
	}
	return t
}

// WithRegimeGate returns a copy of t carrying the regime gate decision
func WithRegimeGate(t *ticket.Ticket, gate regime.TradeGate) *ticket.Ticket {
	out := t.Clone()
	out.RegimeGate = ticket.RegimeGate{Passed: gate.Allowed, Reasons: nonNil(gate.Reasons)}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
