package ticketservice

import (
	"context"
	"math"

	"tradegate/internal/domain/risk"
	"tradegate/internal/domain/ticket"
	riskservice "tradegate/internal/services/risk"
)

// contractMultiplier converts an option premium into dollars per contract
const contractMultiplier = 100

// RiskEvaluator is the part of the risk engine the ticket evaluator needs
type RiskEvaluator interface {
	EvaluateTicketRisk(ctx context.Context, in riskservice.TicketRiskInput) *risk.TicketVerdict
}

var _ RiskEvaluator = (*riskservice.Engine)(nil)

// EvaluateInput describes the book the ticket is evaluated against
type EvaluateInput struct {
	Existing                []risk.Position
	Equity                  float64
	WeeklyRealizedPnL       float64
	ExistingWeeklyMaxLosses float64
}

// NetPosition collapses the legs into one synthetic position on the underlying.
// Buys add and sells subtract quantity-weighted Greeks; notional is the summed
// absolute premium of every leg.
func NetPosition(t *ticket.Ticket) risk.Position {
	pos := risk.Position{Symbol: t.Underlying}
	for _, leg := range t.Legs {
		w := leg.Side.Sign() * float64(leg.Qty)
		pos.Delta += w * value(leg.Delta)
		pos.Vega += w * value(leg.Vega)
		pos.Gamma += w * value(leg.Gamma)
		pos.Notional += math.Abs(float64(leg.Qty) * value(leg.Price) * contractMultiplier)
	}
	return pos
}

// Evaluate returns a copy of t whose risk gate reflects the engine's verdict.
// Identity, status and the regime gate are left untouched.
func Evaluate(ctx context.Context, t *ticket.Ticket, engine RiskEvaluator, in EvaluateInput) *ticket.Ticket {
	verdict := engine.EvaluateTicketRisk(ctx, riskservice.TicketRiskInput{
		MaxLoss:                 t.MaxLoss,
		Position:                NetPosition(t),
		Existing:                in.Existing,
		Equity:                  in.Equity,
		WeeklyRealizedPnL:       in.WeeklyRealizedPnL,
		ExistingWeeklyMaxLosses: in.ExistingWeeklyMaxLosses,
	})

	out := t.Clone()
	out.RiskGate = ticket.RiskGate{
		Passed:  verdict.RiskLimitsPass,
		Reasons: nonNil(verdict.Reasons),
		PortfolioAfter: ticket.PortfolioAfter{
			Delta:        verdict.DeltaAfter,
			Vega:         verdict.VegaAfter,
			Gamma:        verdict.GammaAfter,
			MaxLossTrade: verdict.MaxLossTrade,
			MaxLossWeek:  verdict.MaxLossWeek,
		},
	}
	return out
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
