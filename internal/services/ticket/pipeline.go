package ticketservice

import (
	"context"
	"time"

	"tradegate/internal/domain/regime"
	"tradegate/internal/domain/risk"
	"tradegate/internal/domain/ticket"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// GateSource decides whether the current regime allows new trades
type GateSource interface {
	ShouldTradeNow(ctx context.Context) (regime.TradeGate, error)
}

// Pipeline turns a trade idea into a stored ticket: build, regime gate,
// risk evaluation against this week's book, then propose.
type Pipeline struct {
	gates   GateSource
	risk    RiskEvaluator
	ledger  ticket.Ledger
	service *Service
	equity  float64
	now     func() time.Time
	log     *logger.Logger
}

// NewPipeline wires the ticket pipeline. ledger may be nil, in which case the
// weekly figures are treated as zero.
func NewPipeline(gates GateSource, riskEngine RiskEvaluator, ledger ticket.Ledger, service *Service, equity float64, log *logger.Logger) *Pipeline {
	return &Pipeline{
		gates:   gates,
		risk:    riskEngine,
		ledger:  ledger,
		service: service,
		equity:  equity,
		now:     time.Now,
		log:     log.Component("ticket_pipeline"),
	}
}

// WithClock overrides the clock used for ticket timestamps and the week boundary
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Submit builds, gates, evaluates and proposes. Tickets that fail a gate are
// still stored so the rejection reasons stay auditable.
func (p *Pipeline) Submit(ctx context.Context, in BuildInput, existing []risk.Position) (*ticket.Ticket, *ticket.Record, error) {
	now := p.now().UTC()

	gate, err := p.gates.ShouldTradeNow(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "regime gate")
	}

	book, err := p.book(ctx, existing, now)
	if err != nil {
		return nil, nil, err
	}

	t := BuildAt(in, now)
	t = WithRegimeGate(t, gate)
	t = Evaluate(ctx, t, p.risk, book)

	rec, err := p.service.Propose(ctx, t)
	if err != nil {
		return t, nil, err
	}

	p.log.Infow("ticket submitted",
		"ticket_id", t.ID,
		"regime_passed", t.RegimeGate.Passed,
		"risk_passed", t.RiskGate.Passed,
	)
	return t, rec, nil
}

func (p *Pipeline) book(ctx context.Context, existing []risk.Position, now time.Time) (EvaluateInput, error) {
	in := EvaluateInput{Existing: existing, Equity: p.equity}
	if p.ledger == nil {
		return in, nil
	}

	monday := WeekStart(now)
	realized, err := p.ledger.RealizedSince(ctx, monday.Format("2006-01-02"))
	if err != nil {
		return in, errors.Wrap(err, "weekly realized pnl")
	}
	committed, err := p.ledger.ApprovedMaxLossSince(ctx, monday)
	if err != nil {
		return in, errors.Wrap(err, "weekly committed max loss")
	}

	in.WeeklyRealizedPnL = realized
	in.ExistingWeeklyMaxLosses = committed
	return in, nil
}

// WeekStart returns midnight UTC of the Monday on or before t
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
