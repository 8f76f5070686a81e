package ticketservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/option"
	"tradegate/internal/domain/regime"
	"tradegate/internal/domain/risk"
	"tradegate/internal/domain/ticket"
	riskservice "tradegate/internal/services/risk"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

var buildTime = time.Date(2026, time.March, 17, 15, 30, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }
func ip(v int) *int { return &v }

func ironCondorInput() BuildInput {
	return BuildInput{
		ID:         "t-1",
		Underlying: "SPY",
		Strategy:   "SPY_IRON_CONDOR",
		Legs: []ticket.LegInput{
			ticket.StandardLeg{Type: option.KindPut, Side: ticket.SideSell, Strike: 490, Qty: ip(2), Delta: fp(-0.15), Vega: fp(0.20), Gamma: fp(0.010), Price: fp(1.50)},
			ticket.StandardLeg{Type: option.KindPut, Side: ticket.SideBuy, Strike: 485, Qty: ip(2), Delta: fp(-0.10), Vega: fp(0.15), Gamma: fp(0.008), Price: fp(1.00)},
			ticket.LegacyLeg{OptionType: option.KindCall, Action: ticket.SideSell, Strike: 530, Quantity: ip(2), Delta: fp(0.12), Vega: fp(0.18), Gamma: fp(0.009), Price: fp(1.20)},
			ticket.LegacyLeg{OptionType: option.KindCall, Action: ticket.SideBuy, Strike: 535, Delta: fp(0.08), Price: fp(0.70)},
		},
		MidCredit: 1.00,
		MaxLoss:   800,
		Width:     5,
	}
}

func TestBuildDefaults(t *testing.T) {
	tk := BuildAt(ironCondorInput(), buildTime)

	assert.Equal(t, "t-1", tk.ID)
	assert.Equal(t, ticket.StatusPending, tk.Status)
	assert.Equal(t, 1.00, tk.LimitCredit, "limit defaults to mid")
	assert.Equal(t, buildTime, tk.Timestamp)
	assert.Equal(t, buildTime, tk.DataTimestamp)
	assert.True(t, tk.RegimeGate.Passed)
	assert.NotNil(t, tk.RegimeGate.Reasons)
	assert.True(t, tk.RiskGate.Passed)
	assert.NotNil(t, tk.RiskGate.Reasons)
	assert.Equal(t, ticket.PortfolioAfter{}, tk.RiskGate.PortfolioAfter)
	assert.Equal(t, ticket.Exits{TakeProfitPct: 50, StopLossMultiple: 2, TimeStopDays: 21}, tk.Exits)
	assert.Nil(t, tk.EdgeMetrics.IVPct)

	require.Len(t, tk.Legs, 4)
	assert.Equal(t, ticket.Leg{Type: option.KindCall, Side: ticket.SideSell, Strike: 530, Qty: 2, Delta: fp(0.12), Vega: fp(0.18), Gamma: fp(0.009), Price: fp(1.20)}, tk.Legs[2])
	assert.Equal(t, 1, tk.Legs[3].Qty, "legacy leg without quantity defaults to one")
}

func TestBuildOverrides(t *testing.T) {
	in := ironCondorInput()
	in.ID = ""
	in.LimitCredit = fp(0.95)
	in.Exits = &ticket.Exits{TakeProfitPct: 25, StopLossMultiple: 1.5, TimeStopDays: 7}
	in.RegimeGate = &ticket.RegimeGate{Passed: false, Reasons: []string{"Volatility regime is stressed"}}
	in.EdgeMetrics = &ticket.EdgeMetrics{IVPct: fp(82)}

	tk := BuildAt(in, buildTime)

	assert.NotEmpty(t, tk.ID)
	assert.Equal(t, 0.95, tk.LimitCredit)
	assert.Equal(t, 7, tk.Exits.TimeStopDays)
	assert.False(t, tk.RegimeGate.Passed)
	assert.Equal(t, 82.0, *tk.EdgeMetrics.IVPct)
	assert.False(t, tk.Actionable())

	other := BuildAt(in, buildTime)
	assert.NotEqual(t, tk.ID, other.ID)
}

func TestNetPosition(t *testing.T) {
	pos := NetPosition(BuildAt(ironCondorInput(), buildTime))

	assert.Equal(t, "SPY", pos.Symbol)
	// sell 2 @ -0.15, buy 2 @ -0.10, sell 2 @ 0.12, buy 1 @ 0.08
	assert.InDelta(t, 0.30-0.20-0.24+0.08, pos.Delta, 1e-12)
	assert.InDelta(t, -0.40+0.30-0.36, pos.Vega, 1e-12)
	assert.InDelta(t, -0.020+0.016-0.018, pos.Gamma, 1e-12)
	assert.InDelta(t, 300+200+240+70, pos.Notional, 1e-9)
	assert.Empty(t, pos.ExpiryBucket)
	assert.Equal(t, risk.UnknownBucket, pos.Bucket())
}

type recordingEvaluator struct {
	got riskservice.TicketRiskInput
	out *risk.TicketVerdict
}

func (r *recordingEvaluator) EvaluateTicketRisk(ctx context.Context, in riskservice.TicketRiskInput) *risk.TicketVerdict {
	r.got = in
	return r.out
}

func TestEvaluatePopulatesRiskGateOnly(t *testing.T) {
	tk := BuildAt(ironCondorInput(), buildTime)
	tk = WithRegimeGate(tk, regime.TradeGate{Allowed: false, Reasons: []string{"CPI on 2026-03-18 within 48h"}})

	ev := &recordingEvaluator{out: &risk.TicketVerdict{
		DeltaAfter:     -0.06,
		VegaAfter:      -0.46,
		GammaAfter:     -0.022,
		MaxLossTrade:   800,
		MaxLossWeek:    2800,
		RiskLimitsPass: false,
		Reasons:        []string{"Weekly max loss 5.6% exceeds 5.0% of equity"},
	}}

	existing := []risk.Position{{Symbol: "QQQ", Notional: 1000}}
	out := Evaluate(context.Background(), tk, ev, EvaluateInput{
		Existing:                existing,
		Equity:                  50000,
		WeeklyRealizedPnL:       -200,
		ExistingWeeklyMaxLosses: 2000,
	})

	assert.Equal(t, 800.0, ev.got.MaxLoss)
	assert.Equal(t, "SPY", ev.got.Position.Symbol)
	assert.Equal(t, existing, ev.got.Existing)
	assert.Equal(t, 50000.0, ev.got.Equity)
	assert.Equal(t, -200.0, ev.got.WeeklyRealizedPnL)
	assert.Equal(t, 2000.0, ev.got.ExistingWeeklyMaxLosses)

	assert.False(t, out.RiskGate.Passed)
	assert.Equal(t, []string{"Weekly max loss 5.6% exceeds 5.0% of equity"}, out.RiskGate.Reasons)
	assert.Equal(t, ticket.PortfolioAfter{Delta: -0.06, Vega: -0.46, Gamma: -0.022, MaxLossTrade: 800, MaxLossWeek: 2800}, out.RiskGate.PortfolioAfter)

	assert.Equal(t, tk.ID, out.ID)
	assert.Equal(t, ticket.StatusPending, out.Status)
	assert.Equal(t, tk.RegimeGate, out.RegimeGate)
	assert.True(t, tk.RiskGate.Passed, "input ticket is not mutated")
}

func TestEvaluateAgainstRealEngine(t *testing.T) {
	engine := riskservice.NewEngine(risk.DefaultSectors, nil, risk.DefaultLimits(), logger.NewNop())
	tk := BuildAt(ironCondorInput(), buildTime)

	pass := Evaluate(context.Background(), tk, engine, EvaluateInput{Equity: 100000})
	assert.True(t, pass.RiskGate.Passed)
	assert.Equal(t, 800.0, pass.RiskGate.PortfolioAfter.MaxLossTrade)
	assert.InDelta(t, -0.06, pass.RiskGate.PortfolioAfter.Delta, 1e-9)
	assert.True(t, pass.Actionable())

	small := Evaluate(context.Background(), tk, engine, EvaluateInput{Equity: 40000})
	assert.False(t, small.RiskGate.Passed)
	assert.Equal(t, []string{"Trade max loss 2.0% exceeds 1.5% of equity"}, small.RiskGate.Reasons)
}

// MockRepository is a mock for ticket.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Propose(ctx context.Context, t *ticket.Ticket) (*ticket.Record, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Record), args.Error(1)
}

func (m *MockRepository) Approve(ctx context.Context, id string) (*ticket.Decision, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Decision), args.Error(1)
}

func (m *MockRepository) Reject(ctx context.Context, id string, reason *string) (*ticket.Decision, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Decision), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, id string) (*ticket.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Record), args.Error(1)
}

func (m *MockRepository) ListPending(ctx context.Context) ([]*ticket.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Record), args.Error(1)
}

func (m *MockRepository) AuditLog(ctx context.Context) ([]*ticket.Decision, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Decision), args.Error(1)
}

// MockPublisher is a mock for EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func TestService_ProposePublishes(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, pub, logger.NewNop())
	ctx := context.Background()

	tk := BuildAt(ironCondorInput(), buildTime)
	rec := &ticket.Record{ID: tk.ID, Hash: "abc", Symbol: "SPY", Strategy: tk.Strategy, Status: ticket.StatusPending, CreatedAt: buildTime}
	repo.On("Propose", ctx, tk).Return(rec, nil)
	pub.On("Publish", ctx, "tickets.proposed", tk.ID, mock.MatchedBy(func(ev Event) bool {
		return ev.TicketHash == "abc" && ev.Status == ticket.StatusPending && ev.Underlying == "SPY"
	})).Return(nil)

	got, err := svc.Propose(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_ProposeRequiresID(t *testing.T) {
	svc := NewService(new(MockRepository), nil, logger.NewNop())

	_, err := svc.Propose(context.Background(), &ticket.Ticket{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestService_ApproveConflictDoesNotPublish(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, pub, logger.NewNop())
	ctx := context.Background()

	repo.On("Approve", ctx, "t-1").Return(nil, errors.NewConflict("ticket", "t-1", "approved"))

	_, err := svc.Approve(ctx, "t-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "approved")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RejectPublishesReason(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, pub, logger.NewNop())
	ctx := context.Background()

	reason := "skew too flat"
	d := &ticket.Decision{TicketID: "t-2", TicketHash: "h2", Action: ticket.ActionRejected, Reason: &reason, Timestamp: buildTime}
	repo.On("Reject", ctx, "t-2", &reason).Return(d, nil)
	pub.On("Publish", ctx, "tickets.rejected", "t-2", mock.MatchedBy(func(ev Event) bool {
		return ev.Reason != nil && *ev.Reason == reason && ev.Status == ticket.StatusRejected
	})).Return(errors.ErrUnavailable)

	got, err := svc.Reject(ctx, "t-2", &reason)
	require.NoError(t, err, "delivery failure does not undo the transition")
	assert.Equal(t, d, got)
	pub.AssertExpectations(t)
}

func TestService_ApproveNotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, logger.NewNop())
	ctx := context.Background()

	repo.On("Approve", ctx, "missing").Return(nil, errors.NewNotFound("ticket", "missing"))

	_, err := svc.Approve(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrConflict))
}
