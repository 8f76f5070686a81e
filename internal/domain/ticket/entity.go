package ticket

import (
	"time"

	"tradegate/internal/domain/option"
)

// Status is the ticket lifecycle state
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid checks if status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo allows only pending -> approved and pending -> rejected
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// Side is the direction of a leg
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid checks if side is valid
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// String returns string representation
func (s Side) String() string {
	return string(s)
}

// Sign is +1 for buys and -1 for everything else
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// Leg is one option line of a ticket in canonical form
type Leg struct {
	Type   option.Kind `json:"type"`
	Side   Side        `json:"side"`
	Strike float64     `json:"strike"`
	Qty    int         `json:"qty"`
	Delta  *float64    `json:"delta"`
	Vega   *float64    `json:"vega"`
	Gamma  *float64    `json:"gamma"`
	Price  *float64    `json:"price"`
}

// EdgeMetrics are the volatility edge readings that motivated the trade
type EdgeMetrics struct {
	IVPct         *float64 `json:"iv_pct"`
	ImpliedMove   *float64 `json:"implied_move"`
	RealizedProxy *float64 `json:"realized_proxy"`
	IVRichness    *float64 `json:"iv_richness"`
	SkewMetric    *float64 `json:"skew_metric"`
	TermStructure *float64 `json:"term_structure"`
}

// RegimeGate is the market-regime go/no-go
type RegimeGate struct {
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons"`
}

// PortfolioAfter is the projected book once the ticket fills
type PortfolioAfter struct {
	Delta        float64 `json:"delta"`
	Vega         float64 `json:"vega"`
	Gamma        float64 `json:"gamma"`
	MaxLossTrade float64 `json:"max_loss_trade"`
	MaxLossWeek  float64 `json:"max_loss_week"`
}

// RiskGate is the portfolio-limit go/no-go
type RiskGate struct {
	Passed         bool           `json:"passed"`
	Reasons        []string       `json:"reasons"`
	PortfolioAfter PortfolioAfter `json:"portfolio_after"`
}

// Exits are the management rules attached at entry
type Exits struct {
	TakeProfitPct    float64 `json:"take_profit_pct"`
	StopLossMultiple float64 `json:"stop_loss_multiple"`
	TimeStopDays     int     `json:"time_stop_days"`
}

// DefaultExits takes profit at 50% of credit, stops at 2x credit and closes after 21 days
func DefaultExits() Exits {
	return Exits{TakeProfitPct: 50, StopLossMultiple: 2, TimeStopDays: 21}
}

// Ticket is a complete, auditable trade proposal
type Ticket struct {
	ID              string      `json:"ticket_id"`
	Strategy        string      `json:"strategy"`
	Underlying      string      `json:"underlying"`
	Timestamp       time.Time   `json:"timestamp"`
	DataTimestamp   time.Time   `json:"data_timestamp"`
	Expiry          *string     `json:"expiry"`
	DTE             *int        `json:"dte"`
	Legs            []Leg       `json:"legs"`
	MidCredit       float64     `json:"mid_credit"`
	LimitCredit     float64     `json:"limit_credit"`
	Width           float64     `json:"width"`
	MaxLoss         float64     `json:"max_loss"`
	PopEstimate     *float64    `json:"pop_estimate"`
	EdgeMetrics     EdgeMetrics `json:"edge_metrics"`
	RegimeGate      RegimeGate  `json:"regime_gate"`
	RiskGate        RiskGate    `json:"risk_gate"`
	ConfidenceScore float64     `json:"confidence_score"`
	Exits           Exits       `json:"exits"`
	Status          Status      `json:"status"`
}

// Actionable reports whether both gates passed
func (t *Ticket) Actionable() bool {
	return t.RegimeGate.Passed && t.RiskGate.Passed
}

// Clone returns a deep copy so evaluation never aliases the caller's ticket
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Legs = append([]Leg(nil), t.Legs...)
	c.RegimeGate.Reasons = append([]string(nil), t.RegimeGate.Reasons...)
	c.RiskGate.Reasons = append([]string(nil), t.RiskGate.Reasons...)
	if c.RegimeGate.Reasons == nil {
		c.RegimeGate.Reasons = []string{}
	}
	if c.RiskGate.Reasons == nil {
		c.RiskGate.Reasons = []string{}
	}
	return &c
}

// Record is the stored row for a proposed ticket
type Record struct {
	ID        string    `db:"ticket_id" json:"ticket_id"`
	Hash      string    `db:"ticket_hash" json:"ticket_hash"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Strategy  string    `db:"strategy" json:"strategy"`
	Payload   string    `db:"payload" json:"payload"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Action names an audit entry kind
type Action string

const (
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// Decision is the immutable audit row written by an approval or rejection
type Decision struct {
	TicketID   string    `db:"ticket_id" json:"ticket_id"`
	TicketHash string    `db:"ticket_hash" json:"ticket_hash"`
	Action     Action    `db:"action" json:"action"`
	Reason     *string   `db:"reason" json:"reason"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}
