package cmd

import (
	"encoding/json"
	"os"
	"time"

	"tradegate/internal/domain/risk"
	"tradegate/internal/domain/ticket"
	ticketservice "tradegate/internal/services/ticket"
	"tradegate/pkg/errors"
)

// submitRequest is the on-disk form of a proposed trade. Legs may use either
// the standard or the legacy key names.
type submitRequest struct {
	ID              string              `json:"ticket_id"`
	Underlying      string              `json:"underlying"`
	Strategy        string              `json:"strategy"`
	Legs            json.RawMessage     `json:"legs"`
	MidCredit       float64             `json:"mid_credit"`
	LimitCredit     *float64            `json:"limit_credit"`
	MaxLoss         float64             `json:"max_loss"`
	Width           float64             `json:"width"`
	Expiry          *string             `json:"expiry"`
	DTE             *int                `json:"dte"`
	PopEstimate     *float64            `json:"pop_estimate"`
	EdgeMetrics     *ticket.EdgeMetrics `json:"edge_metrics"`
	ConfidenceScore float64             `json:"confidence_score"`
	Exits           *ticket.Exits       `json:"exits"`
	DataTimestamp   *time.Time          `json:"data_timestamp"`
	Positions       []risk.Position     `json:"positions"`
}

func readSubmitRequest(path string) (*submitRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return parseSubmitRequest(raw)
}

func parseSubmitRequest(raw []byte) (*submitRequest, error) {
	var req submitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "decode ticket request: %v", err)
	}
	if req.Underlying == "" {
		return nil, errors.NewValidationError("underlying", "is required", req.Underlying)
	}
	if len(req.Legs) == 0 {
		return nil, errors.NewValidationError("legs", "at least one leg is required", nil)
	}
	return &req, nil
}

// buildInput converts the request into the builder's input
func (r *submitRequest) buildInput() (ticketservice.BuildInput, error) {
	legs, err := ticket.DecodeLegs(r.Legs)
	if err != nil {
		return ticketservice.BuildInput{}, err
	}
	if len(legs) == 0 {
		return ticketservice.BuildInput{}, errors.NewValidationError("legs", "at least one leg is required", nil)
	}

	in := ticketservice.BuildInput{
		ID:              r.ID,
		Underlying:      r.Underlying,
		Strategy:        r.Strategy,
		Legs:            legs,
		MidCredit:       r.MidCredit,
		LimitCredit:     r.LimitCredit,
		MaxLoss:         r.MaxLoss,
		Width:           r.Width,
		Expiry:          r.Expiry,
		DTE:             r.DTE,
		PopEstimate:     r.PopEstimate,
		EdgeMetrics:     r.EdgeMetrics,
		ConfidenceScore: r.ConfidenceScore,
		Exits:           r.Exits,
	}
	if r.DataTimestamp != nil {
		in.DataTimestamp = *r.DataTimestamp
	}
	return in, nil
}

// decodePayload restores the ticket stored with a record
func decodePayload(rec *ticket.Record) (*ticket.Ticket, error) {
	var t ticket.Ticket
	if err := json.Unmarshal([]byte(rec.Payload), &t); err != nil {
		return nil, errors.Wrapf(err, "decode ticket %s payload", rec.ID)
	}
	t.Status = rec.Status
	return &t, nil
}

func weekStartOf(day time.Time) string {
	return ticketservice.WeekStart(day).Format("2006-01-02")
}
