package macro

import "time"

// DateLayout is the calendar date format used in configuration and reasons
const DateLayout = "2006-01-02"

// Event is a scheduled economic release
type Event struct {
	Type   EventType   `json:"type" yaml:"type"`
	Name   string      `json:"event" yaml:"event"`
	Date   string      `json:"date" yaml:"date"`
	Impact ImpactLevel `json:"impact" yaml:"impact"`
}

// Day parses Date. Unparseable dates return ok=false and are skipped by callers.
func (e Event) Day() (time.Time, bool) {
	at, ok := e.At()
	if !ok {
		return time.Time{}, false
	}
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC), true
}

// At parses Date as an RFC 3339 timestamp or, failing that, a plain date at UTC midnight.
// See AllDay for which form matched.
func (e Event) At() (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, e.Date); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", e.Date); err == nil {
		return t, true
	}
	if t, err := time.Parse(DateLayout, e.Date); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// AllDay reports whether Date carries no time of day
func (e Event) AllDay() bool {
	_, err := time.Parse(DateLayout, e.Date)
	return err == nil
}

// EventType defines economic event types
type EventType string

const (
	EventCPI   EventType = "cpi"
	EventFOMC  EventType = "fomc"
	EventNFP   EventType = "nfp"
	EventOther EventType = "other"
)

// Valid checks if event type is valid
func (e EventType) Valid() bool {
	switch e {
	case EventCPI, EventFOMC, EventNFP, EventOther:
		return true
	}
	return false
}

// String returns string representation
func (e EventType) String() string {
	return string(e)
}

// ImpactLevel defines expected market impact
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Valid checks if impact level is valid
func (i ImpactLevel) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh:
		return true
	}
	return false
}

// String returns string representation
func (i ImpactLevel) String() string {
	return string(i)
}
