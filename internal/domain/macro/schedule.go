package macro

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tradegate/pkg/errors"
)

var fomcMonths = map[time.Month]bool{
	time.January: true, time.March: true, time.May: true, time.June: true,
	time.July: true, time.September: true, time.November: true, time.December: true,
}

// RecurringSchedule approximates the US release calendar for the days starting at from:
// FOMC on the third Wednesday of meeting months, CPI on the 12th (13th when the 12th
// falls on a weekend) and NFP on the first Friday.
func RecurringSchedule(from time.Time, days int) []Event {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	var events []Event

	for offset := 0; offset < days; offset++ {
		d := start.AddDate(0, 0, offset)
		date := d.Format(DateLayout)

		if d.Weekday() == time.Wednesday && d.Day() >= 15 && d.Day() <= 21 && fomcMonths[d.Month()] {
			events = append(events, Event{Type: EventFOMC, Name: "FOMC", Date: date, Impact: ImpactHigh})
		}
		if isWeekday(d) && isCPIDay(d) {
			events = append(events, Event{Type: EventCPI, Name: "CPI", Date: date, Impact: ImpactHigh})
		}
		if d.Weekday() == time.Friday && d.Day() <= 7 {
			events = append(events, Event{Type: EventNFP, Name: "NFP", Date: date, Impact: ImpactHigh})
		}
	}

	return events
}

func isWeekday(d time.Time) bool {
	return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday
}

func isCPIDay(d time.Time) bool {
	if d.Day() == 12 {
		return true
	}
	if d.Day() == 13 {
		twelfth := time.Date(d.Year(), d.Month(), 12, 0, 0, 0, 0, time.UTC)
		return !isWeekday(twelfth)
	}
	return false
}

// Calendar yields the macro events relevant at a point in time
type Calendar interface {
	Events(now time.Time) []Event
}

// StaticCalendar is a fixed list of events, typically loaded from YAML
type StaticCalendar []Event

// Events returns the full list regardless of now
func (c StaticCalendar) Events(now time.Time) []Event {
	return c
}

// RecurringCalendar regenerates RecurringSchedule for the Days following now
type RecurringCalendar struct {
	Days int
}

// Events returns the recurring releases from the start of now's day
func (c RecurringCalendar) Events(now time.Time) []Event {
	days := c.Days
	if days <= 0 {
		days = 31
	}
	return RecurringSchedule(now, days)
}

type calendarFile struct {
	Events []Event `yaml:"events"`
}

// LoadCalendar reads a YAML calendar of the form
//
//	events:
//	  - event: FOMC
//	    date: 2026-01-28
//	    type: fomc
//	    impact: high
func LoadCalendar(path string) ([]Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read calendar %s", path)
	}

	var file calendarFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "parse calendar %s", path)
	}

	for i := range file.Events {
		if file.Events[i].Type == "" {
			file.Events[i].Type = EventOther
		}
		if file.Events[i].Name == "" {
			return nil, errors.NewValidationError("event", "name is required", file.Events[i].Date)
		}
	}
	return file.Events, nil
}
