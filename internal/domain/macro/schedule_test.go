package macro

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsByName(events []Event) map[string][]string {
	out := map[string][]string{}
	for _, e := range events {
		out[e.Name] = append(out[e.Name], e.Date)
	}
	return out
}

func TestRecurringScheduleMarch2026(t *testing.T) {
	from := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	got := eventsByName(RecurringSchedule(from, 31))

	// 2026-03-18 is the third Wednesday, 2026-03-12 a Thursday, 2026-03-06 the first Friday
	assert.Equal(t, []string{"2026-03-18"}, got["FOMC"])
	assert.Equal(t, []string{"2026-03-12"}, got["CPI"])
	assert.Equal(t, []string{"2026-03-06"}, got["NFP"])
}

func TestRecurringScheduleCPIShiftsOffSunday(t *testing.T) {
	// 2026-04-12 is a Sunday so CPI moves to Monday the 13th
	from := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	got := eventsByName(RecurringSchedule(from, 30))

	assert.Equal(t, []string{"2026-04-13"}, got["CPI"])
	assert.Empty(t, got["FOMC"])
}

func TestLoadCalendar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
events:
  - event: FOMC
    date: "2026-01-28"
    type: fomc
    impact: high
  - event: Jackson Hole
    date: "2026-08-20"
`), 0o600))

	events, err := LoadCalendar(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventFOMC, events[0].Type)
	assert.Equal(t, EventOther, events[1].Type)

	day, ok := events[0].Day()
	require.True(t, ok)
	assert.Equal(t, 28, day.Day())
}

func TestEventDayRejectsGarbage(t *testing.T) {
	_, ok := Event{Name: "X", Date: "next tuesday"}.Day()
	assert.False(t, ok)
}
