package errors

import (
	"context"
)

// Tracker is where error-level logs and ticket transitions end up outside the
// process. The Sentry adapter implements it; the noop adapter stands in when
// tracking is off.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb attaches a step to the scope so the next captured event carries it
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until queued events are sent or ctx expires
	Flush(ctx context.Context) error
}

// Level is the tracker severity
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
