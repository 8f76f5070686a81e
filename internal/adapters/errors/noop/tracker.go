package noop

import (
	"context"

	"tradegate/pkg/errors"
)

// Tracker accepts every report and drops it
type Tracker struct{}

var _ errors.Tracker = Tracker{}

// New returns the tracker used when ERROR_TRACKING_ENABLED is false or Sentry fails to start
func New() Tracker {
	return Tracker{}
}

func (Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (Tracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {}

func (Tracker) Flush(context.Context) error { return nil }
