package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tradegate/pkg/errors"
)

type capture struct {
	err     error
	message string
	tags    map[string]string
}

type recordingTracker struct {
	mu          sync.Mutex
	captures    []capture
	breadcrumbs []string
	categories  []string
}

func (r *recordingTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, capture{err: err, tags: tags})
	return nil
}

func (r *recordingTracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, capture{message: message, tags: tags})
	return nil
}

func (r *recordingTracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, message)
	r.categories = append(r.categories, category)
}

func (r *recordingTracker) Flush(ctx context.Context) error { return nil }

func newObserved(tracker errors.Tracker) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core), tracker), logs
}

func TestErrorwReportsErrorFieldWithComponentTag(t *testing.T) {
	tracker := &recordingTracker{}
	log, logs := newObserved(tracker)

	log.Component("ticket_store").Errorw("approve failed", "ticket_id", "t-1", "error", errors.ErrUnavailable)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "approve failed", entry.Message)
	assert.Equal(t, "ticket_store", entry.ContextMap()["component"])

	require.Len(t, tracker.captures, 1)
	c := tracker.captures[0]
	require.Error(t, c.err)
	assert.True(t, errors.Is(c.err, errors.ErrUnavailable))
	assert.Contains(t, c.err.Error(), "approve failed")
	assert.Equal(t, "ticket_store", c.tags["component"])
}

func TestErrorwWithoutErrorSendsMessage(t *testing.T) {
	tracker := &recordingTracker{}
	log, _ := newObserved(tracker)

	log.Errorw("metrics server failed", "addr", ":9090")

	require.Len(t, tracker.captures, 1)
	assert.Nil(t, tracker.captures[0].err)
	assert.Equal(t, "metrics server failed", tracker.captures[0].message)
	assert.Equal(t, "tradegate", tracker.captures[0].tags["component"])
}

func TestErrorWithContextMergesTags(t *testing.T) {
	tracker := &recordingTracker{}
	log, logs := newObserved(tracker)

	err := errors.Wrap(errors.ErrInternal, "reject ticket t-9")
	log.Component("ticket_service").ErrorWithContext(context.Background(), err, map[string]string{"action": "reject"})

	require.Equal(t, 1, logs.Len())
	require.Len(t, tracker.captures, 1)
	assert.Equal(t, map[string]string{"component": "ticket_service", "action": "reject"}, tracker.captures[0].tags)
}

func TestBreadcrumbUsesComponentAsCategory(t *testing.T) {
	tracker := &recordingTracker{}
	log, logs := newObserved(tracker)

	log.Component("regime").Breadcrumb(context.Background(), "regime gate blocked", map[string]interface{}{"reasons": []string{"VIX"}})

	assert.Equal(t, 0, logs.Len())
	assert.Equal(t, []string{"regime gate blocked"}, tracker.breadcrumbs)
	assert.Equal(t, []string{"regime"}, tracker.categories)
}

func TestNoTrackerIsSafe(t *testing.T) {
	log, logs := newObserved(nil)

	log.Errorw("boom", "error", errors.ErrInternal)
	log.ErrorWithContext(context.Background(), errors.ErrInternal, nil)
	log.Breadcrumb(context.Background(), "step", nil)

	assert.Equal(t, 2, logs.Len())
}

func TestGetBeforeInitIsNop(t *testing.T) {
	prev := globalLogger
	globalLogger = nil
	t.Cleanup(func() { globalLogger = prev })

	require.NotNil(t, Get())
	Get().Infow("dropped")
}
