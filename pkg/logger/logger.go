package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tradegate/pkg/errors"
)

var globalLogger *Logger

// Logger wraps zap.SugaredLogger. Error-level calls are mirrored to the
// tracker, tagged with the logger's component.
type Logger struct {
	*zap.SugaredLogger
	component    string
	errorTracker errors.Tracker
}

// Init builds the process logger. Production uses JSON output, everything else
// colored console output. An unknown level falls back to info.
func Init(level string, env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	built, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	globalLogger = &Logger{SugaredLogger: built.Sugar()}
	return nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// New wraps an existing zap logger and reports errors to tracker, which may be nil
func New(z *zap.Logger, tracker errors.Tracker) *Logger {
	return &Logger{SugaredLogger: z.Sugar(), errorTracker: tracker}
}

// SetErrorTracker attaches tracker to the process logger and every child created afterwards
func SetErrorTracker(tracker errors.Tracker) {
	if globalLogger != nil {
		globalLogger.errorTracker = tracker
	}
}

// Get returns the process logger, or a no-op logger before Init
func Get() *Logger {
	if globalLogger == nil {
		return NewNop()
	}
	return globalLogger
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		component:     l.component,
		errorTracker:  l.errorTracker,
	}
}

// Component names the subsystem in log fields and tracker tags
func (l *Logger) Component(name string) *Logger {
	child := l.With("component", name)
	child.component = name
	return child
}

func (l *Logger) tags() map[string]string {
	name := l.component
	if name == "" {
		name = "tradegate"
	}
	return map[string]string{"component": name}
}

// Error logs args and reports them as an error
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)

	if l.errorTracker != nil {
		_ = l.errorTracker.CaptureError(context.Background(), errors.New(fmt.Sprint(args...)), l.tags())
	}
}

// Errorf logs and reports a formatted error
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)

	if l.errorTracker != nil {
		_ = l.errorTracker.CaptureError(context.Background(), fmt.Errorf(template, args...), l.tags())
	}
}

// Errorw logs msg with key-value pairs. When the pairs carry an "error" value the
// tracker receives it wrapped in msg; otherwise msg is sent as a message.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)

	if l.errorTracker == nil {
		return
	}
	if err := errorField(keysAndValues); err != nil {
		_ = l.errorTracker.CaptureError(context.Background(), errors.Wrap(err, msg), l.tags())
		return
	}
	_ = l.errorTracker.CaptureMessage(context.Background(), msg, errors.LevelError, l.tags())
}

// ErrorWithContext logs err and reports it with the request context and extra tags
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Errorw(err.Error(), "error", err)

	if l.errorTracker == nil {
		return
	}
	merged := l.tags()
	for k, v := range tags {
		merged[k] = v
	}
	_ = l.errorTracker.CaptureError(ctx, err, merged)
}

// Breadcrumb records a step (a gate decision, a ticket transition) on the tracker
// so a later error report shows what preceded it. Nothing is logged.
func (l *Logger) Breadcrumb(ctx context.Context, message string, data map[string]interface{}) {
	if l.errorTracker == nil {
		return
	}
	l.errorTracker.AddBreadcrumb(ctx, message, l.tags()["component"], errors.LevelInfo, data)
}

func errorField(keysAndValues []interface{}) error {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok && key == "error" {
			if err, ok := keysAndValues[i+1].(error); ok {
				return err
			}
		}
	}
	return nil
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
