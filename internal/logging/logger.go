package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberhook/emberhook/internal/tracing"
)

// Logger provides structured logging with trace correlation. Entries are
// written as JSON through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New creates a new structured logger for the given service. Level and format
// are taken from LOG_LEVEL and LOG_FORMAT.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter creates a logger writing to w. Used by tests to capture output.
func NewWithWriter(service string, w io.Writer) *Logger {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	if os.Getenv("LOG_FORMAT") == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	return &Logger{zl: zl}
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry is a log entry under construction. Field setters return the entry so
// callers can chain them before emitting.
type Entry struct {
	zc zerolog.Context
}

// Plain creates a basic log entry without context
func (l *Logger) Plain() *Entry {
	return &Entry{zc: l.zl.With()}
}

// WithContext creates a log entry with trace correlation from context
func (l *Logger) WithContext(ctx context.Context) *Entry {
	e := l.Plain()
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		e.zc = e.zc.Str("trace_id", traceID)
	}
	return e
}

// WithFields creates a log entry with arbitrary key-value pairs
func (l *Logger) WithFields(fields map[string]any) *Entry {
	return l.Plain().WithFields(fields)
}

// WithOrg sets the organization ID for the log entry
func (e *Entry) WithOrg(orgID string) *Entry {
	e.zc = e.zc.Str("org_id", orgID)
	return e
}

// WithEvent sets the event ID for the log entry
func (e *Entry) WithEvent(eventID string) *Entry {
	e.zc = e.zc.Str("event_id", eventID)
	return e
}

// WithEventType sets the event type for the log entry
func (e *Entry) WithEventType(eventType string) *Entry {
	e.zc = e.zc.Str("event_type", eventType)
	return e
}

// WithDelivery sets the delivery ID for the log entry
func (e *Entry) WithDelivery(deliveryID string) *Entry {
	e.zc = e.zc.Str("delivery_id", deliveryID)
	return e
}

// WithWebhook sets the webhook subscription ID for the log entry
func (e *Entry) WithWebhook(webhookID string) *Entry {
	e.zc = e.zc.Str("webhook_id", webhookID)
	return e
}

// WithPlugin sets the plugin slug for the log entry
func (e *Entry) WithPlugin(slug string) *Entry {
	e.zc = e.zc.Str("plugin", slug)
	return e
}

// WithField adds a single field to the log entry
func (e *Entry) WithField(key string, value any) *Entry {
	e.zc = e.zc.Interface(key, value)
	return e
}

// WithFields adds multiple fields to the log entry
func (e *Entry) WithFields(fields map[string]any) *Entry {
	e.zc = e.zc.Fields(fields)
	return e
}

// WithError adds an error field to the log entry
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.zc = e.zc.Str("error", err.Error())
	}
	return e
}

// Debug logs at debug level
func (e *Entry) Debug(msg string) {
	l := e.zc.Logger()
	l.Debug().Msg(msg)
}

// Debugf logs at debug level with formatting
func (e *Entry) Debugf(format string, args ...any) {
	l := e.zc.Logger()
	l.Debug().Msgf(format, args...)
}

// Info logs at info level
func (e *Entry) Info(msg string) {
	l := e.zc.Logger()
	l.Info().Msg(msg)
}

// Infof logs at info level with formatting
func (e *Entry) Infof(format string, args ...any) {
	l := e.zc.Logger()
	l.Info().Msgf(format, args...)
}

// Warn logs at warn level
func (e *Entry) Warn(msg string) {
	l := e.zc.Logger()
	l.Warn().Msg(msg)
}

// Warnf logs at warn level with formatting
func (e *Entry) Warnf(format string, args ...any) {
	l := e.zc.Logger()
	l.Warn().Msgf(format, args...)
}

// Error logs at error level
func (e *Entry) Error(msg string) {
	l := e.zc.Logger()
	l.Error().Msg(msg)
}

// Errorf logs at error level with formatting
func (e *Entry) Errorf(format string, args ...any) {
	l := e.zc.Logger()
	l.Error().Msgf(format, args...)
}

// Fatal logs at fatal level and exits
func (e *Entry) Fatal(msg string) {
	l := e.zc.Logger()
	l.Fatal().Msg(msg)
}

// Fatalf logs at fatal level with formatting and exits
func (e *Entry) Fatalf(format string, args ...any) {
	l := e.zc.Logger()
	l.Fatal().Msgf(format, args...)
}
