// Package logger configures the process-wide slog logger and provides the
// attribute helpers shared across the engine. Keeping field names in one
// place keeps log queries stable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel parses a string into a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Output io.Writer
	Level  slog.Level

	// Text switches from JSON to human-readable output.
	Text bool
}

// DefaultOptions returns sensible defaults: JSON at Info to stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  slog.LevelInfo,
	}
}

// New creates a slog.Logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Text {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}
	return slog.New(handler)
}

// Setup creates a logger and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// Err builds the standard error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Common attribute helpers for the engine.
func StudentID(id string) slog.Attr      { return slog.String("student_id", id) }
func PersonID(id string) slog.Attr       { return slog.String("person_id", id) }
func ActivityID(id string) slog.Attr     { return slog.String("activity_id", id) }
func AssignmentID(id string) slog.Attr   { return slog.String("assignment_id", id) }
func NotificationID(id string) slog.Attr { return slog.String("notification_id", id) }
func RequestID(id string) slog.Attr      { return slog.String("request_id", id) }
func Component(name string) slog.Attr    { return slog.String("component", name) }
func Operation(name string) slog.Attr    { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr  { return slog.Duration("latency", d) }
func Recipient(key string) slog.Attr     { return slog.String("recipient", key) }
func EventType(name string) slog.Attr    { return slog.String("event_type", name) }
