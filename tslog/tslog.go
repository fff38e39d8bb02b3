// Package tslog provides a tinted structured logger for auxiliary services.
package tslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Handler formats.
const (
	FormatTint = "tint"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is a set of options for a [*Logger].
type Config struct {
	// Level is the minimum level of log messages to write.
	Level slog.Level `json:"level"`

	// Format selects the handler: "tint" (default), "text" or "json".
	Format string `json:"format"`

	// NoColor disables color in tinted log messages.
	NoColor bool `json:"noColor"`

	// NoTime disables timestamps in log messages.
	NoTime bool `json:"noTime"`
}

// NewLogger creates a new [*Logger] that writes to w.
func (c *Config) NewLogger(w io.Writer) (*Logger, error) {
	var handler slog.Handler
	opts := slog.HandlerOptions{Level: c.Level}

	switch c.Format {
	case "", FormatTint:
		handler = tint.NewHandler(w, &tint.Options{
			Level:   c.Level,
			NoColor: c.NoColor,
		})
	case FormatText:
		handler = slog.NewTextHandler(w, &opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &opts)
	default:
		return nil, fmt.Errorf("unknown log format: %q", c.Format)
	}

	return &Logger{
		level:   c.Level,
		noTime:  c.NoTime,
		handler: handler,
	}, nil
}

// Logger writes structured log messages, tinted with color by default, to its handler.
type Logger struct {
	level   slog.Level
	noTime  bool
	handler slog.Handler
}

// Handler returns the logger's handler.
func (l *Logger) Handler() slog.Handler {
	return l.handler
}

// WithAttrs returns a new [*Logger] with the given attributes included in every log message.
func (l *Logger) WithAttrs(attrs ...slog.Attr) *Logger {
	return &Logger{
		level:   l.level,
		noTime:  l.noTime,
		handler: l.handler.WithAttrs(attrs),
	}
}

// Debug logs the given message at [slog.LevelDebug].
func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelDebug, msg, attrs...)
}

// Info logs the given message at [slog.LevelInfo].
func (l *Logger) Info(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelInfo, msg, attrs...)
}

// Warn logs the given message at [slog.LevelWarn].
func (l *Logger) Warn(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelWarn, msg, attrs...)
}

// Error logs the given message at [slog.LevelError].
func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.Log(slog.LevelError, msg, attrs...)
}

// Enabled returns whether logging at the given level is enabled.
func (l *Logger) Enabled(level slog.Level) bool {
	return level >= l.level
}

// Log logs the given message at the given level.
func (l *Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if !l.Enabled(level) {
		return
	}

	var t time.Time
	if !l.noTime {
		t = time.Now()
	}
	r := slog.NewRecord(t, level, msg, 0)
	r.AddAttrs(attrs...)
	if err := l.handler.Handle(context.Background(), r); err != nil {
		fmt.Fprintf(os.Stderr, "tslog: failed to write log message: %v\n", err)
	}
}

// Err is a convenience wrapper for [tint.Err].
func Err(err error) slog.Attr {
	return tint.Err(err)
}

// AddrPort returns a [slog.Attr] for a [netip.AddrPort].
//
// If addrPort is the zero value, the value is the empty string.
func AddrPort(key string, addrPort netip.AddrPort) slog.Attr {
	var s string
	if addrPort.IsValid() {
		s = addrPort.String()
	}
	return slog.String(key, s)
}
