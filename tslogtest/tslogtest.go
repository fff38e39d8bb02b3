// Package tslogtest provides utilities for using [tslog] in tests.
package tslogtest

import (
	"log/slog"
	"testing"

	"github.com/database64128/xvpn-go/tslog"
)

// NewLogger returns a debug level [*tslog.Logger] that writes through t.Logf.
func NewLogger(t testing.TB) *tslog.Logger {
	t.Helper()
	c := tslog.Config{
		Level:   slog.LevelDebug,
		NoColor: true,
		NoTime:  true,
	}
	logger, err := c.NewLogger(testingWriter{t})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

type testingWriter struct {
	t testing.TB
}

func (w testingWriter) Write(p []byte) (n int, err error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
