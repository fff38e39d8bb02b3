package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewZapLoggerPresets(t *testing.T) {
	for _, preset := range []string{"", "console", "console-nocolor", "console-notime", "systemd", "production", "development"} {
		t.Run(preset, func(t *testing.T) {
			logger, err := NewZapLogger(preset, zapcore.InvalidLevel)
			if err != nil {
				t.Fatalf("NewZapLogger(%q) failed: %v", preset, err)
			}
			if logger == nil {
				t.Fatalf("NewZapLogger(%q) returned nil logger", preset)
			}
		})
	}
}

func TestNewZapLoggerLevel(t *testing.T) {
	logger, err := NewZapLogger("systemd", zapcore.DebugLevel)
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level is not enabled")
	}

	logger, err = NewZapLogger("console", zapcore.InvalidLevel)
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level is enabled by default")
	}

	logger, err = NewZapLogger("production", zapcore.WarnLevel)
	if err != nil {
		t.Fatalf("NewZapLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("level override was not applied to the production preset")
	}
}

func TestNewZapLoggerFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "zap.json")
	if err := os.WriteFile(good, []byte(`{"level":"debug","encoding":"json","outputPaths":["stderr"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewZapLogger(good, zapcore.InvalidLevel); err != nil {
		t.Errorf("NewZapLogger(%q) failed: %v", good, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"lvl":"debug"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewZapLogger(bad, zapcore.InvalidLevel); err == nil {
		t.Error("NewZapLogger succeeded with unknown field")
	}

	if _, err := NewZapLogger(filepath.Join(dir, "missing.json"), zapcore.InvalidLevel); err == nil {
		t.Error("NewZapLogger succeeded with missing file")
	}
}
