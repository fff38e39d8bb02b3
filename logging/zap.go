// Package logging builds the zap loggers used by the tunnel services.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/database64128/xvpn-go/jsonhelper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPreset is the preset used when none is given.
const DefaultPreset = "console"

// NewZapLogger returns a new [*zap.Logger] with the given preset and log level.
//
// The available presets are:
//
//   - "console" (default): colored console output with timestamps.
//   - "console-nocolor": Same as "console", but without color.
//   - "console-notime": Same as "console", but without timestamps.
//   - "systemd": Same as "console", but without color and timestamps, as journald adds its own.
//   - "production": Zap's built-in production preset.
//   - "development": Zap's built-in development preset.
//
// If the preset is not recognized, it is treated as a path to a JSON configuration file.
//
// If level is [zapcore.InvalidLevel], each preset keeps its own level,
// which is info for the console presets.
func NewZapLogger(preset string, level zapcore.Level) (*zap.Logger, error) {
	consoleLevel := level
	if consoleLevel == zapcore.InvalidLevel {
		consoleLevel = zapcore.InfoLevel
	}

	switch preset {
	case "", "console":
		return NewConsoleZapLogger(consoleLevel, ConsoleOptions{}), nil
	case "console-nocolor":
		return NewConsoleZapLogger(consoleLevel, ConsoleOptions{NoColor: true}), nil
	case "console-notime":
		return NewConsoleZapLogger(consoleLevel, ConsoleOptions{NoTime: true}), nil
	case "systemd":
		return NewConsoleZapLogger(consoleLevel, ConsoleOptions{NoColor: true, NoTime: true}), nil
	}

	var cfg zap.Config
	switch preset {
	case "production":
		cfg = zap.NewProductionConfig()
	case "development":
		cfg = zap.NewDevelopmentConfig()
	default:
		if err := jsonhelper.OpenAndDecodeDisallowUnknownFields(preset, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load zap logger config from file %q: %w", preset, err)
		}
	}

	if level != zapcore.InvalidLevel {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	return cfg.Build()
}

// ConsoleOptions controls the output of console loggers.
type ConsoleOptions struct {
	NoColor   bool
	NoTime    bool
	AddCaller bool
}

// NewConsoleZapLogger creates a new [*zap.Logger] that writes to stderr.
//
// See [NewConsoleEncoderConfig] for the encoder configuration.
func NewConsoleZapLogger(level zapcore.Level, opts ConsoleOptions) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(NewConsoleEncoderConfig(opts))
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	var zopts []zap.Option
	if opts.NoTime {
		zopts = append(zopts, zap.WithClock(zeroClock{})) // The sampler needs a real clock, so don't add one.
	}
	if opts.AddCaller {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(core, zopts...)
}

// NewConsoleEncoderConfig returns the [zapcore.EncoderConfig] of console loggers.
func NewConsoleEncoderConfig(opts ConsoleOptions) zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		NameKey:          "N",
		CallerKey:        "C",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "M",
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}

	if opts.NoColor {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	if opts.NoTime {
		ec.TimeKey = zapcore.OmitKey
		ec.EncodeTime = nil
	}

	return ec
}

// zeroClock always returns the zero time.
//
// zeroClock implements [zapcore.Clock].
type zeroClock struct{}

// Now implements [zapcore.Clock.Now].
func (zeroClock) Now() time.Time {
	return time.Time{}
}

// NewTicker implements [zapcore.Clock.NewTicker].
func (zeroClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}
