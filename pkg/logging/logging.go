// Package logging builds the process-wide zap logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a named JSON logger writing to stderr. The level comes
// from LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New(service string) *zap.Logger {
	return NewAtLevel(service, os.Getenv("LOG_LEVEL"))
}

// NewAtLevel is New with an explicit level string.
func NewAtLevel(service, level string) *zap.Logger {
	atom := zap.NewAtomicLevelAt(parseLevel(level))
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(os.Stderr),
		atom,
	)
	return zap.New(core).Named(service)
}

// Nop returns a logger that discards everything, for tests and for
// callers that pass no logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
