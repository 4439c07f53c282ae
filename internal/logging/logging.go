// Package logging provides the structured diagnostic logger shared by the
// core subsystems and the command surface.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger with the operation-tagging helpers the core uses.
type Logger struct {
	*zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// An empty level falls back to "info". KITCAT_LOG, when set, overrides level.
func New(level string) (*Logger, error) {
	if env := os.Getenv("KITCAT_LOG"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}

	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.EncoderConfig.TimeKey = ""
	cfg.OutputPaths = []string{"stderr"}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{base}, nil
}

// Op returns a child logger tagged with the name of a mutating operation,
// for the object/index/ref/checkout/merge writes that must be traceable.
func (l *Logger) Op(name string) *Logger {
	return &Logger{l.With(zap.String("op", name))}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{zap.NewNop()}
}
