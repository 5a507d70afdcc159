package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger. It is a no-op until Init is called so packages
// may log unconditionally.
var Log = zap.NewNop()

// New builds a JSON logger at the given level ("debug", "info", "warn",
// "error"). sink is a file path; empty means stderr.
func New(level, sink string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if sink != "" {
		cfg.OutputPaths = []string{sink}
		cfg.ErrorOutputPaths = []string{sink}
	}
	return cfg.Build()
}

// Init replaces Log. On failure Log is left untouched.
func Init(level, sink string) error {
	l, err := New(level, sink)
	if err != nil {
		return err
	}
	Log = l
	zap.ReplaceGlobals(l)
	return nil
}

func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Sync flushes buffered entries; the error from syncing stderr is ignored.
func Sync() {
	_ = Log.Sync()
}
