// Package obslog constructs the gateway's one *zap.Logger, built once at
// startup and threaded through the runtime/driver/HTTP layers via
// constructor injection rather than a global.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level ("debug", "info", "warn",
// "error"), either JSON-encoded (production) or console-encoded
// (development).
func New(level string, jsonOutput bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if !jsonOutput {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// Noop returns a logger that discards everything, used as the default in
// tests and library call sites that don't wire a real logger.
func Noop() *zap.Logger {
	return zap.NewNop()
}
