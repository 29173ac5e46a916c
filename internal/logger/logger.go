package logger

import (
	"fmt"

	"ai-trading-assistant-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap.Logger instance based on the provided configuration.
// Debug mode forces the debug level regardless of the configured one.
func NewLogger(cfg config.Logger, debug bool) (*zap.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if debug {
		level = "debug"
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.Level = zap.NewAtomicLevelAt(logLevel)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]interface{}{"service": "ai-trading-assistant"}

	return zc.Build()
}
