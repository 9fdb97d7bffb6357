// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and minimum level.
type Config struct {
	Development bool
	// Level is a zap level name; empty keeps the preset's default.
	Level string
}

// New builds a zap.Logger configured for development or production.
func New(cfg Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ForRun tags every entry with the invocation's run ID.
func ForRun(logger *zap.Logger, runID string) *zap.Logger {
	return logger.With(zap.String("run_id", runID))
}

// ForChannel tags every entry with a channel and its source.
func ForChannel(logger *zap.Logger, channel, source string) *zap.Logger {
	return logger.With(zap.String("channel", channel), zap.String("source", source))
}
