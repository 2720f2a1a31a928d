package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production JSON logger at the given level
// (Config.Logging.Level), ISO8601-timestamped exactly as
// zap.NewProductionConfig's default shape, matching the rest of the
// engine's structured, lower-kebab-event-name logging.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}

// NewDevelopmentLogger builds the human-readable console logger used by
// the CLI verbs (cmd/*), mirroring zap.NewDevelopment's default shape.
func NewDevelopmentLogger() (*zap.Logger, error) {
	return zap.NewDevelopment()
}
