package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production ready structured logger at the given level.
// An empty level keeps zap's production default (info).
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and task identifiers.
func WithOperation(logger *zap.Logger, operation, taskID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if taskID != "" {
		fields = append(fields, zap.String("task_id", taskID))
	}
	return logger.With(fields...)
}
