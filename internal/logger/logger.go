package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InconsistencyEvent tags log entries that need manual reconciliation
const InconsistencyEvent = "inventory_inconsistency"

// New creates a new structured logger for the given environment
func New(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Always log to stdout for container compatibility
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", "resale-market")),
	)
}

// Inconsistency records a state the system could not repair on its own.
// These entries are the input for manual or scripted reconciliation.
func Inconsistency(log *zap.Logger, msg string, fields ...zap.Field) {
	log.Error(msg, append([]zap.Field{zap.String("event", InconsistencyEvent)}, fields...)...)
}
