// Package logging wraps go.uber.org/zap in production JSON-encoder
// configuration, grounded on jordigilh-kubernaut's zap usage
// (SPEC_FULL.md §4.18). Stage transitions and findings are logged as
// structured fields, never interpolated into the message text, so they
// stay machine-parseable in log aggregation.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

// New builds a production zap.Logger at the given level.
func New(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// StageFields builds the structured fields logged at every driver stage
// transition.
func StageFields(transactionID, stage string, outcome findings.Outcome) []zap.Field {
	return []zap.Field{
		zap.String("transaction_id", transactionID),
		zap.String("stage", stage),
		zap.String("outcome", string(outcome)),
	}
}

// FindingFields builds the structured fields logged for a single
// finding, attributed to the stage that produced it.
func FindingFields(transactionID, stage string, f findings.Finding) []zap.Field {
	return []zap.Field{
		zap.String("transaction_id", transactionID),
		zap.String("stage", stage),
		zap.String("code", string(f.Code)),
		zap.String("severity", string(f.Severity)),
	}
}

// LogStep emits one log line per finding in step, plus a summary line
// for the step itself.
func LogStep(logger *zap.Logger, transactionID string, step findings.Step) {
	logger.Info("stage completed", StageFields(transactionID, step.Stage, step.Outcome)...)
	for _, f := range step.Findings {
		fields := append(FindingFields(transactionID, step.Stage, f), zap.String("message", f.Message))
		switch f.Severity {
		case findings.SeverityFatal, findings.SeverityError:
			logger.Error("validation finding", fields...)
		case findings.SeverityWarning:
			logger.Warn("validation finding", fields...)
		default:
			logger.Info("validation finding", fields...)
		}
	}
}
