package entitlement

import (
	"context"
	"log/slog"
	"time"

	"sescli/internal/validation"
)

// OutcomeRecorder counts validation outcomes. It is satisfied by
// infrastructure.EntitlementMetrics.
type OutcomeRecorder interface {
	RecordValidation(ctx context.Context, operation string, success bool, errorCount int)
}

// ValidationLogger writes validation outcomes to a structured log sink.
type ValidationLogger struct {
	logger   *slog.Logger
	recorder OutcomeRecorder
}

// NewValidationLogger creates a ValidationLogger. recorder may be nil.
func NewValidationLogger(logger *slog.Logger, recorder OutcomeRecorder) *ValidationLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationLogger{
		logger:   logger.With(slog.String("component", "entitlement_validation")),
		recorder: recorder,
	}
}

// LogEntitlement records the outcome of building an entitlement.
func (l *ValidationLogger) LogEntitlement(ctx context.Context, operation string, result validation.Errorable[SoftwareEntitlement]) {
	result.Match(
		func(e SoftwareEntitlement) {
			l.logger.InfoContext(ctx, "entitlement validated",
				slog.String("operation", operation),
				slog.String("virtual_machine_id", e.VirtualMachineID()),
				slog.String("not_before", e.NotBefore().Format(time.RFC3339)),
				slog.String("not_after", e.NotAfter().Format(time.RFC3339)),
			)
			l.record(ctx, operation, true, 0)
		},
		func(errs []string) { l.failure(ctx, operation, errs) },
	)
}

// LogCheck records the outcome of validating a check request.
func (l *ValidationLogger) LogCheck(ctx context.Context, result validation.Errorable[CheckRequest]) {
	const operation = "check"
	result.Match(
		func(c CheckRequest) {
			l.logger.DebugContext(ctx, "check request validated",
				slog.String("operation", operation),
				slog.String("virtual_machine_id", c.VirtualMachineID),
				slog.String("at", c.At.Format(time.RFC3339)),
			)
			l.record(ctx, operation, true, 0)
		},
		func(errs []string) { l.failure(ctx, operation, errs) },
	)
}

func (l *ValidationLogger) failure(ctx context.Context, operation string, errs []string) {
	l.logger.WarnContext(ctx, "validation failed",
		slog.String("operation", operation),
		slog.Int("error_count", len(errs)),
		slog.Any("errors", errs),
	)
	l.record(ctx, operation, false, len(errs))
}

func (l *ValidationLogger) record(ctx context.Context, operation string, success bool, errorCount int) {
	if l.recorder != nil {
		l.recorder.RecordValidation(ctx, operation, success, errorCount)
	}
}
