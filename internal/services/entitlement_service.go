package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sescli/internal/entitlement"
	"sescli/internal/validation"
)

// CheckRecorder counts entitlement check results.
type CheckRecorder interface {
	RecordCheck(ctx context.Context, result string)
}

// EntitlementService validates entitlement input and answers checks
// against a grant registry.
type EntitlementService struct {
	registry    *entitlement.Registry
	validations *entitlement.ValidationLogger
	builderOpts []entitlement.BuilderOption
	now         func() time.Time
	recorder    CheckRecorder
	tracer      trace.Tracer
	logger      *slog.Logger
}

// EntitlementServiceOption configures an EntitlementService.
type EntitlementServiceOption func(*EntitlementService)

// WithClock replaces time.Now. Each operation reads the clock once and
// hands that instant to a fresh Builder.
func WithClock(now func() time.Time) EntitlementServiceOption {
	return func(s *EntitlementService) { s.now = now }
}

// WithBuilderOptions passes options to every Builder the service creates.
func WithBuilderOptions(opts ...entitlement.BuilderOption) EntitlementServiceOption {
	return func(s *EntitlementService) { s.builderOpts = append(s.builderOpts, opts...) }
}

// WithCheckRecorder counts check results.
func WithCheckRecorder(r CheckRecorder) EntitlementServiceOption {
	return func(s *EntitlementService) { s.recorder = r }
}

// WithTracer sets the tracer used for check spans.
func WithTracer(t trace.Tracer) EntitlementServiceOption {
	return func(s *EntitlementService) { s.tracer = t }
}

// NewEntitlementService creates the service. A nil registry behaves as an
// empty one.
func NewEntitlementService(registry *entitlement.Registry, validations *entitlement.ValidationLogger, logger *slog.Logger, opts ...EntitlementServiceOption) *EntitlementService {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = entitlement.NewRegistry()
	}
	if validations == nil {
		validations = entitlement.NewValidationLogger(logger, nil)
	}
	s := &EntitlementService{
		registry:    registry,
		validations: validations,
		now:         time.Now,
		tracer:      otel.Tracer("sescli/services"),
		logger:      logger.With(slog.String("component", "entitlement_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EntitlementService) builder() *entitlement.Builder {
	return entitlement.NewBuilder(s.now(), s.builderOpts...)
}

// Check validates in and looks up a grant covering the requested instant.
// Invalid input returns *validation.Errors carrying every message; a valid
// request without a matching grant returns an error wrapping
// entitlement.ErrNoEntitlement or entitlement.ErrOutsideWindow.
func (s *EntitlementService) Check(ctx context.Context, in entitlement.CheckInput) (entitlement.SoftwareEntitlement, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.check",
		trace.WithAttributes(attribute.String("entitlement.virtual_machine_id", in.VirtualMachineID)))
	defer span.End()

	parsed := s.builder().ParseCheck(in)
	s.validations.LogCheck(ctx, parsed)

	req, ok := parsed.Value()
	if !ok {
		s.record(ctx, CheckInvalid)
		span.SetAttributes(attribute.Int("entitlement.validation_errors", len(parsed.Errors())))
		span.SetStatus(codes.Error, "invalid check request")
		return entitlement.SoftwareEntitlement{}, parsed.Err()
	}

	grant, err := s.registry.Check(req)
	if err != nil {
		s.record(ctx, CheckDenied)
		span.SetAttributes(attribute.String("entitlement.result", CheckDenied))
		level := slog.LevelInfo
		if !errors.Is(err, entitlement.ErrNoEntitlement) && !errors.Is(err, entitlement.ErrOutsideWindow) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "entitlement denied",
			slog.String("virtual_machine_id", req.VirtualMachineID),
			slog.Time("at", req.At),
			slog.String("reason", err.Error()),
		)
		return entitlement.SoftwareEntitlement{}, err
	}

	s.record(ctx, CheckGranted)
	span.SetAttributes(attribute.String("entitlement.result", CheckGranted))
	s.logger.InfoContext(ctx, "entitlement granted",
		slog.String("virtual_machine_id", req.VirtualMachineID),
		slog.Time("at", req.At),
		slog.Time("not_after", grant.NotAfter()),
	)
	return grant, nil
}

// Generate builds a new entitlement from raw input and logs the outcome.
func (s *EntitlementService) Generate(ctx context.Context, in entitlement.Input) validation.Errorable[entitlement.SoftwareEntitlement] {
	result := s.builder().Build(in)
	s.validations.LogEntitlement(ctx, "generate", result)
	return result
}

// Grants returns the number of grants the registry holds.
func (s *EntitlementService) Grants() int {
	return s.registry.Len()
}

func (s *EntitlementService) record(ctx context.Context, result string) {
	if s.recorder != nil {
		s.recorder.RecordCheck(ctx, result)
	}
}
