package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EntitlementMetrics records the service's business metrics. It satisfies
// entitlement.OutcomeRecorder and revocation.Recorder.
type EntitlementMetrics struct {
	validations       metric.Int64Counter
	validationErrors  metric.Int64Counter
	checks            metric.Int64Counter
	revocationChecks  metric.Int64Counter
	revocationLatency metric.Float64Histogram
	httpRequests      metric.Int64Counter
	httpDuration      metric.Float64Histogram
}

// NewEntitlementMetrics creates every instrument on meter.
func NewEntitlementMetrics(meter metric.Meter) (*EntitlementMetrics, error) {
	var (
		m   EntitlementMetrics
		err error
	)

	if m.validations, err = meter.Int64Counter("sescli_entitlement_validations_total",
		metric.WithDescription("Entitlement validations by operation and outcome")); err != nil {
		return nil, err
	}
	if m.validationErrors, err = meter.Int64Counter("sescli_entitlement_validation_errors_total",
		metric.WithDescription("Individual validation errors reported")); err != nil {
		return nil, err
	}
	if m.checks, err = meter.Int64Counter("sescli_entitlement_checks_total",
		metric.WithDescription("Entitlement check requests by result")); err != nil {
		return nil, err
	}
	if m.revocationChecks, err = meter.Int64Counter("sescli_revocation_checks_total",
		metric.WithDescription("Client certificate revocation checks by source and outcome")); err != nil {
		return nil, err
	}
	if m.revocationLatency, err = meter.Float64Histogram("sescli_revocation_check_duration_seconds",
		metric.WithDescription("Time spent checking revocation status"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.httpRequests, err = meter.Int64Counter("sescli_http_requests_total",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram("sescli_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordValidation counts one validation outcome.
func (m *EntitlementMetrics) RecordValidation(ctx context.Context, operation string, success bool, errorCount int) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	if errorCount > 0 {
		m.validationErrors.Add(ctx, int64(errorCount), metric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}

// RecordCheck counts one entitlement check. result is one of granted,
// denied or invalid.
func (m *EntitlementMetrics) RecordCheck(ctx context.Context, result string) {
	m.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRevocation counts one revocation check.
func (m *EntitlementMetrics) RecordRevocation(ctx context.Context, source, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	)
	m.revocationChecks.Add(ctx, 1, attrs)
	m.revocationLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordHTTPRequest counts one served HTTP request.
func (m *EntitlementMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}
