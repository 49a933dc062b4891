package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sescli/internal/config"
)

func newProviders(t *testing.T) *OTelProviders {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "sescli-test"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })
	return providers
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestInitializeOTel(t *testing.T) {
	providers := newProviders(t)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	require.NotNil(t, providers.PrometheusHTTP)

	body := scrape(t, providers.PrometheusHTTP)
	assert.Contains(t, body, "go_goroutines")
}

func TestInitializeOTel_Twice(t *testing.T) {
	// Separate registries mean repeated initialization does not collide.
	newProviders(t)
	newProviders(t)
}

func TestTraceIDFromContext(t *testing.T) {
	providers := newProviders(t)

	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := providers.Tracer.Start(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceIDFromContext(ctx), 32)
}

func TestEntitlementMetrics(t *testing.T) {
	providers := newProviders(t)
	metrics, err := NewEntitlementMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordValidation(ctx, "generate", true, 0)
	metrics.RecordValidation(ctx, "generate", false, 3)
	metrics.RecordCheck(ctx, "granted")
	metrics.RecordRevocation(ctx, "ocsp", "good", 20*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, http.MethodPost, "/softwareEntitlements", http.StatusOK, time.Millisecond)

	body := scrape(t, providers.PrometheusHTTP)
	assert.Contains(t, body, "sescli_entitlement_validations_total")
	assert.Contains(t, body, `outcome="failure"`)
	assert.Contains(t, body, "sescli_entitlement_validation_errors_total")
	assert.Contains(t, body, `result="granted"`)
	assert.Contains(t, body, "sescli_revocation_checks_total")
	assert.Contains(t, body, "sescli_revocation_check_duration_seconds")
	assert.Contains(t, body, `route="/softwareEntitlements"`)
}

func TestRecordError_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() { RecordError(context.Background(), io.EOF) })
}
