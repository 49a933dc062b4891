package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "sescli/internal/errors"
	"sescli/internal/middleware"
)

// MaxRequestBodyBytes bounds a check request body.
const MaxRequestBodyBytes = 64 << 10

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Entitlements EntitlementChecker
	Health       HealthReporter
	Metrics      http.Handler // Prometheus exporter, may be nil
	Errors       *apierrors.ErrorHandler
	Logger       *slog.Logger

	// Optional instrumentation.
	Tracing   *middleware.OTelMiddleware
	RateLimit *middleware.RateLimiter
}

// NewRouter builds the entitlement server's routes:
//
//	POST /softwareEntitlements
//	GET  /health
//	GET  /health/live
//	GET  /version
//	GET  /metrics
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errs := cfg.Errors
	if errs == nil {
		errs = apierrors.NewErrorHandler(logger, false)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.Tracing != nil {
		r.Use(cfg.Tracing.Handler)
	}
	r.Use(middleware.StructuredLogger(logger.With(slog.String("component", "http"))))
	r.Use(middleware.Recoverer(errs))
	r.Use(middleware.SecurityHeaders)
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit.Handler)
	}

	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)

	if cfg.Health != nil {
		health := NewHealthHandler(cfg.Health, logger)
		r.Get("/health", health.HealthCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)
	}
	r.Method(http.MethodGet, "/metrics", NewMetricsHandler(cfg.Metrics, errs))

	if cfg.Entitlements != nil {
		entitlements := NewEntitlementHandler(cfg.Entitlements, errs, logger)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ClientCertificate(errs, logger))
			r.Use(middleware.MaxBodySize(MaxRequestBodyBytes))
			r.Use(middleware.ContentTypeValidator(errs, "application/json"))
			r.Post("/softwareEntitlements", entitlements.Check)
		})
	}
	return r
}
