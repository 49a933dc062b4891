package http

import (
	"net/http"

	apierrors "sescli/internal/errors"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	exporter http.Handler
	errors   *apierrors.ErrorHandler
}

// NewMetricsHandler wraps exporter, which may be nil when telemetry is off.
func NewMetricsHandler(exporter http.Handler, errs *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter, errors: errs}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.errors.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}
	h.exporter.ServeHTTP(w, r)
}
