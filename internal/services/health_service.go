package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// GrantCounter reports how many grants are loaded.
type GrantCounter interface {
	Grants() int
}

// HealthService provides health check functionality
type HealthService struct {
	build     BuildInfo
	grants    GrantCounter
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. grants may be nil.
func NewHealthService(build BuildInfo, grants GrantCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		build:     build,
		grants:    grants,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck reports overall status including the grant registry.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   hs.build.Version,
		Services:  map[string]ServiceHealth{"registry": hs.registryHealth()},
	}
	hs.logger.DebugContext(ctx, "health check completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) registryHealth() ServiceHealth {
	if hs.grants == nil {
		return ServiceHealth{Status: "unavailable", Message: "no grant registry configured"}
	}
	n := hs.grants.Grants()
	if n == 0 {
		return ServiceHealth{Status: "empty", Message: "no grants loaded; every check will be denied"}
	}
	return ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d grants loaded", n)}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   hs.build.Version,
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":    hs.build.Version,
		"commit":     hs.build.Commit,
		"build_time": hs.build.BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.UTC().Format(time.RFC3339),
	}
}
