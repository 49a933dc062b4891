package http

import (
	"context"

	"sescli/internal/entitlement"
	"sescli/internal/services"
)

// EntitlementChecker answers entitlement check requests.
type EntitlementChecker interface {
	Check(ctx context.Context, in entitlement.CheckInput) (entitlement.SoftwareEntitlement, error)
}

// HealthReporter supplies the health and version documents.
type HealthReporter interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
