package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type grantCount int

func (g grantCount) Grants() int { return int(g) }

func TestHealthService_HealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		grants GrantCounter
		want   string
	}{
		{"no registry", nil, "unavailable"},
		{"empty registry", grantCount(0), "empty"},
		{"loaded registry", grantCount(3), "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService(BuildInfo{Version: "1.2.3"}, tt.grants, nil)
			status := hs.HealthCheck(context.Background())
			assert.Equal(t, "ok", status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Equal(t, tt.want, status.Services["registry"].Status)
		})
	}
}

func TestHealthService_LivenessAndVersion(t *testing.T) {
	hs := NewHealthService(BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-10-19T00:00:00Z"}, grantCount(1), nil)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	v := hs.Version()
	assert.Equal(t, "1.2.3", v["version"])
	assert.Equal(t, "abc123", v["commit"])
	assert.NotEmpty(t, v["go_version"])
}
