package config

import "time"

// Application constants for the entitlement service.
const (
	AppName = "sescli"

	// EnvPrefix namespaces every environment variable, e.g. SES_SERVER_URL.
	EnvPrefix = "SES"

	// DefaultConfigFile is looked up in the working directory when no file
	// is named explicitly.
	DefaultConfigFile = "sescli.yaml"

	DefaultServerURL        = "https://localhost:4443"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultIdleTimeout      = 60 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMaxHeaderBytes   = 1 << 20

	DefaultRevocationMode     = "ocsp+crl"
	DefaultRevocationTimeout  = 5 * time.Second
	DefaultRevocationCacheTTL = time.Hour

	DefaultGracePeriod = 7 * 24 * time.Hour
	DefaultGrantsFile  = "grants.yaml"

	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 20
)

// Version information, overridden at link time:
//
//	go build -ldflags "-X sescli/internal/config.Version=1.2.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
