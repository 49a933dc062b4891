package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig      `yaml:"server" envconfig:"SERVER"`
	TLS          TLSConfig         `yaml:"tls" envconfig:"TLS"`
	Revocation   RevocationConfig  `yaml:"revocation" envconfig:"REVOCATION"`
	Entitlements EntitlementConfig `yaml:"entitlements" envconfig:"ENTITLEMENTS"`
	Security     SecurityConfig    `yaml:"security" envconfig:"SECURITY"`
	Logging      LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Telemetry    TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains the entitlement server's listener settings
type ServerConfig struct {
	URL              string        `yaml:"url" envconfig:"URL" validate:"required,url,https_url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" envconfig:"HANDSHAKE_TIMEOUT" validate:"gt=0"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gte=0"`
}

// TLSConfig selects the server certificate and the trusted client issuers
type TLSConfig struct {
	CertStoreDir         string `yaml:"cert_store_dir" envconfig:"CERT_STORE_DIR"`
	ConnectionThumbprint string `yaml:"connection_thumbprint" envconfig:"CONNECTION_THUMBPRINT"`
	ClientCAFile         string `yaml:"client_ca_file" envconfig:"CLIENT_CA_FILE"`
}

// RevocationConfig controls client certificate revocation checking
type RevocationConfig struct {
	Mode     string        `yaml:"mode" envconfig:"MODE" validate:"oneof=ocsp crl ocsp+crl"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"gt=0"`
	CRLFiles []string      `yaml:"crl_files" envconfig:"CRL_FILES"`
}

// EntitlementConfig contains entitlement generation and registry settings
type EntitlementConfig struct {
	GrantsFile  string        `yaml:"grants_file" envconfig:"GRANTS_FILE"`
	GracePeriod time.Duration `yaml:"grace_period" envconfig:"GRACE_PERIOD" validate:"gt=0"`
}

// SecurityConfig contains HTTP hardening settings
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig controls OpenTelemetry metrics and tracing
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultConfigFile when path is empty and the file exists) and SES_*
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, explicit := path, path != ""
	if !explicit {
		file = DefaultConfigFile
	}
	if _, err := os.Stat(file); err == nil {
		if err := cfg.mergeFile(file); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", file, err)
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// mergeFile overlays the YAML file onto c. Keys absent from the file leave
// the current values untouched.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("https_url", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.Scheme == "https"
	})
	return v
}

// Validate checks every field that has a constraint regardless of which
// command is running.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldErrors(verrs)
		}
		return err
	}
	return nil
}

// ValidateServer checks the settings only the entitlement server needs.
func (c *Config) ValidateServer() error {
	var problems []string
	if c.TLS.CertStoreDir == "" {
		problems = append(problems, "tls.cert_store_dir is required")
	}
	if c.TLS.ConnectionThumbprint == "" {
		problems = append(problems, "tls.connection_thumbprint is required")
	}
	if c.TLS.ClientCAFile == "" {
		problems = append(problems, "tls.client_ca_file is required")
	}
	if _, err := c.ListenAddress(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ListenAddress returns the host:port the server binds, derived from
// Server.URL. A URL without a port listens on 443.
func (c *Config) ListenAddress() (string, error) {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "", fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("server.url must use https, got %q", u.Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		return "", fmt.Errorf("server.url must not include a path, got %q", u.Path)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func fieldErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "https_url":
		return fmt.Sprintf("%s must use the https scheme", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:              DefaultServerURL,
			HandshakeTimeout: DefaultHandshakeTimeout,
			ReadTimeout:      DefaultReadTimeout,
			WriteTimeout:     DefaultWriteTimeout,
			IdleTimeout:      DefaultIdleTimeout,
			ShutdownTimeout:  DefaultShutdownTimeout,
			MaxHeaderBytes:   DefaultMaxHeaderBytes,
		},
		Revocation: RevocationConfig{
			Mode:     DefaultRevocationMode,
			Timeout:  DefaultRevocationTimeout,
			CacheTTL: DefaultRevocationCacheTTL,
		},
		Entitlements: EntitlementConfig{
			GrantsFile:  DefaultGrantsFile,
			GracePeriod: DefaultGracePeriod,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/sescli.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
		},
	}
}
