package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"sescli/internal/certstore"
	"sescli/internal/config"
	"sescli/internal/entitlement"
	apierrors "sescli/internal/errors"
	"sescli/internal/infrastructure"
	"sescli/internal/middleware"
	"sescli/internal/revocation"
	"sescli/internal/server"
	"sescli/internal/services"
	handlers "sescli/internal/transport/http"
)

// Application wires the entitlement server together.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.EntitlementMetrics

	Store        *certstore.Store
	Revocation   *revocation.Checker
	Registry     *entitlement.Registry
	Entitlements *services.EntitlementService
	Health       *services.HealthService

	Router chi.Router
	Server *server.Server
}

// NewApplication resolves the connection certificate, trust anchors,
// revocation checker and grant registry described by cfg. Failures are
// *apierrors.AppError values typed CONFIG, CERTIFICATE or VALIDATION.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Application, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, apierrors.NewConfigError("incomplete server configuration", err)
	}
	addr, err := cfg.ListenAddress()
	if err != nil {
		return nil, apierrors.NewConfigError("invalid server URL", err)
	}

	a := &Application{Config: cfg, Logger: logger}
	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.Version),
		slog.String("server_url", cfg.Server.URL))

	if err := a.initializeTelemetry(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = a.OTelProviders.Shutdown(context.Background())
		}
	}()

	cert, err := a.resolveCertificate(ctx)
	if err != nil {
		return nil, err
	}

	clientCAs, err := certstore.LoadPool(cfg.TLS.ClientCAFile)
	if err != nil {
		return nil, apierrors.NewConfigError("cannot load client CA bundle", err).
			WithContext("path", cfg.TLS.ClientCAFile)
	}

	a.Revocation, err = revocation.NewChecker(revocation.Config{
		Mode:     revocation.Mode(cfg.Revocation.Mode),
		Timeout:  cfg.Revocation.Timeout,
		CacheTTL: cfg.Revocation.CacheTTL,
		CRLFiles: cfg.Revocation.CRLFiles,
		Recorder: a.Metrics,
	}, logger)
	if err != nil {
		return nil, apierrors.NewConfigError("cannot configure revocation checking", err)
	}

	if err := a.initializeServices(ctx); err != nil {
		return nil, err
	}
	a.setupRouter()

	a.Server, err = server.New(server.Config{
		Addr:             addr,
		Certificate:      *cert,
		ClientCAs:        clientCAs,
		Verifier:         a.Revocation,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		MaxHeaderBytes:   cfg.Server.MaxHeaderBytes,
	}, a.Router, logger)
	if err != nil {
		return nil, apierrors.NewTransportError("cannot create server", err)
	}
	return a, nil
}

func (a *Application) initializeTelemetry() error {
	providers, err := infrastructure.InitializeOTel(a.Config.Telemetry, a.Logger)
	if err != nil {
		return apierrors.NewConfigError("failed to initialize OpenTelemetry", err)
	}
	metrics, err := infrastructure.NewEntitlementMetrics(providers.Meter)
	if err != nil {
		return apierrors.NewConfigError("failed to create metrics", err)
	}
	a.OTelProviders, a.Metrics = providers, metrics
	return nil
}

// resolveCertificate looks the connection certificate up once. Not found
// and unusable certificates produce different messages.
func (a *Application) resolveCertificate(ctx context.Context) (*tls.Certificate, error) {
	a.Store = certstore.NewStore(a.Config.TLS.CertStoreDir)
	thumbprint := a.Config.TLS.ConnectionThumbprint

	cert, err := a.Store.Find(ctx, thumbprint)
	switch {
	case err == nil:
		a.Logger.InfoContext(ctx, "connection certificate resolved",
			slog.String("thumbprint", thumbprint),
			slog.String("store", a.Store.Dir()))
		return cert, nil
	case errors.Is(err, certstore.ErrInvalidSelector):
		return nil, apierrors.NewConfigError("invalid tls.connection_thumbprint", err)
	case errors.Is(err, certstore.ErrCertificateNotFound):
		return nil, apierrors.NewCertificateError("connection certificate not found", err).
			WithContext("thumbprint", thumbprint).
			WithContext("store", a.Store.Dir())
	case errors.Is(err, certstore.ErrCertificateInvalid):
		return nil, apierrors.NewCertificateError("connection certificate is not usable", err).
			WithContext("thumbprint", thumbprint)
	default:
		return nil, apierrors.NewCertificateError("cannot read certificate store", err).
			WithContext("store", a.Store.Dir())
	}
}

func (a *Application) initializeServices(ctx context.Context) error {
	grace := entitlement.WithGracePeriod(a.Config.Entitlements.GracePeriod)

	registry, err := entitlement.LoadRegistry(a.Config.Entitlements.GrantsFile, entitlement.NewBuilder(time.Now(), grace))
	if err != nil {
		return apierrors.NewAppValidationError("cannot load grants", err).
			WithContext("path", a.Config.Entitlements.GrantsFile)
	}
	a.Registry = registry
	a.Logger.InfoContext(ctx, "grant registry loaded",
		slog.String("path", a.Config.Entitlements.GrantsFile),
		slog.Int("grants", registry.Len()))

	validations := entitlement.NewValidationLogger(a.Logger, a.Metrics)
	a.Entitlements = services.NewEntitlementService(registry, validations, a.Logger,
		services.WithBuilderOptions(grace),
		services.WithCheckRecorder(a.Metrics),
		services.WithTracer(a.OTelProviders.Tracer),
	)
	a.Health = services.NewHealthService(services.BuildInfo{
		Version:   config.Version,
		Commit:    config.Commit,
		BuildTime: config.BuildTime,
	}, a.Entitlements, a.Logger)
	return nil
}

func (a *Application) setupRouter() {
	errs := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")

	var limiter *middleware.RateLimiter
	if rl := a.Config.Security.RateLimit; rl.Enabled && rl.RPS > 0 {
		limiter = middleware.NewRateLimiter(rl.RPS, rl.Burst, errs, a.Logger)
	}

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Entitlements: a.Entitlements,
		Health:       a.Health,
		Metrics:      a.OTelProviders.PrometheusHTTP,
		Errors:       errs,
		Logger:       a.Logger,
		Tracing:      middleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics),
		RateLimit:    limiter,
	})
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.ListenAndServe(gctx); err != nil {
			return apierrors.NewTransportError("server stopped", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(context.Background(), "shutdown requested")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// Stop shuts the server and telemetry down.
func (a *Application) Stop(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.OTelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Addr reports the listener address once Run has bound it.
func (a *Application) Addr() string {
	if a.Server == nil || a.Server.Addr() == nil {
		return ""
	}
	return a.Server.Addr().String()
}

// String describes the application for diagnostics.
func (a *Application) String() string {
	return fmt.Sprintf("%s %s (%s)", config.AppName, config.Version, a.Config.Server.URL)
}
