package revocation

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrRevoked means a revocation source reported the certificate revoked.
	ErrRevoked = errors.New("certificate revoked")
	// ErrUnverifiable means no revocation source produced a definitive answer.
	ErrUnverifiable = errors.New("certificate revocation status unverifiable")
)

// Mode selects which revocation sources are consulted.
type Mode string

const (
	// ModeOCSP queries the certificate's OCSP responder only.
	ModeOCSP Mode = "ocsp"
	// ModeCRL consults configured and distributed CRLs only.
	ModeCRL Mode = "crl"
	// ModeOCSPThenCRL queries OCSP and falls back to CRLs when the
	// certificate names no responder or the responder gives no answer.
	ModeOCSPThenCRL Mode = "ocsp+crl"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOCSP, ModeCRL, ModeOCSPThenCRL:
		return m, nil
	}
	return "", fmt.Errorf("unknown revocation mode %q (want ocsp, crl or ocsp+crl)", s)
}

// Outcome labels recorded for each check.
const (
	OutcomeGood         = "good"
	OutcomeRevoked      = "revoked"
	OutcomeUnverifiable = "unverifiable"
)

// Recorder receives the outcome of every revocation check.
type Recorder interface {
	RecordRevocation(ctx context.Context, source, outcome string, duration time.Duration)
}

// Config controls a Checker.
type Config struct {
	Mode     Mode
	Timeout  time.Duration
	CacheTTL time.Duration
	CRLFiles []string

	HTTPClient *http.Client
	Now        func() time.Time
	Recorder   Recorder
}

// Checker decides whether a verified client certificate chain has been
// revoked. It is safe for concurrent use.
type Checker struct {
	mode       Mode
	timeout    time.Duration
	cacheTTL   time.Duration
	staticCRLs []*x509.RevocationList

	client   *http.Client
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger

	cache    *cache
	inflight singleflight.Group
}

// NewChecker validates cfg and parses the configured CRL files.
func NewChecker(cfg Config, logger *slog.Logger) (*Checker, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Checker{
		mode:     cfg.Mode,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		client:   cfg.HTTPClient,
		now:      cfg.Now,
		recorder: cfg.Recorder,
		logger:   logger.With(slog.String("component", "revocation")),
		cache:    newCache(cfg.Now),
	}

	for _, path := range cfg.CRLFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CRL file: %w", err)
		}
		crl, err := parseCRL(data)
		if err != nil {
			return nil, fmt.Errorf("parse CRL file %s: %w", path, err)
		}
		c.staticCRLs = append(c.staticCRLs, crl)
	}

	c.logger.Info("revocation checker configured",
		slog.String("mode", string(c.mode)),
		slog.Duration("timeout", c.timeout),
		slog.Duration("cache_ttl", c.cacheTTL),
		slog.Int("crl_files", len(c.staticCRLs)),
	)
	return c, nil
}

// Mode returns the configured mode.
func (c *Checker) Mode() Mode {
	return c.mode
}

// Check returns nil when the leaf of chain is known not to be revoked. chain
// must be a verified chain with the leaf first and its issuer second.
// Failures wrap ErrRevoked or ErrUnverifiable.
func (c *Checker) Check(ctx context.Context, chain []*x509.Certificate) error {
	if len(chain) < 2 {
		return fmt.Errorf("%w: chain has no issuer", ErrUnverifiable)
	}
	leaf, issuer := chain[0], chain[1]

	key := cacheKey(leaf, issuer)
	if c.cache.good(key) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	source, err := c.check(ctx, key, leaf, issuer)
	c.record(ctx, source, err, c.now().Sub(start))

	if err != nil {
		c.logger.WarnContext(ctx, "client certificate rejected",
			slog.String("subject", leaf.Subject.String()),
			slog.String("serial", leaf.SerialNumber.Text(16)),
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (c *Checker) check(ctx context.Context, key string, leaf, issuer *x509.Certificate) (string, error) {
	switch c.mode {
	case ModeOCSP:
		return "ocsp", c.checkOCSP(ctx, key, leaf, issuer)
	case ModeCRL:
		return "crl", c.checkCRL(ctx, key, leaf, issuer)
	}

	err := c.checkOCSP(ctx, key, leaf, issuer)
	if err == nil || errors.Is(err, ErrRevoked) {
		return "ocsp", err
	}
	if crlErr := c.checkCRL(ctx, key, leaf, issuer); !errors.Is(crlErr, errNoCRL) {
		return "crl", crlErr
	}
	return "ocsp", err
}

func (c *Checker) record(ctx context.Context, source string, err error, d time.Duration) {
	if c.recorder == nil {
		return
	}
	outcome := OutcomeGood
	switch {
	case errors.Is(err, ErrRevoked):
		outcome = OutcomeRevoked
	case err != nil:
		outcome = OutcomeUnverifiable
	}
	c.recorder.RecordRevocation(ctx, source, outcome, d)
}

// shared runs fn once for all concurrent callers using key. fn runs under a
// context detached from any single caller and bounded by the checker
// timeout; each caller stops waiting when its own ctx is done.
func (c *Checker) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.inflight.DoChan(key, func() (any, error) {
		fnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(fnCtx)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnverifiable, ctx.Err())
	}
}

// VerifyConnection returns a tls.Config.VerifyConnection callback bound to
// ctx. It checks the first verified chain of the peer.
func (c *Checker) VerifyConnection(ctx context.Context) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.VerifiedChains) == 0 {
			return fmt.Errorf("%w: peer presented no verified chain", ErrUnverifiable)
		}
		return c.Check(ctx, cs.VerifiedChains[0])
	}
}
