package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"sescli/internal/infrastructure"
)

// ConnectionVerifier checks a peer after chain verification succeeded.
// revocation.Checker satisfies it.
type ConnectionVerifier interface {
	VerifyConnection(ctx context.Context) func(tls.ConnectionState) error
}

// Config is the immutable server configuration.
type Config struct {
	Addr        string
	Certificate tls.Certificate
	ClientCAs   *x509.CertPool
	Verifier    ConnectionVerifier // nil disables post-verification checks

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
}

// Server is the mutual-TLS entitlement listener.
type Server struct {
	cfg    Config
	http   *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New validates cfg and prepares the server. It does not bind.
func New(cfg Config, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Certificate.Certificate) == 0 || cfg.Certificate.PrivateKey == nil {
		return nil, errors.New("server certificate with private key is required")
	}
	if cfg.ClientCAs == nil {
		return nil, errors.New("client CA pool is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("listen address is required")
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "server")),
	}
	s.http = &http.Server{
		Addr:      cfg.Addr,
		Handler:   handler,
		TLSConfig: s.TLSConfig(),
		// net/http bounds the TLS handshake by the smallest positive
		// read, read-header and write timeout.
		ReadHeaderTimeout: cfg.HandshakeTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ErrorLog:          infrastructure.NewErrorLog(s.logger),
	}
	return s, nil
}

// TLSConfig returns the listener's TLS configuration: TLS 1.2 or later, a
// client certificate is required and must chain to ClientCAs, and every
// verified chain is passed to the Verifier with the handshake's context.
func (s *Server) TLSConfig() *tls.Config {
	base := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{s.cfg.Certificate},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    s.cfg.ClientCAs,
		NextProtos:   []string{"h2", "http/1.1"},
	}
	if s.cfg.Verifier == nil {
		return base
	}

	cfg := base.Clone()
	cfg.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
		perConn := base.Clone()
		perConn.VerifyConnection = s.cfg.Verifier.VerifyConnection(hello.Context())
		return perConn, nil
	}
	return cfg
}

// ListenAndServe binds Addr and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	leaf := s.cfg.Certificate.Leaf
	if leaf == nil {
		leaf, _ = x509.ParseCertificate(s.cfg.Certificate.Certificate[0])
	}
	attrs := []any{slog.String("address", ln.Addr().String())}
	if leaf != nil {
		attrs = append(attrs,
			slog.String("certificate_subject", leaf.Subject.String()),
			slog.Time("certificate_not_after", leaf.NotAfter))
	}
	s.logger.InfoContext(ctx, "entitlement server listening", attrs...)

	err := s.http.ServeTLS(ln, "", "")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for active requests, at
// most ShutdownTimeout when it is set.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.logger.InfoContext(ctx, "entitlement server shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
