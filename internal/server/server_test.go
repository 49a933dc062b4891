package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sescli/internal/revocation"
	"sescli/internal/shared/testutil"
)

type fixture struct {
	pki       *testutil.PKI
	responder *testutil.OCSPResponder
	server    *Server
	url       string
}

func startServer(t *testing.T, verifier func(pki *testutil.PKI) ConnectionVerifier) *fixture {
	t.Helper()
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()
	logger, _ := testutil.NewTestLogger(t)

	cfg := Config{
		Addr:             "127.0.0.1:0",
		Certificate:      pki.Server().TLSCertificate(),
		ClientCAs:        pki.Pool(),
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ShutdownTimeout:  5 * time.Second,
	}
	if verifier != nil {
		cfg.Verifier = verifier(pki)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	})
	srv, err := New(cfg, handler, logger)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", cfg.Addr)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Shutdown(context.Background()))
		assert.NoError(t, <-done)
	})

	return &fixture{pki: pki, responder: responder, server: srv, url: "https://" + ln.Addr().String() + "/"}
}

func (f *fixture) get(t *testing.T, certs ...tls.Certificate) (string, error) {
	t.Helper()
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{
			RootCAs:      f.pki.Pool(),
			Certificates: certs,
		}},
	}
	defer client.CloseIdleConnections()

	resp, err := client.Get(f.url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func revocationChecker(t *testing.T) func(*testutil.PKI) ConnectionVerifier {
	return func(*testutil.PKI) ConnectionVerifier {
		logger, _ := testutil.NewTestLogger(t)
		checker, err := revocation.NewChecker(revocation.Config{Mode: revocation.ModeOCSP, Timeout: 2 * time.Second}, logger)
		require.NoError(t, err)
		return checker
	}
}

func TestServer_AcceptsVerifiedClient(t *testing.T) {
	f := startServer(t, revocationChecker(t))
	client := f.pki.Client("vm-host-01", testutil.WithOCSPServer(f.responder.URL))

	body, err := f.get(t, client.TLSCertificate())
	require.NoError(t, err)
	assert.Equal(t, "vm-host-01", body)
	assert.Equal(t, 1, f.responder.Requests())
	assert.NotNil(t, f.server.Addr())
}

func TestServer_RejectsMissingClientCertificate(t *testing.T) {
	f := startServer(t, revocationChecker(t))

	_, err := f.get(t)
	assert.Error(t, err)
}

func TestServer_RejectsUntrustedClient(t *testing.T) {
	f := startServer(t, nil)
	stranger := testutil.NewPKI(t).Client("stranger")

	_, err := f.get(t, stranger.TLSCertificate())
	assert.Error(t, err)
}

func TestServer_RejectsRevokedClient(t *testing.T) {
	f := startServer(t, revocationChecker(t))
	client := f.pki.Client("revoked", testutil.WithOCSPServer(f.responder.URL))
	f.pki.Revoke(client.Cert)

	_, err := f.get(t, client.TLSCertificate())
	assert.Error(t, err)
}

func TestServer_RejectsUnverifiableClient(t *testing.T) {
	f := startServer(t, revocationChecker(t))
	client := f.pki.Client("no-ocsp")

	_, err := f.get(t, client.TLSCertificate())
	assert.Error(t, err)
}

func TestServer_WithoutVerifier(t *testing.T) {
	f := startServer(t, nil)
	client := f.pki.Client("plain")

	body, err := f.get(t, client.TLSCertificate())
	require.NoError(t, err)
	assert.Equal(t, "plain", body)
}

func TestTLSConfig(t *testing.T) {
	pki := testutil.NewPKI(t)
	srv, err := New(Config{
		Addr:        "127.0.0.1:0",
		Certificate: pki.Server().TLSCertificate(),
		ClientCAs:   pki.Pool(),
		Verifier:    verifierFunc(func(tls.ConnectionState) error { return nil }),
	}, http.NotFoundHandler(), nil)
	require.NoError(t, err)

	cfg := srv.TLSConfig()
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotNil(t, cfg.GetConfigForClient)

	perConn, err := cfg.GetConfigForClient(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.NotNil(t, perConn.VerifyConnection)
}

type verifierFunc func(tls.ConnectionState) error

func (f verifierFunc) VerifyConnection(context.Context) func(tls.ConnectionState) error {
	return f
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	pki := testutil.NewPKI(t)
	cert := pki.Server().TLSCertificate()

	tests := map[string]Config{
		"no certificate": {Addr: ":0", ClientCAs: x509.NewCertPool()},
		"no client CAs":  {Addr: ":0", Certificate: cert},
		"no address":     {Certificate: cert, ClientCAs: pki.Pool()},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, http.NotFoundHandler(), nil)
			assert.Error(t, err)
		})
	}
}
