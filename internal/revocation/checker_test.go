package revocation

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sescli/internal/shared/testutil"
)

type outcome struct {
	source, outcome string
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (f *fakeRecorder) RecordRevocation(_ context.Context, source, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome{source, result})
}

func newChecker(t *testing.T, cfg Config) *Checker {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	c, err := NewChecker(cfg, logger)
	require.NoError(t, err)
	return c
}

func chainOf(pki *testutil.PKI, issued testutil.Issued) []*x509.Certificate {
	return []*x509.Certificate{issued.Cert, pki.CA}
}

func TestParseMode(t *testing.T) {
	for _, m := range []string{"ocsp", "crl", "ocsp+crl"} {
		got, err := ParseMode(m)
		require.NoError(t, err)
		assert.Equal(t, Mode(m), got)
	}
	_, err := ParseMode("none")
	assert.Error(t, err)
}

func TestNewChecker_RejectsBadConfig(t *testing.T) {
	_, err := NewChecker(Config{Mode: "maybe"}, nil)
	assert.Error(t, err)

	_, err = NewChecker(Config{Mode: ModeCRL, CRLFiles: []string{t.TempDir() + "/missing.crl"}}, nil)
	assert.Error(t, err)
}

func TestChecker_OCSP(t *testing.T) {
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()

	good := pki.Client("good", testutil.WithOCSPServer(responder.URL))
	revoked := pki.Client("revoked", testutil.WithOCSPServer(responder.URL))
	pki.Revoke(revoked.Cert)
	noResponder := pki.Client("no-responder")

	recorder := &fakeRecorder{}
	checker := newChecker(t, Config{Mode: ModeOCSP, Recorder: recorder})
	ctx := context.Background()

	t.Run("good", func(t *testing.T) {
		assert.NoError(t, checker.Check(ctx, chainOf(pki, good)))
	})

	t.Run("revoked", func(t *testing.T) {
		err := checker.Check(ctx, chainOf(pki, revoked))
		assert.ErrorIs(t, err, ErrRevoked)
		assert.NotErrorIs(t, err, ErrUnverifiable)
	})

	t.Run("no responder", func(t *testing.T) {
		assert.ErrorIs(t, checker.Check(ctx, chainOf(pki, noResponder)), ErrUnverifiable)
	})

	t.Run("no issuer", func(t *testing.T) {
		assert.ErrorIs(t, checker.Check(ctx, []*x509.Certificate{good.Cert}), ErrUnverifiable)
	})

	assert.Contains(t, recorder.outcomes, outcome{"ocsp", OutcomeGood})
	assert.Contains(t, recorder.outcomes, outcome{"ocsp", OutcomeRevoked})
	assert.Contains(t, recorder.outcomes, outcome{"ocsp", OutcomeUnverifiable})
}

func TestChecker_OCSPCachesGoodVerdicts(t *testing.T) {
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()
	good := pki.Client("good", testutil.WithOCSPServer(responder.URL))

	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	checker := newChecker(t, Config{Mode: ModeOCSP, CacheTTL: 10 * time.Minute, Now: clock})
	ctx := context.Background()

	require.NoError(t, checker.Check(ctx, chainOf(pki, good)))
	require.NoError(t, checker.Check(ctx, chainOf(pki, good)))
	assert.Equal(t, 1, responder.Requests())

	mu.Lock()
	now = now.Add(11 * time.Minute)
	mu.Unlock()

	require.NoError(t, checker.Check(ctx, chainOf(pki, good)))
	assert.Equal(t, 2, responder.Requests())
}

func TestChecker_OCSPUnreachable(t *testing.T) {
	pki := testutil.NewPKI(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := down.URL
	down.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an OCSP response"))
	}))
	t.Cleanup(garbage.Close)

	checker := newChecker(t, Config{Mode: ModeOCSP, Timeout: 2 * time.Second})

	for name, responderURL := range map[string]string{
		"connection refused": url,
		"http error":         broken.URL,
		"malformed body":     garbage.URL,
	} {
		t.Run(name, func(t *testing.T) {
			cert := pki.Client(name, testutil.WithOCSPServer(responderURL))
			err := checker.Check(context.Background(), chainOf(pki, cert))
			assert.ErrorIs(t, err, ErrUnverifiable)
		})
	}
}

func TestChecker_CRLFiles(t *testing.T) {
	pki := testutil.NewPKI(t)
	clean := pki.Client("clean")
	revoked := pki.Client("revoked")
	pki.Revoke(revoked.Cert)

	dir := t.TempDir()
	derPath := testutil.WriteFile(t, dir, "ca.crl", pki.CRL())
	pemPath := testutil.WriteFile(t, dir, "ca.crl.pem", pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: pki.CRL()}))

	for name, path := range map[string]string{"der": derPath, "pem": pemPath} {
		t.Run(name, func(t *testing.T) {
			checker := newChecker(t, Config{Mode: ModeCRL, CRLFiles: []string{path}})

			assert.NoError(t, checker.Check(context.Background(), chainOf(pki, clean)))
			assert.ErrorIs(t, checker.Check(context.Background(), chainOf(pki, revoked)), ErrRevoked)
		})
	}
}

func TestChecker_CRLFromOtherIssuerIgnored(t *testing.T) {
	pki := testutil.NewPKI(t)
	other := testutil.NewPKI(t)
	cert := pki.Client("client")

	path := testutil.WriteFile(t, t.TempDir(), "other.crl", other.CRL())
	checker := newChecker(t, Config{Mode: ModeCRL, CRLFiles: []string{path}})

	assert.ErrorIs(t, checker.Check(context.Background(), chainOf(pki, cert)), ErrUnverifiable)
}

func TestChecker_CRLDistributionPoint(t *testing.T) {
	pki := testutil.NewPKI(t)
	crlServer := pki.StartCRLServer()

	clean := pki.Client("clean", testutil.WithCRLDistributionPoint(crlServer.URL))
	revoked := pki.Client("revoked", testutil.WithCRLDistributionPoint(crlServer.URL))
	pki.Revoke(revoked.Cert)

	checker := newChecker(t, Config{Mode: ModeCRL})

	assert.NoError(t, checker.Check(context.Background(), chainOf(pki, clean)))
	assert.ErrorIs(t, checker.Check(context.Background(), chainOf(pki, revoked)), ErrRevoked)
}

func TestChecker_OCSPThenCRL(t *testing.T) {
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()
	crlServer := pki.StartCRLServer()

	crlOnly := pki.Client("crl-only", testutil.WithCRLDistributionPoint(crlServer.URL))
	revokedCRLOnly := pki.Client("revoked-crl-only", testutil.WithCRLDistributionPoint(crlServer.URL))
	revokedOCSP := pki.Client("revoked-ocsp", testutil.WithOCSPServer(responder.URL))
	pki.Revoke(revokedCRLOnly.Cert)
	pki.Revoke(revokedOCSP.Cert)
	neither := pki.Client("neither")

	recorder := &fakeRecorder{}
	checker := newChecker(t, Config{Mode: ModeOCSPThenCRL, Recorder: recorder})
	ctx := context.Background()

	assert.NoError(t, checker.Check(ctx, chainOf(pki, crlOnly)))
	assert.ErrorIs(t, checker.Check(ctx, chainOf(pki, revokedCRLOnly)), ErrRevoked)
	assert.ErrorIs(t, checker.Check(ctx, chainOf(pki, revokedOCSP)), ErrRevoked)
	assert.ErrorIs(t, checker.Check(ctx, chainOf(pki, neither)), ErrUnverifiable)

	require.Len(t, recorder.outcomes, 4)
	assert.Equal(t, outcome{"crl", OutcomeGood}, recorder.outcomes[0])
	assert.Equal(t, outcome{"crl", OutcomeRevoked}, recorder.outcomes[1])
	assert.Equal(t, outcome{"ocsp", OutcomeRevoked}, recorder.outcomes[2])
	assert.Equal(t, outcome{"ocsp", OutcomeUnverifiable}, recorder.outcomes[3])
}

func TestChecker_VerifyConnection(t *testing.T) {
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()
	good := pki.Client("good", testutil.WithOCSPServer(responder.URL))

	verify := newChecker(t, Config{Mode: ModeOCSP}).VerifyConnection(context.Background())

	assert.NoError(t, verify(tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{chainOf(pki, good)}}))
	assert.ErrorIs(t, verify(tls.ConnectionState{}), ErrUnverifiable)
}

func TestChecker_CancelledCallerDoesNotFailSharedQuery(t *testing.T) {
	pki := testutil.NewPKI(t)
	responder := pki.StartOCSPResponder()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		resp, err := http.Post(responder.URL, r.Header.Get("Content-Type"), r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}))
	t.Cleanup(slow.Close)

	cert := pki.Client("shared", testutil.WithOCSPServer(slow.URL))
	checker := newChecker(t, Config{Mode: ModeOCSP, Timeout: 2 * time.Second})

	impatient, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var impatientErr, patientErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		impatientErr = checker.Check(impatient, chainOf(pki, cert))
	}()
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		patientErr = checker.Check(context.Background(), chainOf(pki, cert))
	}()
	wg.Wait()

	assert.ErrorIs(t, impatientErr, ErrUnverifiable)
	assert.NoError(t, patientErr)
	assert.Equal(t, 1, responder.Requests())
}
