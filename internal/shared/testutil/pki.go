package testutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// PKI is a throwaway certificate authority for tests. Every certificate it
// issues uses ECDSA P-256 keys.
type PKI struct {
	t *testing.T

	CA    *x509.Certificate
	CAKey *ecdsa.PrivateKey

	serial atomic.Int64

	mu      sync.Mutex
	revoked map[string]time.Time
}

// Issued is a certificate with its private key.
type Issued struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// CertOption customizes an issued certificate.
type CertOption func(*x509.Certificate)

// WithValidity sets the certificate validity window.
func WithValidity(notBefore, notAfter time.Time) CertOption {
	return func(c *x509.Certificate) {
		c.NotBefore = notBefore
		c.NotAfter = notAfter
	}
}

// WithOCSPServer points the certificate at an OCSP responder.
func WithOCSPServer(url string) CertOption {
	return func(c *x509.Certificate) {
		c.OCSPServer = []string{url}
	}
}

// WithCRLDistributionPoint points the certificate at a CRL endpoint.
func WithCRLDistributionPoint(url string) CertOption {
	return func(c *x509.Certificate) {
		c.CRLDistributionPoints = []string{url}
	}
}

// NewPKI creates a self-signed test CA.
func NewPKI(t *testing.T) *PKI {
	t.Helper()

	key := mustKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "sescli test CA", Organization: []string{"sescli"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA certificate: %v", err)
	}
	ca, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA certificate: %v", err)
	}

	p := &PKI{t: t, CA: ca, CAKey: key, revoked: make(map[string]time.Time)}
	p.serial.Store(1)
	return p
}

// Pool returns a cert pool containing only the CA.
func (p *PKI) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(p.CA)
	return pool
}

// Server issues a server certificate valid for localhost and 127.0.0.1.
func (p *PKI) Server(opts ...CertOption) Issued {
	return p.issue("localhost", []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, func(c *x509.Certificate) {
		c.DNSNames = []string{"localhost"}
		c.IPAddresses = []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback}
	}, opts...)
}

// Client issues a client authentication certificate.
func (p *PKI) Client(commonName string, opts ...CertOption) Issued {
	return p.issue(commonName, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil, opts...)
}

func (p *PKI) issue(cn string, usage []x509.ExtKeyUsage, base func(*x509.Certificate), opts ...CertOption) Issued {
	p.t.Helper()

	key := mustKey(p.t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(p.serial.Add(1)),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  usage,
	}
	if base != nil {
		base(tmpl)
	}
	for _, opt := range opts {
		opt(tmpl)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, p.CA, &key.PublicKey, p.CAKey)
	if err != nil {
		p.t.Fatalf("create certificate %q: %v", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		p.t.Fatalf("parse certificate %q: %v", cn, err)
	}
	return Issued{Cert: cert, Key: key}
}

// Revoke marks cert as revoked for OCSP responses and CRLs created afterwards.
func (p *PKI) Revoke(cert *x509.Certificate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[cert.SerialNumber.String()] = time.Now().Add(-time.Minute)
}

// CRL returns a DER encoded revocation list signed by the CA.
func (p *PKI) CRL() []byte {
	p.t.Helper()

	p.mu.Lock()
	entries := make([]x509.RevocationListEntry, 0, len(p.revoked))
	for serial, at := range p.revoked {
		n, _ := new(big.Int).SetString(serial, 10)
		entries = append(entries, x509.RevocationListEntry{SerialNumber: n, RevocationTime: at})
	}
	p.mu.Unlock()

	der, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    big.NewInt(time.Now().UnixNano()),
		ThisUpdate:                time.Now().Add(-time.Minute),
		NextUpdate:                time.Now().Add(time.Hour),
		RevokedCertificateEntries: entries,
	}, p.CA, p.CAKey)
	if err != nil {
		p.t.Fatalf("create CRL: %v", err)
	}
	return der
}

// OCSPResponder serves OCSP responses for certificates issued by the CA.
type OCSPResponder struct {
	*httptest.Server
	requests atomic.Int64
}

// Requests returns how many OCSP requests have been answered.
func (r *OCSPResponder) Requests() int {
	return int(r.requests.Load())
}

// StartOCSPResponder starts an HTTP OCSP responder. The server is closed when
// the test ends.
func (p *PKI) StartOCSPResponder() *OCSPResponder {
	p.t.Helper()

	responder := &OCSPResponder{}
	responder.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responder.requests.Add(1)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		tmpl := ocsp.Response{
			Status:       ocsp.Good,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   time.Now().Add(-time.Minute),
			NextUpdate:   time.Now().Add(time.Hour),
		}
		p.mu.Lock()
		if at, ok := p.revoked[req.SerialNumber.String()]; ok {
			tmpl.Status = ocsp.Revoked
			tmpl.RevokedAt = at
			tmpl.RevocationReason = ocsp.KeyCompromise
		}
		p.mu.Unlock()

		resp, err := ocsp.CreateResponse(p.CA, p.CA, tmpl, p.CAKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
	p.t.Cleanup(responder.Close)
	return responder
}

// StartCRLServer serves the CA's current CRL over HTTP.
func (p *PKI) StartCRLServer() *httptest.Server {
	p.t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pkix-crl")
		_, _ = w.Write(p.CRL())
	}))
	p.t.Cleanup(srv.Close)
	return srv
}

// TLSCertificate converts an issued certificate into a tls.Certificate.
func (i Issued) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{i.Cert.Raw},
		PrivateKey:  i.Key,
		Leaf:        i.Cert,
	}
}

// CertPEM returns the certificate in PEM form.
func (i Issued) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: i.Cert.Raw})
}

// KeyPEM returns the private key in PKCS#8 PEM form.
func (i Issued) KeyPEM() []byte {
	der, err := x509.MarshalPKCS8PrivateKey(i.Key)
	if err != nil {
		panic(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// CAPEM returns the CA certificate in PEM form.
func (p *PKI) CAPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: p.CA.Raw})
}

// WriteFile writes data into dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name string, data ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Join(data, nil), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}
