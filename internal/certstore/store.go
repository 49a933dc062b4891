package certstore

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCertificateNotFound means no certificate in the store matches the selector.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrCertificateInvalid means a matching certificate exists but cannot be used.
	ErrCertificateInvalid = errors.New("certificate invalid")
	// ErrInvalidSelector means the selector is not a SHA-1 or SHA-256 thumbprint.
	ErrInvalidSelector = errors.New("invalid certificate selector")
)

// Reason explains why a located certificate was rejected.
type Reason string

const (
	ReasonExpired      Reason = "expired"
	ReasonNotYetValid  Reason = "not yet valid"
	ReasonNoPrivateKey Reason = "no private key"
	ReasonKeyMismatch  Reason = "private key does not match certificate"
)

// CertificateError reports a certificate that was found but is unusable.
// It matches ErrCertificateInvalid with errors.Is.
type CertificateError struct {
	Thumbprint string
	Path       string
	Reason     Reason
	Err        error
}

func (e *CertificateError) Error() string {
	msg := fmt.Sprintf("certificate %s (%s) is invalid: %s", e.Thumbprint, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CertificateError) Unwrap() error { return e.Err }

func (e *CertificateError) Is(target error) bool { return target == ErrCertificateInvalid }

// CertificateInfo describes one certificate held by the store.
type CertificateInfo struct {
	Path       string    `json:"path" yaml:"path"`
	Subject    string    `json:"subject" yaml:"subject"`
	Issuer     string    `json:"issuer" yaml:"issuer"`
	SerialHex  string    `json:"serial" yaml:"serial"`
	SHA1       string    `json:"sha1" yaml:"sha1"`
	SHA256     string    `json:"sha256" yaml:"sha256"`
	NotBefore  time.Time `json:"notBefore" yaml:"notBefore"`
	NotAfter   time.Time `json:"notAfter" yaml:"notAfter"`
	HasKey     bool      `json:"hasPrivateKey" yaml:"hasPrivateKey"`
	ChainDepth int       `json:"chainDepth" yaml:"chainDepth"`
}

// Store locates certificates in a directory of PEM files. Each file holds a
// leaf certificate optionally followed by its chain and private key. A key
// may also live in a sibling file with the same base name and a .key
// extension.
//
// Nothing is cached between calls.
type Store struct {
	dir string
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store reading from dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Find returns the certificate whose leaf thumbprint matches selector,
// ready to present in a TLS handshake.
func (s *Store) Find(ctx context.Context, selector string) (*tls.Certificate, error) {
	tp, err := NormalizeThumbprint(selector)
	if err != nil {
		return nil, err
	}

	entries, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	// The same certificate may appear in several files; the first usable copy wins.
	var firstErr error
	for _, e := range entries {
		if !e.matches(tp) {
			continue
		}
		cert, err := s.usable(tp, e)
		if err == nil {
			return cert, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrCertificateNotFound, tp, s.dir)
}

// List describes every certificate in the store, sorted by path.
func (s *Store) List(ctx context.Context) ([]CertificateInfo, error) {
	entries, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]CertificateInfo, 0, len(entries))
	for _, e := range entries {
		leaf := e.chain[0]
		infos = append(infos, CertificateInfo{
			Path:       e.path,
			Subject:    leaf.Subject.String(),
			Issuer:     leaf.Issuer.String(),
			SerialHex:  hex.EncodeToString(leaf.SerialNumber.Bytes()),
			SHA1:       e.sha1,
			SHA256:     e.sha256,
			NotBefore:  leaf.NotBefore,
			NotAfter:   leaf.NotAfter,
			HasKey:     len(e.keyPEM) > 0,
			ChainDepth: len(e.chain),
		})
	}
	return infos, nil
}

func (s *Store) usable(tp string, e entry) (*tls.Certificate, error) {
	leaf := e.chain[0]
	now := s.now()

	invalid := func(reason Reason, err error) error {
		return &CertificateError{Thumbprint: tp, Path: e.path, Reason: reason, Err: err}
	}

	if now.Before(leaf.NotBefore) {
		return nil, invalid(ReasonNotYetValid, fmt.Errorf("valid from %s", leaf.NotBefore.Format(time.RFC3339)))
	}
	if !now.Before(leaf.NotAfter) {
		return nil, invalid(ReasonExpired, fmt.Errorf("expired at %s", leaf.NotAfter.Format(time.RFC3339)))
	}
	if len(e.keyPEM) == 0 {
		return nil, invalid(ReasonNoPrivateKey, nil)
	}

	pair, err := tls.X509KeyPair(e.certPEM, e.keyPEM)
	if err != nil {
		return nil, invalid(ReasonKeyMismatch, err)
	}
	pair.Leaf = leaf
	return &pair, nil
}

type entry struct {
	path    string
	chain   []*x509.Certificate
	certPEM []byte
	keyPEM  []byte
	sha1    string
	sha256  string
}

func (e entry) matches(tp string) bool {
	return tp == e.sha1 || tp == e.sha256
}

var certExtensions = map[string]bool{".pem": true, ".crt": true, ".cer": true}

func (s *Store) scan(ctx context.Context) ([]entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read certificate store %s: %w", s.dir, err)
	}

	var entries []entry
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || !certExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		e, ok, err := readEntry(path)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	return entries, nil
}

// readEntry parses one store file. Files without certificates are skipped.
func readEntry(path string) (entry, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entry{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	e := entry{path: path}
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch {
		case block.Type == "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return entry{}, false, fmt.Errorf("parse certificate in %s: %w", path, err)
			}
			e.chain = append(e.chain, cert)
			e.certPEM = append(e.certPEM, pem.EncodeToMemory(block)...)
		case strings.HasSuffix(block.Type, "PRIVATE KEY"):
			e.keyPEM = pem.EncodeToMemory(block)
		}
	}
	if len(e.chain) == 0 {
		return entry{}, false, nil
	}

	if len(e.keyPEM) == 0 {
		keyPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".key"
		if keyData, err := os.ReadFile(keyPath); err == nil {
			e.keyPEM = keyData
		}
	}

	e.sha1, e.sha256 = Thumbprints(e.chain[0])
	return e, true, nil
}

// NormalizeThumbprint lower-cases selector and strips spaces and colons. The
// result must be a 40 (SHA-1) or 64 (SHA-256) character hex string.
func NormalizeThumbprint(selector string) (string, error) {
	tp := strings.ToLower(strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(strings.TrimSpace(selector)))
	if len(tp) != sha1.Size*2 && len(tp) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %q must be a SHA-1 or SHA-256 thumbprint", ErrInvalidSelector, selector)
	}
	if _, err := hex.DecodeString(tp); err != nil {
		return "", fmt.Errorf("%w: %q is not hexadecimal", ErrInvalidSelector, selector)
	}
	return tp, nil
}

// Thumbprints returns the SHA-1 and SHA-256 thumbprints of cert.
func Thumbprints(cert *x509.Certificate) (sha1Hex, sha256Hex string) {
	s1 := sha1.Sum(cert.Raw)
	s256 := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(s1[:]), hex.EncodeToString(s256[:])
}

// LoadPool reads a PEM bundle of trusted certificates.
func LoadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", path)
	}
	return pool, nil
}
