package revocation

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var errNoCRL = fmt.Errorf("%w: no CRL available for the issuer", ErrUnverifiable)

func (c *Checker) checkCRL(ctx context.Context, key string, leaf, issuer *x509.Certificate) error {
	crls := c.crlsFor(ctx, leaf, issuer)
	if len(crls) == 0 {
		return errNoCRL
	}

	var next time.Time
	for _, crl := range crls {
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(leaf.SerialNumber) == 0 {
				return fmt.Errorf("%w: serial %s revoked at %s (CRL)", ErrRevoked,
					leaf.SerialNumber.Text(16), revoked.RevocationTime.UTC().Format(time.RFC3339))
			}
		}
		if !crl.NextUpdate.IsZero() && (next.IsZero() || crl.NextUpdate.Before(next)) {
			next = crl.NextUpdate
		}
	}

	c.cache.markGood(key, c.expiry(next))
	return nil
}

// crlsFor returns every current CRL signed by issuer: configured files first,
// then the leaf's distribution points.
func (c *Checker) crlsFor(ctx context.Context, leaf, issuer *x509.Certificate) []*x509.RevocationList {
	var out []*x509.RevocationList
	for _, crl := range c.staticCRLs {
		if c.usableCRL(crl, issuer) {
			out = append(out, crl)
		}
	}

	for _, url := range leaf.CRLDistributionPoints {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			continue
		}
		crl, err := c.fetchCRL(ctx, url)
		if err != nil {
			c.logger.WarnContext(ctx, "CRL fetch failed", "url", url, "error", err)
			continue
		}
		if c.usableCRL(crl, issuer) {
			out = append(out, crl)
		}
	}
	return out
}

func (c *Checker) usableCRL(crl *x509.RevocationList, issuer *x509.Certificate) bool {
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return false
	}
	return crl.NextUpdate.IsZero() || c.now().Before(crl.NextUpdate)
}

func (c *Checker) fetchCRL(ctx context.Context, url string) (*x509.RevocationList, error) {
	if crl, ok := c.cache.crl(url); ok {
		return crl, nil
	}

	v, err := c.shared(ctx, "crl:"+url, func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 16*maxResponseBytes))
		if err != nil {
			return nil, err
		}
		return parseCRL(data)
	})
	if err != nil {
		return nil, err
	}

	crl := v.(*x509.RevocationList)
	c.cache.storeCRL(url, crl, c.expiry(crl.NextUpdate))
	return crl, nil
}

// parseCRL accepts DER or PEM ("X509 CRL") encoded revocation lists.
func parseCRL(data []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(bytes.TrimSpace(data)); block != nil {
		if block.Type != "X509 CRL" {
			return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
		}
		data = block.Bytes
	}
	return x509.ParseRevocationList(data)
}
