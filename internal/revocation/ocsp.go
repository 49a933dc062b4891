package revocation

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

const maxResponseBytes = 1 << 20

func (c *Checker) checkOCSP(ctx context.Context, key string, leaf, issuer *x509.Certificate) error {
	if len(leaf.OCSPServer) == 0 {
		return fmt.Errorf("%w: certificate names no OCSP responder", ErrUnverifiable)
	}

	// Concurrent handshakes for one certificate share a single round-trip.
	v, err := c.shared(ctx, "ocsp:"+key, func(ctx context.Context) (any, error) {
		return c.queryOCSP(ctx, leaf.OCSPServer[0], leaf, issuer)
	})
	if err != nil {
		return err
	}

	resp := v.(*ocsp.Response)
	switch resp.Status {
	case ocsp.Good:
		c.cache.markGood(key, c.expiry(resp.NextUpdate))
		return nil
	case ocsp.Revoked:
		return fmt.Errorf("%w: serial %s revoked at %s (OCSP)", ErrRevoked,
			leaf.SerialNumber.Text(16), resp.RevokedAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Errorf("%w: OCSP responder returned status unknown", ErrUnverifiable)
	}
}

func (c *Checker) queryOCSP(ctx context.Context, url string, leaf, issuer *x509.Certificate) (*ocsp.Response, error) {
	reqDER, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build OCSP request: %v", ErrUnverifiable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnverifiable, err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: OCSP responder %s: %v", ErrUnverifiable, url, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: OCSP responder %s returned HTTP %d", ErrUnverifiable, url, httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read OCSP response: %v", ErrUnverifiable, err)
	}

	resp, err := ocsp.ParseResponseForCert(body, leaf, issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: parse OCSP response: %v", ErrUnverifiable, err)
	}

	now := c.now()
	if !resp.NextUpdate.IsZero() && now.After(resp.NextUpdate) {
		return nil, fmt.Errorf("%w: stale OCSP response (next update %s)", ErrUnverifiable,
			resp.NextUpdate.UTC().Format(time.RFC3339))
	}
	return resp, nil
}

// expiry caps a source's freshness by the configured cache TTL.
func (c *Checker) expiry(nextUpdate time.Time) time.Time {
	limit := c.now().Add(c.cacheTTL)
	if !nextUpdate.IsZero() && nextUpdate.Before(limit) {
		return nextUpdate
	}
	return limit
}
