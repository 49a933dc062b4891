package revocation

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"sync"
	"time"
)

// cache remembers good verdicts and fetched CRLs until they expire.
// Revoked and unverifiable results are never cached.
type cache struct {
	mu       sync.RWMutex
	now      func() time.Time
	verdicts map[string]time.Time
	crls     map[string]cachedCRL
}

type cachedCRL struct {
	list    *x509.RevocationList
	expires time.Time
}

func newCache(now func() time.Time) *cache {
	return &cache{
		now:      now,
		verdicts: make(map[string]time.Time),
		crls:     make(map[string]cachedCRL),
	}
}

// cacheKey identifies a certificate by issuer key and serial.
func cacheKey(leaf, issuer *x509.Certificate) string {
	sum := sha256.Sum256(issuer.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(sum[:8]) + ":" + leaf.SerialNumber.Text(16)
}

func (c *cache) good(key string) bool {
	c.mu.RLock()
	expires, ok := c.verdicts[key]
	c.mu.RUnlock()
	return ok && c.now().Before(expires)
}

func (c *cache) markGood(key string, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[key] = until
}

func (c *cache) crl(url string) (*x509.RevocationList, bool) {
	c.mu.RLock()
	entry, ok := c.crls[url]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return nil, false
	}
	return entry.list, true
}

func (c *cache) storeCRL(url string, list *x509.RevocationList, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crls[url] = cachedCRL{list: list, expires: until}
}
