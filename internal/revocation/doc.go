// Package revocation checks whether a client certificate presented during
// a TLS handshake has been revoked, using OCSP, CRLs, or both.
//
// A Checker is plugged into tls.Config.VerifyConnection so revoked or
// unverifiable certificates fail the handshake before any request is read:
//
//	checker, err := revocation.NewChecker(revocation.Config{
//	    Mode:    revocation.ModeOCSPThenCRL,
//	    Timeout: 5 * time.Second,
//	}, logger)
//	cfg.VerifyConnection = checker.VerifyConnection(ctx)
//
// Good verdicts are cached per issuer and serial until the earlier of the
// source's next update and the configured cache TTL. Revoked and
// unverifiable verdicts are not cached.
package revocation
