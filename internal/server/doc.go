// Package server runs the entitlement HTTP API behind mutual TLS.
//
// The listener presents the certificate selected from the certificate
// store, requires a client certificate issued by the configured CA bundle
// and, once the chain is verified, asks a ConnectionVerifier (normally the
// revocation checker) to accept the peer. Any failure aborts the handshake
// before a handler runs; the rejection is logged through the server's
// ErrorLog, which is bridged to slog.
package server
