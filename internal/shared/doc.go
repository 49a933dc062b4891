// Package shared is the home of helpers used by tests across packages.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - PKI: a throwaway CA issuing server and client certificates, with an
//     OCSP responder and CRL endpoint backed by httptest
//   - BufferedSlogHandler: a slog.Handler capturing records for assertions
//
// Example usage:
//
//	func TestHandshake(t *testing.T) {
//	    pki := testutil.NewPKI(t)
//	    client := pki.Client("vm-042")
//	    pki.Revoke(client.Cert)
//	    // ...
//	}
//
// Nothing in this package is imported by production code.
package shared
