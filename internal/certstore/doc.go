// Package certstore locates the server's connection certificate by
// thumbprint in a directory of PEM files.
//
// A lookup distinguishes a selector that matches nothing
// (ErrCertificateNotFound) from a match that cannot be used because it is
// expired, not yet valid or missing its private key (ErrCertificateInvalid,
// carried by *CertificateError).
package certstore
