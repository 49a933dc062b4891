package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"sescli/internal/certstore"
	apierrors "sescli/internal/errors"
)

const clientIdentityKey contextKey = "client-identity"

// ClientIdentity describes the verified certificate a request arrived with.
type ClientIdentity struct {
	Subject      string
	Issuer       string
	SerialNumber string
	Thumbprint   string // SHA-256, lower-case hex
}

// ClientIdentityFromContext returns the identity stored by ClientCertificate.
func ClientIdentityFromContext(ctx context.Context) (ClientIdentity, bool) {
	id, ok := ctx.Value(clientIdentityKey).(ClientIdentity)
	return id, ok
}

// ClientCertificate rejects requests that did not present a verified client
// certificate and records the peer identity in the request context.
func ClientCertificate(errs *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
				logger.WarnContext(r.Context(), "request without verified client certificate",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				errs.HandleError(w, r, apierrors.ErrClientCertificateRequired)
				return
			}

			leaf := r.TLS.VerifiedChains[0][0]
			_, thumbprint := certstore.Thumbprints(leaf)
			id := ClientIdentity{
				Subject:      leaf.Subject.String(),
				Issuer:       leaf.Issuer.String(),
				SerialNumber: leaf.SerialNumber.Text(16),
				Thumbprint:   thumbprint,
			}

			logger.DebugContext(r.Context(), "client certificate accepted",
				slog.String("client_subject", id.Subject),
				slog.String("client_thumbprint", id.Thumbprint),
			)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIdentityKey, id)))
		})
	}
}
