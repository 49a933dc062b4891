// Package http maps the entitlement server's HTTP surface onto services.
//
// Handlers decode requests with go-chi/render, delegate to an interface
// (EntitlementChecker, HealthReporter) and report failures through the
// shared apierrors.ErrorHandler so every error body is an RFC 7807 problem
// document. NewRouter assembles the chi router with the middleware chain
// request id, tracing, access log, panic recovery, security headers and
// optional rate limiting. Entitlement routes additionally require a
// verified client certificate.
package http
