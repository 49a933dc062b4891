// Package app wires the entitlement server together and manages its
// lifecycle.
//
// # Initialization Flow
//
// NewApplication performs every startup step once, in order:
//
//	1. Check the server settings (URL, certificate store, thumbprint, client CAs)
//	2. Initialize OpenTelemetry tracing and the Prometheus-backed meter
//	3. Resolve the connection certificate from the certificate store
//	4. Load the trusted client issuers
//	5. Configure revocation checking
//	6. Load and validate the grant registry
//	7. Build the services, router and mTLS server
//
// Failures are returned as *errors.AppError so the command layer can tell a
// missing certificate from an unusable one or from a configuration mistake.
//
// # Usage
//
//	a, err := app.NewApplication(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// # Graceful Shutdown
//
// Run stops on SIGINT, SIGTERM or context cancellation. In-flight requests
// get Server.ShutdownTimeout to finish and telemetry is flushed afterwards.
// The package never calls os.Exit.
package app
