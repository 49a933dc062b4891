// Package infrastructure provides the ambient services every sescli command
// shares: structured logging, trace correlation and telemetry.
//
// # Logging
//
// InitializeLogger installs a JSON slog logger as the process default. A
// wrapping handler adds the trace_id carried in a record's context, either
// stored with WithTraceID or taken from the active OpenTelemetry span.
// NewErrorLog bridges *log.Logger consumers such as http.Server.ErrorLog.
//
// # Telemetry
//
// InitializeOTel configures an OpenTelemetry tracer provider and a meter
// provider exported through a dedicated Prometheus registry.
// EntitlementMetrics holds the service's counters and histograms.
package infrastructure
