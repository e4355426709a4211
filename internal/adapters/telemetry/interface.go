// Package telemetry provides telemetry adapter interfaces.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordAudit records the audit of one database.
	RecordAudit(ctx context.Context, info AuditInfo)

	// RecordRebuild records one index rebuild attempt.
	RecordRebuild(ctx context.Context, info RebuildInfo)

	// RecordError records an error.
	RecordError(ctx context.Context, info ErrorInfo)

	// RecordConnection records a connection event.
	RecordConnection(ctx context.Context, info ConnectionInfo)

	// Flush exports any buffered telemetry data.
	Flush(ctx context.Context) error

	// Close closes the telemetry adapter.
	Close(ctx context.Context) error
}

// AuditInfo contains information about a database audit.
type AuditInfo struct {
	Database  string
	Invalid   int
	Oversized int
	Duration  time.Duration
	Success   bool
}

// RebuildInfo contains information about an index rebuild.
type RebuildInfo struct {
	Database string
	Index    string
	// Status is succeeded, failed or skipped.
	Status    string
	Duration  time.Duration
	SizeBytes int64
	Err       error
}

// ErrorInfo contains information about an error.
type ErrorInfo struct {
	Error error

	// Operation is the stage that failed (connect, select, audit, rebuild).
	Operation string

	// Database is the database involved, if any.
	Database string
}

// ConnectionInfo contains information about a connection event.
type ConnectionInfo struct {
	// Event is connect, disconnect or error.
	Event    string
	Target   string
	Duration time.Duration
	Success  bool
}

// Config holds telemetry configuration.
type Config struct {
	// Type is a comma-separated list of noop, prometheus, opentelemetry.
	Type string

	// ServiceName names the service in traces and the job in metrics.
	ServiceName string

	// RunID labels everything recorded during one run.
	RunID string

	// PushgatewayURL, when set, receives metrics on Flush.
	PushgatewayURL string

	// TextfilePath, when set, receives metrics on Flush in the node
	// exporter textfile format.
	TextfilePath string

	// TracerProvider overrides the global tracer provider.
	TracerProvider trace.TracerProvider
}
