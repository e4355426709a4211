package telemetry

import (
	"context"
)

// NoopTelemetry is a no-op implementation of the Telemetry interface.
type NoopTelemetry struct{}

// NewNoopTelemetry creates a new no-op telemetry adapter.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

// RecordAudit does nothing.
func (n *NoopTelemetry) RecordAudit(ctx context.Context, info AuditInfo) {}

// RecordRebuild does nothing.
func (n *NoopTelemetry) RecordRebuild(ctx context.Context, info RebuildInfo) {}

// RecordError does nothing.
func (n *NoopTelemetry) RecordError(ctx context.Context, info ErrorInfo) {}

// RecordConnection does nothing.
func (n *NoopTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {}

// Flush does nothing.
func (n *NoopTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (n *NoopTelemetry) Close(ctx context.Context) error {
	return nil
}

// Ensure NoopTelemetry implements Telemetry interface.
var _ Telemetry = (*NoopTelemetry)(nil)
