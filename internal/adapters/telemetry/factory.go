package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TelemetryType represents the type of telemetry.
type TelemetryType string

const (
	// TypeNoop is the no-op telemetry type.
	TypeNoop TelemetryType = "noop"

	// TypePrometheus is the Prometheus telemetry type.
	TypePrometheus TelemetryType = "prometheus"

	// TypeOpenTelemetry is the OpenTelemetry type.
	TypeOpenTelemetry TelemetryType = "opentelemetry"
)

// NewTelemetry creates a new telemetry adapter based on configuration.
// Type may list several adapters separated by commas.
func NewTelemetry(config *Config) (Telemetry, error) {
	if config == nil {
		return NewNoopTelemetry(), nil
	}

	var adapters []Telemetry
	for _, raw := range strings.Split(config.Type, ",") {
		switch TelemetryType(strings.ToLower(strings.TrimSpace(raw))) {
		case TypeNoop, "":
			continue

		case TypePrometheus:
			adapters = append(adapters, NewPrometheusTelemetry(config))

		case TypeOpenTelemetry:
			adapters = append(adapters, NewOpenTelemetryAdapter(config))

		default:
			return nil, fmt.Errorf("unknown telemetry type: %s", strings.TrimSpace(raw))
		}
	}

	switch len(adapters) {
	case 0:
		return NewNoopTelemetry(), nil
	case 1:
		return adapters[0], nil
	default:
		return MultiTelemetry(adapters), nil
	}
}

// MultiTelemetry fans every event out to several adapters.
type MultiTelemetry []Telemetry

// RecordAudit records on every adapter.
func (m MultiTelemetry) RecordAudit(ctx context.Context, info AuditInfo) {
	for _, t := range m {
		t.RecordAudit(ctx, info)
	}
}

// RecordRebuild records on every adapter.
func (m MultiTelemetry) RecordRebuild(ctx context.Context, info RebuildInfo) {
	for _, t := range m {
		t.RecordRebuild(ctx, info)
	}
}

// RecordError records on every adapter.
func (m MultiTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	for _, t := range m {
		t.RecordError(ctx, info)
	}
}

// RecordConnection records on every adapter.
func (m MultiTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	for _, t := range m {
		t.RecordConnection(ctx, info)
	}
}

// Flush flushes every adapter and joins their errors.
func (m MultiTelemetry) Flush(ctx context.Context) error {
	var errs []error
	for _, t := range m {
		errs = append(errs, t.Flush(ctx))
	}
	return errors.Join(errs...)
}

// Close closes every adapter and joins their errors.
func (m MultiTelemetry) Close(ctx context.Context) error {
	var errs []error
	for _, t := range m {
		errs = append(errs, t.Close(ctx))
	}
	return errors.Join(errs...)
}

var _ Telemetry = MultiTelemetry(nil)
