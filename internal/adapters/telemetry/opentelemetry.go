package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/satishbabariya/pgreindex"

// OpenTelemetryAdapter implements Telemetry using OpenTelemetry. Events are
// reported after the fact, so each span is backdated by its duration.
type OpenTelemetryAdapter struct {
	config   *Config
	provider trace.TracerProvider
	tracer   trace.Tracer
}

// NewOpenTelemetryAdapter creates a new OpenTelemetry telemetry adapter.
func NewOpenTelemetryAdapter(config *Config) *OpenTelemetryAdapter {
	if config == nil {
		config = &Config{}
	}
	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OpenTelemetryAdapter{
		config:   config,
		provider: provider,
		tracer:   provider.Tracer(tracerName),
	}
}

// RecordAudit records a database audit as a span.
func (o *OpenTelemetryAdapter) RecordAudit(ctx context.Context, info AuditInfo) {
	span := o.start(ctx, "pgreindex.audit", info.Duration,
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", info.Database),
		attribute.Int("pgreindex.invalid", info.Invalid),
		attribute.Int("pgreindex.oversized", info.Oversized),
	)
	if !info.Success {
		span.SetStatus(codes.Error, "audit failed")
	}
	span.End()
}

// RecordRebuild records a rebuild attempt as a span.
func (o *OpenTelemetryAdapter) RecordRebuild(ctx context.Context, info RebuildInfo) {
	span := o.start(ctx, "pgreindex.rebuild", info.Duration,
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", info.Database),
		attribute.String("db.operation", "REINDEX"),
		attribute.String("pgreindex.index", info.Index),
		attribute.String("pgreindex.status", info.Status),
		attribute.Int64("pgreindex.index_bytes", info.SizeBytes),
	)
	if info.Err != nil {
		span.RecordError(info.Err)
		span.SetStatus(codes.Error, info.Err.Error())
	}
	span.End()
}

// RecordError records an error as a span event.
func (o *OpenTelemetryAdapter) RecordError(ctx context.Context, info ErrorInfo) {
	span := o.start(ctx, "pgreindex.error", 0,
		attribute.String("pgreindex.operation", info.Operation),
		attribute.String("db.name", info.Database),
	)
	if info.Error != nil {
		span.RecordError(info.Error)
		span.SetStatus(codes.Error, info.Error.Error())
	}
	span.End()
}

// RecordConnection records a connection event as a span.
func (o *OpenTelemetryAdapter) RecordConnection(ctx context.Context, info ConnectionInfo) {
	span := o.start(ctx, "pgreindex.connection."+info.Event, info.Duration,
		attribute.String("db.system", "postgresql"),
		attribute.String("server.address", info.Target),
	)
	if !info.Success {
		span.SetStatus(codes.Error, "connection failed")
	}
	span.End()
}

// Flush forces the provider to export pending spans when it supports it.
func (o *OpenTelemetryAdapter) Flush(ctx context.Context) error {
	if f, ok := o.provider.(interface{ ForceFlush(context.Context) error }); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// Close closes the telemetry adapter. The provider is owned by the caller.
func (o *OpenTelemetryAdapter) Close(ctx context.Context) error {
	return nil
}

func (o *OpenTelemetryAdapter) start(ctx context.Context, name string, d time.Duration, attrs ...attribute.KeyValue) trace.Span {
	if o.config.RunID != "" {
		attrs = append(attrs, attribute.String("pgreindex.run_id", o.config.RunID))
	}
	_, span := o.tracer.Start(ctx, name,
		trace.WithTimestamp(time.Now().Add(-d)),
		trace.WithAttributes(attrs...),
	)
	return span
}

// Ensure OpenTelemetryAdapter implements Telemetry interface.
var _ Telemetry = (*OpenTelemetryAdapter)(nil)
