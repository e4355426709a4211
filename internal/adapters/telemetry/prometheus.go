package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsNamespace = "pgreindex"

// PrometheusTelemetry implements Telemetry using Prometheus metrics. A batch
// job has no scrape endpoint, so metrics are exported on Flush to a
// Pushgateway and/or a node exporter textfile.
type PrometheusTelemetry struct {
	config   *Config
	registry *prometheus.Registry

	auditsTotal     *prometheus.CounterVec
	findingsTotal   *prometheus.CounterVec
	rebuildsTotal   *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	connections     *prometheus.CounterVec
	lastRun         prometheus.Gauge
}

// NewPrometheusTelemetry creates a new Prometheus telemetry adapter with its
// own registry.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	if config == nil {
		config = &Config{}
	}

	p := &PrometheusTelemetry{
		config:   config,
		registry: prometheus.NewRegistry(),
		auditsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audits_total",
			Help:      "Database audits by result.",
		}, []string{"status"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "findings_total",
			Help:      "Unhealthy indexes found, by kind.",
		}, []string{"kind"}),
		rebuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rebuilds_total",
			Help:      "Index rebuild attempts by outcome.",
		}, []string{"status"}),
		rebuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Wall time of REINDEX CONCURRENTLY statements.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"status"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors by run stage.",
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_events_total",
			Help:      "Administrative connection events.",
		}, []string{"event", "status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last flushed run.",
		}),
	}

	p.registry.MustRegister(
		p.auditsTotal,
		p.findingsTotal,
		p.rebuildsTotal,
		p.rebuildDuration,
		p.errorsTotal,
		p.connections,
		p.lastRun,
	)
	return p
}

// RecordAudit records a database audit.
func (p *PrometheusTelemetry) RecordAudit(ctx context.Context, info AuditInfo) {
	p.auditsTotal.WithLabelValues(statusLabel(info.Success)).Inc()
	if !info.Success {
		return
	}
	p.findingsTotal.WithLabelValues("invalid").Add(float64(info.Invalid))
	p.findingsTotal.WithLabelValues("oversized").Add(float64(info.Oversized))
}

// RecordRebuild records a rebuild attempt.
func (p *PrometheusTelemetry) RecordRebuild(ctx context.Context, info RebuildInfo) {
	p.rebuildsTotal.WithLabelValues(info.Status).Inc()
	if info.Status != "skipped" {
		p.rebuildDuration.WithLabelValues(info.Status).Observe(info.Duration.Seconds())
	}
}

// RecordError records an error.
func (p *PrometheusTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	p.errorsTotal.WithLabelValues(info.Operation).Inc()
}

// RecordConnection records a connection event.
func (p *PrometheusTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	p.connections.WithLabelValues(info.Event, statusLabel(info.Success)).Inc()
}

// Flush exports the registry to the configured sinks.
func (p *PrometheusTelemetry) Flush(ctx context.Context) error {
	p.lastRun.Set(float64(time.Now().Unix()))

	if p.config.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(p.config.TextfilePath, p.registry); err != nil {
			return fmt.Errorf("failed to write metrics textfile: %w", err)
		}
	}

	if p.config.PushgatewayURL != "" {
		job := p.config.ServiceName
		if job == "" {
			job = metricsNamespace
		}
		pusher := push.New(p.config.PushgatewayURL, job).Gatherer(p.registry)
		if p.config.RunID != "" {
			pusher = pusher.Grouping("run_id", p.config.RunID)
		}
		if err := pusher.PushContext(ctx); err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
	}

	return nil
}

// Close closes the telemetry adapter.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	return nil
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// Ensure PrometheusTelemetry implements Telemetry interface.
var _ Telemetry = (*PrometheusTelemetry)(nil)
