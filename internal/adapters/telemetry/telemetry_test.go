package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTelemetry(t *testing.T) {
	ctx := context.Background()
	telemetry := NewNoopTelemetry()

	telemetry.RecordAudit(ctx, AuditInfo{Database: "app", Success: true})
	telemetry.RecordRebuild(ctx, RebuildInfo{Database: "app", Index: "app.idx", Status: "succeeded"})
	telemetry.RecordError(ctx, ErrorInfo{Error: errors.New("boom"), Operation: "audit"})
	telemetry.RecordConnection(ctx, ConnectionInfo{Event: "connect", Success: true})

	assert.NoError(t, telemetry.Flush(ctx))
	assert.NoError(t, telemetry.Close(ctx))
}

func TestPrometheusTelemetry(t *testing.T) {
	ctx := context.Background()
	telemetry := NewPrometheusTelemetry(&Config{Type: "prometheus"})

	telemetry.RecordAudit(ctx, AuditInfo{Database: "app", Invalid: 2, Oversized: 1, Success: true})
	telemetry.RecordAudit(ctx, AuditInfo{Database: "billing", Invalid: 5, Success: false})
	telemetry.RecordRebuild(ctx, RebuildInfo{Status: "succeeded", Duration: 3 * time.Second})
	telemetry.RecordRebuild(ctx, RebuildInfo{Status: "failed", Duration: time.Second})
	telemetry.RecordRebuild(ctx, RebuildInfo{Status: "skipped"})
	telemetry.RecordError(ctx, ErrorInfo{Error: errors.New("boom"), Operation: "audit"})
	telemetry.RecordConnection(ctx, ConnectionInfo{Event: "connect", Success: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.auditsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.auditsTotal.WithLabelValues("error")))
	// failed audits contribute no findings
	assert.Equal(t, 2.0, testutil.ToFloat64(telemetry.findingsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.findingsTotal.WithLabelValues("oversized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.rebuildsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.rebuildsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.rebuildsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.errorsTotal.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.connections.WithLabelValues("connect", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(telemetry.rebuildDuration))
}

func TestPrometheusTelemetryWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgreindex.prom")
	telemetry := NewPrometheusTelemetry(&Config{TextfilePath: path})
	telemetry.RecordRebuild(context.Background(), RebuildInfo{Status: "succeeded", Duration: time.Second})

	require.NoError(t, telemetry.Flush(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pgreindex_rebuilds_total{status="succeeded"} 1`)
	assert.Contains(t, string(data), "pgreindex_last_run_timestamp_seconds")
}

func TestPrometheusTelemetryPushesToGateway(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	telemetry := NewPrometheusTelemetry(&Config{
		PushgatewayURL: server.URL,
		ServiceName:    "pgreindex",
		RunID:          "run-1",
	})
	telemetry.RecordAudit(context.Background(), AuditInfo{Success: true})

	require.NoError(t, telemetry.Flush(context.Background()))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/pgreindex/run_id/run-1", path)
}

func TestPrometheusTelemetryPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	telemetry := NewPrometheusTelemetry(&Config{PushgatewayURL: server.URL})
	err := telemetry.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}

func TestOpenTelemetryAdapter(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(ctx)

	telemetry := NewOpenTelemetryAdapter(&Config{TracerProvider: provider, RunID: "run-1"})

	telemetry.RecordAudit(ctx, AuditInfo{Database: "app", Invalid: 1, Duration: time.Second, Success: true})
	telemetry.RecordRebuild(ctx, RebuildInfo{
		Database: "app",
		Index:    "app.idx",
		Status:   "failed",
		Duration: 2 * time.Second,
		Err:      errors.New("deadlock detected"),
	})
	telemetry.RecordConnection(ctx, ConnectionInfo{Event: "connect", Target: "db:5432/postgres", Success: true})
	require.NoError(t, telemetry.Flush(ctx))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "pgreindex.audit", spans[0].Name())
	assert.Equal(t, "pgreindex.rebuild", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "deadlock detected", spans[1].Status().Description)
	assert.GreaterOrEqual(t, spans[1].EndTime().Sub(spans[1].StartTime()), 2*time.Second)
	assert.Equal(t, "pgreindex.connection.connect", spans[2].Name())

	var runID string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "pgreindex.run_id" {
			runID = kv.Value.AsString()
		}
	}
	assert.Equal(t, "run-1", runID)
}

func TestNewTelemetry(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		want    interface{}
		wantErr bool
	}{
		{name: "nil config", config: nil, want: &NoopTelemetry{}},
		{name: "empty", config: &Config{}, want: &NoopTelemetry{}},
		{name: "noop", config: &Config{Type: "noop"}, want: &NoopTelemetry{}},
		{name: "prometheus", config: &Config{Type: "prometheus"}, want: &PrometheusTelemetry{}},
		{name: "opentelemetry", config: &Config{Type: "OpenTelemetry"}, want: &OpenTelemetryAdapter{}},
		{name: "both", config: &Config{Type: "prometheus, opentelemetry"}, want: MultiTelemetry{}},
		{name: "unknown", config: &Config{Type: "statsd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTelemetry(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestMultiTelemetryFansOut(t *testing.T) {
	a := NewPrometheusTelemetry(nil)
	b := NewPrometheusTelemetry(nil)
	multi := MultiTelemetry{a, b}

	multi.RecordRebuild(context.Background(), RebuildInfo{Status: "succeeded"})

	assert.Equal(t, 1.0, testutil.ToFloat64(a.rebuildsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.rebuildsTotal.WithLabelValues("succeeded")))
	assert.NoError(t, multi.Flush(context.Background()))
}
