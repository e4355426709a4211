package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

type fakeIndex struct {
	name  domain.IndexName
	size  int64
	valid bool
}

// fakeServer is an in-memory server: a session plus catalog whose rebuilds
// mark indexes valid and shrink them, like REINDEX does.
type fakeServer struct {
	sizes   map[string]int64
	indexes map[string][]*fakeIndex

	connectErr error
	listErr    error
	auditErr   map[string]error
	onReindex  func(domain.IndexName)

	connected    bool
	disconnects  int
	listCalls    int
	reindexCalls []domain.IndexName
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		sizes:    map[string]int64{},
		indexes:  map[string][]*fakeIndex{},
		auditErr: map[string]error{},
	}
}

func (f *fakeServer) addDatabase(name string, size int64, indexes ...*fakeIndex) {
	f.sizes[name] = size
	f.indexes[name] = indexes
}

func (f *fakeServer) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeServer) Disconnect(ctx context.Context) error {
	f.connected = false
	f.disconnects++
	return nil
}

func (f *fakeServer) Target() string { return "db.internal:5432/postgres" }

func (f *fakeServer) ListDatabases(ctx context.Context, pattern string, exclude []string, offset, limit int) ([]domain.Database, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Database
	for name, size := range f.sizes {
		if matches(name, pattern) && !contains(exclude, name) {
			out = append(out, domain.Database{Name: name, SizeBytes: size})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SizeBytes > out[j].SizeBytes })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeServer) InvalidIndexes(ctx context.Context, namespace string) ([]domain.IndexRecord, error) {
	if err := f.auditErr[namespace]; err != nil {
		return nil, err
	}
	var out []domain.IndexRecord
	for _, ix := range f.indexes[namespace] {
		if !ix.valid {
			out = append(out, domain.IndexRecord{Index: ix.name, SizeBytes: ix.size})
		}
	}
	return out, nil
}

func (f *fakeServer) IndexesLargerThan(ctx context.Context, namespace string, thresholdBytes int64) ([]domain.IndexRecord, error) {
	if err := f.auditErr[namespace]; err != nil {
		return nil, err
	}
	var out []domain.IndexRecord
	for _, ix := range f.indexes[namespace] {
		if ix.size > thresholdBytes {
			out = append(out, domain.IndexRecord{Index: ix.name, SizeBytes: ix.size})
		}
	}
	return out, nil
}

func (f *fakeServer) ReindexConcurrently(ctx context.Context, index domain.IndexName) error {
	f.reindexCalls = append(f.reindexCalls, index)
	if f.onReindex != nil {
		f.onReindex(index)
	}
	for _, ixs := range f.indexes {
		for _, ix := range ixs {
			if ix.name == index {
				ix.valid = true
				ix.size = 8192
				return nil
			}
		}
	}
	return &pq.Error{Code: "42P01", Message: "relation \"" + index.String() + "\" does not exist"}
}

func matches(name, pattern string) bool {
	if strings.HasSuffix(pattern, "%") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "%"))
	}
	return name == pattern
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func index(schema, name string, size int64, valid bool) *fakeIndex {
	return &fakeIndex{name: domain.IndexName{Schema: schema, Name: name}, size: size, valid: valid}
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) RunStarted(runID, target string) {
	r.events = append(r.events, "start")
}

func (r *recordingReporter) DatabasesSelected(databases []domain.Database) {
	r.events = append(r.events, "selected")
}

func (r *recordingReporter) DatabaseAudited(database domain.Database, result *domain.AuditResult, err error) {
	r.events = append(r.events, "audited:"+database.Name)
}

func (r *recordingReporter) RebuildFinished(outcome domain.Outcome) {
	r.events = append(r.events, "rebuild:"+outcome.Index.Name+":"+outcome.Status.String())
}

func (r *recordingReporter) RunFinished(report *Report, err error) {
	r.events = append(r.events, "finished:"+report.State.String())
}

func newService(server *fakeServer, opts ...Option) *MaintenanceService {
	opts = append([]Option{
		WithLogger(hclog.NewNullLogger()),
		WithRunID(func() string { return "run-1" }),
	}, opts...)
	return NewMaintenanceService(server, server, opts...)
}

func defaultInput() RunInput {
	return RunInput{
		Pattern:        "%",
		Limit:          10,
		ThresholdBytes: 1_000_000_000,
	}
}

func TestRunEmptyDatabaseSet(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100)

	input := defaultInput()
	input.Pattern = "nomatch%"
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, report.Databases)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "run-1", report.RunID)
	assert.False(t, server.connected)
	assert.Equal(t, 1, server.disconnects)
}

func TestRunFailFastOnInvalidIndexes(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "orders_email_key", 8192, false),
		index("shop", "orders_sku_idx", 16384, false),
		index("shop", "orders_big_idx", 2_000_000_000, true),
	)
	server.addDatabase("billing", 50, index("billing", "invoices_big_idx", 2_000_000_000, true))

	report, err := newService(server).Run(context.Background(), defaultInput())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidIndexesFound))
	var invalidErr *domain.InvalidIndexesError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, "shop", invalidErr.Database)
	assert.Len(t, invalidErr.Findings, 2)

	assert.Empty(t, server.reindexCalls)
	assert.Len(t, report.Databases, 1)
	assert.Equal(t, StateAbortedFatal, report.State)
	assert.False(t, server.connected)
}

func TestRunRebuildsOversizedIndex(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("shop", "orders_big_idx", 2_000_000_000, true))

	report, err := newService(server).Run(context.Background(), defaultInput())

	require.NoError(t, err)
	require.Len(t, server.reindexCalls, 1)
	assert.Equal(t, "orders_big_idx", server.reindexCalls[0].Name)
	require.Len(t, report.Databases, 1)
	require.Len(t, report.Databases[0].Outcomes, 1)
	assert.Equal(t, domain.Succeeded, report.Databases[0].Outcomes[0].Status)
	assert.Equal(t, Totals{Databases: 1, Oversized: 1, Succeeded: 1}, report.Totals())
}

func TestRunExplicitIndexOnly(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "a_idx", 2_000_000_000, true),
		index("shop", "b_idx", 3_000_000_000, true),
		index("shop", "c_idx", 4_000_000_000, true),
		index("shop", "target_idx", 10, true),
	)

	input := defaultInput()
	input.Index = "target_idx"
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []domain.IndexName{{Schema: "shop", Name: "target_idx"}}, server.reindexCalls)
	assert.Len(t, report.Databases[0].Audit.Oversized, 3)
	for _, ix := range server.indexes["shop"][:3] {
		assert.Greater(t, ix.size, int64(1_000_000_000))
	}
}

func TestRunExplicitQualifiedIndex(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("public", "legacy_idx", 10, true))

	input := defaultInput()
	input.Index = "public.legacy_idx"
	_, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []domain.IndexName{{Schema: "public", Name: "legacy_idx"}}, server.reindexCalls)
}

func TestRunExplicitQualifiedIndexRebuiltOncePerRun(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 300, index("public", "legacy_idx", 10, true))
	server.addDatabase("billing", 200)
	server.addDatabase("crm", 100)

	input := defaultInput()
	input.Index = "public.legacy_idx"
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []domain.IndexName{{Schema: "public", Name: "legacy_idx"}}, server.reindexCalls)
	require.Len(t, report.Databases, 3)
	assert.Equal(t, domain.Succeeded, report.Databases[0].Outcomes[0].Status)
	for _, entry := range report.Databases[1:] {
		require.Len(t, entry.Outcomes, 1)
		assert.Equal(t, domain.Skipped, entry.Outcomes[0].Status)
		assert.Equal(t, "already remediated in this run", entry.Outcomes[0].Reason)
	}
	assert.Equal(t, Totals{Databases: 3, Succeeded: 1, Skipped: 2}, report.Totals())
}

func TestRunMissingExplicitIndexIsReportedNotFatal(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100)
	server.addDatabase("billing", 50)

	input := defaultInput()
	input.Index = "ghost_idx"
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, server.reindexCalls, 2)
	totals := report.Totals()
	assert.Equal(t, 2, totals.Failed)
	var rebuildErr *domain.RebuildError
	assert.True(t, errors.As(report.Databases[0].Outcomes[0].Err, &rebuildErr))
}

func TestRunAuditFailureContinues(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("shop", "orders_big_idx", 2_000_000_000, true))
	server.addDatabase("billing", 50, index("billing", "invoices_big_idx", 2_000_000_000, true))
	server.auditErr["shop"] = errors.New("permission denied for relation pg_index")

	report, err := newService(server).Run(context.Background(), defaultInput())

	require.NoError(t, err)
	require.Len(t, report.Databases, 2)
	var auditErr *domain.AuditQueryError
	require.True(t, errors.As(report.Databases[0].AuditErr, &auditErr))
	assert.Equal(t, "shop", auditErr.Database)
	assert.Equal(t, []domain.IndexName{{Schema: "billing", Name: "invoices_big_idx"}}, server.reindexCalls)
	assert.Equal(t, 1, report.Totals().AuditFailures)
}

func TestRunConnectionFailureIsFatal(t *testing.T) {
	server := newFakeServer()
	server.connectErr = errors.New("dial tcp: connection refused")

	report, err := newService(server).Run(context.Background(), defaultInput())

	var connErr *domain.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "db.internal:5432/postgres", connErr.Target)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, 0, server.listCalls)
	assert.Equal(t, 1, server.disconnects)
	assert.Equal(t, StateAbortedFatal, report.State)
}

func TestRunSelectorFailureIsFatal(t *testing.T) {
	server := newFakeServer()
	server.listErr = errors.New("canceling statement due to statement timeout")

	report, err := newService(server).Run(context.Background(), defaultInput())

	var selErr *domain.SelectorQueryError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, StateAbortedFatal, report.State)
	assert.Equal(t, 1, server.disconnects)
}

func TestRunRejectsInvalidInputBeforeConnecting(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*RunInput)
	}{
		{name: "negative offset", modify: func(in *RunInput) { in.Offset = -1 }},
		{name: "negative limit", modify: func(in *RunInput) { in.Limit = -5 }},
		{name: "zero threshold", modify: func(in *RunInput) { in.ThresholdBytes = 0 }},
		{name: "unknown policy", modify: func(in *RunInput) { in.Policy = "ignore" }},
		{name: "malformed index", modify: func(in *RunInput) { in.Index = "shop." }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeServer()
			input := defaultInput()
			tt.modify(&input)

			_, err := newService(server).Run(context.Background(), input)

			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Equal(t, 0, server.disconnects)
			assert.Equal(t, 0, server.listCalls)
		})
	}
}

func TestRunZeroThresholdAllowedWithoutOversizedCheck(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100)

	input := defaultInput()
	input.ThresholdBytes = 0
	input.Checks = domain.CheckInvalid
	_, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
}

func TestRunRepairPolicyRebuildsInvalidOnce(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "broken_and_big", 2_000_000_000, false),
		index("shop", "broken", 8192, false),
	)

	input := defaultInput()
	input.Policy = domain.PolicyRepair
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []domain.IndexName{
		{Schema: "shop", Name: "broken_and_big"},
		{Schema: "shop", Name: "broken"},
	}, server.reindexCalls)
	assert.Equal(t, Totals{Databases: 1, Invalid: 2, Oversized: 1, Succeeded: 2}, report.Totals())
}

func TestRunReportPolicyLeavesInvalidIndexes(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "broken", 8192, false),
		index("shop", "big", 2_000_000_000, true),
	)

	input := defaultInput()
	input.Policy = domain.PolicyReport
	_, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []domain.IndexName{{Schema: "shop", Name: "big"}}, server.reindexCalls)
}

func TestRunDryRunIssuesNoRebuilds(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("shop", "big", 2_000_000_000, true))

	input := defaultInput()
	input.DryRun = true
	report, err := newService(server).Run(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, server.reindexCalls)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Totals().Skipped)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "broken", 8192, false),
		index("shop", "big", 2_000_000_000, true),
	)

	input := defaultInput()
	input.Policy = domain.PolicyRepair
	svc := newService(server)

	first, err := svc.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Totals().Succeeded)

	second, err := svc.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, Totals{Databases: 1}, second.Totals())
	assert.Len(t, server.reindexCalls, 2)

	// a read-only audit reports the same findings every time
	auditOnly := defaultInput()
	auditOnly.DryRun = true
	auditOnly.Policy = domain.PolicyReport
	server.indexes["shop"][0].valid = false
	a, err := svc.Run(context.Background(), auditOnly)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), auditOnly)
	require.NoError(t, err)
	assert.Equal(t, a.Databases[0].Audit, b.Databases[0].Audit)
}

func TestRunCancellationSkipsRemainingWork(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100,
		index("shop", "a", 3_000_000_000, true),
		index("shop", "b", 2_000_000_000, true),
	)
	server.addDatabase("billing", 50, index("billing", "c", 2_000_000_000, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.onReindex = func(domain.IndexName) { cancel() }

	report, err := newService(server).Run(ctx, defaultInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, server.reindexCalls, 1)
	require.Len(t, report.Databases, 1)
	outcomes := report.Databases[0].Outcomes
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.Succeeded, outcomes[0].Status)
	assert.Equal(t, domain.Skipped, outcomes[1].Status)
	assert.Equal(t, 1, server.disconnects)
}

func TestRunReportsProgress(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("shop", "big", 2_000_000_000, true))
	reporter := &recordingReporter{}

	_, err := newService(server, WithReporter(reporter)).Run(context.Background(), defaultInput())

	require.NoError(t, err)
	assert.Equal(t, []string{
		"start",
		"selected",
		"audited:shop",
		"rebuild:big:succeeded",
		"finished:done",
	}, reporter.events)
}

func TestRunRecordsDurations(t *testing.T) {
	server := newFakeServer()
	server.addDatabase("shop", 100, index("shop", "big", 2_000_000_000, true))

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	report, err := newService(server, WithClock(now)).Run(context.Background(), defaultInput())

	require.NoError(t, err)
	assert.Equal(t, time.Second, report.Databases[0].Outcomes[0].Duration)
	assert.Greater(t, report.Duration(), time.Duration(0))
}
