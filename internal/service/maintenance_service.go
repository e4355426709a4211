// Package service implements the index maintenance run.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/satishbabariya/pgreindex/internal/adapters/telemetry"
	"github.com/satishbabariya/pgreindex/internal/core/index/auditor"
	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
	"github.com/satishbabariya/pgreindex/internal/core/index/remediation"
	"github.com/satishbabariya/pgreindex/internal/core/index/selector"
	"github.com/satishbabariya/pgreindex/internal/logging"
	"github.com/satishbabariya/pgreindex/internal/repository"
)

// Session is the administrative connection a run owns from start to end.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Target() string
}

// RunInput contains maintenance run parameters.
type RunInput struct {
	// Pattern is a LIKE pattern matched against database names.
	Pattern string
	Offset  int
	Limit   int

	ThresholdBytes int64

	// Index, when set, is the only index rebuilt in each database. An
	// unqualified name resolves to the schema named after the database. A
	// qualified name is rebuilt once per run, in the first database.
	Index string

	Policy domain.InvalidPolicy
	Checks domain.Checks
	DryRun bool
}

func (in *RunInput) normalize() error {
	if in.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", domain.ErrInvalidArgument, in.Offset)
	}
	if in.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", domain.ErrInvalidArgument, in.Limit)
	}
	if in.Checks == 0 {
		in.Checks = domain.CheckAll
	}
	policy, err := domain.ParseInvalidPolicy(string(in.Policy))
	if err != nil {
		return err
	}
	in.Policy = policy
	if in.Checks.Has(domain.CheckOversized) && in.ThresholdBytes <= 0 {
		return domain.ErrInvalidThreshold
	}
	if in.Index != "" {
		if _, err := domain.ParseIndexName(in.Index, "public"); err != nil {
			return err
		}
	}
	return nil
}

// Option configures a MaintenanceService.
type Option func(*MaintenanceService)

// WithTelemetry sets the telemetry adapter.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(s *MaintenanceService) { s.telemetry = t }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(s *MaintenanceService) { s.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *MaintenanceService) { s.logger = l }
}

// WithRunID overrides run ID generation.
func WithRunID(newRunID func() string) Option {
	return func(s *MaintenanceService) { s.newRunID = newRunID }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *MaintenanceService) { s.now = now }
}

// MaintenanceService selects databases, audits their indexes and rebuilds
// the unhealthy ones, strictly one at a time.
type MaintenanceService struct {
	session   Session
	catalog   repository.CatalogRepository
	telemetry telemetry.Telemetry
	reporter  Reporter
	logger    hclog.Logger
	newRunID  func() string
	now       func() time.Time
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(session Session, catalog repository.CatalogRepository, opts ...Option) *MaintenanceService {
	s := &MaintenanceService{
		session:   session,
		catalog:   catalog,
		telemetry: telemetry.NewNoopTelemetry(),
		reporter:  NopReporter{},
		logger:    logging.Named("service"),
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one maintenance pass. The session is disconnected on every
// return path.
//
// Run returns an error only when the run is aborted: connection or selector
// failure, invalid indexes under the fail-fast policy, invalid input or
// cancellation. Audit failures and failed rebuilds are recorded in the report.
func (s *MaintenanceService) Run(ctx context.Context, input RunInput) (report *Report, err error) {
	report = &Report{
		RunID:     s.newRunID(),
		Target:    s.session.Target(),
		State:     StateStart,
		DryRun:    input.DryRun,
		StartedAt: s.now(),
	}
	log := s.logger.With("run_id", report.RunID)
	s.reporter.RunStarted(report.RunID, report.Target)

	defer func() {
		report.FinishedAt = s.now()
		if err != nil {
			report.State = StateAbortedFatal
			log.Error("run aborted", "error", err)
		} else {
			report.State = StateDone
			log.Info("run complete", "databases", len(report.Databases), "duration", report.Duration())
		}
		s.reporter.RunFinished(report, err)
	}()

	if err := input.normalize(); err != nil {
		return report, err
	}

	if err := s.connect(ctx, log); err != nil {
		return report, err
	}
	defer s.disconnect(context.WithoutCancel(ctx), log)

	report.State = StateSelectingDatabases
	databases, err := selector.New(s.catalog).Select(ctx, input.Pattern, input.Offset, input.Limit)
	if err != nil {
		s.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: err, Operation: "select"})
		return report, err
	}
	log.Info("databases selected", "pattern", input.Pattern, "count", len(databases))
	s.reporter.DatabasesSelected(databases)

	a := auditor.New(s.catalog)
	remediated := make(map[domain.IndexName]struct{})
	for _, db := range databases {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run canceled: %w", err)
		}
		if err := s.processDatabase(ctx, log, report, input, a, db, remediated); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (s *MaintenanceService) connect(ctx context.Context, log hclog.Logger) error {
	target := s.session.Target()
	start := s.now()
	err := s.session.Connect(ctx)
	s.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{
		Event:    "connect",
		Target:   target,
		Duration: s.now().Sub(start),
		Success:  err == nil,
	})
	if err == nil {
		log.Debug("connected", "target", target)
		return nil
	}

	s.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: err, Operation: "connect"})
	s.disconnect(context.WithoutCancel(ctx), log)

	var connErr *domain.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &domain.ConnectionError{Target: target, Err: err}
}

func (s *MaintenanceService) disconnect(ctx context.Context, log hclog.Logger) {
	err := s.session.Disconnect(ctx)
	s.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{
		Event:   "disconnect",
		Target:  s.session.Target(),
		Success: err == nil,
	})
	if err != nil {
		log.Warn("failed to close connection", "error", err)
	}
}

func (s *MaintenanceService) processDatabase(
	ctx context.Context,
	log hclog.Logger,
	report *Report,
	input RunInput,
	a *auditor.Auditor,
	db domain.Database,
	remediated map[domain.IndexName]struct{},
) error {
	log = log.With("database", db.Name)
	report.State = StateAuditing
	report.Databases = append(report.Databases, DatabaseReport{Database: db})
	entry := &report.Databases[len(report.Databases)-1]

	start := s.now()
	result, err := a.Audit(ctx, db.Name, input.Checks, input.ThresholdBytes)
	info := telemetry.AuditInfo{Database: db.Name, Duration: s.now().Sub(start), Success: err == nil}
	if result != nil {
		info.Invalid, info.Oversized = len(result.Invalid), len(result.Oversized)
	}
	s.telemetry.RecordAudit(ctx, info)
	s.reporter.DatabaseAudited(db, result, err)

	if err != nil {
		entry.AuditErr = err
		s.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: err, Operation: "audit", Database: db.Name})
		log.Error("audit failed, skipping database", "error", err)
		return nil
	}
	entry.Audit = result
	log.Info("audit complete", "invalid", len(result.Invalid), "oversized", len(result.Oversized))

	if len(result.Invalid) > 0 {
		switch input.Policy {
		case domain.PolicyFailFast:
			return &domain.InvalidIndexesError{Database: db.Name, Findings: result.Invalid}
		case domain.PolicyReport:
			log.Warn("invalid indexes left in place", "count", len(result.Invalid))
		}
	}

	candidates := remediationCandidates(input, db.Name, result)
	if len(candidates) == 0 {
		return nil
	}

	report.State = StateRemediating
	sizes := make(map[domain.IndexName]int64, len(result.Oversized))
	for _, f := range result.Findings() {
		if f.SizeBytes > sizes[f.Index] {
			sizes[f.Index] = f.SizeBytes
		}
	}

	driver := remediation.NewDriver(s.catalog,
		remediation.WithDryRun(input.DryRun),
		remediation.WithClock(s.now),
		remediation.WithObserver(func(o domain.Outcome) {
			s.recordOutcome(ctx, log, o, sizes[o.Index])
		}),
	)

	var batch, repeats []domain.IndexName
	inBatch := make(map[domain.IndexName]struct{}, len(candidates))
	for _, ix := range candidates {
		if _, dup := inBatch[ix]; dup {
			continue
		}
		inBatch[ix] = struct{}{}
		if _, done := remediated[ix]; done {
			repeats = append(repeats, ix)
			continue
		}
		remediated[ix] = struct{}{}
		batch = append(batch, ix)
	}

	entry.Outcomes = driver.RebuildAll(ctx, db.Name, batch)
	for _, ix := range repeats {
		o := domain.Outcome{Database: db.Name, Index: ix, Status: domain.Skipped, Reason: reasonAlreadyRemediated}
		s.recordOutcome(ctx, log, o, sizes[ix])
		entry.Outcomes = append(entry.Outcomes, o)
	}
	return nil
}

// reasonAlreadyRemediated marks an index that was part of an earlier batch of
// the same run.
const reasonAlreadyRemediated = "already remediated in this run"

func (s *MaintenanceService) recordOutcome(ctx context.Context, log hclog.Logger, o domain.Outcome, sizeBytes int64) {
	s.telemetry.RecordRebuild(ctx, telemetry.RebuildInfo{
		Database:  o.Database,
		Index:     o.Index.String(),
		Status:    o.Status.String(),
		Duration:  o.Duration,
		SizeBytes: sizeBytes,
		Err:       o.Err,
	})
	s.reporter.RebuildFinished(o)

	switch o.Status {
	case domain.Succeeded:
		log.Info("index rebuilt", "index", o.Index.String(), "duration", o.Duration)
	case domain.Failed:
		s.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: o.Err, Operation: "rebuild", Database: o.Database})
		log.Error("index rebuild failed", "index", o.Index.String(), "reason", o.Reason)
	case domain.Skipped:
		log.Info("index rebuild skipped", "index", o.Index.String(), "reason", o.Reason)
	}
}

// remediationCandidates returns the indexes to rebuild in one database: the
// explicit index alone when one is named, otherwise the oversized findings
// preceded by the invalid ones under the repair policy.
func remediationCandidates(input RunInput, database string, result *domain.AuditResult) []domain.IndexName {
	if input.Index != "" {
		name, err := domain.ParseIndexName(input.Index, database)
		if err != nil {
			return nil
		}
		return []domain.IndexName{name}
	}

	var candidates []domain.IndexName
	if input.Policy == domain.PolicyRepair {
		for _, f := range result.Invalid {
			candidates = append(candidates, f.Index)
		}
	}
	for _, f := range result.Oversized {
		candidates = append(candidates, f.Index)
	}
	return candidates
}
