package service

import (
	"time"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// State is a step of the maintenance run state machine.
type State int

const (
	// StateStart is the state before the connection is opened.
	StateStart State = iota
	// StateSelectingDatabases lists the databases to process.
	StateSelectingDatabases
	// StateAuditing inspects one database.
	StateAuditing
	// StateRemediating rebuilds the candidates of one database.
	StateRemediating
	// StateDone is the normal terminal state.
	StateDone
	// StateAbortedFatal is reached on connection or selector failure, or on
	// invalid indexes under the fail-fast policy.
	StateAbortedFatal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateSelectingDatabases:
		return "selecting-databases"
	case StateAuditing:
		return "auditing"
	case StateRemediating:
		return "remediating"
	case StateDone:
		return "done"
	case StateAbortedFatal:
		return "aborted"
	default:
		return "unknown"
	}
}

// DatabaseReport is what happened to one selected database.
type DatabaseReport struct {
	Database domain.Database
	Audit    *domain.AuditResult
	// AuditErr is set when the audit failed and the database was skipped.
	AuditErr error
	Outcomes []domain.Outcome
}

// Report describes one maintenance run.
type Report struct {
	RunID      string
	Target     string
	State      State
	DryRun     bool
	Databases  []DatabaseReport
	StartedAt  time.Time
	FinishedAt time.Time
}

// Totals summarises a report.
type Totals struct {
	Databases     int
	AuditFailures int
	Invalid       int
	Oversized     int
	Succeeded     int
	Failed        int
	Skipped       int
}

// Totals counts databases, findings and rebuild outcomes.
func (r *Report) Totals() Totals {
	var t Totals
	if r == nil {
		return t
	}
	for _, db := range r.Databases {
		t.Databases++
		if db.AuditErr != nil {
			t.AuditFailures++
		}
		if db.Audit != nil {
			t.Invalid += len(db.Audit.Invalid)
			t.Oversized += len(db.Audit.Oversized)
		}
		for _, o := range db.Outcomes {
			switch o.Status {
			case domain.Succeeded:
				t.Succeeded++
			case domain.Failed:
				t.Failed++
			case domain.Skipped:
				t.Skipped++
			}
		}
	}
	return t
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Reporter receives progress events as the run advances.
type Reporter interface {
	RunStarted(runID, target string)
	DatabasesSelected(databases []domain.Database)
	DatabaseAudited(database domain.Database, result *domain.AuditResult, err error)
	RebuildFinished(outcome domain.Outcome)
	RunFinished(report *Report, err error)
}

// NopReporter discards every event.
type NopReporter struct{}

// RunStarted does nothing.
func (NopReporter) RunStarted(runID, target string) {}

// DatabasesSelected does nothing.
func (NopReporter) DatabasesSelected(databases []domain.Database) {}

// DatabaseAudited does nothing.
func (NopReporter) DatabaseAudited(database domain.Database, result *domain.AuditResult, err error) {}

// RebuildFinished does nothing.
func (NopReporter) RebuildFinished(outcome domain.Outcome) {}

// RunFinished does nothing.
func (NopReporter) RunFinished(report *Report, err error) {}

var _ Reporter = NopReporter{}
