package domain

import "time"

// OutcomeStatus is the result of one rebuild attempt.
type OutcomeStatus int

const (
	// Succeeded means the index was rebuilt.
	Succeeded OutcomeStatus = iota
	// Failed means the engine rejected or aborted the rebuild.
	Failed
	// Skipped means the rebuild was not issued (dry run).
	Skipped
)

// String returns the string representation of the status.
func (s OutcomeStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the per-index result of a remediation attempt.
type Outcome struct {
	Database string
	Index    IndexName
	Status   OutcomeStatus
	// Reason is empty unless Status is Failed or Skipped.
	Reason   string
	Err      error
	Duration time.Duration
}
