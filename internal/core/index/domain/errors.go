package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for caller errors detected before querying.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidThreshold is returned for a zero or negative size threshold.
	ErrInvalidThreshold = fmt.Errorf("%w: size threshold must be positive", ErrInvalidArgument)

	// ErrInvalidIndexesFound aborts a fail-fast run. Operator intervention is
	// required.
	ErrInvalidIndexesFound = errors.New("invalid indexes found")
)

// ConnectionError means the administrative connection could not be
// established. It is fatal for the run.
type ConnectionError struct {
	// Target is the redacted server address, never the full DSN.
	Target string
	Err    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// SelectorQueryError means the database listing could not be obtained. It is
// fatal for the run.
type SelectorQueryError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e *SelectorQueryError) Error() string {
	return fmt.Sprintf("list databases matching %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e *SelectorQueryError) Unwrap() error { return e.Err }

// AuditQueryError is a per-database audit failure. The run skips the
// database and continues.
type AuditQueryError struct {
	Database string
	Check    string
	Err      error
}

// Error implements the error interface.
func (e *AuditQueryError) Error() string {
	return fmt.Sprintf("audit %s indexes in %s: %v", e.Check, e.Database, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuditQueryError) Unwrap() error { return e.Err }

// RebuildError is a per-index rebuild failure. It is recorded on the
// outcome and never stops the batch.
type RebuildError struct {
	Database string
	Index    IndexName
	Err      error
}

// Error implements the error interface.
func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild %s in %s: %v", e.Index, e.Database, e.Err)
}

// Unwrap returns the underlying error.
func (e *RebuildError) Unwrap() error { return e.Err }

// InvalidIndexesError carries the findings that triggered a fail-fast abort.
type InvalidIndexesError struct {
	Database string
	Findings []Finding
}

// Error implements the error interface.
func (e *InvalidIndexesError) Error() string {
	return fmt.Sprintf("%d invalid index(es) found in %s: operator intervention required", len(e.Findings), e.Database)
}

// Is reports ErrInvalidIndexesFound as a match.
func (e *InvalidIndexesError) Is(target error) bool {
	return target == ErrInvalidIndexesFound
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var connErr *ConnectionError
	var selErr *SelectorQueryError
	return errors.As(err, &connErr) || errors.As(err, &selErr) || errors.Is(err, ErrInvalidIndexesFound)
}
