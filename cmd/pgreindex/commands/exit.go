package commands

import (
	"errors"

	"github.com/satishbabariya/pgreindex/internal/config"
	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFatal          = 1
	ExitInvalidIndexes = 2
	ExitUsage          = 64
)

// UsageError wraps a command line mistake.
type UsageError struct {
	Err error
}

// Error implements the error interface.
func (e *UsageError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit code. Run-aborting
// errors take precedence over the usage errors they may wrap.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrInvalidIndexesFound):
		return ExitInvalidIndexes
	case domain.IsFatal(err):
		return ExitFatal
	case errors.As(err, &usage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidArgument):
		return ExitUsage
	default:
		return ExitFatal
	}
}
