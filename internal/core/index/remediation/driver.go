// Package remediation rebuilds unhealthy indexes without blocking traffic.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// Rebuilder issues a single non-blocking index rebuild.
type Rebuilder interface {
	ReindexConcurrently(ctx context.Context, index domain.IndexName) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithDryRun makes the driver report every rebuild as skipped without
// touching the server.
func WithDryRun(dryRun bool) Option {
	return func(d *Driver) { d.dryRun = dryRun }
}

// WithClock overrides the time source used to measure rebuild durations.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithObserver registers a callback invoked after every rebuild attempt of
// RebuildAll, in order.
func WithObserver(observe func(domain.Outcome)) Option {
	return func(d *Driver) { d.observe = observe }
}

// Driver rebuilds indexes one at a time. Failures are returned as outcomes,
// never as errors, so a batch always runs to the end.
type Driver struct {
	rebuilder Rebuilder
	dryRun    bool
	now       func() time.Time
	observe   func(domain.Outcome)
}

// NewDriver creates a new remediation driver.
func NewDriver(rebuilder Rebuilder, opts ...Option) *Driver {
	d := &Driver{
		rebuilder: rebuilder,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rebuild rebuilds one index of database.
func (d *Driver) Rebuild(ctx context.Context, database string, index domain.IndexName) domain.Outcome {
	outcome := domain.Outcome{Database: database, Index: index}

	if index.Name == "" {
		return d.fail(outcome, fmt.Errorf("%w: empty index name", domain.ErrInvalidArgument))
	}
	if d.dryRun {
		outcome.Status = domain.Skipped
		outcome.Reason = "dry run"
		return outcome
	}
	if err := ctx.Err(); err != nil {
		outcome.Status = domain.Skipped
		outcome.Reason = "run canceled"
		outcome.Err = err
		return outcome
	}

	start := d.now()
	err := d.rebuilder.ReindexConcurrently(ctx, index)
	outcome.Duration = d.now().Sub(start)
	if err != nil {
		return d.fail(outcome, err)
	}

	outcome.Status = domain.Succeeded
	return outcome
}

// RebuildAll rebuilds indexes sequentially in the given order. Repeated
// names are rebuilt once. Once ctx is done the remaining indexes are
// reported as skipped.
func (d *Driver) RebuildAll(ctx context.Context, database string, indexes []domain.IndexName) []domain.Outcome {
	seen := make(map[domain.IndexName]struct{}, len(indexes))
	outcomes := make([]domain.Outcome, 0, len(indexes))

	for _, index := range indexes {
		if _, dup := seen[index]; dup {
			continue
		}
		seen[index] = struct{}{}
		outcome := d.Rebuild(ctx, database, index)
		if d.observe != nil {
			d.observe(outcome)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (d *Driver) fail(outcome domain.Outcome, err error) domain.Outcome {
	outcome.Status = domain.Failed
	outcome.Reason = reason(err)
	outcome.Err = &domain.RebuildError{Database: outcome.Database, Index: outcome.Index, Err: err}
	return outcome
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "canceled: " + err.Error()
	default:
		return err.Error()
	}
}
