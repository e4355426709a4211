// Package auditor finds unhealthy indexes in a database.
package auditor

import (
	"context"
	"fmt"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// DefaultThresholdBytes is the suggested oversized-index threshold.
const DefaultThresholdBytes int64 = 1_000_000_000

// Catalog reads index health from the server catalogs.
type Catalog interface {
	InvalidIndexes(ctx context.Context, namespace string) ([]domain.IndexRecord, error)
	IndexesLargerThan(ctx context.Context, namespace string, thresholdBytes int64) ([]domain.IndexRecord, error)
}

// Auditor runs the read-only index health predicates.
//
// Catalog queries are scoped to the namespace named after the target
// database, since every database is examined through the one
// administrative session.
type Auditor struct {
	catalog Catalog
}

// New creates a new auditor.
func New(catalog Catalog) *Auditor {
	return &Auditor{catalog: catalog}
}

// FindInvalid returns indexes flagged not valid in database.
func (a *Auditor) FindInvalid(ctx context.Context, database string) ([]domain.Finding, error) {
	records, err := a.catalog.InvalidIndexes(ctx, database)
	if err != nil {
		return nil, &domain.AuditQueryError{Database: database, Check: domain.FindingInvalid.String(), Err: err}
	}

	findings := make([]domain.Finding, 0, len(records))
	for _, rec := range records {
		findings = append(findings, toFinding(domain.FindingInvalid, database, rec))
	}
	return dedupe(findings), nil
}

// FindOversized returns indexes in database whose size is strictly greater
// than thresholdBytes, largest first.
func (a *Auditor) FindOversized(ctx context.Context, database string, thresholdBytes int64) ([]domain.Finding, error) {
	if thresholdBytes <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidThreshold, thresholdBytes)
	}

	records, err := a.catalog.IndexesLargerThan(ctx, database, thresholdBytes)
	if err != nil {
		return nil, &domain.AuditQueryError{Database: database, Check: domain.FindingOversized.String(), Err: err}
	}

	findings := make([]domain.Finding, 0, len(records))
	for _, rec := range records {
		// Re-check locally so the result is exactly {size > threshold}.
		if rec.SizeBytes <= thresholdBytes {
			continue
		}
		findings = append(findings, toFinding(domain.FindingOversized, database, rec))
	}
	return dedupe(findings), nil
}

// Audit runs the enabled predicates against database. The first failing
// predicate aborts the audit of that database.
func (a *Auditor) Audit(ctx context.Context, database string, checks domain.Checks, thresholdBytes int64) (*domain.AuditResult, error) {
	result := &domain.AuditResult{
		Database:  database,
		Invalid:   []domain.Finding{},
		Oversized: []domain.Finding{},
	}

	if checks.Has(domain.CheckInvalid) {
		invalid, err := a.FindInvalid(ctx, database)
		if err != nil {
			return nil, err
		}
		result.Invalid = invalid
	}

	if checks.Has(domain.CheckOversized) {
		oversized, err := a.FindOversized(ctx, database, thresholdBytes)
		if err != nil {
			return nil, err
		}
		result.Oversized = oversized
	}

	return result, nil
}

func toFinding(kind domain.FindingKind, database string, rec domain.IndexRecord) domain.Finding {
	return domain.Finding{
		Kind:      kind,
		Database:  database,
		Index:     rec.Index,
		Table:     rec.Table,
		SizeBytes: rec.SizeBytes,
	}
}

func dedupe(findings []domain.Finding) []domain.Finding {
	seen := make(map[domain.IndexName]struct{}, len(findings))
	out := findings[:0]
	for _, f := range findings {
		if _, ok := seen[f.Index]; ok {
			continue
		}
		seen[f.Index] = struct{}{}
		out = append(out, f)
	}
	return out
}
