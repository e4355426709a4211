// Package repository defines repository interfaces for catalog access.
package repository

import (
	"context"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// CatalogRepository defines catalog reads and index rebuilds against the
// server the administrative session is connected to.
type CatalogRepository interface {
	// ListDatabases returns databases whose name matches the LIKE pattern,
	// minus the excluded names, largest first, paginated.
	ListDatabases(ctx context.Context, pattern string, exclude []string, offset, limit int) ([]domain.Database, error)

	// InvalidIndexes returns indexes in namespace flagged not valid.
	InvalidIndexes(ctx context.Context, namespace string) ([]domain.IndexRecord, error)

	// IndexesLargerThan returns indexes in namespace whose on-disk size is
	// strictly greater than thresholdBytes, largest first.
	IndexesLargerThan(ctx context.Context, namespace string, thresholdBytes int64) ([]domain.IndexRecord, error)

	// ReindexConcurrently rebuilds one index without blocking reads or writes.
	ReindexConcurrently(ctx context.Context, index domain.IndexName) error
}
