// Package selector chooses which databases a maintenance run visits.
package selector

import (
	"context"
	"fmt"

	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

// Catalog lists databases on the server.
type Catalog interface {
	ListDatabases(ctx context.Context, pattern string, exclude []string, offset, limit int) ([]domain.Database, error)
}

// Selector produces one page of target databases.
type Selector struct {
	catalog Catalog
}

// New creates a new selector.
func New(catalog Catalog) *Selector {
	return &Selector{catalog: catalog}
}

// Select returns at most limit databases matching the LIKE pattern, skipping
// the first offset, ordered by on-disk size descending.
//
// Databases of equal size come back in the server's catalog order, which is
// not stable across runs. Reserved system databases are never returned.
func (s *Selector) Select(ctx context.Context, pattern string, offset, limit int) ([]domain.Database, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0, got %d", domain.ErrInvalidArgument, offset)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0, got %d", domain.ErrInvalidArgument, limit)
	}
	if limit == 0 {
		return []domain.Database{}, nil
	}

	rows, err := s.catalog.ListDatabases(ctx, pattern, domain.ReservedDatabases, offset, limit)
	if err != nil {
		return nil, &domain.SelectorQueryError{Pattern: pattern, Err: err}
	}

	seen := make(map[string]struct{}, len(rows))
	selected := make([]domain.Database, 0, len(rows))
	for _, db := range rows {
		if domain.IsReservedDatabase(db.Name) {
			continue
		}
		if _, dup := seen[db.Name]; dup {
			continue
		}
		seen[db.Name] = struct{}{}
		selected = append(selected, db)
		if len(selected) == limit {
			break
		}
	}

	return selected, nil
}
