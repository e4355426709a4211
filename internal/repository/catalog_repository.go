// Package repository implements repository interfaces for catalog access.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/satishbabariya/pgreindex/internal/adapters/database"
	"github.com/satishbabariya/pgreindex/internal/core/index/domain"
)

const listDatabasesQuery = `
	SELECT datname, pg_database_size(datname)
	FROM pg_database
	WHERE datname LIKE $1
	  AND datname <> ALL($2)
	ORDER BY pg_database_size(datname) DESC
	OFFSET $3 LIMIT $4
`

const invalidIndexesQuery = `
	SELECT n.nspname, ic.relname, tn.nspname, tc.relname, pg_relation_size(ic.oid)
	FROM pg_index i
	JOIN pg_class ic ON ic.oid = i.indexrelid
	JOIN pg_namespace n ON n.oid = ic.relnamespace
	JOIN pg_class tc ON tc.oid = i.indrelid
	JOIN pg_namespace tn ON tn.oid = tc.relnamespace
	WHERE NOT i.indisvalid
	  AND n.nspname = $1
	ORDER BY ic.relname
`

const oversizedIndexesQuery = `
	SELECT n.nspname, ic.relname, tn.nspname, tc.relname, pg_relation_size(ic.oid) AS size_bytes
	FROM pg_index i
	JOIN pg_class ic ON ic.oid = i.indexrelid
	JOIN pg_namespace n ON n.oid = ic.relnamespace
	JOIN pg_class tc ON tc.oid = i.indrelid
	JOIN pg_namespace tn ON tn.oid = tc.relnamespace
	WHERE n.nspname = $1
	  AND pg_relation_size(ic.oid) > $2
	ORDER BY size_bytes DESC, ic.relname
`

// PostgresCatalogRepository implements CatalogRepository on top of a
// database adapter.
type PostgresCatalogRepository struct {
	db database.Adapter
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db database.Adapter) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

// ListDatabases lists databases by on-disk size, largest first. Ties come
// back in whatever order the server produces; callers must not rely on it.
func (r *PostgresCatalogRepository) ListDatabases(ctx context.Context, pattern string, exclude []string, offset, limit int) ([]domain.Database, error) {
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := r.db.Query(ctx, listDatabasesQuery, pattern, pq.Array(exclude), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query databases: %w", err)
	}
	defer rows.Close()

	var databases []domain.Database
	for rows.Next() {
		var db domain.Database
		if err := rows.Scan(&db.Name, &db.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		databases = append(databases, db)
	}

	return databases, rows.Err()
}

// InvalidIndexes lists indexes left invalid by a failed concurrent build.
func (r *PostgresCatalogRepository) InvalidIndexes(ctx context.Context, namespace string) ([]domain.IndexRecord, error) {
	rows, err := r.db.Query(ctx, invalidIndexesQuery, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query invalid indexes: %w", err)
	}
	return scanIndexRecords(rows)
}

// IndexesLargerThan lists indexes above thresholdBytes.
func (r *PostgresCatalogRepository) IndexesLargerThan(ctx context.Context, namespace string, thresholdBytes int64) ([]domain.IndexRecord, error) {
	rows, err := r.db.Query(ctx, oversizedIndexesQuery, namespace, thresholdBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query index sizes: %w", err)
	}
	return scanIndexRecords(rows)
}

// ReindexConcurrently issues REINDEX INDEX CONCURRENTLY as a standalone
// statement. The identifier is quoted, never interpolated raw.
func (r *PostgresCatalogRepository) ReindexConcurrently(ctx context.Context, index domain.IndexName) error {
	if index.Name == "" {
		return fmt.Errorf("%w: empty index name", domain.ErrInvalidArgument)
	}
	if _, err := r.db.Execute(ctx, ReindexStatement(index)); err != nil {
		return err
	}
	return nil
}

// ReindexStatement renders the rebuild statement for index.
func ReindexStatement(index domain.IndexName) string {
	return "REINDEX INDEX CONCURRENTLY " + index.Quoted()
}

func scanIndexRecords(rows *sql.Rows) ([]domain.IndexRecord, error) {
	defer rows.Close()

	var records []domain.IndexRecord
	for rows.Next() {
		var rec domain.IndexRecord
		if err := rows.Scan(&rec.Index.Schema, &rec.Index.Name, &rec.Table.Schema, &rec.Table.Name, &rec.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Ensure PostgresCatalogRepository implements CatalogRepository interface.
var _ CatalogRepository = (*PostgresCatalogRepository)(nil)
