// Package postgres implements PostgreSQL database adapter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/satishbabariya/pgreindex/internal/adapters/database"
	"github.com/satishbabariya/pgreindex/internal/logging"
)

// errNotConnected is returned by every query method before Connect succeeds.
var errNotConnected = errors.New("database not connected")

// PostgresAdapter implements the database.Adapter interface for PostgreSQL.
//
// The pool is pinned to a single open connection so every statement of a run
// goes through one server session.
type PostgresAdapter struct {
	db     *sql.DB
	config database.Config
	// minVersion is the lowest server version accepted by Connect.
	minVersion string
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(config database.Config) (*PostgresAdapter, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("postgres: host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("postgres: invalid port %d", config.Port)
	}
	if config.DBName == "" {
		config.DBName = "postgres"
	}
	return &PostgresAdapter{
		config:     config,
		minVersion: MinConcurrentReindexVersion,
	}, nil
}

// Connect establishes a connection to the PostgreSQL server and checks that
// it supports concurrent reindexing.
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", BuildDSN(a.config))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if a.config.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(a.config.MaxIdleTime)
	}

	pingCtx := ctx
	if a.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, a.config.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db

	if err := a.checkServerVersion(ctx); err != nil {
		a.db = nil
		db.Close()
		return err
	}
	return nil
}

// Disconnect closes the database connection.
func (a *PostgresAdapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	stats := a.Stats()
	logging.Named("postgres").Debug("closing connection",
		"target", a.Target(),
		"open", stats.OpenConnections,
		"in_use", stats.InUse,
		"wait_count", stats.WaitCount,
		"wait_duration", stats.WaitDuration,
	)
	err := a.db.Close()
	a.db = nil
	return err
}

// Execute executes a statement without returning rows. database/sql runs it
// in autocommit mode.
func (a *PostgresAdapter) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if a.db == nil {
		return nil, errNotConnected
	}
	return a.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (a *PostgresAdapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if a.db == nil {
		return nil, errNotConnected
	}
	return a.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (a *PostgresAdapter) QueryRow(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if a.db == nil {
		return nil, errNotConnected
	}
	return a.db.QueryRowContext(ctx, query, args...), nil
}

// Ping checks if the database connection is alive.
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return errNotConnected
	}
	return a.db.PingContext(ctx)
}

// Target returns the redacted server address.
func (a *PostgresAdapter) Target() string {
	return a.config.Target()
}

// GetDialect returns the SQL dialect.
func (a *PostgresAdapter) GetDialect() database.SQLDialect {
	return database.PostgreSQL
}

// Stats exposes pool statistics of the underlying handle.
func (a *PostgresAdapter) Stats() sql.DBStats {
	if a.db == nil {
		return sql.DBStats{}
	}
	return a.db.Stats()
}

// connectDeadline is used only for the version check when no connect
// timeout is configured.
const connectDeadline = 30 * time.Second

// Ensure PostgresAdapter implements Adapter interface.
var _ database.Adapter = (*PostgresAdapter)(nil)
