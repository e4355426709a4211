// Package database defines database adapter interfaces.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Connect establishes a database connection.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// Execute executes a SQL statement outside of any transaction.
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// QueryRow executes a query that returns a single row. It fails only
	// when no connection is open; query errors surface from Scan.
	QueryRow(ctx context.Context, query string, args ...interface{}) (*sql.Row, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Target returns the server address without credentials.
	Target() string

	// GetDialect returns the SQL dialect.
	GetDialect() SQLDialect
}

// SQLDialect represents a SQL dialect.
type SQLDialect string

const (
	// PostgreSQL dialect.
	PostgreSQL SQLDialect = "postgres"
)

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// DBName is the administrative database the session is opened against.
	DBName          string
	SSLMode         string
	ApplicationName string

	// Zero values leave the driver and server defaults in place.
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	MaxIdleTime      time.Duration
}

// Target returns host:port/dbname, suitable for logs.
func (c Config) Target() string {
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.DBName)
}

// String implements fmt.Stringer and never includes the password.
func (c Config) String() string {
	return fmt.Sprintf("%s@%s", c.User, c.Target())
}
