package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// MinConcurrentReindexVersion is the first release with REINDEX CONCURRENTLY.
const MinConcurrentReindexVersion = "12.0"

// ServerVersion returns the server version reported by the session.
func (a *PostgresAdapter) ServerVersion(ctx context.Context) (*version.Version, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	var raw string
	if err := a.db.QueryRowContext(ctx, "SHOW server_version").Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	return ParseServerVersion(raw)
}

// ParseServerVersion parses the server_version setting, which may carry a
// distribution suffix such as "14.9 (Debian 14.9-1.pgdg120+1)".
func ParseServerVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty server version")
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid server version %q: %w", raw, err)
	}
	return v, nil
}

// SupportsConcurrentReindex reports whether v is at least min.
func SupportsConcurrentReindex(v *version.Version, min string) (bool, error) {
	required, err := version.NewVersion(min)
	if err != nil {
		return false, fmt.Errorf("invalid version format: %w", err)
	}
	return v.Core().GreaterThanOrEqual(required), nil
}

func (a *PostgresAdapter) checkServerVersion(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectDeadline)
	defer cancel()

	v, err := a.ServerVersion(ctx)
	if err != nil {
		return err
	}
	ok, err := SupportsConcurrentReindex(v, a.minVersion)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("server version %s does not support REINDEX CONCURRENTLY (requires %s or later)", v, a.minVersion)
	}
	return nil
}
