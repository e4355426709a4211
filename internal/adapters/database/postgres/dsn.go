package postgres

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/pgreindex/internal/adapters/database"
)

// BuildDSN renders a libpq key/value connection string. Values are quoted so
// passwords and names containing spaces or quotes survive intact.
func BuildDSN(cfg database.Config) string {
	params := map[string]string{
		"host":   cfg.Host,
		"port":   strconv.Itoa(cfg.Port),
		"user":   cfg.User,
		"dbname": cfg.DBName,
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	if cfg.SSLMode != "" {
		params["sslmode"] = cfg.SSLMode
	}
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.ConnectTimeout > 0 {
		params["connect_timeout"] = strconv.Itoa(wholeSeconds(cfg.ConnectTimeout))
	}
	// lib/pq forwards unknown keys as run-time parameters of the session.
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	if cfg.LockTimeout > 0 {
		params["lock_timeout"] = strconv.FormatInt(cfg.LockTimeout.Milliseconds(), 10)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteValue(params[k]))
	}
	return b.String()
}

func quoteValue(v string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range v {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// libpq's connect_timeout has one second resolution; round up so a
// sub-second timeout does not turn into "wait forever".
func wholeSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
