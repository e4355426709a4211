// Package domain defines the index maintenance domain model.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ReservedDatabases are never selected for maintenance, whatever the pattern.
var ReservedDatabases = []string{"postgres", "template0", "template1", "rdsadmin"}

// IsReservedDatabase reports whether name is one of the reserved system databases.
func IsReservedDatabase(name string) bool {
	for _, reserved := range ReservedDatabases {
		if name == reserved {
			return true
		}
	}
	return false
}

// Database is one entry of a selected database page.
type Database struct {
	Name      string
	SizeBytes int64
}

// IndexName identifies an index by schema and relation name.
type IndexName struct {
	Schema string
	Name   string
}

// String returns the unquoted schema-qualified name, for display only.
func (n IndexName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// Quoted returns the name as a safely quoted SQL identifier.
func (n IndexName) Quoted() string {
	if n.Schema == "" {
		return pq.QuoteIdentifier(n.Name)
	}
	return pq.QuoteIdentifier(n.Schema) + "." + pq.QuoteIdentifier(n.Name)
}

// ParseIndexName parses "index" or "schema.index". Either part may be a
// double-quoted identifier, in which case it can contain dots and "" stands
// for a literal quote. Unquoted parts are kept as written, so matching is
// case-sensitive. An unqualified name is placed in defaultSchema.
func ParseIndexName(raw, defaultSchema string) (IndexName, error) {
	if raw == "" {
		return IndexName{}, fmt.Errorf("%w: empty index name", ErrInvalidArgument)
	}
	parts, err := splitIdentifiers(raw)
	if err != nil {
		return IndexName{}, fmt.Errorf("%w: malformed index name %q: %v", ErrInvalidArgument, raw, err)
	}
	switch len(parts) {
	case 1:
		return IndexName{Schema: defaultSchema, Name: parts[0]}, nil
	case 2:
		return IndexName{Schema: parts[0], Name: parts[1]}, nil
	default:
		return IndexName{}, fmt.Errorf("%w: malformed index name %q: want at most schema.index", ErrInvalidArgument, raw)
	}
}

func splitIdentifiers(raw string) ([]string, error) {
	var parts []string
	i := 0
	for {
		var part string
		if i < len(raw) && raw[i] == '"' {
			var b strings.Builder
			closed := false
			for i++; i < len(raw); i++ {
				if raw[i] != '"' {
					b.WriteByte(raw[i])
					continue
				}
				if i+1 < len(raw) && raw[i+1] == '"' {
					b.WriteByte('"')
					i++
					continue
				}
				closed = true
				i++
				break
			}
			if !closed {
				return nil, errors.New("unterminated quoted identifier")
			}
			part = b.String()
		} else {
			start := i
			for ; i < len(raw) && raw[i] != '.'; i++ {
				if raw[i] == '"' {
					return nil, errors.New("unexpected quote inside identifier")
				}
			}
			part = raw[start:i]
		}

		if part == "" {
			return nil, errors.New("empty identifier")
		}
		parts = append(parts, part)

		if i == len(raw) {
			return parts, nil
		}
		if raw[i] != '.' {
			return nil, errors.New("expected '.' after quoted identifier")
		}
		i++
	}
}

// TableName identifies the table an index belongs to.
type TableName struct {
	Schema string
	Name   string
}

// String returns the unquoted schema-qualified name.
func (n TableName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// FindingKind tags the unhealthy-index category a finding belongs to.
type FindingKind int

const (
	// FindingInvalid marks an index left invalid by a failed concurrent build.
	FindingInvalid FindingKind = iota
	// FindingOversized marks an index larger than the configured threshold.
	FindingOversized
)

// String returns the string representation of the kind.
func (k FindingKind) String() string {
	switch k {
	case FindingInvalid:
		return "invalid"
	case FindingOversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// Finding is a single unhealthy index reported by the auditor.
type Finding struct {
	Kind     FindingKind
	Database string
	Index    IndexName
	Table    TableName
	// SizeBytes is the point-in-time on-disk size. Always set for oversized
	// findings, zero when the catalog did not report it.
	SizeBytes int64
}

// Checks selects which audit predicates run.
type Checks uint8

const (
	// CheckInvalid enables the invalid-index predicate.
	CheckInvalid Checks = 1 << iota
	// CheckOversized enables the oversized-index predicate.
	CheckOversized

	// CheckAll enables every predicate.
	CheckAll = CheckInvalid | CheckOversized
)

// Has reports whether c enables check.
func (c Checks) Has(check Checks) bool {
	return c&check != 0
}

// ParseChecks converts check names ("invalid", "oversized", "all") into a set.
func ParseChecks(names []string) (Checks, error) {
	var c Checks
	for _, name := range names {
		switch name {
		case "invalid":
			c |= CheckInvalid
		case "oversized":
			c |= CheckOversized
		case "all":
			c |= CheckAll
		default:
			return 0, fmt.Errorf("%w: unknown check %q", ErrInvalidArgument, name)
		}
	}
	if c == 0 {
		return 0, fmt.Errorf("%w: at least one check must be enabled", ErrInvalidArgument)
	}
	return c, nil
}

// AuditResult groups the findings of one database audit by kind.
type AuditResult struct {
	Database  string
	Invalid   []Finding
	Oversized []Finding
}

// Findings returns every finding, invalid first.
func (r *AuditResult) Findings() []Finding {
	if r == nil {
		return nil
	}
	all := make([]Finding, 0, len(r.Invalid)+len(r.Oversized))
	all = append(all, r.Invalid...)
	return append(all, r.Oversized...)
}

// IndexRecord is a raw catalog row describing one index.
type IndexRecord struct {
	Index     IndexName
	Table     TableName
	SizeBytes int64
}
