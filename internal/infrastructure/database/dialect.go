package database

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour behind a *DB. Repositories write
// queries with ? placeholders and pass them through Rebind.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Rebind rewrites ? placeholders into the dialect's native form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8) //nolint:mnd // room for a handful of two-digit placeholders
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ForUpdate returns the row-locking suffix for SELECTs inside a write
// transaction. SQLite locks the whole database when the transaction begins
// (see _txlock=immediate in Open), so it needs none.
func (d Dialect) ForUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch d {
	case DialectPostgres:
		return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
	default:
		return strings.Contains(msg, "UNIQUE constraint failed")
	}
}

// IsPrimaryKeyViolation reports whether err is a unique failure on table's
// primary key (column id) rather than on another unique column.
func (d Dialect) IsPrimaryKeyViolation(err error, table string) bool {
	if !d.IsUniqueViolation(err) {
		return false
	}
	msg := err.Error()
	switch d {
	case DialectPostgres:
		return strings.Contains(msg, `"`+table+`_pkey"`)
	default:
		return strings.Contains(msg, "UNIQUE constraint failed: "+table+".id")
	}
}
