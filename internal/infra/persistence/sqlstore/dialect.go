package sqlstore

import (
	"fmt"
	"strings"

	sqldocs "artifactcore/docs/schema/sql"
)

// Dialect captures the few places where the supported SQL engines differ.
type Dialect struct {
	// Name identifies the engine ("sqlite", "postgres").
	Name string
	// DDL returns the schema bundle for the engine.
	DDL func() string
	// MaxParams is the bind-parameter limit of a single statement.
	MaxParams int
	// Numbered selects $1-style placeholders instead of ?.
	Numbered bool
	// IgnorePrefix replaces "INSERT" for duplicate-skipping inserts.
	IgnorePrefix string
	// IgnoreSuffix is appended to duplicate-skipping inserts.
	IgnoreSuffix string
	// BacktickIdentifiers reports whether `ident` quoting is understood natively.
	BacktickIdentifiers bool
}

// SQLite is the modernc.org/sqlite dialect.
var SQLite = Dialect{
	Name:                "sqlite",
	DDL:                 func() string { return sqldocs.SQLite },
	MaxParams:           32766,
	IgnorePrefix:        "INSERT OR IGNORE",
	BacktickIdentifiers: true,
}

// Postgres is the pgx dialect.
var Postgres = Dialect{
	Name:         "postgres",
	DDL:          func() string { return sqldocs.Postgres },
	MaxParams:    65535,
	Numbered:     true,
	IgnorePrefix: "INSERT",
	IgnoreSuffix: " ON CONFLICT DO NOTHING",
}

// InsertIgnore builds a multi-row insert for rows rows that silently skips
// rows colliding with a uniqueness constraint.
func (d Dialect) InsertIgnore(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString(d.IgnorePrefix)
	b.WriteString(" INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
	}
	b.WriteString(") VALUES ")
	n := 0
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			n++
			if d.Numbered {
				fmt.Fprintf(&b, "$%d", n)
			} else {
				b.WriteByte('?')
			}
		}
		b.WriteByte(')')
	}
	b.WriteString(d.IgnoreSuffix)
	return b.String()
}

// RowsPerStatement returns how many rows of width columns fit in one insert.
func (d Dialect) RowsPerStatement(columns int) int {
	if columns <= 0 {
		return maxRowsPerStatement
	}
	n := d.MaxParams / columns
	if n < 1 {
		n = 1
	}
	return min(n, maxRowsPerStatement)
}

// Rewrite adapts catalog SQL to the engine. Backtick-quoted identifiers become
// double-quoted where the engine does not accept backticks; string literals
// are left alone.
func (d Dialect) Rewrite(query string) string {
	if d.BacktickIdentifiers || !strings.Contains(query, "`") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	inString := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inString = !inString
			b.WriteByte(ch)
		case ch == '`' && !inString:
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

const maxRowsPerStatement = 500

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
