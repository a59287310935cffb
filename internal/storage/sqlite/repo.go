// Package sqlite is the SQLite storage backend (pure Go, modernc.org/sqlite).
//
// Idempotency relies on a UNIQUE or PRIMARY KEY constraint on the dedupe
// columns: inserts use INSERT OR IGNORE, which silently skips conflicting rows.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

// maxParams matches SQLITE_MAX_VARIABLE_NUMBER of SQLite >= 3.32.
const maxParams = 32766

func init() {
	storage.Register("sqlite", New)
}

// Dialect is the SQLite statement dialect.
var Dialect = sqldb.Dialect{
	Name:        "sqlite",
	MaxParams:   maxParams,
	BuildInsert: buildInsertSQL,
	BuildSelect: buildSelectSQL,
}

// New opens a SQLite database. DSN is a file path or a modernc URI such as
// "file:ingest.db?_pragma=busy_timeout(5000)".
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	// A single writer avoids SQLITE_BUSY between pooled connections.
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 1
	}
	return sqldb.Open(ctx, "sqlite", cfg.DSN, maxConns, Dialect)
}

// buildInsertSQL constructs one multi-row INSERT. With dedupe columns it uses
// INSERT OR IGNORE; SQLite resolves the conflict against whichever unique
// constraint covers them.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	if len(dedupeColumns) > 0 {
		b.WriteString("INSERT OR IGNORE INTO ")
	} else {
		b.WriteString("INSERT INTO ")
	}
	b.WriteString(sqlTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func buildSelectSQL(table string, columns []string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(sqlTableIdent(table))
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// sqlTableIdent quotes an optionally schema-qualified name: main.zeus -> "main"."zeus".
func sqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = sqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
