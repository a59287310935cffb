// Package duckdb is the DuckDB storage backend, useful for local analysis of
// ingested telemetry without running a database server.
package duckdb

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

func init() {
	storage.Register("duckdb", New)
}

// Dialect is the DuckDB statement dialect. DuckDB rejects a VALUES list that
// hits the same conflict target twice, so batches are deduplicated first.
var Dialect = sqldb.Dialect{
	Name:          "duckdb",
	MaxParams:     65535,
	DedupeInBatch: true,
	BuildInsert:   buildInsertSQL,
	BuildSelect:   buildSelectSQL,
}

// New opens a DuckDB database file (or in-memory database when DSN is empty).
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return sqldb.Open(ctx, "duckdb", cfg.DSN, cfg.MaxConns, Dialect)
}

func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ident(c))
		}
		b.WriteString(") DO NOTHING")
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
		b.WriteString(ident(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(tableIdent(table))
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

func ident(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
