// Package mssql is the Microsoft SQL Server storage backend.
//
// SQL Server has no ON CONFLICT clause. Idempotent inserts use
//
//	INSERT INTO t (...) SELECT v.* FROM (VALUES ...) AS v(...)
//	WHERE NOT EXISTS (SELECT 1 FROM t WHERE t.k = v.k)
//
// which does not collapse a key repeated inside the VALUES source, so batches
// are deduplicated (first occurrence wins) before the statement is built.
//
// This package does NOT blank-import a driver. The "sqlserver" driver is
// registered by storage/all.
package mssql

import (
	"context"
	"fmt"
	"strings"

	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

// maxParams stays under SQL Server's 2100 bind-parameter limit.
const maxParams = 2000

func init() {
	storage.Register("mssql", New)
}

// Dialect is the SQL Server statement dialect.
var Dialect = sqldb.Dialect{
	Name:          "mssql",
	MaxParams:     maxParams,
	DedupeInBatch: true,
	BuildInsert:   buildInsertSQL,
	BuildSelect:   buildSelectSQL,
}

// New opens a SQL Server connection pool via database/sql and validates
// connectivity with a ping.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 64
	}
	return sqldb.Open(ctx, "sqlserver", cfg.DSN, maxConns, Dialect)
}

func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	if len(dedupeColumns) == 0 {
		return buildBulkInsertSQL(table, columns, rows)
	}
	return buildInsertNotExistsSQL(table, columns, rows, dedupeColumns)
}

// buildBulkInsertSQL builds a plain INSERT ... VALUES with @pN parameters.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") VALUES ")
	args := writeValues(&b, columns, rows)
	return b.String(), args
}

// buildInsertNotExistsSQL builds the anti-join insert described in the
// package comment. Rows must already be unique on dedupeColumns.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") SELECT ")
	writeColumnList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")
	args := writeValues(&b, columns, rows)
	b.WriteString(") AS v(")
	writeColumnList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(dc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(dc))
	}
	b.WriteString(")")

	return b.String(), args
}

func buildSelectSQL(table string, columns []string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if limit > 0 {
		fmt.Fprintf(&b, "TOP (%d) ", limit)
	}
	writeColumnList(&b, "", columns)
	b.WriteString(" FROM ")
	b.WriteString(mssqlTableIdent(table))
	return b.String()
}

func writeColumnList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(mssqlIdent(c))
	}
}

func writeValues(b *strings.Builder, columns []string, rows [][]any) []any {
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
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args
}

// mssqlIdent returns a bracket-quoted identifier.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.zeus" -> [dbo].[zeus]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
