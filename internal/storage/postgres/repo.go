package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ingest/internal/storage"
)

// maxParams is the Postgres wire-protocol limit on bind parameters per statement.
const maxParams = 65535

/*
Repo implements storage.Repository for Postgres using a pgx connection pool.

Idempotent inserts translate dedupe columns to

	INSERT ... ON CONFLICT (<dedupe columns>) DO NOTHING

which requires a UNIQUE or PRIMARY KEY constraint on those columns. Rows that
repeat a key inside one statement are skipped the same way, so the first
occurrence wins.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN and pings it so that a bad DSN fails at
// startup instead of on the first upload.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Ping verifies connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// InsertBatches writes every batch in one transaction.
func (r *Repo) InsertBatches(ctx context.Context, batches []storage.Batch) ([]int64, error) {
	counts := make([]int64, len(batches))

	empty := true
	for _, b := range batches {
		if len(b.Rows) > 0 {
			empty = false
			break
		}
	}
	if empty {
		return counts, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, b := range batches {
		if len(b.Rows) == 0 {
			continue
		}
		if b.Table == "" || len(b.Columns) == 0 {
			return nil, fmt.Errorf("postgres: batch %d: table and columns are required", i)
		}
		n, err := insertPlain(ctx, tx, b)
		if err != nil {
			return nil, fmt.Errorf("postgres: insert into %s: %w", b.Table, err)
		}
		counts[i] = n
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return counts, nil
}

// insertPlain runs one multi-row INSERT per parameter-limit chunk of b.
func insertPlain(ctx context.Context, tx pgx.Tx, b storage.Batch) (int64, error) {
	var total int64
	for _, part := range storage.ChunkRows(b.Rows, len(b.Columns), maxParams) {
		sql, args := buildInsertSQL(b.Table, b.Columns, part, b.DedupeColumns)
		cmd, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return total, err
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// SelectRows reads up to limit rows of table.
func (r *Repo) SelectRows(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, buildSelectSQL(table, columns, limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: select from %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", table, err)
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			m[f.Name] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// buildInsertSQL constructs a single INSERT statement and its args for Postgres.
//
// Why this exists:
//   - It is pure and deterministic, so placeholder numbering and ON CONFLICT
//     behavior can be unit tested without a database.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	b.WriteString(";")
	return b.String(), args
}

func buildSelectSQL(table string, columns []string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(pgTableIdent(table))
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// pgIdent quotes a single identifier.
func pgIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// pgTableIdent quotes an optionally schema-qualified table name:
// public.zeus -> "public"."zeus".
func pgTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return pgx.Identifier(parts).Sanitize()
}

var _ storage.Repository = (*Repo)(nil)
