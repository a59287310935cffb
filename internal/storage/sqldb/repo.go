// Package sqldb implements storage.Repository on top of database/sql for the
// backends that ship a database/sql driver (SQLite, SQL Server, DuckDB).
//
// Each backend package supplies a Dialect: how to quote identifiers, how to
// build its idempotent multi-row insert, and its bind-parameter ceiling. The
// transaction handling, chunking and row scanning live here once.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"ingest/internal/storage"
)

// Dialect captures what differs between database/sql backends.
type Dialect struct {
	// Name prefixes error messages (e.g. "sqlite").
	Name string

	// MaxParams is the per-statement bind parameter ceiling; <= 0 means none.
	MaxParams int

	// DedupeInBatch removes repeated dedupe keys from a batch before insert,
	// for dialects whose idempotent insert does not collapse them itself.
	DedupeInBatch bool

	// BuildInsert returns one multi-row INSERT and its flat argument list.
	BuildInsert func(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any)

	// BuildSelect returns a query reading columns of table, capped at limit rows.
	BuildSelect func(table string, columns []string, limit int) string
}

// Repo is a database/sql backed storage.Repository.
type Repo struct {
	db      dbConn
	dialect Dialect
}

// Open opens driverName with dsn, verifies connectivity and returns a Repo.
//
// The driver must already be registered with database/sql (typically via a
// blank import in the backend package or in storage/all).
func Open(ctx context.Context, driverName, dsn string, maxConns int, d Dialect) (*Repo, error) {
	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}
	if maxConns > 0 {
		raw.SetMaxOpenConns(maxConns)
		raw.SetMaxIdleConns(maxConns)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	return &Repo{db: &sqlDB{db: raw}, dialect: d}, nil
}

// NewWithDB wraps an already-open handle. The Repo takes ownership of db.
func NewWithDB(db *sql.DB, d Dialect) *Repo {
	return &Repo{db: &sqlDB{db: db}, dialect: d}
}

// Close releases the underlying handle.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// Ping verifies connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertBatches implements storage.Repository.
func (r *Repo) InsertBatches(ctx context.Context, batches []storage.Batch) ([]int64, error) {
	counts := make([]int64, len(batches))
	if !hasRows(batches) {
		return counts, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", r.dialect.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, b := range batches {
		if len(b.Rows) == 0 {
			continue
		}
		if b.Table == "" || len(b.Columns) == 0 {
			return nil, fmt.Errorf("%s: batch %d: table and columns are required", r.dialect.Name, i)
		}

		rows := b.Rows
		if r.dialect.DedupeInBatch {
			rows, err = storage.DedupeRows(rows, b.Columns, b.DedupeColumns)
			if err != nil {
				return nil, err
			}
		}

		for _, part := range storage.ChunkRows(rows, len(b.Columns), r.dialect.MaxParams) {
			q, args := r.dialect.BuildInsert(b.Table, b.Columns, part, b.DedupeColumns)
			res, err := tx.ExecContext(ctx, q, args...)
			if err != nil {
				return nil, fmt.Errorf("%s: insert into %s: %w", r.dialect.Name, b.Table, err)
			}
			n, _ := res.RowsAffected()
			counts[i] += n
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", r.dialect.Name, err)
	}
	return counts, nil
}

// SelectRows implements storage.Repository.
func (r *Repo) SelectRows(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.BuildSelect(table, columns, limit))
	if err != nil {
		return nil, fmt.Errorf("%s: select from %s: %w", r.dialect.Name, table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan %s: %w", r.dialect.Name, table, err)
		}
		m := make(map[string]any, len(names))
		for i, n := range names {
			if b, ok := vals[i].([]byte); ok {
				m[n] = string(b)
			} else {
				m[n] = vals[i]
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func hasRows(batches []storage.Batch) bool {
	for _, b := range batches {
		if len(b.Rows) > 0 {
			return true
		}
	}
	return false
}

var _ storage.Repository = (*Repo)(nil)
