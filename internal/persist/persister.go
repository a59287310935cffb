// Package persist writes routed record sets into their schema tables.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ingest/internal/failure"
	"ingest/internal/metrics"
	"ingest/internal/record"
	"ingest/internal/schema"
	"ingest/internal/storage"
)

// Tables maps each schema to its destination table.
type Tables struct {
	Zeus   string
	Elipse string
}

// Target is one record set bound for the table of Schema.
type Target struct {
	Schema  schema.Kind
	Records []record.Record
}

// Persister projects records onto the fixed column set of their schema and
// inserts them through a storage.Repository.
type Persister struct {
	repo   storage.Repository
	tables Tables
	log    zerolog.Logger
}

// New returns a Persister over repo.
func New(repo storage.Repository, tables Tables, log zerolog.Logger) *Persister {
	return &Persister{repo: repo, tables: tables, log: log}
}

// Table returns the destination table of k, or "" for Unknown.
func (p *Persister) Table(k schema.Kind) string {
	switch k {
	case schema.Zeus:
		return p.tables.Zeus
	case schema.Elipse:
		return p.tables.Elipse
	}
	return ""
}

// Insert persists one record set. See InsertAll.
func (p *Persister) Insert(ctx context.Context, kind schema.Kind, records []record.Record) (int64, error) {
	n, err := p.InsertAll(ctx, []Target{{Schema: kind, Records: records}})
	if err != nil {
		return 0, err
	}
	return n[0], nil
}

// InsertAll persists every target inside one storage transaction and returns
// the number of rows actually inserted per target, in order.
//
// Each record is projected onto its schema's columns with missing fields bound
// as NULL. Rows whose data_hora already exists in the table, or repeats within
// the same target, are skipped. Empty targets insert nothing and report 0.
//
// Errors:
//   - failure.KindPersistence for an Unknown schema or any backend error; no
//     target is partially committed.
func (p *Persister) InsertAll(ctx context.Context, targets []Target) ([]int64, error) {
	start := time.Now()

	batches := make([]storage.Batch, 0, len(targets))
	for _, t := range targets {
		def, ok := schema.Lookup(t.Schema)
		if !ok {
			return nil, failure.New(failure.KindPersistence, "no table for schema %s", t.Schema)
		}
		rows := make([][]any, 0, len(t.Records))
		for _, r := range t.Records {
			rows = append(rows, r.Project(def.Columns))
		}
		batches = append(batches, storage.Batch{
			Table:         p.Table(t.Schema),
			Columns:       def.Columns,
			Rows:          rows,
			DedupeColumns: []string{def.Key},
		})
	}

	inserted, err := p.repo.InsertBatches(ctx, batches)
	if err != nil {
		metrics.ObserveStep("persist", "error", start)
		return nil, failure.Wrap(failure.KindPersistence, err, "insert failed")
	}
	if len(inserted) != len(batches) {
		metrics.ObserveStep("persist", "error", start)
		return nil, failure.New(failure.KindPersistence, "backend reported %d batch counts for %d batches", len(inserted), len(batches))
	}
	metrics.ObserveStep("persist", "ok", start)

	for i, b := range batches {
		metrics.IncCounter(metrics.RowsInsertedTotal, float64(inserted[i]), metrics.Labels{"table": b.Table})
		p.log.Info().
			Str("table", b.Table).
			Int("rows", len(b.Rows)).
			Int64("inserted", inserted[i]).
			Int64("skipped", int64(len(b.Rows))-inserted[i]).
			Msg("persisted")
	}
	return inserted, nil
}

// Snapshot is the most recent content of both schema tables.
type Snapshot struct {
	Zeus   []map[string]any `json:"planilha_zeus"`
	Elipse []map[string]any `json:"planilha_elipse"`
}

// Snapshot reads up to limit rows from each schema table.
func (p *Persister) Snapshot(ctx context.Context, limit int) (Snapshot, error) {
	zeus, err := p.repo.SelectRows(ctx, p.tables.Zeus, schema.ZeusColumns, limit)
	if err != nil {
		return Snapshot{}, failure.Wrap(failure.KindPersistence, err, "select %s", p.tables.Zeus)
	}
	elipse, err := p.repo.SelectRows(ctx, p.tables.Elipse, schema.ElipseColumns, limit)
	if err != nil {
		return Snapshot{}, failure.Wrap(failure.KindPersistence, err, "select %s", p.tables.Elipse)
	}
	if zeus == nil {
		zeus = []map[string]any{}
	}
	if elipse == nil {
		elipse = []map[string]any{}
	}
	return Snapshot{Zeus: zeus, Elipse: elipse}, nil
}

// Ping checks the backend.
func (p *Persister) Ping(ctx context.Context) error {
	if err := p.repo.Ping(ctx); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}
	return nil
}
