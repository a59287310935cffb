// Package ingest runs one two-file submission end to end: extract both files,
// route each record set to its schema, and persist the pair atomically.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ingest/internal/extract"
	"ingest/internal/failure"
	"ingest/internal/metrics"
	"ingest/internal/persist"
	"ingest/internal/schema"
)

// Extractor reads one file into schema-tagged records.
type Extractor interface {
	Extract(ctx context.Context, path string) (extract.Result, error)
}

// Store persists routed record sets. *persist.Persister implements it.
type Store interface {
	InsertAll(ctx context.Context, targets []persist.Target) ([]int64, error)
	Table(k schema.Kind) string
}

// Releaser disposes of an input file once a submission is finished with it.
type Releaser interface {
	Release(path string) error
}

// File is one input of a submission. Field names the slot it arrived in
// (e.g. the upload form field) and is echoed in the result.
type File struct {
	Field string
	Path  string
}

// Submission is the pair of files processed together.
type Submission struct {
	First  File
	Second File
}

// FileOutcome reports what happened to one file.
type FileOutcome struct {
	Field    string      `json:"field"`
	Schema   schema.Kind `json:"schema"`
	Table    string      `json:"table,omitempty"`
	Records  int         `json:"records"`
	Inserted int64       `json:"inserted"`
}

// Result reports a processed submission.
type Result struct {
	ID     string      `json:"id"`
	First  FileOutcome `json:"first"`
	Second FileOutcome `json:"second"`
	DryRun bool        `json:"dry_run,omitempty"`
}

// Options configure a Service.
type Options struct {
	// RequireDistinctSchemas rejects a pair that routes to one schema twice.
	RequireDistinctSchemas bool
	// Releaser, when set, is called once per input path after every attempt.
	Releaser Releaser
	Log      zerolog.Logger
}

// Service orchestrates submissions. It is safe for concurrent use when its
// Extractor and Store are.
type Service struct {
	ext   Extractor
	store Store
	opt   Options
}

// New returns a Service. store may be nil for a Service used only for Plan.
func New(ext Extractor, store Store, opt Options) *Service {
	return &Service{ext: ext, store: store, opt: opt}
}

type planned struct {
	res     Result
	targets []persist.Target
}

// Ingest processes sub and returns the schema and insert counts of each file.
//
// Both files are extracted before anything is written; a failure in either
// aborts the submission. Both record sets are then written in one storage
// transaction, so either both land or neither does.
//
// Errors:
//   - failure.KindMissingFiles when either path is empty
//   - any extraction failure (see extract.Extractor.Extract)
//   - failure.KindSameSchema when distinct schemas are required
//   - failure.KindPersistence from the store
func (s *Service) Ingest(ctx context.Context, sub Submission) (Result, error) {
	id := uuid.NewString()
	log := s.opt.Log.With().Str("submission_id", id).Logger()
	defer s.release(log, sub)

	p, err := s.plan(ctx, log, id, sub)
	if err != nil {
		return Result{}, err
	}
	if s.store == nil {
		err := failure.New(failure.KindPersistence, "no store configured")
		s.fail(log, err)
		return Result{}, err
	}
	inserted, err := s.store.InsertAll(ctx, p.targets)
	if err != nil {
		s.fail(log, err)
		return Result{}, err
	}

	p.res.First.Inserted = inserted[0]
	p.res.Second.Inserted = inserted[1]
	p.res.First.Table = s.store.Table(p.res.First.Schema)
	p.res.Second.Table = s.store.Table(p.res.Second.Schema)

	metrics.IncCounter(metrics.SubmissionsTotal, 1, metrics.Labels{"status": "ok"})
	log.Info().
		Str("first_schema", p.res.First.Schema.String()).
		Str("second_schema", p.res.Second.Schema.String()).
		Int64("first_inserted", p.res.First.Inserted).
		Int64("second_inserted", p.res.Second.Inserted).
		Msg("submission persisted")
	return p.res, nil
}

// Plan extracts and routes sub without persisting anything.
func (s *Service) Plan(ctx context.Context, sub Submission) (Result, error) {
	id := uuid.NewString()
	log := s.opt.Log.With().Str("submission_id", id).Logger()
	defer s.release(log, sub)

	p, err := s.plan(ctx, log, id, sub)
	if err != nil {
		return Result{}, err
	}
	p.res.DryRun = true
	if s.store != nil {
		p.res.First.Table = s.store.Table(p.res.First.Schema)
		p.res.Second.Table = s.store.Table(p.res.Second.Schema)
	}
	return p.res, nil
}

func (s *Service) plan(ctx context.Context, log zerolog.Logger, id string, sub Submission) (planned, error) {
	if strings.TrimSpace(sub.First.Path) == "" || strings.TrimSpace(sub.Second.Path) == "" {
		err := failure.New(failure.KindMissingFiles, "two files are required")
		s.fail(log, err)
		return planned{}, err
	}

	start := time.Now()
	var first, second extract.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		first, err = s.ext.Extract(gctx, sub.First.Path)
		return err
	})
	g.Go(func() (err error) {
		second, err = s.ext.Extract(gctx, sub.Second.Path)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.ObserveStep("extract", "error", start)
		s.fail(log, err)
		return planned{}, err
	}
	metrics.ObserveStep("extract", "ok", start)

	k1 := s.route(log, sub.First, first)
	k2 := s.route(log, sub.Second, second)

	if k1 == k2 {
		if s.opt.RequireDistinctSchemas {
			err := failure.New(failure.KindSameSchema, "both files were identified as %s", k1)
			s.fail(log, err)
			return planned{}, err
		}
		log.Warn().Str("schema", k1.String()).Msg("both files routed to the same schema")
	}

	return planned{
		res: Result{
			ID:     id,
			First:  FileOutcome{Field: sub.First.Field, Schema: k1, Records: len(first.Records)},
			Second: FileOutcome{Field: sub.Second.Field, Schema: k2, Records: len(second.Records)},
		},
		targets: []persist.Target{
			{Schema: k1, Records: first.Records},
			{Schema: k2, Records: second.Records},
		},
	}, nil
}

func (s *Service) route(log zerolog.Logger, f File, res extract.Result) schema.Kind {
	k := schema.Route(res.Records)
	if k != res.Schema {
		log.Warn().
			Str("path", f.Path).
			Str("classified", res.Schema.String()).
			Str("routed", k.String()).
			Msg("router disagrees with header classification")
	}
	metrics.IncCounter(metrics.RecordsTotal, float64(len(res.Records)), metrics.Labels{"schema": k.String()})
	return k
}

func (s *Service) release(log zerolog.Logger, sub Submission) {
	if s.opt.Releaser == nil {
		return
	}
	for _, f := range []File{sub.First, sub.Second} {
		if f.Path == "" {
			continue
		}
		if err := s.opt.Releaser.Release(f.Path); err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("release input")
		}
	}
}

func (s *Service) fail(log zerolog.Logger, err error) {
	kind := string(failure.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	metrics.IncCounter(metrics.SubmissionsTotal, 1, metrics.Labels{"status": "error"})
	metrics.IncCounter(metrics.FailuresTotal, 1, metrics.Labels{"kind": kind})
	log.Warn().Err(err).Str("kind", kind).Msg("submission rejected")
}
