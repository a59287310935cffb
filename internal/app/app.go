// Package app wires configuration into the concrete components shared by the
// ingest-api server and the ingest CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ingest/internal/config"
	"ingest/internal/extract"
	"ingest/internal/metrics"
	"ingest/internal/metrics/datadog"
	"ingest/internal/metrics/prom"
	"ingest/internal/parser"
	"ingest/internal/parser/csv"
	"ingest/internal/persist"
	"ingest/internal/storage"

	// register every storage backend; STORAGE_KIND picks one at runtime.
	_ "ingest/internal/storage/all"
)

// SetupMetrics installs the configured metrics backend process-wide.
//
// It returns the handler to serve on /metrics (nil unless the backend is
// prometheus) and a shutdown func that flushes buffered backends. A backend
// that fails to initialize is logged and replaced by the no-op backend.
func SetupMetrics(ctx context.Context, cfg config.Metrics, log zerolog.Logger) (http.Handler, func()) {
	switch strings.ToLower(cfg.Backend) {
	case "prometheus":
		b, err := prom.NewBackend("")
		if err != nil {
			log.Warn().Err(err).Msg("metrics: prometheus init failed; using nop")
			return nil, func() {}
		}
		metrics.SetBackend(b)
		log.Info().Str("backend", "prometheus").Msg("metrics enabled")
		return b.Handler(), func() { metrics.SetBackend(nil) }

	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.Tags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.JobName,
			Tags:       tags,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			log.Warn().Err(err).Msg("metrics: datadog init failed; using nop")
			return nil, func() {}
		}
		metrics.SetBackend(b)
		log.Info().Str("backend", "datadog").Str("job_name", cfg.JobName).Strs("tags", tags).Msg("metrics enabled")
		return nil, func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("metrics: final flush")
			}
			metrics.SetBackend(nil)
		}
	}

	metrics.SetBackend(nil)
	return nil, func() {}
}

// OpenRepository connects to the configured storage backend.
func OpenRepository(ctx context.Context, cfg config.Storage) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Kind, DSN: cfg.DSN, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Kind, err)
	}
	return repo, nil
}

// NewExtractor builds the file extractor from the ingest settings.
func NewExtractor(cfg config.Config, log zerolog.Logger) *extract.Extractor {
	return extract.New(log, parser.Options{CSV: csv.Options{
		Comma:      cfg.CSVRune(),
		LazyQuotes: cfg.Ingest.CSVLazyQuotes,
	}})
}

// NewPersister binds repo to the configured tables.
func NewPersister(cfg config.Config, repo storage.Repository, log zerolog.Logger) *persist.Persister {
	return persist.New(repo, persist.Tables{Zeus: cfg.Tables.Zeus, Elipse: cfg.Tables.Elipse}, log)
}
