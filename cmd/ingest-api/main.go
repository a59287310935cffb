// Command ingest-api serves the spreadsheet upload API.
//
// Configuration comes from the environment (and an optional .env file), with
// an optional YAML file named by CONFIG_FILE underneath. See internal/config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"ingest/internal/app"
	"ingest/internal/config"
	"ingest/internal/ingest"
	"ingest/internal/logging"
	"ingest/internal/server"
	"ingest/internal/uploads"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("ingest-api", logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	issues := config.Validate(cfg)
	for _, iss := range issues {
		ev := log.Warn()
		if iss.Severity == config.SeverityError {
			ev = log.Error()
		}
		ev.Str("path", iss.Path).Msg(iss.Message)
	}
	if config.HasErrors(issues) {
		log.Fatal().Msg("configuration is invalid")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsHandler, shutdownMetrics := app.SetupMetrics(ctx, cfg.Metrics, log)
	defer shutdownMetrics()

	repo, err := app.OpenRepository(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage.Kind).Msg("db connection error")
	}
	defer repo.Close()

	store, err := uploads.New(cfg.HTTP.UploadDir, cfg.HTTP.MaxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("upload dir")
	}

	persister := app.NewPersister(cfg, repo, log)
	svc := ingest.New(app.NewExtractor(cfg, log), persister, ingest.Options{
		RequireDistinctSchemas: cfg.Ingest.RequireDistinctSchemas,
		Releaser:               store,
		Log:                    log,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Options{
		Addr:           cfg.ListenAddr(),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		DataLimit:      cfg.HTTP.DataLimit,
		Metrics:        metricsHandler,
		Log:            log,
	}, svc, persister, store)

	log.Info().
		Str("addr", cfg.ListenAddr()).
		Str("storage", cfg.Storage.Kind).
		Str("upload_dir", store.Dir()).
		Msg("REST API listening")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server error")
		shutdownMetrics()
		repo.Close()
		os.Exit(1)
	}
}
