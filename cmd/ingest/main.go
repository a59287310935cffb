// Command ingest loads a Zeus/Elipse spreadsheet pair from local files.
//
// Usage:
//
//	ingest [-dry-run] [-pretty] <first-file> <second-file>
//
// Each file may be .xlsx, .xls or .csv. The command identifies the schema of
// each file, then inserts both record sets into their tables in a single
// transaction. With -dry-run it stops after extraction and routing and never
// connects to the database.
//
// Storage, table names and logging are configured exactly as for ingest-api
// (environment, optional .env, optional CONFIG_FILE). The JSON result is
// printed on stdout; failures print a JSON error on stderr.
//
// Exit codes: 0 success, 1 ingestion or storage failure, 2 usage or
// configuration error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ingest/internal/app"
	"ingest/internal/config"
	"ingest/internal/failure"
	"ingest/internal/ingest"
	"ingest/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	_ = godotenv.Load()
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dryRun := fs.Bool("dry-run", false, "extract and route only; do not write to the database")
	pretty := fs.Bool("pretty", false, "pretty-print JSON output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ingest [-dry-run] [-pretty] <first-file> <second-file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 2
	}
	log := logging.New("ingest", logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: stderr})

	sub := ingest.Submission{
		First:  ingest.File{Field: "first", Path: fs.Arg(0)},
		Second: ingest.File{Field: "second", Path: fs.Arg(1)},
	}
	ext := app.NewExtractor(cfg, log)

	var res ingest.Result
	if *dryRun {
		res, err = ingest.New(ext, nil, ingest.Options{
			RequireDistinctSchemas: cfg.Ingest.RequireDistinctSchemas,
			Log:                    log,
		}).Plan(ctx, sub)
	} else {
		issues := config.Validate(cfg)
		for _, iss := range issues {
			fmt.Fprintln(stderr, iss.String())
		}
		if config.HasErrors(issues) {
			return 2
		}

		_, shutdownMetrics := app.SetupMetrics(ctx, cfg.Metrics, log)
		defer shutdownMetrics()

		repo, oerr := app.OpenRepository(ctx, cfg.Storage)
		if oerr != nil {
			writeJSON(stderr, errorBody(oerr), *pretty)
			return 1
		}
		defer repo.Close()

		res, err = ingest.New(ext, app.NewPersister(cfg, repo, log), ingest.Options{
			RequireDistinctSchemas: cfg.Ingest.RequireDistinctSchemas,
			Log:                    log,
		}).Ingest(ctx, sub)
	}
	if err != nil {
		writeJSON(stderr, errorBody(err), *pretty)
		return 1
	}

	writeJSON(stdout, res, *pretty)
	return 0
}

func errorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	if fe, ok := failure.As(err); ok {
		body["kind"] = fe.Kind
		if fe.Path != "" {
			body["file"] = fe.Path
		}
		if len(fe.Missing) > 0 {
			body["missing"] = fe.Missing
		}
		if len(fe.Headers) > 0 {
			body["headers"] = fe.Headers
		}
	}
	return body
}

func writeJSON(w io.Writer, v any, pretty bool) {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
