// Package extract turns one spreadsheet file into a validated, schema-tagged
// set of normalized records.
package extract

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ingest/internal/failure"
	"ingest/internal/header"
	"ingest/internal/parser"
	"ingest/internal/record"
	"ingest/internal/schema"
)

// Result is the outcome of a successful extraction.
type Result struct {
	Schema schema.Kind
	// Headers is the full normalized header vector, blanks included.
	Headers []string
	// Records holds one entry per non-blank data row, in source order.
	Records []record.Record
	// SourceRows counts data rows read, blank rows included.
	SourceRows int
}

// Extractor reads files and materializes records.
type Extractor struct {
	opt parser.Options
	log zerolog.Logger
}

// New returns an Extractor using the given reader options.
func New(log zerolog.Logger, opt parser.Options) *Extractor {
	return &Extractor{opt: opt, log: log}
}

// Extract reads path, classifies and validates its headers, and returns its
// records.
//
// Failure kinds:
//   - InvalidFileType: extension is not .xlsx, .xls or .csv
//   - Read: the file cannot be opened or parsed
//   - EmptyFile: no data rows after the header row
//   - UnrecognizedSchema, MissingColumns: see schema.Classify and schema.Validate
//
// Context cancellation is returned as-is, not as a failure.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	name := filepath.Base(path)

	rows, err := parser.ReadFile(ctx, path, e.opt)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{}, err
	case errors.Is(err, parser.ErrUnsupportedType):
		return Result{}, failure.WithPath(failure.New(failure.KindInvalidFileType,
			"only .xlsx, .xls and .csv files are accepted, got %q", filepath.Ext(path)), name)
	default:
		return Result{}, failure.WithPath(failure.Wrap(failure.KindRead, err, "could not read file"), name)
	}

	if len(rows) < 2 {
		return Result{}, failure.WithPath(failure.New(failure.KindEmptyFile, "file has no data rows"), name)
	}

	headers := header.NormalizeAll(rows[0])

	def, err := schema.Classify(headers)
	if err != nil {
		return Result{}, failure.WithPath(err, name)
	}
	if err := schema.Validate(def, headers); err != nil {
		return Result{}, failure.WithPath(err, name)
	}

	body := rows[1:]
	records := make([]record.Record, 0, len(body))
	for _, row := range body {
		rec := record.FromRow(headers, row, strings.TrimSpace)
		if len(rec) == 0 {
			continue
		}
		records = append(records, rec)
	}

	e.log.Debug().
		Str("file", name).
		Str("schema", def.Kind.String()).
		Int("rows", len(body)).
		Int("records", len(records)).
		Msg("extracted")

	return Result{
		Schema:     def.Kind,
		Headers:    headers,
		Records:    records,
		SourceRows: len(body),
	}, nil
}
