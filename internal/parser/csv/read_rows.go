// Package csv reads delimited text exports into a row grid.
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"ingest/internal/parser/charset"
)

// Options configures ReadRows.
type Options struct {
	// Comma is the field delimiter. Zero means ';', the delimiter used by
	// both Zeus and Elipse exports.
	Comma rune

	// LazyQuotes tolerates stray quotes inside unquoted fields.
	LazyQuotes bool
}

// ReadRows reads every row of r, header row included.
//
// Input is converted to UTF-8 first (BOM stripped, Windows-1252 decoded when
// needed). Rows may have differing widths; cell text is returned verbatim and
// trimming is left to the caller.
//
// Errors:
//   - read/decode failures of the underlying reader.
//   - malformed CSV (reported with the offending line).
//   - ctx cancellation, checked between rows.
func ReadRows(ctx context.Context, r io.Reader, opt Options) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("csv: read: %w", err)
	}
	text, err := charset.ToUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("csv: decode: %w", err)
	}

	comma := opt.Comma
	if comma == 0 {
		comma = ';'
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = comma
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		rows = append(rows, rec)
	}
}
