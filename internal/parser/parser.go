// Package parser opens a spreadsheet file by extension and returns its first
// sheet as a grid of formatted cell text.
//
// Supported inputs:
//
//	.csv   ';'-delimited text (UTF-8 or Windows-1252)
//	.xlsx  Office Open XML workbook (first sheet)
//	.xls   BIFF workbook (first sheet), an HTML table export, or a
//	       mislabeled .xlsx; the format is sniffed from the content
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ingest/internal/parser/csv"
	"ingest/internal/parser/htmltable"
	"ingest/internal/parser/xls"
	"ingest/internal/parser/xlsx"
)

// ErrUnsupportedType is returned for extensions outside .csv, .xlsx and .xls.
var ErrUnsupportedType = errors.New("parser: unsupported file type")

var zipMagic = []byte("PK\x03\x04")

// Extensions lists the accepted file extensions, lowercase with leading dot.
var Extensions = []string{".xlsx", ".xls", ".csv"}

// Supported reports whether path has an accepted extension (case-insensitive).
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Options tunes the format readers.
type Options struct {
	CSV csv.Options
}

// ReadFile returns every row of the file's first sheet, header row included.
//
// Errors:
//   - ErrUnsupportedType (wrapped) for unknown extensions; nothing is opened.
//   - any open, decode or parse error from the format reader.
func ReadFile(ctx context.Context, path string, opt Options) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".csv":
		return csv.ReadRows(ctx, f, opt.CSV)
	case ".xlsx":
		return xlsx.ReadRows(ctx, f)
	default:
		return readLegacy(ctx, f)
	}
}

// readLegacy handles .xls files, whose content varies by exporting tool.
func readLegacy(ctx context.Context, f io.ReadSeeker) ([][]string, error) {
	head := make([]byte, 4096)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("xls: sniff: %w", err)
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("xls: rewind: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, xls.Magic):
		return xls.ReadRows(ctx, f)
	case bytes.HasPrefix(head, zipMagic):
		return xlsx.ReadRows(ctx, f)
	case htmltable.Sniff(head):
		return htmltable.ReadRows(ctx, f)
	default:
		return nil, errors.New("xls: unrecognized workbook format")
	}
}
