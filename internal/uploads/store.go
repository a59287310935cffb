// Package uploads stores multipart uploads as uniquely named temp files and
// removes them once a submission is done.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ingest/internal/failure"
	"ingest/internal/parser"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("upload too large")

// Store writes uploads under dir.
type Store struct {
	dir      string
	maxBytes int64
}

// New returns a Store writing into dir, which is created if needed.
// maxBytes <= 0 disables the size check.
func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Save copies fh to <dir>/<field>-<uuid><ext> and returns the path.
//
// Errors:
//   - failure.KindInvalidFileType when the extension is not accepted
//   - ErrTooLarge when the upload exceeds the size limit
func (s *Store) Save(fh *multipart.FileHeader, field string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !parser.Supported(fh.Filename) {
		return "", failure.WithPath(failure.New(failure.KindInvalidFileType,
			"only .xlsx, .xls and .csv files are accepted, got %q", ext), fh.Filename)
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", fmt.Errorf("%s: %d bytes exceeds %d: %w", fh.Filename, fh.Size, s.maxBytes, ErrTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", field, uuid.NewString(), ext))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	var r io.Reader = src
	if s.maxBytes > 0 {
		r = io.LimitReader(src, s.maxBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%s: exceeds %d bytes: %w", fh.Filename, s.maxBytes, ErrTooLarge)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Release removes a saved upload. A file that is already gone is not an error.
func (s *Store) Release(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
