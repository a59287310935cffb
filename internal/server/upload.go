package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ingest/internal/failure"
	"ingest/internal/ingest"
	"ingest/internal/metrics"
	"ingest/internal/uploads"
)

// Upload form fields.
const (
	FieldFirst  = "planilha1"
	FieldSecond = "planilha2"
)

// multipart framing allowance on top of the two file bodies
const formOverhead = 1 << 20

// handleUpload accepts two spreadsheets and loads them.
// POST /api/upload (multipart: planilha1, planilha2)
func (s *Server) handleUpload(c *gin.Context) {
	if s.opt.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*s.opt.MaxUploadBytes+formOverhead)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, err)
			return
		}
		s.writeError(c, failure.Wrap(failure.KindMissingFiles, err, "both files planilha1 and planilha2 are required"))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	first, second := form.File[FieldFirst], form.File[FieldSecond]
	if len(first) == 0 || len(second) == 0 {
		s.writeError(c, failure.New(failure.KindMissingFiles, "both files planilha1 and planilha2 are required"))
		return
	}

	var saved []string
	sub := ingest.Submission{}
	for _, f := range []struct {
		field string
		dst   *ingest.File
	}{
		{FieldFirst, &sub.First},
		{FieldSecond, &sub.Second},
	} {
		fh := form.File[f.field][0]
		metrics.ObserveHistogram(metrics.UploadBytesHistogram, float64(fh.Size), metrics.Labels{"field": f.field})
		path, err := s.uploads.Save(fh, f.field)
		if err != nil {
			for _, p := range saved {
				if rerr := s.uploads.Release(p); rerr != nil {
					s.opt.Log.Warn().Err(rerr).Str("path", p).Msg("release upload")
				}
			}
			s.writeError(c, err)
			return
		}
		saved = append(saved, path)
		*f.dst = ingest.File{Field: f.field, Path: path}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opt.RequestTimeout)
	defer cancel()

	res, err := s.ingest.Ingest(ctx, sub)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "files processed and data stored",
		"processados": gin.H{
			FieldFirst:  res.First.Schema.String(),
			FieldSecond: res.Second.Schema.String(),
		},
		"submission_id": res.ID,
		"inserted": gin.H{
			FieldFirst:  res.First.Inserted,
			FieldSecond: res.Second.Inserted,
		},
	})
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, uploads.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch failure.KindOf(err) {
	case failure.KindMissingFiles, failure.KindInvalidFileType:
		return http.StatusBadRequest
	case failure.KindRead, failure.KindEmptyFile, failure.KindUnrecognizedSchema,
		failure.KindMissingColumns, failure.KindSameSchema:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{"error": "failed to process files", "details": err.Error(), "code": status}

	if fe, ok := failure.As(err); ok {
		body["kind"] = fe.Kind
		if fe.Detail != "" {
			body["error"] = fe.Detail
		}
		if fe.Path != "" {
			body["file"] = fe.Path
		}
		if len(fe.Missing) > 0 {
			body["missing"] = fe.Missing
		}
		if len(fe.Headers) > 0 {
			body["headers"] = fe.Headers
		}
	} else if status == http.StatusRequestEntityTooLarge {
		body["error"] = "file too large"
	}

	if status >= http.StatusInternalServerError {
		s.opt.Log.Error().Err(err).Int("status", status).Msg("upload failed")
		// Storage internals stay in the log.
		body["details"] = http.StatusText(status)
	}
	c.JSON(status, body)
}
