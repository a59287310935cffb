// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ingest/internal/ingest"
	"ingest/internal/persist"
)

// Ingester processes one two-file submission.
type Ingester interface {
	Ingest(ctx context.Context, sub ingest.Submission) (ingest.Result, error)
}

// Reader serves stored data and health checks.
type Reader interface {
	Snapshot(ctx context.Context, limit int) (persist.Snapshot, error)
	Ping(ctx context.Context) error
}

// Uploads saves multipart files to disk and removes them again.
type Uploads interface {
	Save(fh *multipart.FileHeader, field string) (string, error)
	Release(path string) error
}

// Options configure the server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	DataLimit      int
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
	Log     zerolog.Logger
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	opt     Options
	ingest  Ingester
	reader  Reader
	uploads Uploads
	engine  *gin.Engine
}

// New constructs a server with routes and middleware.
func New(opt Options, ing Ingester, reader Reader, uploads Uploads) *Server {
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 60 * time.Second
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opt.Log))
	engine.Use(requestMetrics())

	s := &Server{opt: opt, ingest: ing, reader: reader, uploads: uploads, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opt.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.opt.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opt.Metrics))
	}

	api := s.engine.Group("/api")
	api.POST("/upload", s.handleUpload)
	api.GET("/data/all", s.handleDataAll)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDataAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opt.RequestTimeout)
	defer cancel()

	snap, err := s.reader.Snapshot(ctx, s.opt.DataLimit)
	if err != nil {
		s.opt.Log.Error().Err(err).Msg("read data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
