// Package metrics is the process-wide, backend-agnostic metrics facade.
//
// Pipeline code records through the package-level helpers; main selects a
// concrete backend (Prometheus, Datadog) with SetBackend. Until then a no-op
// backend is installed, so tests and tools never need to configure anything.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. {"schema": "Zeus"}).
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by buffering backends.
type Flusher interface {
	Flush() error
}

// Metric names shared by every backend.
const (
	SubmissionsTotal     = "ingest_submissions_total"
	RecordsTotal         = "ingest_records_total"
	RowsInsertedTotal    = "ingest_rows_inserted_total"
	FailuresTotal        = "ingest_failures_total"
	StepDurationSeconds  = "ingest_step_duration_seconds"
	HTTPRequestsTotal    = "ingest_http_requests_total"
	HTTPDurationSeconds  = "ingest_http_request_duration_seconds"
	UploadBytesHistogram = "ingest_upload_bytes"
)

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b as the process backend. nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nop{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// ObserveStep records the duration of a pipeline step since start.
func ObserveStep(step, status string, start time.Time) {
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), Labels{"step": step, "status": status})
}

// Flush flushes the current backend if it buffers; otherwise it is a no-op.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
