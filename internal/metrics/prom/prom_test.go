package prom

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ingest/internal/metrics"
)

func TestBackend_CountersAndHistograms(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"schema": "Zeus"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"schema": "Zeus", "extra": "ignored"})
	b.IncCounter(metrics.RecordsTotal, -1, metrics.Labels{"schema": "Zeus"})
	b.IncCounter("not_declared", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, metrics.Labels{"step": "persist", "status": "ok"})

	if got := testutil.ToFloat64(b.counters[metrics.RecordsTotal].WithLabelValues("Zeus")); got != 5 {
		t.Fatalf("records{schema=Zeus}=%v, want 5", got)
	}
	if n := testutil.CollectAndCount(b.histograms[metrics.StepDurationSeconds]); n != 1 {
		t.Fatalf("step duration series=%d, want 1", n)
	}
}

func TestBackend_Handler(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.SubmissionsTotal, 1, metrics.Labels{"status": "ok"})

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `ingest_submissions_total{status="ok"} 1`) {
		t.Fatalf("exposition missing submissions counter:\n%s", body)
	}
}
