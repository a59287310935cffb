package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	flushErr error
	flushes  int
}

func newRecording() *recordingBackend {
	return &recordingBackend{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name+"|"+labels["schema"]] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[name+"|"+labels["step"]] = append(r.samples[name+"|"+labels["step"]], value)
}

func (r *recordingBackend) Flush() error {
	r.flushes++
	return r.flushErr
}

// These tests swap the process-wide backend and must not run in parallel.

func TestSetBackend_RoutesCalls(t *testing.T) {
	rb := newRecording()
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(RecordsTotal, 3, Labels{"schema": "Zeus"})
	IncCounter(RecordsTotal, 2, Labels{"schema": "Zeus"})
	ObserveStep("extract", "ok", time.Now().Add(-time.Second))

	if got := rb.counters[RecordsTotal+"|Zeus"]; got != 5 {
		t.Fatalf("counter=%v, want 5", got)
	}
	s := rb.samples[StepDurationSeconds+"|extract"]
	if len(s) != 1 || s[0] < 1 {
		t.Fatalf("step samples=%v", s)
	}
}

func TestFlush(t *testing.T) {
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}

	rb := newRecording()
	rb.flushErr = errors.New("submit failed")
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	if err := Flush(); err == nil {
		t.Fatalf("expected flush error to propagate")
	}
	if rb.flushes != 1 {
		t.Fatalf("flushes=%d, want 1", rb.flushes)
	}
}
