// Package prom implements a Prometheus backend for the internal/metrics
// package. Metrics are registered on a private registry that the API server
// exposes on /metrics.
package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ingest/internal/metrics"
)

type metricDef struct {
	help    string
	labels  []string
	buckets []float64 // nil for counters
}

var defs = map[string]metricDef{
	metrics.SubmissionsTotal:     {help: "Ingestion submissions by outcome.", labels: []string{"status"}},
	metrics.RecordsTotal:         {help: "Records extracted, by routed schema.", labels: []string{"schema"}},
	metrics.RowsInsertedTotal:    {help: "Rows actually inserted (duplicates excluded), by table.", labels: []string{"table"}},
	metrics.FailuresTotal:        {help: "Ingestion failures by kind.", labels: []string{"kind"}},
	metrics.HTTPRequestsTotal:    {help: "HTTP requests by route and status.", labels: []string{"route", "status"}},
	metrics.StepDurationSeconds:  {help: "Pipeline step duration.", labels: []string{"step", "status"}, buckets: prometheus.DefBuckets},
	metrics.HTTPDurationSeconds:  {help: "HTTP request duration.", labels: []string{"route", "status"}, buckets: prometheus.DefBuckets},
	metrics.UploadBytesHistogram: {help: "Uploaded file sizes.", labels: []string{"field"}, buckets: prometheus.ExponentialBuckets(1024, 4, 8)},
}

// Backend implements metrics.Backend on a Prometheus registry.
type Backend struct {
	reg        *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend registers every known metric, plus Go runtime and process
// collectors, on a fresh registry.
func NewBackend(namespace string) (*Backend, error) {
	b := &Backend{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	if err := b.reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := b.reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	for name, s := range defs {
		if s.buckets == nil {
			cv := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: s.help}, s.labels)
			if err := b.reg.Register(cv); err != nil {
				return nil, err
			}
			b.counters[name] = cv
			continue
		}
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: s.help, Buckets: s.buckets}, s.labels)
		if err := b.reg.Register(hv); err != nil {
			return nil, err
		}
		b.histograms[name] = hv
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	cv, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	cv.With(labelValues(defs[name].labels, labels)).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	hv, ok := b.histograms[name]
	if !ok {
		return
	}
	hv.With(labelValues(defs[name].labels, labels)).Observe(value)
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{Registry: b.reg})
}

// Gatherer exposes the registry for tests and embedding.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

// labelValues projects labels onto the declared label names; absent ones are "".
func labelValues(names []string, labels metrics.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = labels[n]
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
