// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/landingzone/internal/core"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FilesTotal      *prometheus.CounterVec
	MembersExcluded prometheus.Counter
	RowsWritten     *prometheus.CounterVec
	FileDuration    *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.FilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landingzone",
			Name:      "files_total",
			Help:      "Source files by terminal disposition",
		},
		[]string{"origin", "disposition"},
	)
	m.MembersExcluded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "landingzone",
		Name:      "members_excluded_total",
		Help:      "Archive members excluded by validation",
	})
	m.RowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landingzone",
			Name:      "rows_written_total",
			Help:      "Rows written to Parquet output",
		},
		[]string{"source"},
	)
	m.FileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "landingzone",
			Name:      "file_duration_seconds",
			Help:      "Time spent processing one source file",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"origin", "kind"},
	)
	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "landingzone",
			Name:      "runs_total",
			Help:      "Ingestion invocations by result",
		},
		[]string{"result"},
	)

	m.registry.MustRegister(
		m.FilesTotal,
		m.MembersExcluded,
		m.RowsWritten,
		m.FileDuration,
		m.RunsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordFile(origin core.Origin, kind core.PayloadKind, d core.Disposition, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(string(origin), string(d)).Inc()
	m.FileDuration.WithLabelValues(string(origin), string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordExcludedMember() {
	if m == nil {
		return
	}
	m.MembersExcluded.Inc()
}

func (m *Metrics) RecordRows(source string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) RecordRun(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}
