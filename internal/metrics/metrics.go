// Package metrics exposes Prometheus counters for ingestion, fetching and search
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Drafts         *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	Fetches        *prometheus.CounterVec
	Searches       *prometheus.CounterVec
	Reports        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Drafts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidregistry_drafts_total",
			Help: "Drafts processed by the ingest engine, by source and outcome",
		}, []string{"source", "outcome"}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidregistry_source_errors_total",
			Help: "Source-level and record-level failures, by error kind",
		}, []string{"source", "kind"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kidregistry_source_duration_seconds",
			Help:    "Wall time of one source sync",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"source"}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidregistry_fetches_total",
			Help: "Outbound page fetches, by result",
		}, []string{"result"}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidregistry_searches_total",
			Help: "Registry searches, by whether anything was found",
		}, []string{"found"}),
		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidregistry_reports_total",
			Help: "Community report submissions, by notification result",
		}, []string{"notified"}),
		gatherer: reg,
	}
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns the process-wide instance registered on its own registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		defaultM = New(reg)
	})
	return defaultM
}

// Draft records one ingest outcome
func (m *Metrics) Draft(source, outcome string) {
	if m == nil {
		return
	}
	m.Drafts.WithLabelValues(source, outcome).Inc()
}

// SourceError records a failure of the given kind
func (m *Metrics) SourceError(source, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.SourceErrors.WithLabelValues(source, kind).Inc()
}

// ObserveSource records the duration of a source sync that began at start
func (m *Metrics) ObserveSource(source string, start time.Time) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// Fetch records one outbound fetch: "ok", "cached", "error" or "disallowed"
func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(result).Inc()
}

// Search records one search
func (m *Metrics) Search(found bool) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// Report records one stored report
func (m *Metrics) Report(notified bool) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(strconv.FormatBool(notified)).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
