// Package metrics counts crawl activity and exports it in the Prometheus
// text format. A crawl is a short-lived process, so instead of serving
// /metrics the counters are written to a node_exporter textfile at the end
// of a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the crawl counters on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched  *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	adsSeen       *prometheus.CounterVec
	adsUnseen     *prometheus.CounterVec
	notifyErrors  prometheus.Counter
	queriesFailed prometheus.Counter
	fetchDuration *prometheus.HistogramVec
	lastRun       prometheus.Gauge
}

// New creates the counters on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		pagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propfinder_pages_fetched_total",
				Help: "Listing pages fetched successfully",
			},
			[]string{"host"},
		),

		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propfinder_fetch_errors_total",
				Help: "Failed fetch attempts, retries included",
			},
			[]string{"host"},
		),

		adsSeen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propfinder_ads_seen_total",
				Help: "Extracted ads already in history",
			},
			[]string{"host"},
		),

		adsUnseen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propfinder_ads_unseen_total",
				Help: "Extracted ads not yet in history",
			},
			[]string{"host"},
		),

		notifyErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "propfinder_notify_errors_total",
				Help: "Notifications that could not be delivered",
			},
		),

		queriesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "propfinder_queries_failed_total",
				Help: "Queries abandoned because of an error",
			},
		),

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "propfinder_fetch_duration_seconds",
				Help:    "Duration of page fetches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"host"},
		),

		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "propfinder_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordFetch records one fetch attempt against host.
func (m *Metrics) RecordFetch(host string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(host).Observe(duration.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(host).Inc()
		return
	}
	m.pagesFetched.WithLabelValues(host).Inc()
}

// RecordSplit records the outcome of one page's seen/unseen split.
func (m *Metrics) RecordSplit(host string, seen, unseen int) {
	if m == nil {
		return
	}
	m.adsSeen.WithLabelValues(host).Add(float64(seen))
	m.adsUnseen.WithLabelValues(host).Add(float64(unseen))
}

// NotifyFailed counts one undelivered notification.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.notifyErrors.Inc()
}

// QueryFailed counts one abandoned query.
func (m *Metrics) QueryFailed() {
	if m == nil {
		return
	}
	m.queriesFailed.Inc()
}

// RunFinished stamps the end of a run.
func (m *Metrics) RunFinished(at time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically, as the textfile collector requires.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
