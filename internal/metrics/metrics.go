// Package metrics provides Prometheus metrics for synchronization runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/wssync/internal/models"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	filesCopied     *prometheus.CounterVec
	bytesCopied     prometheus.Counter
	rebuildsTotal   prometheus.Counter
	runDuration     prometheus.Histogram
	workspacesGauge prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wssync_runs_total",
				Help: "Total number of synchronization runs",
			},
			[]string{"status"},
		),
		filesCopied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wssync_files_copied_total",
				Help: "Total number of files copied into the target tree",
			},
			[]string{"workspace"},
		),
		bytesCopied: f.NewCounter(
			prometheus.CounterOpts{
				Name: "wssync_bytes_copied_total",
				Help: "Total bytes copied into the target tree",
			},
		),
		rebuildsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "wssync_catalogue_rebuilds_total",
				Help: "Total number of catalogue rebuilds",
			},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wssync_run_duration_seconds",
				Help:    "Synchronization run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		workspacesGauge: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wssync_workspaces",
				Help: "Number of workspaces seen by the last run",
			},
		),
		lastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wssync_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
		),
	}
}

// ObserveRun records a finished run. err is the run error, if any.
func (m *Metrics) ObserveRun(res models.RunResult, err error) {
	if err != nil {
		m.runsTotal.WithLabelValues("error").Inc()
		return
	}
	m.runsTotal.WithLabelValues("ok").Inc()
	m.runDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	m.workspacesGauge.Set(float64(len(res.Workspaces)))
	m.lastSuccess.Set(float64(res.FinishedAt.Unix()))
	if res.DryRun {
		return
	}
	for _, c := range res.Copied {
		m.filesCopied.WithLabelValues(c.Workspace).Inc()
		m.bytesCopied.Add(float64(c.Size))
	}
	if res.Rebuilt {
		m.rebuildsTotal.Inc()
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
