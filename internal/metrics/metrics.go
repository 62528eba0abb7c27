// Package metrics exposes the coordinator's live state as Prometheus
// metrics: how many files are pending, running, and suspended right
// now, and running totals of completions, failures, long compilations,
// and deadlocks.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is a Prometheus metrics collector for one coordinator run.
// A process should construct exactly one: registering a second panics
// on the duplicate metric names, same as the underlying client_golang
// registry does for any collector.
type Collector struct {
	filesSpawned     prometheus.Counter
	filesCompleted   prometheus.Counter
	filesFailed      prometheus.Counter
	longCompilations prometheus.Counter
	deadlocks        prometheus.Counter

	compileLatency prometheus.Histogram

	filesPending   prometheus.Gauge
	filesRunning   prometheus.Gauge
	filesSuspended prometheus.Gauge
}

// NewCollector builds and registers a new Collector against the default
// Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		filesSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_files_spawned_total",
			Help: "Total number of files handed to a worker",
		}),
		filesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_files_completed_total",
			Help: "Total number of files compiled successfully",
		}),
		filesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_files_failed_total",
			Help: "Total number of files that ended in a fatal worker failure",
		}),
		longCompilations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_long_compilations_total",
			Help: "Total number of on_long_compilation callbacks fired",
		}),
		deadlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_deadlocks_total",
			Help: "Total number of batches that ended in a deadlock diagnosis",
		}),
		compileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coordinator_compile_latency_seconds",
			Help:    "Per-file compile latency in seconds, spawn to clean exit",
			Buckets: prometheus.DefBuckets,
		}),
		filesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_files_pending",
			Help: "Current number of files not yet started",
		}),
		filesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_files_running",
			Help: "Current number of workers tracked as running (including suspended)",
		}),
		filesSuspended: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_files_suspended",
			Help: "Current number of workers suspended on a wait-graph entry",
		}),
	}

	prometheus.MustRegister(c.filesSpawned)
	prometheus.MustRegister(c.filesCompleted)
	prometheus.MustRegister(c.filesFailed)
	prometheus.MustRegister(c.longCompilations)
	prometheus.MustRegister(c.deadlocks)
	prometheus.MustRegister(c.compileLatency)
	prometheus.MustRegister(c.filesPending)
	prometheus.MustRegister(c.filesRunning)
	prometheus.MustRegister(c.filesSuspended)

	return c
}

// RecordSpawn records a worker being started for a file.
func (c *Collector) RecordSpawn() {
	c.filesSpawned.Inc()
}

// RecordCompleted records a clean worker exit and its latency.
func (c *Collector) RecordCompleted(latencySeconds float64) {
	c.filesCompleted.Inc()
	c.compileLatency.Observe(latencySeconds)
}

// RecordFailed records a fatal worker failure.
func (c *Collector) RecordFailed() {
	c.filesFailed.Inc()
}

// RecordLongCompilation records an on_long_compilation callback firing.
func (c *Collector) RecordLongCompilation() {
	c.longCompilations.Inc()
}

// RecordDeadlock records a batch ending in deadlock.
func (c *Collector) RecordDeadlock() {
	c.deadlocks.Inc()
}

// UpdateSchedulerStats sets the three live gauges from the scheduler's
// current counts. Called inline from the coordinator's event loop after
// every admission pass.
func (c *Collector) UpdateSchedulerStats(pending, running, suspended int) {
	c.filesPending.Set(float64(pending))
	c.filesRunning.Set(float64(running))
	c.filesSuspended.Set(float64(suspended))
}

// StartServer starts a Prometheus metrics HTTP server on the given port,
// serving /metrics. It blocks until the server stops.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
