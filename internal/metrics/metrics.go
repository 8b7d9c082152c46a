// Package metrics wraps prometheus/client_golang to provide the
// pre-registered counters/gauges/histograms of spec §4.7, grounded on the
// prometheus/client_golang dependency already present in the example pack
// (jordigilh-kubernaut, cklxx-elephant.ai).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// durationBuckets is the default bucket set for duration histograms, per
// spec §4.7.
var durationBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800}

// Registry bundles the process-wide pre-registered series. It is installed
// as a singleton at process start (see Default) but is also safe to
// construct independently for tests.
type Registry struct {
	reg *prometheus.Registry

	TasksCreated   prometheus.Counter
	TasksCompleted *prometheus.CounterVec
	TasksRunning   prometheus.Gauge
	TaskDuration   prometheus.Histogram

	ContainerStarts *prometheus.CounterVec
	APIRequests     *prometheus.CounterVec
	APIDuration     *prometheus.HistogramVec
}

// New builds a fresh registry with spec §4.7's pre-registered series.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squire_tasks_created_total",
			Help: "Total tasks created.",
		}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squire_tasks_completed_total",
			Help: "Total tasks that reached a terminal status.",
		}, []string{"status"}),
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squire_tasks_running",
			Help: "Tasks currently in the running state.",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "squire_task_duration_seconds",
			Help:    "Wall-clock duration of a task from startedAt to completedAt.",
			Buckets: durationBuckets,
		}),
		ContainerStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squire_container_starts_total",
			Help: "Total worker start attempts, by backend and outcome.",
		}, []string{"backend", "outcome"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squire_api_requests_total",
			Help: "Total HTTP requests handled, by path and status.",
		}, []string{"path", "status"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "squire_api_request_duration_seconds",
			Help:    "HTTP request handling duration, by path.",
			Buckets: durationBuckets,
		}, []string{"path"}),
	}

	reg.MustRegister(
		r.TasksCreated, r.TasksCompleted, r.TasksRunning, r.TaskDuration,
		r.ContainerStarts, r.APIRequests, r.APIDuration,
	)
	return r
}

// Handler returns the /metrics HTTP handler serving this registry's
// Prometheus text exposition.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

var def = New()

// Default returns the process-wide metrics registry singleton (§9's
// "process-wide singletons with explicit init/reset hooks for tests").
func Default() *Registry { return def }

// ResetDefault reinstalls a fresh default registry; for tests only.
func ResetDefault() *Registry {
	def = New()
	return def
}
