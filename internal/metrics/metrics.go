// Package metrics defines the Prometheus collectors exported by the dev
// server. Collectors are registered on an explicit registry so several
// servers (and tests) can coexist in one process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devfn"

// Metrics groups every collector the dev server updates.
type Metrics struct {
	registry *prometheus.Registry

	Running   *prometheus.GaugeVec
	Queued    *prometheus.GaugeVec
	Admitted  *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	Requests  *prometheus.CounterVec
	Builds    *prometheus.CounterVec
	BuildTime prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_running",
			Help:      "In-flight invocations per task.",
		}, []string{"task"}),
		Queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queued",
			Help:      "Requests waiting for an admission slot per task.",
		}, []string{"task"}),
		Admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_admitted_total",
			Help:      "Admission slots granted per task.",
		}, []string{"task"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_rejected_total",
			Help:      "Requests rejected after waiting for an admission slot.",
		}, []string{"task"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Dispatched requests by response code.",
		}, []string{"code"}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Completed builds by outcome.",
		}, []string{"outcome"}),
		BuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of incremental builds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.Running, m.Queued, m.Admitted, m.Rejected, m.Requests, m.Builds, m.BuildTime)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
