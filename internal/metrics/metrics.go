// Package metrics exposes Prometheus instrumentation for the task pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the service records into.
type Metrics struct {
	registry *prometheus.Registry

	TasksCreated   prometheus.Counter
	TasksCompleted *prometheus.CounterVec
	SSESubscribers prometheus.Gauge
	ProviderCalls  prometheus.Histogram
}

// New builds and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fusion_tasks_created_total",
			Help: "Total number of accepted generation tasks",
		}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusion_tasks_completed_total",
			Help: "Total number of terminal task transitions",
		}, []string{"status"}),
		SSESubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fusion_sse_subscribers",
			Help: "Currently connected SSE subscribers",
		}),
		ProviderCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fusion_generation_duration_seconds",
			Help:    "Wall-clock duration of full generation runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	registry.MustRegister(m.TasksCreated, m.TasksCompleted, m.SSESubscribers, m.ProviderCalls)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
