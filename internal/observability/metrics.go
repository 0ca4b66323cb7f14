// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// and health checks for runbox. All components are optional and nil-safe —
// when disabled, call sites skip recording with a single nil check.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for runbox.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Translation metrics.
	TranslationsTotal   *prometheus.CounterVec
	TranslationDuration prometheus.Histogram

	// Parse/validate boundary metrics.
	SpecRejectionsTotal *prometheus.CounterVec

	// Execution metrics.
	ExecutionsTotal      *prometheus.CounterVec
	CommandsTotal        *prometheus.CounterVec
	CommandDuration      *prometheus.HistogramVec
	CommandTimeoutsTotal prometheus.Counter

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		TranslationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "llm",
			Name:      "translations_total",
			Help:      "Total natural-language translation requests.",
		}, []string{"provider", "status"}),

		TranslationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "runbox",
			Subsystem: "llm",
			Name:      "translation_duration_seconds",
			Help:      "Translation request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		SpecRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "spec",
			Name:      "rejections_total",
			Help:      "Command specs rejected before execution.",
		}, []string{"stage", "reason"}),

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total spec executions.",
		}, []string{"category", "status"}),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "executor",
			Name:      "commands_total",
			Help:      "Total individual commands executed.",
		}, []string{"category", "status"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runbox",
			Subsystem: "executor",
			Name:      "command_duration_seconds",
			Help:      "Single command execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"category"}),

		CommandTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "executor",
			Name:      "command_timeouts_total",
			Help:      "Commands killed by the wall-clock timeout.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runbox",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runbox",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runbox",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.TranslationsTotal,
		m.TranslationDuration,
		m.SpecRejectionsTotal,
		m.ExecutionsTotal,
		m.CommandsTotal,
		m.CommandDuration,
		m.CommandTimeoutsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
