// Package observability provides Prometheus metrics, OTel tracing, and
// health/readiness probes for the execution gateway, plus the HTTP server
// that exposes them.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for execgate.
// Uses a custom registry rather than the global one, so multiple independently
// configured gateways can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Gateway metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	RejectionsTotal   *prometheus.CounterVec
	TimeoutsTotal     prometheus.Counter
	TruncationsTotal  prometheus.Counter
	ActiveExecutions  prometheus.Gauge

	// Audit metrics.
	AuditWriteFailures prometheus.Counter
}

// NewMetrics creates a Metrics set registered on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "executions_total",
			Help:      "Total execution attempts by outcome.",
		}, []string{"program", "outcome"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock command duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"program"}),

		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "rejections_total",
			Help:      "Requests refused before any process was spawned, by kind.",
		}, []string{"kind"}),

		TimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "timeouts_total",
			Help:      "Executions terminated by the watchdog.",
		}),

		TruncationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "output_truncations_total",
			Help:      "Executions whose captured output hit the size cap.",
		}),

		ActiveExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "execgate",
			Subsystem: "gateway",
			Name:      "active_executions",
			Help:      "Commands currently running.",
		}),

		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "execgate",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit records that could not be persisted (swallowed, never propagated).",
		}),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.RejectionsTotal,
		m.TimeoutsTotal,
		m.TruncationsTotal,
		m.ActiveExecutions,
		m.AuditWriteFailures,
	)
	return m
}
