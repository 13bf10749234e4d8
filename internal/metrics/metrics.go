// Package metrics exposes Prometheus counters and gauges for the
// controller and worker processes. These are pure observers of the core's
// behavior — nothing here ever influences placement, quorum or recovery
// decisions — wired in because the pack shows Prometheus as the ecosystem
// way to expose this, not because the spec calls for it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Controller bundles the counters/gauges the controller updates.
type Controller struct {
	WorkersTotal      *prometheus.GaugeVec
	QueriesTotal      prometheus.Counter
	FailuresDetected  prometheus.Counter
	RecoveryKeysTotal *prometheus.CounterVec
}

// NewController registers and returns the controller metric set. reg may be
// nil, in which case a fresh private registry is created — callers that
// want process-wide /metrics scraping should pass prometheus.NewRegistry()
// explicitly and reuse it across Controller/Worker construction.
func NewController(reg prometheus.Registerer) *Controller {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Controller{
		WorkersTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "controller_workers_total",
			Help: "Number of registered workers by status.",
		}, []string{"status"}),
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controller_queries_total",
			Help: "Total number of /query requests served.",
		}),
		FailuresDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controller_failures_detected_total",
			Help: "Total number of workers flipped active->failed.",
		}),
		RecoveryKeysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controller_recovery_keys_total",
			Help: "Total number of keys processed during re-replication, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.WorkersTotal, c.QueriesTotal, c.FailuresDetected, c.RecoveryKeysTotal)
	return c
}

// Worker bundles the counters/gauges a worker process updates.
type Worker struct {
	PutsTotal      *prometheus.CounterVec
	GetsTotal      *prometheus.CounterVec
	ReplicateTotal prometheus.Counter
	KeysGauge      prometheus.Gauge
}

// NewWorker registers and returns the worker metric set.
func NewWorker(reg prometheus.Registerer) *Worker {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	w := &Worker{
		PutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_puts_total",
			Help: "Total number of PUT requests handled, by outcome.",
		}, []string{"outcome"}),
		GetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_gets_total",
			Help: "Total number of GET requests handled, by outcome.",
		}, []string{"outcome"}),
		ReplicateTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_replicate_total",
			Help: "Total number of inbound /replicate calls accepted.",
		}),
		KeysGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_keys_gauge",
			Help: "Current number of keys held by this worker.",
		}),
	}
	reg.MustRegister(w.PutsTotal, w.GetsTotal, w.ReplicateTotal, w.KeysGauge)
	return w
}
