// Package metrics exposes Prometheus collectors for the engine. Collectors
// live on the default registry so hosts get them for free from promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_node_executions_total",
			Help: "Node invocations by terminal status.",
		},
		[]string{"status"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lattice_run_duration_seconds",
			Help:    "Wall-clock duration of workflow runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lattice_active_workers",
			Help: "Workers currently executing a node.",
		},
	)

	graphMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_graph_mutations_total",
			Help: "Applied graph commands by name, including undo/redo.",
		},
		[]string{"command"},
	)
)

// NodeExecuted records a node reaching a terminal status.
func NodeExecuted(status string) { nodeExecutions.WithLabelValues(status).Inc() }

// ObserveRunDuration records a completed workflow run.
func ObserveRunDuration(seconds float64) { runDuration.Observe(seconds) }

// WorkerStarted and WorkerDone track the busy-worker gauge.
func WorkerStarted() { activeWorkers.Inc() }

// WorkerDone decrements the busy-worker gauge.
func WorkerDone() { activeWorkers.Dec() }

// CommandApplied records an applied graph command.
func CommandApplied(name string) { graphMutations.WithLabelValues(name).Inc() }
