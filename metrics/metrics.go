// Package metrics exposes Prometheus collectors for parse passes.
package metrics

import (
	"time"

	"github.com/c360studio/semcnl/source"
	"github.com/prometheus/client_golang/prometheus"
)

// Pass outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Collector holds the parse metrics. Each collector owns its registry, so
// several can coexist in one process. All methods are safe on a nil
// collector.
type Collector struct {
	registry *prometheus.Registry

	Passes        *prometheus.CounterVec
	PassDuration  prometheus.Histogram
	Diagnostics   *prometheus.CounterVec
	Conflicts     prometheus.Counter
	Retries       prometheus.Counter
	NodesCreated  prometheus.Counter
	GraphsDeleted prometheus.Counter
}

// NewCollector creates a collector whose metrics are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_passes_total",
				Help:      "Total number of parse passes by outcome",
			},
			[]string{"outcome"},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parse_pass_duration_seconds",
				Help:      "Parse pass duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnostics_total",
				Help:      "Total number of diagnostics by kind and severity",
			},
			[]string{"kind", "severity"},
		),
		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_conflicts_total",
				Help:      "Total number of registry save conflicts",
			},
		),
		Retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_retries_total",
				Help:      "Total number of registry phases retried after a conflict",
			},
		),
		NodesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of registry nodes created",
			},
		),
		GraphsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphs_deleted_total",
				Help:      "Total number of graphs deleted",
			},
		),
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		c.Passes,
		c.PassDuration,
		c.Diagnostics,
		c.Conflicts,
		c.Retries,
		c.NodesCreated,
		c.GraphsDeleted,
	)
	return c
}

// Registry returns the Prometheus registry of this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObservePass records one finished pass.
func (c *Collector) ObservePass(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Passes.WithLabelValues(outcome).Inc()
	c.PassDuration.Observe(d.Seconds())
}

// ObserveDiagnostics counts diagnostics by kind and severity.
func (c *Collector) ObserveDiagnostics(diags []source.Diagnostic) {
	if c == nil {
		return
	}
	for _, d := range diags {
		c.Diagnostics.WithLabelValues(string(d.Kind), string(d.Severity)).Inc()
	}
}

// ObserveConflict counts a registry conflict. retried is true when the
// pass will try again.
func (c *Collector) ObserveConflict(retried bool) {
	if c == nil {
		return
	}
	c.Conflicts.Inc()
	if retried {
		c.Retries.Inc()
	}
}

// AddNodesCreated counts new registry nodes.
func (c *Collector) AddNodesCreated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.NodesCreated.Add(float64(n))
}

// IncGraphsDeleted counts a deleted graph.
func (c *Collector) IncGraphsDeleted() {
	if c == nil {
		return
	}
	c.GraphsDeleted.Inc()
}
