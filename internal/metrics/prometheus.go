package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all compiler metrics.
type Registry struct {
	// Graph metrics
	NodesTotal        prometheus.Gauge
	ConnectionsTotal  prometheus.Gauge
	CycleRejections   prometheus.Counter
	DirectionRewrites prometheus.Counter

	// Evaluation metrics
	NodesResolved   *prometheus.CounterVec
	TerminalPaths   prometheus.Counter
	ResolveFailures *prometheus.CounterVec

	// Lowering metrics
	ChainsEmitted    prometheus.Counter
	RulesEmitted     prometheus.Counter
	LoweringFailures *prometheus.CounterVec

	// Plugin metrics
	PluginInvocations *prometheus.CounterVec
	PluginFailures    *prometheus.CounterVec
	PluginDuration    *prometheus.HistogramVec

	// Export metrics
	Exports      *prometheus.CounterVec
	SkippedPaths prometheus.Counter
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	// Graph metrics
	r.NodesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftgraph_nodes",
		Help: "Current number of nodes in the graph",
	})

	r.ConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nftgraph_connections",
		Help: "Current number of connections in the graph",
	})

	r.CycleRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_cycle_rejections_total",
		Help: "Connections rejected because they would close a cycle",
	})

	r.DirectionRewrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_direction_rewrites_total",
		Help: "Port directions pinned by inference",
	})

	// Evaluation metrics
	r.NodesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_nodes_resolved_total",
		Help: "Nodes resolved during path collection",
	}, []string{"kind"})

	r.TerminalPaths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_terminal_paths_total",
		Help: "Terminal condition paths collected",
	})

	r.ResolveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_resolve_failures_total",
		Help: "Node resolutions that failed",
	}, []string{"code"})

	// Lowering metrics
	r.ChainsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_chains_emitted_total",
		Help: "Chains emitted by rule lowering",
	})

	r.RulesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_rules_emitted_total",
		Help: "Rules emitted by rule lowering",
	})

	r.LoweringFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_lowering_failures_total",
		Help: "Condition paths whose lowering failed",
	}, []string{"code"})

	// Plugin metrics
	r.PluginInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_plugin_invocations_total",
		Help: "Plugin subprocess invocations",
	}, []string{"plugin"})

	r.PluginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_plugin_failures_total",
		Help: "Plugin invocations that failed",
	}, []string{"plugin", "reason"})

	r.PluginDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nftgraph_plugin_duration_seconds",
		Help:    "Plugin subprocess wall time",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin"})

	// Export metrics
	r.Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nftgraph_exports_total",
		Help: "Export attempts",
	}, []string{"status"})

	r.SkippedPaths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nftgraph_export_skipped_paths_total",
		Help: "Terminal paths excluded from an export after lowering failed",
	})

	return r
}

// RecordPluginInvocation records one subprocess run.
func (r *Registry) RecordPluginInvocation(plugin string, seconds float64, err error, reason string) {
	r.PluginInvocations.WithLabelValues(plugin).Inc()
	r.PluginDuration.WithLabelValues(plugin).Observe(seconds)
	if err != nil {
		r.PluginFailures.WithLabelValues(plugin, reason).Inc()
	}
}

// RecordExport records the outcome of one export attempt.
func (r *Registry) RecordExport(skipped int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Exports.WithLabelValues(status).Inc()
	r.SkippedPaths.Add(float64(skipped))
}
