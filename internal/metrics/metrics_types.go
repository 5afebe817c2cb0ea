// Package metrics exposes simulation progress as Prometheus metrics. No
// listener is opened: the registry is written to a node-exporter style
// textfile when a run finishes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for one process.
type Registry struct {
	// Simulation metrics
	StepsTotal       *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	InfectionsTotal  *prometheus.CounterVec
	RecoveriesTotal  *prometheus.CounterVec
	CompartmentNodes *prometheus.GaugeVec
	RunsTotal        *prometheus.CounterVec

	// Network metrics
	NetworkNodes         prometheus.Gauge
	NetworkEdges         prometheus.Gauge
	NetworkBuildDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initSimulationMetrics()
	r.initNetworkMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
