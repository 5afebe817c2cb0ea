package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epinet_steps_total",
			Help: "Total number of simulation steps executed",
		},
		[]string{"policy"},
	)

	r.StepDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epinet_step_duration_seconds",
			Help:    "Wall time of one simulation step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"policy"},
	)

	r.InfectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epinet_infections_total",
			Help: "Total number of S to I transitions",
		},
		[]string{"policy"},
	)

	r.RecoveriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epinet_recoveries_total",
			Help: "Total number of I to R transitions",
		},
		[]string{"policy"},
	)

	r.CompartmentNodes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epinet_compartment_nodes",
			Help: "Nodes per compartment after the latest step",
		},
		[]string{"compartment"},
	)

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epinet_runs_total",
			Help: "Simulation runs by outcome",
		},
		[]string{"policy", "status"},
	)
}

func (r *Registry) initNetworkMetrics() {
	r.NetworkNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epinet_network_nodes",
			Help: "Nodes in the contact network",
		},
	)

	r.NetworkEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epinet_network_edges",
			Help: "Undirected edges in the contact network",
		},
	)

	r.NetworkBuildDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "epinet_network_build_duration_seconds",
			Help:    "Time taken to grow or load the contact network",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
}
