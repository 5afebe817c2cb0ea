package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordStep records one completed step. Safe to call on a nil receiver.
func (r *Registry) RecordStep(policy string, duration time.Duration, infections, recoveries int) {
	if r == nil {
		return
	}
	r.StepsTotal.WithLabelValues(policy).Inc()
	r.StepDuration.WithLabelValues(policy).Observe(duration.Seconds())
	r.InfectionsTotal.WithLabelValues(policy).Add(float64(infections))
	r.RecoveriesTotal.WithLabelValues(policy).Add(float64(recoveries))
}

// SetCompartments sets the compartment gauges. Safe to call on a nil
// receiver.
func (r *Registry) SetCompartments(s, i, rec int) {
	if r == nil {
		return
	}
	r.CompartmentNodes.WithLabelValues("S").Set(float64(s))
	r.CompartmentNodes.WithLabelValues("I").Set(float64(i))
	r.CompartmentNodes.WithLabelValues("R").Set(float64(rec))
}

// RecordRun counts a finished run under status ("ok", "cancelled",
// "error"). Safe to call on a nil receiver.
func (r *Registry) RecordRun(policy, status string) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(policy, status).Inc()
}

// RecordNetwork records the network size and how long it took to build.
// Safe to call on a nil receiver.
func (r *Registry) RecordNetwork(nodes, edges int, duration time.Duration) {
	if r == nil {
		return
	}
	r.NetworkNodes.Set(float64(nodes))
	r.NetworkEdges.Set(float64(edges))
	r.NetworkBuildDuration.Observe(duration.Seconds())
}

// SetEdges updates the edge gauge, used when a run adds contacts. Safe to
// call on a nil receiver.
func (r *Registry) SetEdges(edges int) {
	if r == nil {
		return
	}
	r.NetworkEdges.Set(float64(edges))
}

// WriteTextfile writes every metric in the Prometheus text format to path,
// creating parent directories. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
