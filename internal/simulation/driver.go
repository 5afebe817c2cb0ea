package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/metrics"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/parallel"
	"github.com/nvandessel/epinet/internal/simerr"
)

// Series is the aggregate output of a run: one Counts per step, starting
// with the initial state.
type Series []epidemic.Counts

// Final returns the last entry, or zero counts for an empty series.
func (s Series) Final() epidemic.Counts {
	if len(s) == 0 {
		return epidemic.Counts{}
	}
	return s[len(s)-1]
}

// Peak returns the step with the most infected nodes and that count. Ties
// resolve to the earliest step.
func (s Series) Peak() (step, infected int) {
	for i, c := range s {
		if c.I > infected {
			step, infected = i, c.I
		}
	}
	return step, infected
}

// Observer receives every step of a run as it completes. pop is only valid
// for the duration of the call.
type Observer interface {
	Observe(step int, pop epidemic.Population, counts epidemic.Counts) error
	Close() error
}

// Rates holds the per-step transition probabilities.
type Rates struct {
	Transmission float64 // β
	Recovery     float64 // γ
}

// Validate checks that both probabilities are in [0,1].
func (r Rates) Validate() error {
	if math.IsNaN(r.Transmission) || r.Transmission < 0 || r.Transmission > 1 {
		return simerr.Config("transmission", "must be in [0,1], got %v", r.Transmission)
	}
	if math.IsNaN(r.Recovery) || r.Recovery < 0 || r.Recovery > 1 {
		return simerr.Config("recovery", "must be in [0,1], got %v", r.Recovery)
	}
	return nil
}

// Driver runs the time loop for one policy and one set of rates.
type Driver struct {
	policy    epidemic.Policy
	rates     Rates
	workers   int
	seed      uint64
	seeded    bool
	logger    *slog.Logger
	observers []Observer
	metrics   *metrics.Registry
	tracer    *logging.StepTracer
}

// Option configures a Driver.
type Option func(*Driver)

// WithWorkers sets the number of stepping goroutines. Zero means one per
// CPU; one runs every chunk on the calling goroutine.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

// WithSeed fixes the run seed. Without it a seed is drawn from the clock and
// can be read back with Seed.
func WithSeed(seed uint64) Option {
	return func(d *Driver) { d.seed, d.seeded = seed, true }
}

// WithLogger sets the logger for run and step progress.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithObserver registers observers. They are closed when Run returns.
func WithObserver(obs ...Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, obs...) }
}

// WithMetrics records step and run metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(d *Driver) { d.metrics = r }
}

// WithTracer writes one trace line per step to st.
func WithTracer(st *logging.StepTracer) Option {
	return func(d *Driver) { d.tracer = st }
}

// New returns a Driver for policy at the given rates.
func New(policy epidemic.Policy, rates Rates, opts ...Option) (*Driver, error) {
	if policy == nil {
		return nil, simerr.Config("policy", "must not be nil")
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{policy: policy, rates: rates}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 0 {
		return nil, simerr.Config("workers", "must not be negative, got %d", d.workers)
	}
	if !d.seeded {
		d.seed = chance.NewRandom().Uint64()
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d, nil
}

// Seed returns the run seed.
func (d *Driver) Seed() uint64 {
	return d.seed
}

// Run advances initial exactly steps times over g and returns the T+1 entry
// series. initial is not modified. Under a policy that creates contacts, the
// new edges are added to g after each step.
//
// Cancellation is checked between steps. On cancellation the series built so
// far is returned together with ctx.Err(); every entry in it has already
// been delivered to the observers.
func (d *Driver) Run(ctx context.Context, g *network.Graph, initial epidemic.Population, steps int) (Series, error) {
	defer d.closeObservers()

	if steps < 0 {
		return nil, simerr.Config("steps", "must not be negative, got %d", steps)
	}
	if g == nil {
		return nil, simerr.Config("network", "graph is required")
	}
	if len(initial) != g.Len() {
		return nil, simerr.Config("population",
			"initial state has %d nodes, network has %d", len(initial), g.Len())
	}

	var pool *parallel.Pool
	if d.workers != 1 {
		p, err := parallel.New(d.workers, d.logger)
		if err != nil {
			return nil, simerr.Config("workers", "%v", err)
		}
		defer p.Close()
		pool = p
	}

	name := d.policy.Name()
	start := time.Now()
	edges := g.EdgeCount()
	cur := initial.Clone()
	series := make(Series, 0, steps+1)

	counts := cur.Counts()
	series = append(series, counts)
	d.publish(0, cur, counts)
	d.tracer.Trace(logging.StepEvent{Step: 0, S: counts.S, I: counts.I, R: counts.R})

	d.logger.Info("simulation started",
		"policy", name,
		"nodes", g.Len(),
		"edges", edges,
		"steps", steps,
		"seed", d.seed,
		"workers", pool.Workers(),
		"initial", counts.String())

	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return series, d.interrupted(name, step, err)
		}

		stepStart := time.Now()
		tr, err := d.policy.Step(ctx, epidemic.StepInput{
			Graph:        g,
			Current:      cur,
			Transmission: d.rates.Transmission,
			Recovery:     d.rates.Recovery,
			Seed:         d.seed,
			Step:         step,
			Pool:         pool,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return series, d.interrupted(name, step, ctxErr)
			}
			d.metrics.RecordRun(name, "error")
			return series, fmt.Errorf("step %d: %w", step, err)
		}

		// Commit contacts only after the step has read its snapshot.
		for _, e := range tr.NewEdges {
			g.AddEdge(e.U, e.V)
		}
		if len(tr.NewEdges) > 0 {
			edges += len(tr.NewEdges)
			d.metrics.SetEdges(edges)
		}

		cur = tr.Next
		counts = cur.Counts()
		series = append(series, counts)
		d.publish(step, cur, counts)

		elapsed := time.Since(stepStart)
		d.metrics.RecordStep(name, elapsed, tr.Infections, tr.Recoveries)
		d.tracer.Trace(logging.StepEvent{
			Step:       step,
			S:          counts.S,
			I:          counts.I,
			R:          counts.R,
			Infections: tr.Infections,
			Recoveries: tr.Recoveries,
			NewEdges:   len(tr.NewEdges),
			Duration:   elapsed,
		})
		d.logger.Debug("step",
			"step", step,
			"S", counts.S,
			"I", counts.I,
			"R", counts.R,
			"infections", tr.Infections,
			"recoveries", tr.Recoveries,
			"duration", elapsed)
	}

	d.metrics.RecordRun(name, "ok")
	peakStep, peak := series.Peak()
	d.logger.Info("simulation finished",
		"policy", name,
		"steps", steps,
		"final", counts.String(),
		"peak_infected", peak,
		"peak_step", peakStep,
		"duration", time.Since(start))
	return series, nil
}

func (d *Driver) interrupted(policy string, step int, err error) error {
	d.metrics.RecordRun(policy, "cancelled")
	d.logger.Warn("simulation interrupted", "policy", policy, "before_step", step, "error", err)
	return err
}

// publish hands one step to every observer. An observer that fails is
// closed and dropped; the run continues without it.
func (d *Driver) publish(step int, pop epidemic.Population, counts epidemic.Counts) {
	d.metrics.SetCompartments(counts.S, counts.I, counts.R)
	d.observers = slices.DeleteFunc(d.observers, func(obs Observer) bool {
		err := obs.Observe(step, pop, counts)
		if err == nil {
			return false
		}
		d.logger.Warn("output failed, continuing without it",
			"step", step,
			"observer", fmt.Sprintf("%T", obs),
			"error", err)
		if cerr := obs.Close(); cerr != nil {
			d.logger.Warn("closing failed output", "observer", fmt.Sprintf("%T", obs), "error", cerr)
		}
		return true
	})
}

func (d *Driver) closeObservers() {
	for _, obs := range d.observers {
		if err := obs.Close(); err != nil {
			d.logger.Warn("closing output", "observer", fmt.Sprintf("%T", obs), "error", err)
		}
	}
	d.observers = nil
}
