// Package experiment runs a complete simulation from validated parameters:
// it builds the network, opens the configured outputs, drives the run and
// records the outcome. The CLI and the MCP server both go through Run.
package experiment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/metrics"
	"github.com/nvandessel/epinet/internal/output"
	"github.com/nvandessel/epinet/internal/simulation"
	"github.com/nvandessel/epinet/internal/store"
)

// Env carries the long-lived collaborators of a run. Every field is
// optional.
type Env struct {
	Logger  *slog.Logger
	Metrics *metrics.Registry
	// Store records the run when set. When nil and output.database is
	// configured, Run opens that database for the duration of the run.
	Store *store.Store
}

// Report describes a finished or interrupted run.
type Report struct {
	RunID       string            `json:"run_id,omitempty"`
	Seed        uint64            `json:"seed"`
	Policy      string            `json:"policy"`
	Nodes       int               `json:"nodes"`
	Edges       int               `json:"edges"`
	Series      simulation.Series `json:"series"`
	Interrupted bool              `json:"interrupted,omitempty"`
}

// Run executes p. On cancellation the partial report is returned together
// with the context error.
func Run(ctx context.Context, p *config.Params, env Env) (Report, error) {
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := p.Validate(); err != nil {
		return Report{}, err
	}
	policy, err := epidemic.ParsePolicy(p.Policy)
	if err != nil {
		return Report{}, err
	}

	seed := p.Seed
	if seed == 0 {
		seed = chance.NewRandom().Uint64()
	}
	reg := env.Metrics
	if reg == nil && p.Output.Metrics != "" {
		reg = metrics.NewRegistry()
	}

	built := time.Now()
	g, err := p.BuildNetwork(seed, logger)
	if err != nil {
		return Report{}, err
	}
	reg.RecordNetwork(g.Len(), g.EdgeCount(), time.Since(built))
	if err := p.SaveNetwork(g, logger); err != nil {
		logger.Warn("edge list not saved", "path", p.Network.SaveEdges, "error", err)
	}

	report := Report{Seed: seed, Policy: policy.Name(), Nodes: g.Len()}

	observers := output.Open(output.Paths{
		Series: p.Output.Series,
		States: p.Output.States,
		Arrow:  p.Output.Arrow,
	}, logger)

	// Recording outlives cancellation so an interrupted run is still marked.
	bg := context.WithoutCancel(ctx)
	st := env.Store
	if st == nil && p.Output.Database != "" {
		opened, err := store.Open(bg, p.Output.Database)
		if err != nil {
			logger.Warn("run store disabled", "path", p.Output.Database, "error", err)
		} else {
			defer opened.Close()
			st = opened
		}
	}
	var rec *store.Recorder
	if st != nil {
		rec, err = st.Begin(bg, store.Run{
			Policy:       policy.Name(),
			Population:   g.Len(),
			Edges:        g.EdgeCount(),
			Transmission: p.Transmission,
			Recovery:     p.Recovery,
			Steps:        p.Steps,
			Seed:         seed,
		})
		if err != nil {
			logger.Warn("run store disabled", "path", st.Path(), "error", err)
		} else {
			report.RunID = rec.ID()
			observers = append(observers, rec)
		}
	}

	var tracer *logging.StepTracer
	if p.Output.Trace != "" {
		tracer, err = logging.NewStepTracer(p.Output.Trace, p.Logging.Level)
		switch {
		case err != nil:
			logger.Warn("step trace disabled", "path", p.Output.Trace, "error", err)
		case tracer == nil:
			logger.Warn("step trace disabled: needs log level debug or trace",
				"path", p.Output.Trace, "level", p.Logging.Level)
		default:
			defer tracer.Close()
		}
	}

	scenario := simulation.Scenario{
		Name:    policy.Name(),
		Graph:   g,
		Policy:  policy,
		Rates:   p.Rates(),
		Seeding: p.Seeding(),
		Steps:   p.Steps,
		Seed:    seed,
	}
	res, runErr := scenario.Run(ctx,
		simulation.WithWorkers(p.Workers),
		simulation.WithLogger(logger),
		simulation.WithObserver(observers...),
		simulation.WithMetrics(reg),
		simulation.WithTracer(tracer))
	report.Series = res.Series
	report.Edges = g.EdgeCount()
	report.Interrupted = runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err())

	if rec != nil {
		status := store.StatusCompleted
		switch {
		case report.Interrupted:
			status = store.StatusCancelled
		case runErr != nil:
			status = store.StatusFailed
		}
		if err := st.Finish(bg, rec.ID(), status); err != nil {
			logger.Warn("recording run status", "run_id", rec.ID(), "error", err)
		}
	}

	if p.Output.Metrics != "" {
		if err := reg.WriteTextfile(p.Output.Metrics); err != nil {
			logger.Warn("writing metrics", "path", p.Output.Metrics, "error", err)
		}
	}
	return report, runErr
}
