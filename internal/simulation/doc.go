// Package simulation owns the SIR time loop.
//
// A Driver seeds nothing itself: it takes a graph and an initial population,
// calls the epidemic policy once per step, and aggregates the compartment
// counts into a Series of T+1 triples, the first being the state before any
// step. Each step's counts are pushed to the registered Observers as soon as
// the step completes, so an interrupted run leaves a durable prefix behind.
//
// Usage:
//
//	d, err := simulation.New(epidemic.ContactPolicy{},
//	    simulation.Rates{Transmission: 0.05, Recovery: 0.01},
//	    simulation.WithSeed(42),
//	    simulation.WithObserver(csvSink))
//	if err != nil {
//	    return err
//	}
//	series, err := d.Run(ctx, g, pop, 100)
package simulation
