package simulation

import (
	"context"
	"fmt"

	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/network"
)

// Scenario is a complete, self-contained run: network, seeding, policy and
// horizon. It is the value the CLI and the MCP tools build from parameters.
type Scenario struct {
	Name    string
	Graph   *network.Graph
	Policy  epidemic.Policy
	Rates   Rates
	Seeding Seeding
	Steps   int
	Seed    uint64 // zero draws a fresh seed
}

// Result is the outcome of Scenario.Run.
type Result struct {
	Scenario string
	Seed     uint64
	Initial  epidemic.Population
	Series   Series
}

// Run seeds the population and drives it for s.Steps steps. opts are
// applied after the scenario's own seed, so WithSeed in opts wins.
// The seed actually used is reported in the result.
func (s Scenario) Run(ctx context.Context, opts ...Option) (Result, error) {
	if s.Graph == nil {
		return Result{}, fmt.Errorf("scenario %q: no network", s.Name)
	}
	policy := s.Policy
	if policy == nil {
		policy = epidemic.ContactPolicy{}
	}
	var all []Option
	if s.Seed != 0 {
		all = append(all, WithSeed(s.Seed))
	}
	d, err := New(policy, s.Rates, append(all, opts...)...)
	if err != nil {
		return Result{}, err
	}
	initial, err := s.Seeding.Population(s.Graph.Len(), d.Seed())
	if err != nil {
		d.closeObservers()
		return Result{}, err
	}
	series, err := d.Run(ctx, s.Graph, initial, s.Steps)
	return Result{Scenario: s.Name, Seed: d.Seed(), Initial: initial, Series: series}, err
}
