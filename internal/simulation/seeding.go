package simulation

import (
	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/simerr"
)

// Seeding selects the nodes infected before the first step.
type Seeding struct {
	Count int   // infect this many distinct nodes uniformly at random
	Nodes []int // explicit set; takes precedence over Count
}

// Population returns n nodes with the seeding applied. Random choices use
// step 0 of the run seed's stream, which stepping never draws from.
func (s Seeding) Population(n int, seed uint64) (epidemic.Population, error) {
	if n <= 0 {
		return nil, simerr.Config("population", "must be positive, got %d", n)
	}
	pop := epidemic.NewPopulation(n)
	if len(s.Nodes) > 0 {
		if err := epidemic.SeedNodes(pop, s.Nodes); err != nil {
			return nil, err
		}
		return pop, nil
	}
	if s.Count > n {
		return nil, simerr.Config("initial_infected", "must not exceed population (%d), got %d", n, s.Count)
	}
	if err := epidemic.SeedUniform(pop, s.Count, chance.Stream(seed, 0, 0)); err != nil {
		return nil, err
	}
	return pop, nil
}
