package epidemic

import (
	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/simerr"
)

// SeedUniform infects k distinct susceptible nodes chosen uniformly at
// random.
func SeedUniform(pop Population, k int, coin *chance.Coin) error {
	if k < 0 {
		return simerr.Config("initial_infected", "must not be negative, got %d", k)
	}
	candidates := make([]int, 0, len(pop))
	for u, tag := range pop {
		if tag == Susceptible {
			candidates = append(candidates, u)
		}
	}
	if k > len(candidates) {
		return simerr.Config("initial_infected",
			"cannot infect %d nodes, only %d of %d are susceptible", k, len(candidates), len(pop))
	}
	// Partial Fisher-Yates: the first k slots end up a uniform sample.
	for i := 0; i < k; i++ {
		j := i + coin.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
		pop[candidates[i]] = Infected
	}
	return nil
}

// SeedNodes infects the listed nodes. Every index must be in range.
func SeedNodes(pop Population, ids []int) error {
	for _, u := range ids {
		if u < 0 || u >= len(pop) {
			return simerr.Config("seed_nodes", "node %d outside [0,%d)", u, len(pop))
		}
	}
	for _, u := range ids {
		pop[u] = Infected
	}
	return nil
}
