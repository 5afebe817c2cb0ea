package epidemic

import (
	"context"
	"fmt"

	"github.com/nvandessel/epinet/internal/chance"
)

// ContactPolicy is the standard network SIR rule. Every infected node u
// makes one β draw per neighbor that was susceptible at step start and one
// γ draw for its own recovery. Any single successful transmission infects
// the neighbor.
type ContactPolicy struct{}

// Name returns "contact".
func (ContactPolicy) Name() string { return PolicyContact }

// Step implements Policy.
func (ContactPolicy) Step(ctx context.Context, in StepInput) (Transition, error) {
	if err := in.check(); err != nil {
		return Transition{}, err
	}
	cur := in.Current
	next := cur.Clone()
	t := Transition{Next: next}
	if !hasInfected(cur) {
		return t, nil
	}

	n := len(cur)
	chunks := in.chunks()
	exposed := make([][]int, chunks)
	recovered := make([]int, chunks)

	err := in.Pool.Do(ctx, chunks, func(c int) {
		coin := chance.Stream(in.Seed, in.Step, c)
		lo, hi := chunkBounds(c, n)
		var hits []int
		for u := lo; u < hi; u++ {
			if cur[u] != Infected {
				continue
			}
			for _, v := range in.Graph.Neighbors(u) {
				if cur[v] == Susceptible && coin.Flip(in.Transmission) {
					hits = append(hits, v)
				}
			}
			// next[u] is only written by u's own chunk.
			if coin.Flip(in.Recovery) {
				next[u] = Recovered
				recovered[c]++
			}
		}
		exposed[c] = hits
	})
	if err != nil {
		return Transition{}, fmt.Errorf("contact step %d: %w", in.Step, err)
	}

	// Merge is monotone: a susceptible slot can only move to infected.
	for c := range exposed {
		t.Recoveries += recovered[c]
		for _, v := range exposed[c] {
			if next[v] == Susceptible {
				next[v] = Infected
				t.Infections++
			}
		}
	}
	return t, nil
}

func hasInfected(p Population) bool {
	for _, tag := range p {
		if tag == Infected {
			return true
		}
	}
	return false
}
