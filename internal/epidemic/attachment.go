package epidemic

import (
	"context"
	"fmt"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/network"
)

// AttachmentPolicy couples infection with network growth. At step start the
// infected nodes form a target pool weighted by degree. Each susceptible
// node walks the pool in ascending index order and attaches to target t with
// probability β·deg(t)/Σdeg; the first success infects it and records the
// contact as a new edge, and the rest of the pool is skipped. If every
// infected node has degree zero the weights are uniform. Infected nodes
// recover with probability γ.
//
// The graph is not modified; the new edges are returned for the caller to
// commit once the step is complete.
type AttachmentPolicy struct{}

// Name returns "attachment".
func (AttachmentPolicy) Name() string { return PolicyAttachment }

// Step implements Policy.
func (AttachmentPolicy) Step(ctx context.Context, in StepInput) (Transition, error) {
	if err := in.check(); err != nil {
		return Transition{}, err
	}
	cur := in.Current
	next := cur.Clone()
	t := Transition{Next: next}

	targets := cur.Infected()
	if len(targets) == 0 {
		return t, nil
	}
	probs := attachProbabilities(in.Graph, targets, in.Transmission)

	n := len(cur)
	chunks := in.chunks()
	edges := make([][]network.Edge, chunks)
	infected := make([]int, chunks)
	recovered := make([]int, chunks)

	err := in.Pool.Do(ctx, chunks, func(c int) {
		coin := chance.Stream(in.Seed, in.Step, c)
		lo, hi := chunkBounds(c, n)
		var found []network.Edge
		for u := lo; u < hi; u++ {
			switch cur[u] {
			case Infected:
				if coin.Flip(in.Recovery) {
					next[u] = Recovered
					recovered[c]++
				}
			case Susceptible:
				for k, target := range targets {
					if coin.Flip(probs[k]) {
						next[u] = Infected
						infected[c]++
						found = append(found, network.Edge{U: u, V: target})
						break
					}
				}
			}
		}
		edges[c] = found
	})
	if err != nil {
		return Transition{}, fmt.Errorf("attachment step %d: %w", in.Step, err)
	}

	for c := range edges {
		t.NewEdges = append(t.NewEdges, edges[c]...)
		t.Infections += infected[c]
		t.Recoveries += recovered[c]
	}
	return t, nil
}

// attachProbabilities returns β·w(t)/Σw for each target, with w the degree.
func attachProbabilities(g *network.Graph, targets []int, beta float64) []float64 {
	probs := make([]float64, len(targets))
	total := 0
	for _, target := range targets {
		total += g.Degree(target)
	}
	for k, target := range targets {
		if total == 0 {
			probs[k] = beta / float64(len(targets))
			continue
		}
		probs[k] = min(beta*float64(g.Degree(target))/float64(total), 1)
	}
	return probs
}
