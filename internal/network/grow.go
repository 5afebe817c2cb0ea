package network

import (
	"log/slog"
	"time"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/simerr"
)

// seedCliqueExtra is how many nodes beyond the fan-out the seed clique holds
// by default.
const seedCliqueExtra = 5

// Option configures Grow.
type Option func(*growConfig)

type growConfig struct {
	seedClique int
	coin       *chance.Coin
	logger     *slog.Logger
}

// WithSeedClique sets the size m0 of the fully connected seed. Zero keeps
// the default from DefaultSeedClique.
func WithSeedClique(m0 int) Option {
	return func(c *growConfig) { c.seedClique = m0 }
}

// WithCoin sets the random source used for target selection.
func WithCoin(coin *chance.Coin) Option {
	return func(c *growConfig) { c.coin = coin }
}

// WithSeed seeds a fresh random source for target selection.
func WithSeed(seed uint64) Option {
	return func(c *growConfig) { c.coin = chance.New(seed) }
}

// WithLogger sets the logger construction progress is reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *growConfig) { c.logger = l }
}

// DefaultSeedClique returns the seed clique size used when none is given:
// m+5 capped at the population size.
func DefaultSeedClique(n, m int) int {
	return max(min(m+seedCliqueExtra, n), 1)
}

// maxDraws bounds the rejection sampling for one new node.
func maxDraws(m int) int {
	return 64*m + 1024
}

// Grow builds a preferential-attachment network of n nodes where every node
// added after the seed clique connects to m distinct existing nodes.
//
// The seed clique of m0 nodes is fully connected. A pool holds each node
// index once per incident edge, so a uniform draw from the pool is a
// degree-weighted draw over nodes. New node k draws from the pool until it
// has m distinct targets other than itself, then both k and each target are
// appended to the pool once per new edge.
//
// The result has exactly m0(m0-1)/2 + m(n-m0) edges.
func Grow(n, m int, opts ...Option) (*Graph, error) {
	cfg := growConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.coin == nil {
		cfg.coin = chance.NewRandom()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	if n <= 0 {
		return nil, simerr.Config("population", "must be positive, got %d", n)
	}
	if m <= 0 {
		return nil, simerr.Config("fanout", "must be positive, got %d", m)
	}
	if m >= n {
		return nil, simerr.Config("fanout", "must be smaller than population (%d), got %d", n, m)
	}
	m0 := cfg.seedClique
	if m0 == 0 {
		m0 = DefaultSeedClique(n, m)
	}
	if m0 < 1 || m0 > n {
		return nil, simerr.Config("seed_clique", "must be in [1,%d], got %d", n, m0)
	}
	if n > m0 && m0 < m {
		return nil, simerr.Construction("fanout",
			"seed clique of %d nodes cannot supply %d distinct targets", m0, m)
	}
	if n > m0 && m0 == 1 {
		// A single isolated seed node leaves the pool empty.
		return nil, simerr.Construction("seed_clique",
			"a seed clique of one node has no edges to attach to")
	}

	start := time.Now()
	g := New(n)

	// Seed phase: complete graph on the first m0 nodes.
	for i := 0; i < m0; i++ {
		for j := i + 1; j < m0; j++ {
			g.AddEdge(i, j)
		}
	}

	// Pool multiplicity of node i equals its degree.
	pool := make([]int, 0, m0*(m0-1)+2*m*(n-m0))
	for i := 0; i < m0; i++ {
		for range g.Neighbors(i) {
			pool = append(pool, i)
		}
	}

	targets := make([]int, 0, m)
	chosen := make(map[int]struct{}, m)
	for k := m0; k < n; k++ {
		targets = targets[:0]
		clear(chosen)
		for draws := 0; len(targets) < m; draws++ {
			if draws >= maxDraws(m) {
				return nil, simerr.Construction("fanout",
					"node %d found only %d of %d distinct targets after %d draws", k, len(targets), m, draws)
			}
			target := pool[cfg.coin.IntN(len(pool))]
			if target == k {
				continue
			}
			if _, dup := chosen[target]; dup {
				continue
			}
			chosen[target] = struct{}{}
			targets = append(targets, target)
		}
		for _, target := range targets {
			g.AddEdge(k, target)
			pool = append(pool, k, target)
		}
	}

	cfg.logger.Debug("network grown",
		"nodes", n,
		"fanout", m,
		"seed_clique", m0,
		"edges", g.EdgeCount(),
		"duration", time.Since(start))
	return g, nil
}
