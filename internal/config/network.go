package config

import (
	"log/slog"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/simerr"
)

// BuildNetwork loads the configured graph file, or grows a preferential
// attachment network when none is set. seed drives growth; zero draws a
// fresh one. Saving is left to SaveNetwork.
func (p *Params) BuildNetwork(seed uint64, logger *slog.Logger) (*network.Graph, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if !p.Grows() {
		var opts []network.ReadOption
		if p.Network.RingBackbone {
			opts = append(opts, network.WithRingBackbone())
		}
		g, err := network.LoadEdgeList(p.Network.GraphFile, opts...)
		if err != nil {
			return nil, err
		}
		if g.Len() != p.Population {
			return nil, simerr.Config("network.graph_file", "%s has %d nodes, population is %d",
				p.Network.GraphFile, g.Len(), p.Population)
		}
		logger.Info("network loaded", "path", p.Network.GraphFile, "nodes", g.Len(), "edges", g.EdgeCount())
		return g, nil
	}

	coin := chance.NewRandom()
	if seed != 0 {
		// Growth gets its own stream so it never overlaps stepping draws.
		coin = chance.Stream(seed, -1, 0)
	}
	g, err := network.Grow(p.Population, p.Fanout,
		network.WithSeedClique(p.SeedClique),
		network.WithCoin(coin),
		network.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("network grown", "nodes", g.Len(), "edges", g.EdgeCount())
	return g, nil
}

// SaveNetwork writes g to network.save_edges. It does nothing when the path
// is unset or the network came from network.graph_file.
func (p *Params) SaveNetwork(g *network.Graph, logger *slog.Logger) error {
	if p.Network.SaveEdges == "" || !p.Grows() {
		return nil
	}
	if err := network.SaveEdgeList(p.Network.SaveEdges, g); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("network saved", "path", p.Network.SaveEdges)
	}
	return nil
}
