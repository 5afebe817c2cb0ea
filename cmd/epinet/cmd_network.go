package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/spf13/cobra"
)

func newNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Build and inspect contact networks",
	}
	cmd.AddCommand(newNetworkGrowCmd(), newNetworkStatsCmd())
	return cmd
}

// networkStats summarises a graph for display.
type networkStats struct {
	Path       string  `json:"path,omitempty"`
	Seed       uint64  `json:"seed,omitempty"`
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	MinDegree  int     `json:"min_degree"`
	MaxDegree  int     `json:"max_degree"`
	MeanDegree float64 `json:"mean_degree"`
	Isolated   int     `json:"isolated"`
}

func statsOf(g *network.Graph) networkStats {
	st := networkStats{Nodes: g.Len(), Edges: g.EdgeCount(), MinDegree: g.MinDegree()}
	degrees := make([]int, g.Len())
	for u := range degrees {
		degrees[u] = g.Degree(u)
		if degrees[u] == 0 {
			st.Isolated++
		}
	}
	if len(degrees) > 0 {
		st.MaxDegree = slices.Max(degrees)
		st.MeanDegree = 2 * float64(st.Edges) / float64(len(degrees))
	}
	return st
}

func printStats(cmd *cobra.Command, st networkStats) error {
	out := cmd.OutOrStdout()
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return json.NewEncoder(out).Encode(st)
	}
	if st.Path != "" {
		fmt.Fprintf(out, "%s\n", st.Path)
	}
	fmt.Fprintf(out, "nodes %d, edges %d\n", st.Nodes, st.Edges)
	fmt.Fprintf(out, "degree min %d, max %d, mean %.2f, isolated %d\n",
		st.MinDegree, st.MaxDegree, st.MeanDegree, st.Isolated)
	return nil
}

func newNetworkGrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a preferential-attachment network and write its edge list",
		Long: `Grow a network of N nodes from a fully connected seed clique. Every
later node attaches to m distinct existing nodes chosen with probability
proportional to their degree.

Examples:
  epinet network grow --population 1000 --fanout 3
  epinet network grow --seed 42 --out net/edges.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := resolveParams(cmd)
			if err != nil {
				return err
			}
			// Growing never seeds infections.
			p.InitialInfected = 0
			p.SeedNodes = nil
			p.Network.GraphFile = ""
			p.Network.SaveEdges, _ = cmd.Flags().GetString("out")
			if err := p.Validate(); err != nil {
				return err
			}
			logger := newLogger(cmd, p)

			seed := p.Seed
			if seed == 0 {
				seed = chance.NewRandom().Uint64()
			}
			g, err := p.BuildNetwork(seed, logger)
			if err != nil {
				return err
			}
			if err := p.SaveNetwork(g, logger); err != nil {
				return err
			}
			st := statsOf(g)
			st.Path = p.Network.SaveEdges
			st.Seed = seed
			return printStats(cmd, st)
		},
	}
	addModelFlags(cmd)
	addNetworkFlags(cmd)
	cmd.Flags().String("out", constants.DefaultEdgeFile, "Edge list output path")
	return cmd
}

func newNetworkStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <edge-list>",
		Short: "Print degree statistics of an edge list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []network.ReadOption
			if ring, _ := cmd.Flags().GetBool("ring-backbone"); ring {
				opts = append(opts, network.WithRingBackbone())
			}
			g, err := network.LoadEdgeList(args[0], opts...)
			if err != nil {
				return err
			}
			if err := g.CheckSymmetric(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			st := statsOf(g)
			st.Path = args[0]
			return printStats(cmd, st)
		},
	}
	cmd.Flags().Bool("ring-backbone", false, "Link node i to i+1 before reading")
	return cmd
}
