package main

import (
	"github.com/nvandessel/epinet/internal/config"
	"github.com/spf13/cobra"
)

// addModelFlags registers the overrides for the epidemic parameters.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("population", 0, "Number of nodes N")
	f.Float64("transmission", 0, "Per-contact infection probability per step (beta)")
	f.Float64("recovery", 0, "Per-step recovery probability (gamma)")
	f.Int("initial-infected", 0, "Nodes infected at random before the first step")
	f.Int("steps", 0, "Number of steps T")
}

// addNetworkFlags registers the overrides for network construction.
func addNetworkFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("fanout", 0, "Edges each grown node attaches with (m)")
	f.Int("seed-clique", 0, "Seed clique size m0 (0 picks fanout+5 capped at N)")
	f.Uint64("seed", 0, "Random seed (0 draws a fresh one)")
}

// addRunFlags registers the overrides only a simulation uses.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntSlice("seed-nodes", nil, "Explicit initially infected nodes (overrides --initial-infected)")
	f.String("policy", "", "Transmission policy: contact or attachment")
	f.Int("workers", 0, "Worker goroutines per step (0 uses GOMAXPROCS, 1 runs inline)")
	f.String("graph-file", "", "Read the network from this edge list instead of growing one")
	f.Bool("ring-backbone", false, "Link node i to i+1 before reading --graph-file")
	f.String("save-edges", "", "Write the grown network to this edge list")
	f.String("series", "", "S,I,R series CSV path")
	f.String("states", "", "Per-node states CSV path")
	f.String("arrow", "", "Arrow IPC series path")
	f.String("metrics", "", "Prometheus textfile path")
	f.String("db", "", "SQLite run store path")
	f.String("trace", "", "Directory for trace.jsonl (debug or trace level)")
}

// applyFlags copies every flag the user set onto p. Flags a command did
// not register are skipped.
func applyFlags(cmd *cobra.Command, p *config.Params) {
	f := cmd.Flags()
	set := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}

	if set("population") {
		p.Population, _ = f.GetInt("population")
	}
	if set("transmission") {
		p.Transmission, _ = f.GetFloat64("transmission")
	}
	if set("recovery") {
		p.Recovery, _ = f.GetFloat64("recovery")
	}
	if set("initial-infected") {
		p.InitialInfected, _ = f.GetInt("initial-infected")
	}
	if set("steps") {
		p.Steps, _ = f.GetInt("steps")
	}
	if set("fanout") {
		p.Fanout, _ = f.GetInt("fanout")
	}
	if set("seed-clique") {
		p.SeedClique, _ = f.GetInt("seed-clique")
	}
	if set("seed") {
		p.Seed, _ = f.GetUint64("seed")
	}
	if set("seed-nodes") {
		p.SeedNodes, _ = f.GetIntSlice("seed-nodes")
	}
	if set("policy") {
		p.Policy, _ = f.GetString("policy")
	}
	if set("workers") {
		p.Workers, _ = f.GetInt("workers")
	}
	if set("graph-file") {
		p.Network.GraphFile, _ = f.GetString("graph-file")
	}
	if set("ring-backbone") {
		p.Network.RingBackbone, _ = f.GetBool("ring-backbone")
	}
	if set("save-edges") {
		p.Network.SaveEdges, _ = f.GetString("save-edges")
	}
	if set("series") {
		p.Output.Series, _ = f.GetString("series")
	}
	if set("states") {
		p.Output.States, _ = f.GetString("states")
	}
	if set("arrow") {
		p.Output.Arrow, _ = f.GetString("arrow")
	}
	if set("metrics") {
		p.Output.Metrics, _ = f.GetString("metrics")
	}
	if set("db") {
		p.Output.Database, _ = f.GetString("db")
	}
	if set("trace") {
		p.Output.Trace, _ = f.GetString("trace")
	}
	if set("log-level") {
		p.Logging.Level, _ = f.GetString("log-level")
	}
}

// resolveParams loads the parameter file and applies the flags.
func resolveParams(cmd *cobra.Command) (*config.Params, string, error) {
	p, path, err := loadParams(cmd)
	if err != nil {
		return nil, path, err
	}
	applyFlags(cmd, p)
	return p, path, nil
}
