package mcp

import (
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/meanfield"
	"github.com/nvandessel/epinet/internal/store"
)

// Tool names.
const (
	toolGrow      = "epinet_grow"
	toolSimulate  = "epinet_simulate"
	toolMeanField = "epinet_meanfield"
	toolRuns      = "epinet_runs"
)

// GrowInput defines the input for the epinet_grow tool. Omitted values come
// from the server's base parameters.
type GrowInput struct {
	Population int    `json:"population,omitempty" jsonschema:"Number of nodes"`
	Fanout     int    `json:"fanout,omitempty" jsonschema:"Edges each new node attaches with"`
	SeedClique int    `json:"seed_clique,omitempty" jsonschema:"Size of the fully connected seed (0 picks fanout+5 capped at population)"`
	Seed       uint64 `json:"seed,omitempty" jsonschema:"Random seed (0 draws a fresh one)"`
	SaveEdges  string `json:"save_edges,omitempty" jsonschema:"Path to write the edge list to"`
}

// GrowOutput defines the output for the epinet_grow tool.
type GrowOutput struct {
	Seed       uint64  `json:"seed" jsonschema:"Seed the network was grown with"`
	Nodes      int     `json:"nodes" jsonschema:"Number of nodes"`
	Edges      int     `json:"edges" jsonschema:"Number of undirected edges"`
	MinDegree  int     `json:"min_degree" jsonschema:"Smallest node degree"`
	MaxDegree  int     `json:"max_degree" jsonschema:"Largest node degree"`
	MeanDegree float64 `json:"mean_degree" jsonschema:"Average node degree"`
	SavedTo    string  `json:"saved_to,omitempty" jsonschema:"Edge list path if one was written"`
}

// SimulateInput defines the input for the epinet_simulate tool. Omitted
// values come from the server's base parameters.
type SimulateInput struct {
	Population      int      `json:"population,omitempty" jsonschema:"Number of nodes"`
	Fanout          int      `json:"fanout,omitempty" jsonschema:"Edges each new node attaches with when growing"`
	SeedClique      int      `json:"seed_clique,omitempty" jsonschema:"Size of the fully connected seed"`
	Transmission    *float64 `json:"transmission,omitempty" jsonschema:"Per-contact infection probability per step in [0,1]"`
	Recovery        *float64 `json:"recovery,omitempty" jsonschema:"Per-step recovery probability in [0,1]"`
	InitialInfected *int     `json:"initial_infected,omitempty" jsonschema:"Nodes infected at random before the first step"`
	SeedNodes       []int    `json:"seed_nodes,omitempty" jsonschema:"Explicit initially infected nodes (overrides initial_infected)"`
	Steps           *int     `json:"steps,omitempty" jsonschema:"Number of steps to run"`
	Policy          string   `json:"policy,omitempty" jsonschema:"Transmission policy: contact or attachment"`
	Seed            uint64   `json:"seed,omitempty" jsonschema:"Random seed (0 draws a fresh one)"`
	GraphFile       string   `json:"graph_file,omitempty" jsonschema:"Edge list to load instead of growing a network"`
	RingBackbone    bool     `json:"ring_backbone,omitempty" jsonschema:"Link node i to i+1 before reading the edge list"`
	Record          *bool    `json:"record,omitempty" jsonschema:"Store the run in the run database (default true when one is configured)"`
}

// SimulateOutput defines the output for the epinet_simulate tool.
type SimulateOutput struct {
	RunID        string            `json:"run_id,omitempty" jsonschema:"Stored run id"`
	Seed         uint64            `json:"seed" jsonschema:"Seed the run used"`
	Policy       string            `json:"policy" jsonschema:"Transmission policy"`
	Nodes        int               `json:"nodes" jsonschema:"Number of nodes"`
	Edges        int               `json:"edges" jsonschema:"Edges at the end of the run"`
	Series       []epidemic.Counts `json:"series" jsonschema:"S I R counts per step including step 0"`
	Final        epidemic.Counts   `json:"final" jsonschema:"Counts after the last step"`
	PeakStep     int               `json:"peak_step" jsonschema:"Step with the most infected nodes"`
	PeakInfected int               `json:"peak_infected" jsonschema:"Infected count at the peak"`
	Interrupted  bool              `json:"interrupted,omitempty" jsonschema:"Whether the run was cancelled early"`
}

// MeanFieldInput defines the input for the epinet_meanfield tool.
type MeanFieldInput struct {
	Population      int      `json:"population,omitempty" jsonschema:"Population size"`
	Transmission    *float64 `json:"transmission,omitempty" jsonschema:"Transmission rate in [0,1]"`
	Recovery        *float64 `json:"recovery,omitempty" jsonschema:"Recovery rate in [0,1]"`
	InitialInfected *float64 `json:"initial_infected,omitempty" jsonschema:"Initially infected population"`
	Steps           *int     `json:"steps,omitempty" jsonschema:"Number of steps"`
	RunID           string   `json:"run_id,omitempty" jsonschema:"Stored run to compare against; its parameters replace the others"`
}

// MeanFieldOutput defines the output for the epinet_meanfield tool.
type MeanFieldOutput struct {
	Points []meanfield.Point     `json:"points" jsonschema:"S I R trajectory including step 0"`
	Final  meanfield.Point       `json:"final" jsonschema:"Last point"`
	RunID  string                `json:"run_id,omitempty" jsonschema:"Run compared against"`
	Error  *meanfield.ErrorStats `json:"error,omitempty" jsonschema:"Mean-field minus simulated error per compartment"`
}

// RunsInput defines the input for the epinet_runs tool.
type RunsInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Run id to fetch with its series; empty lists runs"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (0 for all)"`
}

// RunsOutput defines the output for the epinet_runs tool.
type RunsOutput struct {
	Runs   []store.Run       `json:"runs" jsonschema:"Stored runs, newest first"`
	Count  int               `json:"count" jsonschema:"Number of runs returned"`
	Series []epidemic.Counts `json:"series,omitempty" jsonschema:"Recorded counts of the requested run"`
}
