// Package constants provides named defaults used throughout epinet.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Population and disease defaults
const (
	// DefaultPopulation is the number of nodes when none is configured.
	DefaultPopulation = 1000

	// DefaultTransmission is the per-contact, per-step infection probability (β).
	DefaultTransmission = 0.05

	// DefaultRecovery is the per-step recovery probability (γ).
	DefaultRecovery = 0.01

	// DefaultInitialInfected is the number of nodes infected before step 1.
	DefaultInitialInfected = 5

	// DefaultSteps is the simulation horizon T.
	DefaultSteps = 100

	// DefaultPolicy names the transition rule used when none is configured.
	DefaultPolicy = "contact"
)

// Network growth defaults
const (
	// DefaultFanout is the number of edges each grown node adds (m).
	DefaultFanout = 3

	// AutoSeedClique asks the builder to size the seed clique itself.
	AutoSeedClique = 0
)

// File locations
const (
	// DefaultOutputDir is where result files go unless configured otherwise.
	// The name matches the layout the plotting scripts expect.
	DefaultOutputDir = "sim"

	// DefaultSeriesFile is the simulated S,I,R series.
	DefaultSeriesFile = "sim/simulated.csv"

	// DefaultMeanFieldFile is the mean-field S,I,R series.
	DefaultMeanFieldFile = "sim/actual.csv"

	// DefaultEdgeFile is where grown networks are written.
	DefaultEdgeFile = "edges.txt"

	// DefaultDatabase is the run store used by the runs and mcp commands.
	DefaultDatabase = "sim/runs.db"

	// DefaultAuditFile records MCP tool calls.
	DefaultAuditFile = "sim/mcp-audit.jsonl"

	// DefaultParamsYAML and DefaultParamsLegacy are the parameter files looked
	// up in the working directory, in that order.
	DefaultParamsYAML   = "params.yaml"
	DefaultParamsLegacy = "params.txt"
)

// ServerName is the implementation name the MCP server announces.
const ServerName = "epinet"
