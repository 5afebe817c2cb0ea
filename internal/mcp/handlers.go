package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/epinet/internal/chance"
	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/experiment"
	"github.com/nvandessel/epinet/internal/meanfield"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/output"
	"github.com/nvandessel/epinet/internal/pathutil"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/store"
)

// runSeriesPrefix is the URI prefix of the stored-series resource.
const runSeriesPrefix = "epinet://runs/"

// errNoStore is returned by tools that need the run database.
var errNoStore = errors.New("no run database configured")

// registerTools registers all epinet MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolGrow,
		Description: "Grow a preferential-attachment contact network and report its degree statistics",
	}, s.handleGrow)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolSimulate,
		Description: "Run an SIR epidemic over a contact network and return the per-step S, I, R counts",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolMeanField,
		Description: "Integrate the well-mixed SIR equations, optionally comparing against a stored run",
	}, s.handleMeanField)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolRuns,
		Description: "List stored simulation runs or fetch one run with its recorded series",
	}, s.handleRuns)
}

// registerResources exposes stored series as CSV.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runSeriesPrefix + "{id}/series",
		Name:        "epinet-run-series",
		Description: "Recorded S,I,R counts of a stored run, one line per step.",
		MIMEType:    "text/csv",
	}, s.handleRunSeriesResource)
}

// params returns a copy of the base parameters safe to modify.
func (s *Server) params() *config.Params {
	p := s.base
	p.SeedNodes = slices.Clone(s.base.SeedNodes)
	return &p
}

func (s *Server) handleGrow(ctx context.Context, req *sdk.CallToolRequest, args GrowInput) (_ *sdk.CallToolResult, _ GrowOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolGrow, start, retErr, "", map[string]any{
			"population": args.Population, "fanout": args.Fanout,
			"seed_clique": args.SeedClique, "seed": args.Seed, "save_edges": args.SaveEdges,
		})
	}()

	if err := s.limiters.Check(toolGrow); err != nil {
		return nil, GrowOutput{}, err
	}

	p := s.params()
	if args.Population > 0 {
		p.Population = args.Population
		p.InitialInfected = min(p.InitialInfected, p.Population)
		p.SeedNodes = nil
	}
	if args.Fanout > 0 {
		p.Fanout = args.Fanout
	}
	if args.SeedClique > 0 {
		p.SeedClique = args.SeedClique
	}
	if args.SaveEdges != "" {
		if err := pathutil.ValidatePath("save_edges", args.SaveEdges, s.allowed); err != nil {
			return nil, GrowOutput{}, err
		}
	}
	p.Network = config.NetworkConfig{SaveEdges: args.SaveEdges}
	if err := p.Validate(); err != nil {
		return nil, GrowOutput{}, err
	}

	seed := args.Seed
	if seed == 0 {
		seed = chance.NewRandom().Uint64()
	}
	built := time.Now()
	g, err := p.BuildNetwork(seed, s.logger)
	if err != nil {
		return nil, GrowOutput{}, err
	}
	if err := p.SaveNetwork(g, s.logger); err != nil {
		return nil, GrowOutput{}, fmt.Errorf("saving edge list to %s: %w", pathutil.RedactPath(args.SaveEdges), simerr.ErrIO)
	}
	s.metrics.RecordNetwork(g.Len(), g.EdgeCount(), time.Since(built))

	out := GrowOutput{
		Seed:    seed,
		Nodes:   g.Len(),
		Edges:   g.EdgeCount(),
		SavedTo: args.SaveEdges,
	}
	out.MinDegree, out.MaxDegree, out.MeanDegree = degreeStats(g)
	return nil, out, nil
}

func degreeStats(g *network.Graph) (lo, hi int, mean float64) {
	if g.Len() == 0 {
		return 0, 0, 0
	}
	lo = g.Degree(0)
	total := 0
	for u := 0; u < g.Len(); u++ {
		d := g.Degree(u)
		lo = min(lo, d)
		hi = max(hi, d)
		total += d
	}
	return lo, hi, float64(total) / float64(g.Len())
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		s.auditTool(toolSimulate, start, retErr, runID, map[string]any{
			"population": args.Population, "policy": args.Policy, "seed": args.Seed,
			"graph_file": args.GraphFile,
		})
	}()

	if err := s.limiters.Check(toolSimulate); err != nil {
		return nil, SimulateOutput{}, err
	}

	p := s.params()
	if args.Population > 0 {
		p.Population = args.Population
		p.InitialInfected = min(p.InitialInfected, p.Population)
		p.SeedNodes = nil
	}
	if args.Fanout > 0 {
		p.Fanout = args.Fanout
	}
	if args.SeedClique > 0 {
		p.SeedClique = args.SeedClique
	}
	if args.Transmission != nil {
		p.Transmission = *args.Transmission
	}
	if args.Recovery != nil {
		p.Recovery = *args.Recovery
	}
	if args.InitialInfected != nil {
		p.InitialInfected = *args.InitialInfected
	}
	if len(args.SeedNodes) > 0 {
		p.SeedNodes = args.SeedNodes
	}
	if args.Steps != nil {
		p.Steps = *args.Steps
	}
	if args.Policy != "" {
		p.Policy = strings.ToLower(strings.TrimSpace(args.Policy))
	}
	if args.Seed != 0 {
		p.Seed = args.Seed
	}
	if args.GraphFile != "" {
		if err := pathutil.ValidatePath("graph_file", args.GraphFile, s.allowed); err != nil {
			return nil, SimulateOutput{}, err
		}
		p.Network.GraphFile = args.GraphFile
		p.Network.RingBackbone = args.RingBackbone
	}

	env := experiment.Env{Logger: s.logger, Metrics: s.metrics}
	if s.store != nil && (args.Record == nil || *args.Record) {
		env.Store = s.store
	}
	report, err := experiment.Run(ctx, p, env)
	runID = report.RunID
	if err != nil && !report.Interrupted {
		return nil, SimulateOutput{}, err
	}

	peakStep, peak := report.Series.Peak()
	return nil, SimulateOutput{
		RunID:        report.RunID,
		Seed:         report.Seed,
		Policy:       report.Policy,
		Nodes:        report.Nodes,
		Edges:        report.Edges,
		Series:       report.Series,
		Final:        report.Series.Final(),
		PeakStep:     peakStep,
		PeakInfected: peak,
		Interrupted:  report.Interrupted,
	}, nil
}

func (s *Server) handleMeanField(ctx context.Context, req *sdk.CallToolRequest, args MeanFieldInput) (_ *sdk.CallToolResult, _ MeanFieldOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolMeanField, start, retErr, args.RunID, map[string]any{
			"population": args.Population,
		})
	}()

	if err := s.limiters.Check(toolMeanField); err != nil {
		return nil, MeanFieldOutput{}, err
	}

	if args.RunID != "" {
		return s.compareRun(ctx, args.RunID)
	}

	p := s.params()
	if args.Population > 0 {
		p.Population = args.Population
	}
	if args.Transmission != nil {
		p.Transmission = *args.Transmission
	}
	if args.Recovery != nil {
		p.Recovery = *args.Recovery
	}
	if args.Steps != nil {
		p.Steps = *args.Steps
	}
	mp := p.MeanField()
	if args.InitialInfected != nil {
		mp.InitialInfected = *args.InitialInfected
	}
	mp.InitialInfected = min(mp.InitialInfected, float64(mp.Population))

	pts, err := meanfield.Solve(mp, p.Steps)
	if err != nil {
		return nil, MeanFieldOutput{}, err
	}
	return nil, MeanFieldOutput{Points: pts, Final: pts[len(pts)-1]}, nil
}

// compareRun solves the ODE with a stored run's parameters and reports the
// error of the ODE against the recorded counts.
func (s *Server) compareRun(ctx context.Context, id string) (*sdk.CallToolResult, MeanFieldOutput, error) {
	if s.store == nil {
		return nil, MeanFieldOutput{}, errNoStore
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, MeanFieldOutput{}, err
	}
	series, err := s.store.Counts(ctx, id)
	if err != nil {
		return nil, MeanFieldOutput{}, err
	}
	if len(series) == 0 {
		return nil, MeanFieldOutput{}, fmt.Errorf("run %s has no recorded steps", id)
	}

	pts, err := meanfield.Solve(meanfield.Params{
		Population:      run.Population,
		Transmission:    run.Transmission,
		Recovery:        run.Recovery,
		InitialInfected: float64(series[0].I),
	}, len(series)-1)
	if err != nil {
		return nil, MeanFieldOutput{}, err
	}
	diff, err := meanfield.Compare(pts, meanfield.FromSeries(series))
	if err != nil {
		return nil, MeanFieldOutput{}, err
	}
	stats := meanfield.Summarize(diff)
	return nil, MeanFieldOutput{Points: pts, Final: pts[len(pts)-1], RunID: id, Error: &stats}, nil
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolRuns, start, retErr, args.ID, map[string]any{"limit": args.Limit})
	}()

	if err := s.limiters.Check(toolRuns); err != nil {
		return nil, RunsOutput{}, err
	}
	if s.store == nil {
		return nil, RunsOutput{}, errNoStore
	}

	if args.ID != "" {
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		series, err := s.store.Counts(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Runs: []store.Run{run}, Count: 1, Series: series}, nil
	}

	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	if args.Limit > 0 && len(runs) > args.Limit {
		runs = runs[:args.Limit]
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs)}, nil
}

// handleRunSeriesResource serves epinet://runs/{id}/series.
func (s *Server) handleRunSeriesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, runSeriesPrefix)
	if ok {
		id, ok = strings.CutSuffix(id, "/series")
	}
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	if s.store == nil {
		return nil, errNoStore
	}

	series, err := s.store.Counts(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, sdk.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := output.WritePoints(&buf, meanfield.FromSeries(series), 0); err != nil {
		return nil, fmt.Errorf("rendering series: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      uri,
			MIMEType: "text/csv",
			Text:     buf.String(),
		}},
	}, nil
}
