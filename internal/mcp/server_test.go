package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/epinet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer returns a server with a run store and a small base
// configuration.
func setupTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	base := config.Default()
	base.Population = 120
	base.Fanout = 2
	base.Transmission = 0.2
	base.Recovery = 0.1
	base.InitialInfected = 3
	base.Steps = 15
	base.Output.Series = filepath.Join(dir, "should-not-exist.csv")

	server, err := NewServer(context.Background(), &Config{
		Name:      "test-server",
		Version:   "v1.0.0",
		Base:      base,
		StorePath: filepath.Join(dir, "runs.db"),
		AuditPath: filepath.Join(dir, "audit.jsonl"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t)
	assert.NotNil(t, server.server)
	assert.NotNil(t, server.store)
	assert.NotNil(t, server.audit)
	assert.Equal(t, config.OutputConfig{}, server.base.Output, "tool calls must not write base outputs")
	assert.Equal(t, 120, server.base.Population)
}

func TestNewServerWithoutStore(t *testing.T) {
	server, err := NewServer(context.Background(), &Config{Name: "t", Version: "v0"})
	require.NoError(t, err)
	assert.Nil(t, server.store)
	assert.Nil(t, server.audit)
	assert.Equal(t, config.Default().Population, server.base.Population)
	require.NoError(t, server.Close())
}

func TestClose(t *testing.T) {
	server := setupTestServer(t)
	require.NoError(t, server.Close())
	require.NoError(t, server.Close(), "multiple closes should be safe")
}

func TestNewServerBadStorePath(t *testing.T) {
	dir := t.TempDir()
	_, err := NewServer(context.Background(), &Config{
		Name:      "t",
		Version:   "v0",
		StorePath: dir, // a directory is not a database
	})
	assert.Error(t, err)
}

func connectClient(t *testing.T, server *Server) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	ss, err := server.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestToolsOverTransport(t *testing.T) {
	server := setupTestServer(t)
	cs := connectClient(t, server)
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{toolGrow, toolSimulate, toolMeanField, toolRuns}, names)

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      toolSimulate,
		Arguments: map[string]any{"seed": 5, "steps": 4},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, "simulate failed: %+v", res.Content)
	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	assert.Len(t, out["series"], 5)
	assert.NotEmpty(t, out["run_id"])

	res, err = cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      toolSimulate,
		Arguments: map[string]any{"policy": "gossip"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError, "unknown policy should be a tool error")
}

func TestRunSeriesResource(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()
	steps := 3
	_, sim, err := server.handleSimulate(ctx, nil, SimulateInput{Seed: 9, Steps: &steps})
	require.NoError(t, err)

	cs := connectClient(t, server)
	res, err := cs.ReadResource(ctx, &sdk.ReadResourceParams{URI: runSeriesPrefix + sim.RunID + "/series"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "text/csv", res.Contents[0].MIMEType)
	lines := strings.Split(strings.TrimSuffix(res.Contents[0].Text, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "S,I,R", lines[0])

	_, err = cs.ReadResource(ctx, &sdk.ReadResourceParams{URI: runSeriesPrefix + "missing/series"})
	assert.Error(t, err)
}
