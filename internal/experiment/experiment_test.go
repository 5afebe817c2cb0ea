package experiment

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/output"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
	"github.com/nvandessel/epinet/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) *config.Params {
	t.Helper()
	dir := t.TempDir()
	p := config.Default()
	p.Population = 200
	p.Fanout = 3
	p.Transmission = 0.2
	p.Recovery = 0.1
	p.InitialInfected = 4
	p.Steps = 20
	p.Seed = 42
	p.Output.Series = filepath.Join(dir, "sim", "simulated.csv")
	return p
}

func TestRunWritesSeriesAndIsReproducible(t *testing.T) {
	p := testParams(t)
	report, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)

	assert.Equal(t, uint64(42), report.Seed)
	assert.Equal(t, epidemic.PolicyContact, report.Policy)
	assert.Equal(t, 200, report.Nodes)
	simulation.AssertSeriesLength(t, report.Series, 20)
	simulation.AssertConserved(t, report.Series, 200)
	assert.Equal(t, 4, report.Series[0].I)

	pts, err := output.LoadPoints(p.Output.Series)
	require.NoError(t, err)
	require.Len(t, pts, 21)
	assert.Equal(t, float64(report.Series.Final().R), pts[20].R)

	again, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)
	assert.Equal(t, report.Series, again.Series)
}

func TestRunRecordsIntoStore(t *testing.T) {
	ctx := context.Background()
	p := testParams(t)
	p.Output.Database = filepath.Join(t.TempDir(), "runs.db")
	p.Output.Metrics = filepath.Join(t.TempDir(), "metrics.prom")

	report, err := Run(ctx, p, Env{})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	st, err := store.Open(ctx, p.Output.Database)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, run.Status)
	assert.Equal(t, uint64(42), run.Seed)
	counts, err := st.Counts(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Series, counts)

	data, err := os.ReadFile(p.Output.Metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "epinet_steps_total")
	assert.Contains(t, string(data), "epinet_network_edges")
}

func TestRunCancelledMarksStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testParams(t)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	report, err := Run(ctx, p, Env{Store: st})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Interrupted)
	assert.Len(t, report.Series, 1, "only the initial state is published before the first check")

	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, run.Status)
}

func TestRunAttachmentGrowsEdges(t *testing.T) {
	p := testParams(t)
	p.Policy = epidemic.PolicyAttachment
	p.Output.Series = ""

	report, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)

	// Every infection under attachment records exactly one new contact.
	m0 := network.DefaultSeedClique(200, 3)
	grown := m0*(m0-1)/2 + 3*(200-m0)
	infections := report.Series[0].S - report.Series.Final().S
	assert.Equal(t, grown+infections, report.Edges)
}

func TestRunTrace(t *testing.T) {
	p := testParams(t)
	p.Logging.Level = "debug"
	p.Output.Trace = filepath.Join(t.TempDir(), "trace")

	_, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(p.Output.Trace, logging.TraceFile))
	require.NoError(t, err)
	assert.Equal(t, 21, strings.Count(string(data), "\n"))
}

func TestRunRejectsInvalidParams(t *testing.T) {
	p := testParams(t)
	p.Transmission = 1.5
	_, err := Run(context.Background(), p, Env{})
	assert.True(t, errors.Is(err, simerr.ErrConfiguration), "got %v", err)
	_, statErr := os.Stat(p.Output.Series)
	assert.True(t, os.IsNotExist(statErr), "no output should be created for invalid params")
}

func TestRunUnusableOutputIsNotFatal(t *testing.T) {
	p := testParams(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	p.Output.Series = filepath.Join(blocker, "simulated.csv")

	report, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)
	assert.Len(t, report.Series, 21)
}

func TestRunUnwritableEdgeListIsNotFatal(t *testing.T) {
	p := testParams(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	p.Network.SaveEdges = filepath.Join(blocker, "edges.txt")
	var logs bytes.Buffer

	report, err := Run(context.Background(), p, Env{Logger: logging.NewLogger("warn", &logs)})
	require.NoError(t, err)
	simulation.AssertSeriesLength(t, report.Series, 20)
	assert.Contains(t, logs.String(), "edge list not saved")

	pts, err := output.LoadPoints(p.Output.Series)
	require.NoError(t, err)
	assert.Len(t, pts, 21)
}

func TestRunSavesGrownEdgeList(t *testing.T) {
	p := testParams(t)
	p.Network.SaveEdges = filepath.Join(t.TempDir(), "net", "edges.txt")

	report, err := Run(context.Background(), p, Env{})
	require.NoError(t, err)
	g, err := network.LoadEdgeList(p.Network.SaveEdges)
	require.NoError(t, err)
	assert.Equal(t, report.Edges, g.EdgeCount())
}

func TestRunWarnsWhenTraceNotProduced(t *testing.T) {
	tests := []struct {
		name  string
		level string
		trace func(t *testing.T) string
	}{
		{"level too high", "info", func(t *testing.T) string { return filepath.Join(t.TempDir(), "trace") }},
		{"unopenable directory", "debug", func(t *testing.T) string {
			blocker := filepath.Join(t.TempDir(), "blocker")
			require.NoError(t, os.WriteFile(blocker, nil, 0644))
			return filepath.Join(blocker, "trace")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(t)
			p.Logging.Level = tt.level
			p.Output.Trace = tt.trace(t)
			var logs bytes.Buffer

			report, err := Run(context.Background(), p, Env{Logger: logging.NewLogger("warn", &logs)})
			require.NoError(t, err)
			assert.Len(t, report.Series, 21)
			assert.Contains(t, logs.String(), "step trace disabled")
		})
	}
}
