package simulation

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/metrics"
	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/simerr"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Observer that keeps every step it sees.
type recorder struct {
	steps  []int
	counts []epidemic.Counts
	closed int
	failAt int // fail Observe at this step; -1 never
	onStep func(step int)
}

func newRecorder() *recorder { return &recorder{failAt: -1} }

func (r *recorder) Observe(step int, pop epidemic.Population, c epidemic.Counts) error {
	if step == r.failAt {
		return errors.New("disk full")
	}
	r.steps = append(r.steps, step)
	r.counts = append(r.counts, c)
	if r.onStep != nil {
		r.onStep(step)
	}
	return nil
}

func (r *recorder) Close() error {
	r.closed++
	return nil
}

func pathGraph(n int) *network.Graph {
	g := network.New(n)
	for i := 0; i+1 < n; i++ {
		g.AddEdge(i, i+1)
	}
	return g
}

func seeded(t *testing.T, n int, nodes ...int) epidemic.Population {
	t.Helper()
	pop := epidemic.NewPopulation(n)
	require.NoError(t, epidemic.SeedNodes(pop, nodes))
	return pop
}

func TestRunZeroSteps(t *testing.T) {
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1}, WithSeed(1))
	require.NoError(t, err)

	series, err := d.Run(context.Background(), pathGraph(3), seeded(t, 3, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, Series{{S: 2, I: 1}}, series)
}

func TestRunPathScenario(t *testing.T) {
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1, Recovery: 0}, WithSeed(1))
	require.NoError(t, err)

	series, err := d.Run(context.Background(), pathGraph(5), seeded(t, 5, 2), 4)
	require.NoError(t, err)
	assert.Equal(t, Series{
		{S: 4, I: 1},
		{S: 2, I: 3},
		{S: 0, I: 5},
		{S: 0, I: 5},
		{S: 0, I: 5},
	}, series)
}

func TestRunCycleRecoveryScenario(t *testing.T) {
	g := pathGraph(4)
	g.AddEdge(3, 0)
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 0, Recovery: 1}, WithSeed(1))
	require.NoError(t, err)

	series, err := d.Run(context.Background(), g, seeded(t, 4, 0), 3)
	require.NoError(t, err)
	assert.Equal(t, Series{{S: 3, I: 1}, {S: 3, R: 1}, {S: 3, R: 1}, {S: 3, R: 1}}, series)
	AssertFlatAfterExtinction(t, series)
}

func TestRunDoesNotModifyInitial(t *testing.T) {
	initial := seeded(t, 5, 2)
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1, Recovery: 1}, WithSeed(1))
	require.NoError(t, err)

	_, err = d.Run(context.Background(), pathGraph(5), initial, 3)
	require.NoError(t, err)
	assert.Equal(t, seeded(t, 5, 2), initial)
}

func TestRunValidation(t *testing.T) {
	d, err := New(epidemic.ContactPolicy{}, Rates{}, WithSeed(1))
	require.NoError(t, err)

	_, err = d.Run(context.Background(), pathGraph(3), epidemic.NewPopulation(3), -1)
	assert.True(t, errors.Is(err, simerr.ErrConfiguration), "negative steps: %v", err)

	_, err = d.Run(context.Background(), pathGraph(3), epidemic.NewPopulation(4), 1)
	assert.True(t, errors.Is(err, simerr.ErrConfiguration), "size mismatch: %v", err)

	_, err = d.Run(context.Background(), nil, epidemic.NewPopulation(4), 1)
	assert.True(t, errors.Is(err, simerr.ErrConfiguration), "nil graph: %v", err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Rates{})
	assert.True(t, errors.Is(err, simerr.ErrConfiguration))

	_, err = New(epidemic.ContactPolicy{}, Rates{}, WithWorkers(-2))
	assert.True(t, errors.Is(err, simerr.ErrConfiguration))

	d, err := New(epidemic.ContactPolicy{}, Rates{})
	require.NoError(t, err)
	d2, err := New(epidemic.ContactPolicy{}, Rates{})
	require.NoError(t, err)
	assert.NotEqual(t, d.Seed(), d2.Seed(), "unseeded drivers should draw distinct seeds")
}

func TestRatesValidate(t *testing.T) {
	tests := []struct {
		name  string
		rates Rates
		param string
	}{
		{"valid", Rates{Transmission: 0.5, Recovery: 1}, ""},
		{"boundaries", Rates{Transmission: 0, Recovery: 0}, ""},
		{"negative beta", Rates{Transmission: -0.1}, "transmission"},
		{"beta above one", Rates{Transmission: 1.01}, "transmission"},
		{"nan beta", Rates{Transmission: math.NaN()}, "transmission"},
		{"gamma above one", Rates{Recovery: 2}, "recovery"},
		{"nan gamma", Rates{Recovery: math.NaN()}, "recovery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rates.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var se *simerr.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.param, se.Param)
		})
	}
}

func TestObserversSeeEveryStepAndAreClosed(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1}, WithSeed(1), WithObserver(a, b))
	require.NoError(t, err)

	series, err := d.Run(context.Background(), pathGraph(5), seeded(t, 5, 0), 3)
	require.NoError(t, err)
	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []int{0, 1, 2, 3}, r.steps)
		assert.Equal(t, []epidemic.Counts(series), r.counts)
		assert.Equal(t, 1, r.closed)
	}
}

func TestFailingObserverIsDetached(t *testing.T) {
	var logs bytes.Buffer
	bad, good := newRecorder(), newRecorder()
	bad.failAt = 2
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 0.5, Recovery: 0.1},
		WithSeed(3), WithObserver(bad, good), WithLogger(logging.NewLogger("info", &logs)))
	require.NoError(t, err)

	series, err := d.Run(context.Background(), pathGraph(20), seeded(t, 20, 10), 5)
	require.NoError(t, err, "an output failure must not abort the run")
	AssertSeriesLength(t, series, 5)

	assert.Equal(t, []int{0, 1}, bad.steps)
	assert.Equal(t, 1, bad.closed, "detached observer closed exactly once")
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, good.steps)
	assert.Contains(t, logs.String(), "disk full")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestRunCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := newRecorder()
	obs.onStep = func(step int) {
		if step == 3 {
			cancel()
		}
	}
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 0.3, Recovery: 0.1},
		WithSeed(5), WithObserver(obs))
	require.NoError(t, err)

	series, err := d.Run(ctx, pathGraph(50), seeded(t, 50, 25), 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, series, 4, "steps 0..3 completed before cancellation")
	assert.Equal(t, []epidemic.Counts(series), obs.counts, "every returned entry was delivered")
	assert.Equal(t, 1, obs.closed)
	AssertConserved(t, series, 50)
}

func TestRunReproducibleAcrossWorkerCounts(t *testing.T) {
	g, err := network.Grow(6000, 3, network.WithSeed(4))
	require.NoError(t, err)
	initial, err := Seeding{Count: 30}.Population(g.Len(), 77)
	require.NoError(t, err)

	run := func(workers int) Series {
		d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 0.08, Recovery: 0.05},
			WithSeed(77), WithWorkers(workers))
		require.NoError(t, err)
		series, err := d.Run(context.Background(), g, initial, 30)
		require.NoError(t, err)
		return series
	}
	serial := run(1)
	assert.Equal(t, serial, run(4))
	assert.Equal(t, serial, run(0))
	AssertConserved(t, serial, g.Len())
	AssertOneWay(t, serial)
}

func TestRunAttachmentCommitsEdges(t *testing.T) {
	g, err := network.Grow(300, 2, network.WithSeed(6))
	require.NoError(t, err)
	before := g.EdgeCount()
	reg := metrics.NewRegistry()

	d, err := New(epidemic.AttachmentPolicy{}, Rates{Transmission: 0.3, Recovery: 0.05},
		WithSeed(6), WithMetrics(reg))
	require.NoError(t, err)
	series, err := d.Run(context.Background(), g, seeded(t, 300, 0, 1), 10)
	require.NoError(t, err)

	// Every infection after seeding recorded exactly one contact.
	infections := series[0].S - series.Final().S
	assert.Positive(t, infections)
	assert.Equal(t, before+infections, g.EdgeCount())
	require.NoError(t, g.CheckSymmetric())

	var metric dto.Metric
	require.NoError(t, reg.NetworkEdges.Write(&metric))
	assert.Equal(t, float64(g.EdgeCount()), metric.Gauge.GetValue())
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1}, WithSeed(1), WithMetrics(reg))
	require.NoError(t, err)
	series, err := d.Run(context.Background(), pathGraph(5), seeded(t, 5, 2), 4)
	require.NoError(t, err)

	var metric dto.Metric
	steps, err := reg.StepsTotal.GetMetricWithLabelValues("contact")
	require.NoError(t, err)
	require.NoError(t, steps.Write(&metric))
	assert.Equal(t, 4.0, metric.Counter.GetValue())

	infections, err := reg.InfectionsTotal.GetMetricWithLabelValues("contact")
	require.NoError(t, err)
	require.NoError(t, infections.Write(&metric))
	assert.Equal(t, 4.0, metric.Counter.GetValue())

	gauge, err := reg.CompartmentNodes.GetMetricWithLabelValues("I")
	require.NoError(t, err)
	require.NoError(t, gauge.Write(&metric))
	assert.Equal(t, float64(series.Final().I), metric.Gauge.GetValue())

	runs, err := reg.RunsTotal.GetMetricWithLabelValues("contact", "ok")
	require.NoError(t, err)
	require.NoError(t, runs.Write(&metric))
	assert.Equal(t, 1.0, metric.Counter.GetValue())
}

func TestRunWritesTraceAndDebugLog(t *testing.T) {
	dir := t.TempDir()
	tracer, err := logging.NewStepTracer(dir, "debug")
	require.NoError(t, err)
	require.NotNil(t, tracer)
	var logs bytes.Buffer

	d, err := New(epidemic.ContactPolicy{}, Rates{Transmission: 1}, WithSeed(1),
		WithTracer(tracer), WithLogger(logging.NewLogger("debug", &logs)))
	require.NoError(t, err)
	_, err = d.Run(context.Background(), pathGraph(5), seeded(t, 5, 2), 2)
	require.NoError(t, err)
	require.NoError(t, tracer.Close())

	data, err := os.ReadFile(filepath.Join(dir, logging.TraceFile))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	out := logs.String()
	assert.Contains(t, out, "msg=step")
	assert.Contains(t, out, "infections=2")
	assert.Contains(t, out, "simulation finished")
}

func TestSeriesPeakAndFinal(t *testing.T) {
	s := Series{{S: 9, I: 1}, {S: 6, I: 4}, {S: 4, I: 4, R: 2}, {S: 4, I: 1, R: 5}}
	step, infected := s.Peak()
	assert.Equal(t, 1, step)
	assert.Equal(t, 4, infected)
	assert.Equal(t, epidemic.Counts{S: 4, I: 1, R: 5}, s.Final())
	assert.Equal(t, epidemic.Counts{}, Series(nil).Final())
}
