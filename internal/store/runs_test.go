package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sim", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndReadRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Begin(ctx, Run{
		Policy:       "contact",
		Population:   10,
		Edges:        27,
		Transmission: 0.3,
		Recovery:     0.1,
		Steps:        2,
		Seed:         1<<63 + 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID())

	want := simulation.Series{{S: 9, I: 1}, {S: 8, I: 2}, {S: 8, I: 1, R: 1}}
	for step, c := range want {
		require.NoError(t, rec.Observe(step, nil, c))
	}
	require.NoError(t, rec.Close())
	require.NoError(t, s.Finish(ctx, rec.ID(), StatusCompleted))

	run, err := s.GetRun(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "contact", run.Policy)
	assert.Equal(t, uint64(1<<63+5), run.Seed)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 3, run.Recorded)
	assert.NotNil(t, run.FinishedAt)

	got, err := s.Counts(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.Begin(ctx, Run{Policy: "contact", Population: 5, Steps: 1})
	require.NoError(t, err)
	second, err := s.Begin(ctx, Run{Policy: "attachment", Population: 5, Steps: 1})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID(), runs[0].ID)
	assert.Equal(t, first.ID(), runs[1].ID)
	assert.Equal(t, StatusRunning, runs[1].Status)
	assert.Nil(t, runs[1].FinishedAt)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetRun(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
	_, err = s.Counts(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
	assert.True(t, errors.Is(s.Finish(ctx, "nope", StatusFailed), ErrRunNotFound))
	assert.True(t, errors.Is(s.DeleteRun(ctx, "nope"), ErrRunNotFound))
}

func TestDeleteRunCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Begin(ctx, Run{Policy: "contact", Population: 2, Steps: 0})
	require.NoError(t, err)
	require.NoError(t, rec.Observe(0, nil, epidemic.Counts{S: 1, I: 1}))
	require.NoError(t, s.DeleteRun(ctx, rec.ID()))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_counts`).Scan(&n))
	assert.Zero(t, n)
}

func TestDuplicateStepIsIOError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := s.Begin(ctx, Run{Policy: "contact", Population: 2})
	require.NoError(t, err)
	require.NoError(t, rec.Observe(0, nil, epidemic.Counts{S: 1, I: 1}))
	err = rec.Observe(0, nil, epidemic.Counts{S: 1, I: 1})
	assert.True(t, errors.Is(err, simerr.ErrIO), "got %v", err)
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	rec, err := s.Begin(ctx, Run{Policy: "contact", Population: 3})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, run.Population)
	require.NoError(t, ValidateIntegrity(ctx, s.db))
}

func TestObserveAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	rec, err := s.Begin(ctx, Run{Policy: "contact", Population: 1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = rec.Observe(0, nil, epidemic.Counts{I: 1})
	assert.True(t, errors.Is(err, simerr.ErrIO), "got %v", err)
}

func TestImportRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 500, time.UTC)
	finished := created.Add(3 * time.Second)
	run := Run{
		ID:           "imported-1",
		CreatedAt:    created,
		FinishedAt:   &finished,
		Status:       StatusCancelled,
		Policy:       "attachment",
		Population:   4,
		Edges:        6,
		Transmission: 0.5,
		Recovery:     0.2,
		Steps:        5,
		Seed:         99,
	}
	series := simulation.Series{{S: 3, I: 1}, {S: 2, I: 2}}
	require.NoError(t, s.ImportRun(ctx, run, series))

	got, err := s.GetRun(ctx, "imported-1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished, *got.FinishedAt)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 2, got.Recorded)

	counts, err := s.Counts(ctx, "imported-1")
	require.NoError(t, err)
	assert.Equal(t, series, counts)

	err = s.ImportRun(ctx, run, series)
	assert.True(t, errors.Is(err, ErrRunExists))
}

func TestImportRunRequiresID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// A missing id is rejected before touching the database.
	require.Error(t, s.ImportRun(ctx, Run{}, nil))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
