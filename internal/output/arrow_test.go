package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowSeriesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.arrow")
	a, err := NewArrowSeries(path)
	require.NoError(t, err)

	want := simulation.Series{{S: 9, I: 1}, {S: 7, I: 3}, {S: 6, I: 2, R: 2}}
	for step, c := range want {
		require.NoError(t, a.Observe(step, nil, c))
	}
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadArrowSeries(f)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestArrowSeriesEmptyStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.arrow")
	a, err := NewArrowSeries(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadArrowSeries(f)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadArrowSeriesRejectsGarbage(t *testing.T) {
	_, err := ReadArrowSeries(bytes.NewReader([]byte("S,I,R\n1,2,3\n")))
	assert.Error(t, err)
}

func TestOpenSkipsUnusableSinks(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	sinks := Open(Paths{
		Series: filepath.Join(dir, "series.csv"),
		States: filepath.Join(blocker, "states.csv"),
		Arrow:  filepath.Join(dir, "series.arrow"),
	}, nil)
	require.Len(t, sinks, 2)
	for _, s := range sinks {
		require.NoError(t, s.Observe(0, epidemic.Population{epidemic.Infected}, epidemic.Counts{I: 1}))
		require.NoError(t, s.Close())
	}
	assert.Empty(t, Open(Paths{}, nil))
}
