package simulation

import (
	"testing"
)

// AssertSeriesLength asserts that a run of steps steps produced steps+1
// entries.
func AssertSeriesLength(t testing.TB, series Series, steps int) {
	t.Helper()
	if len(series) != steps+1 {
		t.Errorf("AssertSeriesLength: got %d entries, want %d", len(series), steps+1)
	}
}

// AssertConserved asserts that every entry sums to n.
func AssertConserved(t testing.TB, series Series, n int) {
	t.Helper()
	for step, c := range series {
		if c.Total() != n {
			t.Errorf("AssertConserved: step %d: %s sums to %d, want %d", step, c, c.Total(), n)
		}
	}
}

// AssertOneWay asserts that S never grows and R never shrinks, which holds
// for any sequence of S->I and I->R transitions.
func AssertOneWay(t testing.TB, series Series) {
	t.Helper()
	for step := 1; step < len(series); step++ {
		prev, cur := series[step-1], series[step]
		if cur.S > prev.S {
			t.Errorf("AssertOneWay: step %d: S grew from %d to %d", step, prev.S, cur.S)
		}
		if cur.R < prev.R {
			t.Errorf("AssertOneWay: step %d: R shrank from %d to %d", step, prev.R, cur.R)
		}
	}
}

// AssertFlatAfterExtinction asserts that once I reaches zero the series
// never changes again.
func AssertFlatAfterExtinction(t testing.TB, series Series) {
	t.Helper()
	for step, c := range series {
		if c.I != 0 {
			continue
		}
		for later := step + 1; later < len(series); later++ {
			if series[later] != c {
				t.Errorf("AssertFlatAfterExtinction: extinct at step %d (%s) but step %d is %s",
					step, c, later, series[later])
				return
			}
		}
		return
	}
}
