// Package meanfield integrates the well-mixed SIR equations, the baseline a
// network simulation is compared against.
//
// The model ignores topology: every infected node meets every susceptible
// one with equal probability. With dt = 1 the forward Euler step is
//
//	dS = -β·S·I/N
//	dR = γ·I
//	dI = -(dS + dR)
//
// and each compartment is clamped at zero after the update.
package meanfield

import (
	"fmt"
	"math"

	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
)

// Point is one step of a real-valued S, I, R trajectory.
type Point struct {
	S float64 `json:"s"`
	I float64 `json:"i"`
	R float64 `json:"r"`
}

// Total returns S+I+R.
func (p Point) Total() float64 {
	return p.S + p.I + p.R
}

// Sub returns p - q component-wise.
func (p Point) Sub(q Point) Point {
	return Point{S: p.S - q.S, I: p.I - q.I, R: p.R - q.R}
}

// Params are the inputs of the ODE.
type Params struct {
	Population      int
	Transmission    float64
	Recovery        float64
	InitialInfected float64
}

// Validate checks the same constraints the network simulation enforces.
func (p Params) Validate() error {
	if p.Population <= 0 {
		return simerr.Config("population", "must be positive, got %d", p.Population)
	}
	if math.IsNaN(p.InitialInfected) || p.InitialInfected < 0 {
		return simerr.Config("initial_infected", "must not be negative, got %v", p.InitialInfected)
	}
	if p.InitialInfected > float64(p.Population) {
		return simerr.Config("initial_infected", "must not exceed population (%d), got %v",
			p.Population, p.InitialInfected)
	}
	return simulation.Rates{Transmission: p.Transmission, Recovery: p.Recovery}.Validate()
}

// Solve integrates steps Euler steps and returns steps+1 points, the first
// being the initial state (N-I0, I0, 0).
func Solve(p Params, steps int) ([]Point, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if steps < 0 {
		return nil, simerr.Config("steps", "must not be negative, got %d", steps)
	}

	n := float64(p.Population)
	cur := Point{S: n - p.InitialInfected, I: p.InitialInfected}
	out := make([]Point, 0, steps+1)
	out = append(out, cur)
	for range steps {
		dS := -p.Transmission * cur.S * cur.I / n
		dR := p.Recovery * cur.I
		dI := -(dS + dR)
		cur = Point{
			S: max(cur.S+dS, 0),
			I: max(cur.I+dI, 0),
			R: max(cur.R+dR, 0),
		}
		out = append(out, cur)
	}
	return out, nil
}

// FromSeries converts integer counts to points.
func FromSeries(s simulation.Series) []Point {
	out := make([]Point, len(s))
	for i, c := range s {
		out[i] = Point{S: float64(c.S), I: float64(c.I), R: float64(c.R)}
	}
	return out
}

// Compare returns actual - simulated for every step. Both trajectories must
// have the same length.
func Compare(actual, simulated []Point) ([]Point, error) {
	if len(actual) != len(simulated) {
		return nil, fmt.Errorf("comparing trajectories: lengths differ (%d vs %d)", len(actual), len(simulated))
	}
	diff := make([]Point, len(actual))
	for i := range actual {
		diff[i] = actual[i].Sub(simulated[i])
	}
	return diff, nil
}

// ErrorStats summarises a difference trajectory per compartment.
type ErrorStats struct {
	RMSE   Point `json:"rmse"`
	MaxAbs Point `json:"max_abs"`
}

// Summarize computes root-mean-square and maximum absolute error of diff.
func Summarize(diff []Point) ErrorStats {
	var st ErrorStats
	if len(diff) == 0 {
		return st
	}
	var sq Point
	for _, d := range diff {
		sq.S += d.S * d.S
		sq.I += d.I * d.I
		sq.R += d.R * d.R
		st.MaxAbs.S = max(st.MaxAbs.S, math.Abs(d.S))
		st.MaxAbs.I = max(st.MaxAbs.I, math.Abs(d.I))
		st.MaxAbs.R = max(st.MaxAbs.R, math.Abs(d.R))
	}
	n := float64(len(diff))
	st.RMSE = Point{S: math.Sqrt(sq.S / n), I: math.Sqrt(sq.I / n), R: math.Sqrt(sq.R / n)}
	return st
}
