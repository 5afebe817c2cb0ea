// Package chance provides the biased coin every stochastic decision in
// epinet is made with.
//
// A Coin is not safe for concurrent use. Parallel code derives one Coin per
// unit of work with Stream, which keeps draws independent across workers and
// reproducible for a fixed seed regardless of how work is scheduled.
package chance

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Coin samples Bernoulli events from a seedable PCG source.
type Coin struct {
	rng *rand.Rand
}

// New returns a Coin seeded with seed.
func New(seed uint64) *Coin {
	return &Coin{rng: rand.New(rand.NewPCG(seed, mix(seed^0x9e3779b97f4a7c15)))}
}

// NewRandom returns a Coin seeded from the wall clock.
func NewRandom() *Coin {
	return New(uint64(time.Now().UnixNano()))
}

// Stream returns the Coin for one chunk of one step of a run. Distinct
// (seed, step, chunk) triples yield independent streams.
func Stream(seed uint64, step, chunk int) *Coin {
	hi := mix(seed ^ mix(uint64(step)+1))
	lo := mix(hi ^ mix(uint64(chunk)+0x632be59bd9b4e019))
	return &Coin{rng: rand.New(rand.NewPCG(hi, lo))}
}

// Flip returns true with probability p. It panics when p is NaN or outside
// [0,1]; parameters are validated long before they reach the coin, so this
// only fires on a programming error.
func (c *Coin) Flip(p float64) bool {
	if math.IsNaN(p) || p < 0 || p > 1 {
		panic(fmt.Sprintf("chance: probability %v outside [0,1]", p))
	}
	return c.rng.Float64() < p
}

// IntN returns a uniform int in [0,n). It panics if n <= 0.
func (c *Coin) IntN(n int) int {
	return c.rng.IntN(n)
}

// Float64 returns a uniform float64 in [0,1).
func (c *Coin) Float64() float64 {
	return c.rng.Float64()
}

// Uint64 returns a uniform uint64, used to derive run seeds.
func (c *Coin) Uint64() uint64 {
	return c.rng.Uint64()
}

// mix is the splitmix64 finaliser.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
