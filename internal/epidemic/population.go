// Package epidemic implements the discrete-time SIR state transition over a
// contact network.
//
// A step reads one immutable Population snapshot and returns a fresh one, so
// every decision within a step is based on the state at the start of that
// step. Two transition policies are provided: ContactPolicy, where infected
// nodes transmit to susceptible neighbors, and AttachmentPolicy, where
// susceptible nodes attach to the infected set by preferential attachment.
package epidemic

import (
	"fmt"
	"slices"
)

// Compartment is the SIR state of one node. The numeric values are the tags
// written to per-node state files.
type Compartment uint8

const (
	Susceptible Compartment = iota
	Infected
	Recovered
)

// String returns S, I or R.
func (c Compartment) String() string {
	switch c {
	case Susceptible:
		return "S"
	case Infected:
		return "I"
	case Recovered:
		return "R"
	default:
		return fmt.Sprintf("Compartment(%d)", uint8(c))
	}
}

// Population holds one compartment per node, indexed like the graph.
type Population []Compartment

// NewPopulation returns n susceptible nodes.
func NewPopulation(n int) Population {
	return make(Population, n)
}

// Clone returns a copy that shares no memory with p.
func (p Population) Clone() Population {
	return slices.Clone(p)
}

// Counts tallies the compartments.
func (p Population) Counts() Counts {
	var c Counts
	for _, tag := range p {
		switch tag {
		case Susceptible:
			c.S++
		case Infected:
			c.I++
		case Recovered:
			c.R++
		}
	}
	return c
}

// Infected returns the indices of infected nodes in ascending order.
func (p Population) Infected() []int {
	var ids []int
	for u, tag := range p {
		if tag == Infected {
			ids = append(ids, u)
		}
	}
	return ids
}

// Counts is the aggregate S, I, R triple for one step.
type Counts struct {
	S int `json:"s"`
	I int `json:"i"`
	R int `json:"r"`
}

// Total returns S+I+R.
func (c Counts) Total() int {
	return c.S + c.I + c.R
}

func (c Counts) String() string {
	return fmt.Sprintf("S=%d I=%d R=%d", c.S, c.I, c.R)
}
