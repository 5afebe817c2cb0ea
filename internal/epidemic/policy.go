package epidemic

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvandessel/epinet/internal/network"
	"github.com/nvandessel/epinet/internal/parallel"
	"github.com/nvandessel/epinet/internal/simerr"
)

// ChunkSize is the number of nodes one parallel task evaluates. Each chunk
// draws from its own random stream, so results for a fixed seed do not
// depend on the worker count.
const ChunkSize = 1024

// Policy advances a population by one time unit.
type Policy interface {
	Name() string
	// Step computes the next state from in. It never mutates in.Current or
	// in.Graph.
	Step(ctx context.Context, in StepInput) (Transition, error)
}

// StepInput is the read-only snapshot one step works from.
type StepInput struct {
	Graph        *network.Graph
	Current      Population
	Transmission float64 // β
	Recovery     float64 // γ
	Seed         uint64  // run seed; combined with Step and chunk index
	Step         int
	Pool         *parallel.Pool // nil runs chunks inline
}

// Transition is the result of one step.
type Transition struct {
	Next Population
	// NewEdges are contacts created by the step. The caller commits them to
	// the graph after the step.
	NewEdges   []network.Edge
	Infections int
	Recoveries int
}

func (in StepInput) check() error {
	if in.Graph == nil {
		return fmt.Errorf("step %d: nil graph", in.Step)
	}
	if len(in.Current) != in.Graph.Len() {
		return fmt.Errorf("step %d: population has %d nodes, graph has %d",
			in.Step, len(in.Current), in.Graph.Len())
	}
	return nil
}

func (in StepInput) chunks() int {
	return (len(in.Current) + ChunkSize - 1) / ChunkSize
}

func chunkBounds(c, n int) (lo, hi int) {
	lo = c * ChunkSize
	return lo, min(lo+ChunkSize, n)
}

// Policy names accepted by ParsePolicy.
const (
	PolicyContact    = "contact"
	PolicyAttachment = "attachment"
)

// ParsePolicy returns the policy registered under name.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyContact, "":
		return ContactPolicy{}, nil
	case PolicyAttachment:
		return AttachmentPolicy{}, nil
	default:
		return nil, simerr.Config("policy", "unknown policy %q (want %s or %s)",
			name, PolicyContact, PolicyAttachment)
	}
}
