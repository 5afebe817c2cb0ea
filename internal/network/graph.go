// Package network holds the contact network: an undirected adjacency list
// over dense node indices, the preferential-attachment builder that grows it,
// and the edge-list format it is persisted in.
package network

import (
	"fmt"
	"slices"
)

// Edge is one undirected connection between two nodes.
type Edge struct {
	U, V int
}

// Graph is an undirected adjacency list. Node identity is the index in
// [0, Len()). Every AddEdge appends to both endpoints, so the relation is
// symmetric by construction; duplicate edges are tolerated.
//
// A Graph is not safe for concurrent mutation. During stepping it is only
// read, and any new edges are applied between steps.
type Graph struct {
	adj [][]int
}

// New returns a graph with n isolated nodes.
func New(n int) *Graph {
	return &Graph{adj: make([][]int, n)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.adj)
}

// AddEdge connects u and v in both directions. It panics if either index is
// out of range.
func (g *Graph) AddEdge(u, v int) {
	g.adj[u] = append(g.adj[u], v)
	g.adj[v] = append(g.adj[v], u)
}

// Neighbors returns u's neighbors in insertion order. The slice is owned by
// the graph and must not be modified.
func (g *Graph) Neighbors(u int) []int {
	return g.adj[u]
}

// Degree returns the number of adjacency entries of u.
func (g *Graph) Degree(u int) int {
	return len(g.adj[u])
}

// HasEdge reports whether v appears in u's neighbor list.
func (g *Graph) HasEdge(u, v int) bool {
	return slices.Contains(g.adj[u], v)
}

// EdgeCount returns the number of undirected edges, counting duplicates.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, nbrs := range g.adj {
		total += len(nbrs)
	}
	return total / 2
}

// Edges lists each undirected edge once as {U, V} with U < V, in node order.
// Self-loops are listed once as {U, U}.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for u, nbrs := range g.adj {
		loops := 0
		for _, v := range nbrs {
			switch {
			case u < v:
				edges = append(edges, Edge{U: u, V: v})
			case u == v:
				// A self-loop is stored twice in u's own list.
				loops++
				if loops%2 == 1 {
					edges = append(edges, Edge{U: u, V: u})
				}
			}
		}
	}
	return edges
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	out := &Graph{adj: make([][]int, len(g.adj))}
	for i, nbrs := range g.adj {
		out.adj[i] = slices.Clone(nbrs)
	}
	return out
}

// CheckSymmetric verifies that every entry v in u's list is matched by the
// same number of entries u in v's list.
func (g *Graph) CheckSymmetric() error {
	type pair struct{ u, v int }
	count := make(map[pair]int)
	for u, nbrs := range g.adj {
		for _, v := range nbrs {
			if v < 0 || v >= len(g.adj) {
				return fmt.Errorf("node %d has out-of-range neighbor %d", u, v)
			}
			count[pair{u, v}]++
		}
	}
	for p, n := range count {
		if p.u == p.v {
			continue
		}
		if count[pair{p.v, p.u}] != n {
			return fmt.Errorf("asymmetric adjacency between %d and %d", p.u, p.v)
		}
	}
	return nil
}

// MinDegree returns the smallest degree in the graph, or 0 when empty.
func (g *Graph) MinDegree() int {
	if len(g.adj) == 0 {
		return 0
	}
	low := len(g.adj[0])
	for _, nbrs := range g.adj[1:] {
		low = min(low, len(nbrs))
	}
	return low
}
