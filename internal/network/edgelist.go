package network

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/epinet/internal/simerr"
)

// ReadOption configures ReadEdgeList.
type ReadOption func(*readConfig)

type readConfig struct {
	ringBackbone bool
}

// WithRingBackbone links node i to node (i+1) mod N before any listed edge
// is read, so every node has at least one contact.
func WithRingBackbone() ReadOption {
	return func(c *readConfig) { c.ringBackbone = true }
}

// WriteEdgeList writes g as a node-count line followed by one "u v" line per
// adjacency entry, in node order. Both directions of every edge are written;
// ReadEdgeList symmetrises and deduplicates, so the round trip is stable.
func WriteEdgeList(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, g.Len()); err != nil {
		return err
	}
	buf := make([]byte, 0, 32)
	for u := 0; u < g.Len(); u++ {
		for _, v := range g.Neighbors(u) {
			buf = strconv.AppendInt(buf[:0], int64(u), 10)
			buf = append(buf, ' ')
			buf = strconv.AppendInt(buf, int64(v), 10)
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadEdgeList parses the edge-list format. The first non-blank line is the
// node count; every following non-blank line holds two whitespace-separated
// node indices. Each listed pair is added in both directions unless already
// present, so the result is symmetric and free of duplicates. Self-loops are
// skipped.
func ReadEdgeList(r io.Reader, opts ...ReadOption) (*Graph, error) {
	cfg := readConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var g *Graph
	seen := make(map[Edge]struct{})
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if g == nil {
			if len(fields) != 1 {
				return nil, simerr.Config("edge_list", "line %d: expected node count, got %q", line, scanner.Text())
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil || n <= 0 {
				return nil, simerr.Config("edge_list", "line %d: node count must be a positive integer, got %q", line, fields[0])
			}
			g = New(n)
			if cfg.ringBackbone && n > 1 {
				for i := 0; i < n; i++ {
					addUnique(g, seen, i, (i+1)%n)
				}
			}
			continue
		}
		if len(fields) != 2 {
			return nil, simerr.Config("edge_list", "line %d: expected two node indices, got %q", line, scanner.Text())
		}
		u, errU := strconv.Atoi(fields[0])
		v, errV := strconv.Atoi(fields[1])
		if errU != nil || errV != nil {
			return nil, simerr.Config("edge_list", "line %d: node indices must be integers, got %q", line, scanner.Text())
		}
		if u < 0 || u >= g.Len() || v < 0 || v >= g.Len() {
			return nil, simerr.Config("edge_list", "line %d: edge %d-%d outside [0,%d)", line, u, v, g.Len())
		}
		if u == v {
			// Self-contact carries no transmission.
			continue
		}
		addUnique(g, seen, u, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading edge list: %w", err)
	}
	if g == nil {
		return nil, simerr.Config("edge_list", "missing node count line")
	}
	return g, nil
}

// addUnique adds the undirected edge u-v unless it was already added.
func addUnique(g *Graph, seen map[Edge]struct{}, u, v int) {
	key := Edge{U: min(u, v), V: max(u, v)}
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	g.AddEdge(u, v)
}

// SaveEdgeList writes g to path, creating parent directories.
func SaveEdgeList(path string, g *Graph) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return simerr.IO(path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return simerr.IO(path, err)
	}
	if err := WriteEdgeList(f, g); err != nil {
		f.Close()
		return simerr.IO(path, err)
	}
	if err := f.Close(); err != nil {
		return simerr.IO(path, err)
	}
	return nil
}

// LoadEdgeList reads an edge list from path.
func LoadEdgeList(path string, opts ...ReadOption) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	defer f.Close()
	g, err := ReadEdgeList(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return g, nil
}
