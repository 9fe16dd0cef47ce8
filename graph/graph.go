// Package graph maintains the undirected connection graph between small
// circles. Edges are structural: two circles are connected when they sit at
// the expected spacing and no seam rule excludes the pair. The graph is
// rebuilt wholesale from current positions, never patched incrementally.
package graph

import (
	"errors"
	"sort"

	"github.com/brensch/ringworld/geom"
)

// ErrBadTolerance is returned by Rebuild when the tolerance band is empty.
var ErrBadTolerance = errors.New("graph: tolerance must be in [0, 1)")

// Excluder vetoes an otherwise valid edge between small circles a and b.
type Excluder interface {
	Exclude(a, b int) bool
}

// Options control which pairs become edges.
type Options struct {
	// ExpectedDistance is the ideal spacing between connected circles.
	ExpectedDistance float64
	// Tolerance is the relative band around ExpectedDistance, e.g. 0.1.
	Tolerance float64
	// Exclude may be nil.
	Exclude Excluder
}

// Graph is an adjacency-list arena indexed by small circle id.
type Graph struct {
	adj   [][]int
	edges int
}

// New returns a graph of n vertices and no edges.
func New(n int) *Graph {
	g := &Graph{}
	g.reset(n)
	return g
}

func (g *Graph) reset(n int) {
	g.adj = make([][]int, n)
	g.edges = 0
}

// Rebuild discards all edges and recomputes them from positions.
func (g *Graph) Rebuild(positions []geom.Point, opts Options) error {
	if opts.Tolerance < 0 || opts.Tolerance >= 1 {
		return ErrBadTolerance
	}
	g.reset(len(positions))

	lo := opts.ExpectedDistance * (1 - opts.Tolerance)
	hi := opts.ExpectedDistance * (1 + opts.Tolerance)

	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			d := geom.Distance(positions[i], positions[j])
			if d < lo || d > hi {
				continue
			}
			if opts.Exclude != nil && opts.Exclude.Exclude(i, j) {
				continue
			}
			g.adj[i] = append(g.adj[i], j)
			g.adj[j] = append(g.adj[j], i)
			g.edges++
		}
	}
	return nil
}

// Len returns the number of vertices.
func (g *Graph) Len() int { return len(g.adj) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Neighbors returns the vertices adjacent to id in ascending order. The slice
// is owned by the graph and must not be modified.
func (g *Graph) Neighbors(id int) []int {
	if id < 0 || id >= len(g.adj) {
		return nil
	}
	return g.adj[id]
}

func (g *Graph) Degree(id int) int { return len(g.Neighbors(id)) }

func (g *Graph) HasEdge(a, b int) bool {
	for _, n := range g.Neighbors(a) {
		if n == b {
			return true
		}
	}
	return false
}

// Edges returns every edge once as an ordered pair with a < b.
func (g *Graph) Edges() [][2]int {
	out := make([][2]int, 0, g.edges)
	for a, ns := range g.adj {
		for _, b := range ns {
			if a < b {
				out = append(out, [2]int{a, b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Clone performs a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{adj: make([][]int, len(g.adj)), edges: g.edges}
	for i, ns := range g.adj {
		if len(ns) > 0 {
			out.adj[i] = append([]int(nil), ns...)
		}
	}
	return out
}
