// Package graph records the transfers of a collective schedule: vertex i is
// an index in the active set, edge i->j a transfer from i to j.
package graph

import (
	"fmt"
	"strings"
)

type Node struct {
	Prevs []int
	Nexts []int
}

type Graph struct {
	Nodes []Node
}

func New(n int) *Graph {
	return &Graph{Nodes: make([]Node, n)}
}

// AddEdge records a transfer from i to j. Transfers of a vertex to itself
// are local copies and are not recorded.
func (g *Graph) AddEdge(i, j int) {
	if i == j {
		return
	}
	g.Nodes[i].Nexts = append(g.Nodes[i].Nexts, j)
	g.Nodes[j].Prevs = append(g.Nodes[j].Prevs, i)
}

func (g *Graph) Prevs(i int) []int {
	return g.Nodes[i].Prevs
}

func (g *Graph) Nexts(i int) []int {
	return g.Nodes[i].Nexts
}

func (g *Graph) Edges() int {
	var m int
	for _, n := range g.Nodes {
		m += len(n.Nexts)
	}
	return m
}

// Height is the number of rounds a message from root needs to reach every
// vertex along the edges, or -1 if some vertex is unreachable.
func (g *Graph) Height(root int) int {
	depth := make([]int, len(g.Nodes))
	for i := range depth {
		depth[i] = -1
	}
	depth[root] = 0
	var h int
	for q := []int{root}; len(q) > 0; q = q[1:] {
		i := q[0]
		for _, j := range g.Nodes[i].Nexts {
			if depth[j] >= 0 {
				continue
			}
			depth[j] = depth[i] + 1
			h = max(h, depth[j])
			q = append(q, j)
		}
	}
	for _, d := range depth {
		if d < 0 {
			return -1
		}
	}
	return h
}

// IsMatching reports whether every vertex exchanges with at most one peer
// and every transfer is answered by one in the opposite direction, as in one
// round of a pairwise exchange.
func (g *Graph) IsMatching() bool {
	for i, n := range g.Nodes {
		if len(n.Nexts) > 1 || len(n.Nexts) != len(n.Prevs) {
			return false
		}
		if len(n.Nexts) == 0 {
			continue
		}
		j := n.Nexts[0]
		if n.Prevs[0] != j || len(g.Nodes[j].Nexts) != 1 || g.Nodes[j].Nexts[0] != i {
			return false
		}
	}
	return true
}

func (g *Graph) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d]{", len(g.Nodes))
	for i, n := range g.Nodes {
		for _, j := range n.Nexts {
			fmt.Fprintf(&b, "(%d->%d)", i, j)
		}
	}
	b.WriteString("}")
	return b.String()
}
