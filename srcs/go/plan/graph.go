package plan

import "github.com/lsds/kungfu-shmem/srcs/go/plan/graph"

// TreeGraph materializes the tree used by the tree based collectives as a
// graph rooted at 0, edges pointing from parent to child.
func TreeGraph(kind TreeKind, size, arity int) *graph.Graph {
	g := graph.New(size)
	buf := make([]int, 0, MaxChildren(kind, size, arity))
	for i := 0; i < size; i++ {
		n := Tree(kind, size, arity, i, buf)
		for _, j := range n.Children {
			g.AddEdge(i, j)
		}
	}
	return g
}

// EdgeColorGraph materializes round r of EdgeColor as a graph whose edges are
// the pairs exchanging in that round.
func EdgeColorGraph(r, n int) *graph.Graph {
	g := graph.New(n)
	for i := 0; i < n; i++ {
		if j := EdgeColor(r, i, n); j >= 0 {
			g.AddEdge(i, j)
		}
	}
	return g
}
