// Package dag models the reference graph of a QDMR program.
// Nodes are 1-based step indices; an edge k -> i means step i references
// step k. It supports cycle detection, topological ordering and
// reachability from the final step.
package dag

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Graph is a step reference graph.
type Graph struct {
	n        int
	children map[int][]int // referenced step -> referencing steps
	parents  map[int][]int // referencing step -> referenced steps
}

// NewGraph creates a graph with nodes 1..n and no edges.
func NewGraph(n int) *Graph {
	return &Graph{
		n:        n,
		children: make(map[int][]int),
		parents:  make(map[int][]int),
	}
}

// FromProgram builds the reference graph of p. References outside
// 1..p.Len() are reported as errors; self and forward references are
// kept as edges and can be listed with ForwardReferences.
func FromProgram(p *qdmr.Program) (*Graph, error) {
	g := NewGraph(p.Len())
	for i := 1; i <= p.Len(); i++ {
		for _, k := range p.Step(i).References() {
			if err := g.AddEdge(k, i); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	return g, nil
}

// AddEdge records that child references parent.
func (g *Graph) AddEdge(parent, child int) error {
	if parent < 1 || parent > g.n {
		return fmt.Errorf("reference to missing step #%d", parent)
	}
	if child < 1 || child > g.n {
		return fmt.Errorf("missing step %d", child)
	}
	if !slices.Contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !slices.Contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// EdgeCount returns the number of distinct references.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, c := range g.children {
		count += len(c)
	}
	return count
}

// Parents returns the steps that step id references.
func (g *Graph) Parents(id int) []int {
	return slices.Sorted(slices.Values(g.parents[id]))
}

// Children returns the steps that reference step id.
func (g *Graph) Children(id int) []int {
	return slices.Sorted(slices.Values(g.children[id]))
}

// ForwardReferences returns (step, target) pairs where a step references
// itself or a later step.
func (g *Graph) ForwardReferences() [][2]int {
	var out [][2]int
	for child := 1; child <= g.n; child++ {
		for _, parent := range g.Parents(child) {
			if parent >= child {
				out = append(out, [2]int{child, parent})
			}
		}
	}
	return out
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path.
func (g *Graph) HasCycle() (bool, []int) {
	visited := make(map[int]bool)
	onStack := make(map[int]bool)
	from := make(map[int]int)

	var cycle []int
	var dfs func(id int) bool
	dfs = func(id int) bool {
		visited[id] = true
		onStack[id] = true
		for _, next := range g.Children(id) {
			if !visited[next] {
				from[next] = id
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cycle = []int{next}
				for cur := id; cur != next; cur = from[cur] {
					cycle = append([]int{cur}, cycle...)
				}
				cycle = append([]int{next}, cycle...)
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for id := 1; id <= g.n; id++ {
		if !visited[id] && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns steps with every referenced step before the
// steps referencing it. Ties keep index order.
func (g *Graph) TopologicalSort() ([]int, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	visited := make(map[int]bool)
	order := make([]int, 0, g.n)
	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, p := range g.Parents(id) {
			visit(p)
		}
		order = append(order, id)
	}
	for id := 1; id <= g.n; id++ {
		visit(id)
	}
	return order, nil
}

// Upstream returns every step id depends on, directly or transitively.
func (g *Graph) Upstream(id int) []int {
	seen := make(map[int]bool)
	var mark func(n int)
	mark = func(n int) {
		for _, p := range g.parents[n] {
			if !seen[p] {
				seen[p] = true
				mark(p)
			}
		}
	}
	mark(id)

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Reachable returns id and every step it depends on, in index order.
func (g *Graph) Reachable(id int) []int {
	up := g.Upstream(id)
	if !slices.Contains(up, id) {
		up = append(up, id)
	}
	slices.Sort(up)
	return up
}

// Unreachable returns the steps that the final step does not depend on.
func (g *Graph) Unreachable() []int {
	if g.n == 0 {
		return nil
	}
	reach := g.Reachable(g.n)
	var out []int
	for id := 1; id <= g.n; id++ {
		if !slices.Contains(reach, id) {
			out = append(out, id)
		}
	}
	return out
}
