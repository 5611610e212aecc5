package dag

import (
	"slices"
	"testing"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

func TestFromProgram(t *testing.T) {
	p := qdmr.MustParse("return objects ;return #1 that are green ;return #1 that are cylinders ;return number of #2 ;return number of #3 ;return which is lowest of #4 , #5")

	g, err := FromProgram(p)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}
	if g.EdgeCount() != 6 {
		t.Errorf("expected 6 edges, got %d", g.EdgeCount())
	}
	if got := g.Parents(6); !slices.Equal(got, []int{4, 5}) {
		t.Errorf("Parents(6) = %v", got)
	}
	if got := g.Children(1); !slices.Equal(got, []int{2, 3}) {
		t.Errorf("Children(1) = %v", got)
	}
}

func TestFromProgram_MissingStep(t *testing.T) {
	p := qdmr.MustParse("return objects ;return number of #7")
	if _, err := FromProgram(p); err == nil {
		t.Error("expected error for reference to missing step")
	}
}

func TestAddEdge_OutOfRange(t *testing.T) {
	g := NewGraph(2)
	if err := g.AddEdge(0, 2); err == nil {
		t.Error("expected error for step #0")
	}
	if err := g.AddEdge(1, 3); err == nil {
		t.Error("expected error for missing child step")
	}
}

func TestSelfReference(t *testing.T) {
	p := qdmr.MustParse("return objects ;return #2 that are green")
	g, err := FromProgram(p)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}
	if got := g.ForwardReferences(); len(got) != 1 || got[0] != [2]int{2, 2} {
		t.Errorf("ForwardReferences() = %v", got)
	}
	hasCycle, path := g.HasCycle()
	if !hasCycle || !slices.Equal(path, []int{2, 2}) {
		t.Errorf("HasCycle() = %v, %v", hasCycle, path)
	}
}

func TestForwardReferences(t *testing.T) {
	g := NewGraph(3)
	_ = g.AddEdge(1, 2)
	_ = g.AddEdge(3, 2)

	got := g.ForwardReferences()
	if len(got) != 1 || got[0] != [2]int{2, 3} {
		t.Errorf("ForwardReferences() = %v", got)
	}
}

func TestHasCycle(t *testing.T) {
	g := NewGraph(3)
	_ = g.AddEdge(1, 2)
	_ = g.AddEdge(2, 3)
	if hasCycle, _ := g.HasCycle(); hasCycle {
		t.Fatal("unexpected cycle")
	}

	_ = g.AddEdge(3, 1)
	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle")
	}
	if len(path) < 3 {
		t.Errorf("cycle path too short: %v", path)
	}
	if _, err := g.TopologicalSort(); err == nil {
		t.Error("expected TopologicalSort to fail on a cycle")
	}
}

func TestTopologicalSort(t *testing.T) {
	g := NewGraph(4)
	_ = g.AddEdge(3, 4)
	_ = g.AddEdge(1, 3)
	_ = g.AddEdge(2, 3)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	pos := make(map[int]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos[1] > pos[3] || pos[2] > pos[3] || pos[3] > pos[4] {
		t.Errorf("bad order %v", order)
	}
}

func TestReachable(t *testing.T) {
	p := qdmr.MustParse("return players ;return teams ;return #1 that scored ;return number of #3")
	g, err := FromProgram(p)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	if got := g.Reachable(4); !slices.Equal(got, []int{1, 3, 4}) {
		t.Errorf("Reachable(4) = %v", got)
	}
	if got := g.Upstream(4); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("Upstream(4) = %v", got)
	}
	if got := g.Unreachable(); !slices.Equal(got, []int{2}) {
		t.Errorf("Unreachable() = %v", got)
	}
}
