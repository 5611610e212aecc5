// Package editor performs structural edits on QDMR programs.
//
// Every operation returns a new program and leaves its input untouched.
// Steps whose references are not affected by an edit are shared with the
// input; rewritten steps are re-classified from their new text.
package editor

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapqdmr/internal/dag"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Insert places s at position i (1-based), shifting later steps down.
// References to steps i..Len() in the shifted steps move up by one.
func Insert(p *qdmr.Program, i int, s *qdmr.Step) (*qdmr.Program, error) {
	n := p.Len()
	if i < 1 || i > n+1 {
		return nil, fmt.Errorf("insert position %d out of range 1..%d", i, n+1)
	}

	steps := make([]*qdmr.Step, 0, n+1)
	steps = append(steps, p.Steps()[:i-1]...)
	steps = append(steps, s)
	for j := i; j <= n; j++ {
		moved, err := rewrite(p.Step(j), func(k int) int {
			if k >= i && k <= n {
				return k + 1
			}
			return k
		})
		if err != nil {
			return nil, fmt.Errorf("insert at %d: %w", i, err)
		}
		steps = append(steps, moved)
	}
	return qdmr.NewProgram(steps...), nil
}

// Remove deletes step i (1-based). Later references to i are redirected to
// the step i narrows when i is a filter, comparative or superlative over a
// reference, and to step i-1 otherwise. References past i move down by one.
func Remove(p *qdmr.Program, i int) (*qdmr.Program, error) {
	n := p.Len()
	if i < 1 || i > n {
		return nil, fmt.Errorf("remove position %d out of range 1..%d", i, n)
	}

	target := RedirectTarget(p.Step(i), i)
	steps := make([]*qdmr.Step, 0, n-1)
	steps = append(steps, p.Steps()[:i-1]...)
	for j := i + 1; j <= n; j++ {
		if target < 1 && slices.Contains(p.Step(j).References(), i) {
			return nil, &StructuralError{Step: j - 1, Ref: i, Reason: "reference to removed first step"}
		}
		moved, err := rewrite(p.Step(j), func(k int) int {
			switch {
			case k == i:
				return target
			case k > i:
				return k - 1
			default:
				return k
			}
		})
		if err != nil {
			return nil, fmt.Errorf("remove %d: %w", i, err)
		}
		steps = append(steps, moved)
	}
	return qdmr.NewProgram(steps...), nil
}

// RedirectTarget returns the step that references to the removed step
// i should point at afterwards.
func RedirectTarget(removed *qdmr.Step, i int) int {
	if arg, ok := removed.Op.PassThroughArg(); ok {
		if k, ok := qdmr.RefIndex(removed.Arg(arg)); ok && k < i {
			return k
		}
	}
	return i - 1
}

// PruneUnused deletes every step the final step does not depend on,
// highest index first.
func PruneUnused(p *qdmr.Program) (*qdmr.Program, error) {
	g, err := dag.FromProgram(p)
	if err != nil {
		return nil, &StructuralError{Step: p.Len(), Reason: err.Error()}
	}
	dead := g.Unreachable()
	for _, i := range slices.Backward(dead) {
		if p, err = Remove(p, i); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RemoveAndPrune removes step i and then every step left unused.
func RemoveAndPrune(p *qdmr.Program, i int) (*qdmr.Program, error) {
	out, err := Remove(p, i)
	if err != nil {
		return nil, err
	}
	return PruneUnused(out)
}

func rewrite(s *qdmr.Step, fn func(int) int) (*qdmr.Step, error) {
	changed := false
	for _, k := range s.References() {
		if fn(k) != k {
			changed = true
			break
		}
	}
	if !changed {
		return s, nil
	}
	return qdmr.Classify(qdmr.RewriteRefs(s.Text, fn))
}
