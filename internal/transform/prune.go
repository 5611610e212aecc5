package transform

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/leapstack-labs/leapqdmr/internal/editor"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

var (
	truncatableOps = []qdmr.Operator{
		qdmr.OpFilter, qdmr.OpProject, qdmr.OpAggregate,
		qdmr.OpSuperlative, qdmr.OpComparative, qdmr.OpSort,
	}
	excisableOps = []qdmr.Operator{qdmr.OpFilter, qdmr.OpSuperlative, qdmr.OpComparative}
)

// PruneLast drops the final step. Steps that only narrow or describe their
// input are truncated; other final steps are removed with the editor and
// the steps left unused are pruned.
type PruneLast struct{}

func (PruneLast) Name() string { return "prune_last" }

func (PruneLast) Mutate(ex Example, _ *rand.Rand) ([]Candidate, error) {
	p := ex.Program
	n := p.Len()
	if n < 2 {
		return nil, nil
	}
	final := p.Final()
	if slices.Contains(truncatableOps, final.Op) {
		d := Descriptor{Family: PruneLastStep, Orig: final.Op.String()}
		return []Candidate{newCandidate(ex, p.Truncate(n-1), d, "")}, nil
	}

	pruned, err := editor.RemoveAndPrune(p, n)
	if err != nil {
		return nil, fmt.Errorf("remove final step: %w", err)
	}
	d := Descriptor{Family: PruneLastStepUnused, Orig: final.Op.String()}
	return []Candidate{newCandidate(ex, pruned, d, "")}, nil
}

// PruneSteps excises each filter, superlative and comparative step.
type PruneSteps struct{}

func (PruneSteps) Name() string { return "prune_step" }

func (PruneSteps) Mutate(ex Example, _ *rand.Rand) ([]Candidate, error) {
	p := ex.Program
	var out []Candidate
	var errs []error
	for i := 1; i <= p.Len(); i++ {
		if !slices.Contains(excisableOps, p.Step(i).Op) {
			continue
		}
		pruned, err := editor.RemoveAndPrune(p, i)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove step %d: %w", i, err))
			continue
		}
		out = append(out, newCandidate(ex, pruned, Descriptor{Family: PruneStep, Step: i}, ""))
	}
	return out, errors.Join(errs...)
}
