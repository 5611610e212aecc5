package transform

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

var thresholdComparisons = []string{"higher than", "lower than", "the same as"}

type replacement struct {
	subtype string
	step    *qdmr.Step
}

// ChangeLast replaces a two-reference arithmetic or min/max comparison
// final step with other combinators over the same two references.
type ChangeLast struct{}

func (ChangeLast) Name() string { return "change_last_step" }

func (ChangeLast) Mutate(ex Example, _ *rand.Rand) ([]Candidate, error) {
	p := ex.Program
	n := p.Len()
	final := p.Final()
	if final == nil {
		return nil, nil
	}
	switch {
	case final.Op == qdmr.OpArithmetic:
	case final.Op == qdmr.OpComparison && slices.Contains(extremumOps, final.Arg(0)):
	default:
		return nil, nil
	}
	refs := final.RefArgs()
	if len(refs) != 2 {
		return nil, nil
	}
	a, b := qdmr.Ref(refs[0]), qdmr.Ref(refs[1])

	repls := []replacement{{"union", qdmr.NewStep(qdmr.OpUnion, a, b)}}
	if final.Op == qdmr.OpArithmetic {
		for _, cmp := range thresholdComparisons {
			repls = append(repls, replacement{cmp, qdmr.NewStep(qdmr.OpBoolean, a, "is "+cmp+" "+b)})
		}
		for _, op := range []string{qdmr.AggMax, qdmr.AggMin} {
			repls = append(repls, replacement{op, qdmr.NewStep(qdmr.OpComparison, op, a, b)})
		}
	} else {
		for _, op := range arithmeticOps {
			repls = append(repls, replacement{op, qdmr.NewStep(qdmr.OpArithmetic, op, a, b)})
		}
	}

	out := make([]Candidate, 0, len(repls))
	for _, r := range repls {
		d := Descriptor{
			Family:  ChangeLastStep,
			Step:    n,
			Orig:    final.Op.String(),
			New:     r.step.Op.String(),
			Literal: strings.ReplaceAll(r.subtype, " ", "_"),
		}
		out = append(out, newCandidate(ex, p.Replace(n, r.step), d, ""))
	}
	return out, nil
}
