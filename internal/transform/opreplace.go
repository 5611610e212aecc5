package transform

import (
	"math/rand/v2"
	"slices"

	"github.com/leapstack-labs/leapqdmr/internal/question"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

var (
	aggregateSources = []string{qdmr.AggMin, qdmr.AggMax, qdmr.AggSum, qdmr.AggAvg}
	aggregateTargets = []string{qdmr.AggMin, qdmr.AggMax, qdmr.AggCount}
	arithmeticOps    = []string{qdmr.ArithSum, qdmr.ArithDifference, qdmr.ArithMultiplication, qdmr.ArithDivision}
	extremumOps      = []string{qdmr.AggMin, qdmr.AggMax}
	truthOps         = []string{qdmr.True, qdmr.False}
	logicalOps       = []string{qdmr.BoolAnd, qdmr.BoolOr}
)

// OpReplace swaps the operator, function or comparator of the final step
// for each alternative of the same kind.
type OpReplace struct{}

func (OpReplace) Name() string { return "op_replace" }

func (r OpReplace) Mutate(ex Example, _ *rand.Rand) ([]Candidate, error) {
	p := ex.Program
	n := p.Len()
	final := p.Final()
	if final == nil {
		return nil, nil
	}
	fam := opReplaceFamilies[final.Op]

	// replace builds a candidate whose final step has args[at] = value.
	replace := func(at int, orig, value, paraphrase string) Candidate {
		args := slices.Clone(final.Args)
		args[at] = value
		d := Descriptor{Family: fam, Step: n, Orig: orig, New: value}
		return newCandidate(ex, p.Replace(n, final.WithArgs(args...)), d, paraphrase)
	}

	var out []Candidate
	orig := final.Arg(0)
	switch final.Op {
	case qdmr.OpAggregate:
		if slices.Contains(aggregateSources, orig) {
			for _, op := range others(aggregateTargets, orig) {
				out = append(out, replace(0, orig, op, ""))
			}
		}

	case qdmr.OpArithmetic:
		for _, op := range others(arithmeticOps, orig) {
			c := replace(0, orig, op, "")
			out = append(out, c)
			if orig == qdmr.ArithSum && op == qdmr.ArithDifference && reflectable(p) {
				v := c
				v.Program = c.Program.Swap(1, 2)
				v.Descriptor.Variant = true
				v.ID = ex.ID + familySep + v.Descriptor.String()
				out = append(out, v)
			}
		}

	case qdmr.OpComparison:
		var ops []string
		switch {
		case slices.Contains(extremumOps, orig):
			ops = extremumOps
		case slices.Contains(truthOps, orig):
			ops = truthOps
		}
		flipped, _ := question.FlipComparison(ex.Question)
		for _, op := range others(ops, orig) {
			out = append(out, replace(0, orig, op, flipped))
		}

	case qdmr.OpSuperlative:
		if slices.Contains(extremumOps, orig) {
			flipped, _ := question.FlipComparison(ex.Question)
			for _, op := range others(extremumOps, orig) {
				out = append(out, replace(0, orig, op, flipped))
			}
		}

	case qdmr.OpComparative:
		cond := final.Arg(2)
		comp, value, ok := qdmr.ExtractComparator(cond)
		if !ok || value == "" {
			break
		}
		for _, alt := range comp.Alternatives(value) {
			args := slices.Clone(final.Args)
			args[2] = qdmr.ComparatorCondition(alt, value, cond)
			d := Descriptor{Family: fam, Step: n, Orig: string(comp), New: string(alt)}
			out = append(out, newCandidate(ex, p.Replace(n, final.WithArgs(args...)), d, ""))
		}

	case qdmr.OpBoolean:
		if !slices.Contains(logicalOps, orig) {
			break
		}
		for _, op := range others(logicalOps, orig) {
			out = append(out, replace(0, orig, op, ""))
		}
		for _, lit := range others(truthOps, final.Arg(1)) {
			args := slices.Clone(final.Args)
			args[1] = lit
			var paraphrase string
			if lit == qdmr.False {
				paraphrase, _ = question.DoubleNegation(ex.Question)
			}
			d := Descriptor{Family: fam, Step: n, Orig: orig, New: lit}
			out = append(out, newCandidate(ex, p.Replace(n, final.WithArgs(args...)), d, paraphrase))
		}
	}
	return out, nil
}

// reflectable reports whether a program starts with two selects that can
// be swapped to reverse a difference.
func reflectable(p *qdmr.Program) bool {
	n := p.Len()
	return (n == 3 || n == 5) &&
		p.Step(1).Op == qdmr.OpSelect && p.Step(2).Op == qdmr.OpSelect
}

func others(set []string, orig string) []string {
	return slices.DeleteFunc(slices.Clone(set), func(s string) bool { return s == orig })
}
