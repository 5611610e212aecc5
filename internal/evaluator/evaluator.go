// Package evaluator propagates per-step leaf predictions through a QDMR
// program to a final value.
//
// Evaluation is best effort. Only a few operators compute a value from
// their inputs; the rest never resolve, which is fine as long as the final
// step does not depend on them. An unresolved final step is a normal
// outcome, not an error.
package evaluator

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapqdmr/internal/coord"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// MaxPasses caps the fixed-point loop.
const MaxPasses = 10

// Input is one program to evaluate.
type Input struct {
	Program *qdmr.Program
	Leaves  Leaves
	// Question and Paraphrase are searched, paraphrase first, for the
	// "A or B" structure a min/max comparison selects from.
	Question   string
	Paraphrase string
}

// Result holds the value of every step, unresolved steps as KindNone.
type Result struct {
	Values []Value
	Passes int
}

// Final returns the value of the last step.
func (r Result) Final() (Value, bool) {
	if len(r.Values) == 0 {
		return Value{}, false
	}
	v := r.Values[len(r.Values)-1]
	return v, v.Resolved()
}

// Evaluator runs the fixed-point loop. It holds only read-only state and
// is safe for concurrent use.
type Evaluator struct {
	numbers *numeric.Table
	logger  *slog.Logger
}

// New creates an evaluator. numbers parses constant operands and boolean
// thresholds such as "two".
func New(numbers *numeric.Table, logger *slog.Logger) *Evaluator {
	if numbers == nil {
		numbers = numeric.NewTable()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{numbers: numbers, logger: logger}
}

type run struct {
	in   Input
	vals []Value
}

func (r *run) value(k int) (Value, bool) {
	if k < 1 || k > len(r.vals) {
		return Value{}, false
	}
	return r.vals[k-1], r.vals[k-1].Resolved()
}

// Evaluate resolves steps in order, pass after pass, until the final step
// resolves, a pass resolves nothing new, or the pass cap is reached.
func (e *Evaluator) Evaluate(in Input) Result {
	n := in.Program.Len()
	r := &run{in: in, vals: make([]Value, n)}
	res := Result{Values: r.vals}
	limit := min(n, MaxPasses)

	for pass := 1; pass <= limit; pass++ {
		res.Passes = pass
		progress := false
		for i := 1; i <= n; i++ {
			if r.vals[i-1].Resolved() {
				continue
			}
			if v := e.step(r, i); v.Resolved() {
				r.vals[i-1] = v
				progress = true
			}
		}
		if r.vals[n-1].Resolved() || !progress {
			break
		}
	}

	final, ok := res.Final()
	e.logger.Debug("evaluated program",
		slog.Int("steps", n),
		slog.Int("passes", res.Passes),
		slog.Bool("resolved", ok),
		slog.String("answer", final.String()))
	return res
}

func (e *Evaluator) step(r *run, i int) Value {
	s := r.in.Program.Step(i)
	switch s.Op {
	case qdmr.OpSelect:
		return r.in.Leaves.At(i).Value()
	}
	if percent, ok := countLike(s); ok {
		return e.count(r, i, s, percent)
	}

	for _, k := range s.References() {
		if _, ok := r.value(k); !ok {
			return Value{}
		}
	}
	switch s.Op {
	case qdmr.OpArithmetic:
		return e.arithmetic(r, s)
	case qdmr.OpComparison:
		return e.comparison(r, s)
	case qdmr.OpBoolean:
		return e.boolean(r, s)
	case qdmr.OpUnion:
		spans := make([]string, 0, len(s.Args))
		for _, k := range s.RefArgs() {
			v, _ := r.value(k)
			spans = append(spans, v.String())
		}
		return List(spans...)
	}
	return Value{}
}

// countLike matches "count" aggregates and "number/amount/percentage of"
// projections.
func countLike(s *qdmr.Step) (percent, ok bool) {
	switch s.Op {
	case qdmr.OpAggregate:
		return false, s.Arg(0) == qdmr.AggCount
	case qdmr.OpProject:
		phrase := strings.ToLower(s.Arg(0))
		if phrase == "percentage of #ref" {
			return true, true
		}
		return false, strings.Contains(phrase, "number of #ref") || strings.Contains(phrase, "amount of #ref")
	}
	return false, false
}

// count takes the step's own prediction, else the prediction for the
// step it counts, without waiting for references to resolve.
func (e *Evaluator) count(r *run, i int, s *qdmr.Step, percent bool) Value {
	accept := func(l Leaf) (Value, bool) {
		v := l.Value()
		switch {
		case percent && v.Kind.Numeric():
			return Float(v.Num), true
		case !percent && v.Kind == KindInt:
			return Int(int64(v.Num)), true
		}
		return Value{}, false
	}
	if v, ok := accept(r.in.Leaves.At(i)); ok {
		return v
	}
	if refs := s.RefArgs(); len(refs) == 1 {
		if v, ok := accept(r.in.Leaves.At(refs[0])); ok {
			return v
		}
	}
	return Value{}
}

func (e *Evaluator) arithmetic(r *run, s *qdmr.Step) Value {
	operands := s.Args[min(1, len(s.Args)):]
	if len(operands) < 2 {
		return Value{}
	}
	nums := make([]float64, 0, len(operands))
	integral := true
	for _, arg := range operands {
		var v Value
		if k, ok := qdmr.RefIndex(arg); ok {
			v, _ = r.value(k)
		} else if f, err := e.numbers.Parse(arg); err == nil {
			v = Float(f)
			if f == math.Trunc(f) {
				v.Kind = KindInt
			}
		}
		if !v.Kind.Numeric() {
			return Value{}
		}
		integral = integral && v.Kind == KindInt
		nums = append(nums, v.Num)
	}
	// All-equal operands come from a QA error rather than the passage.
	if !slices.ContainsFunc(nums, func(f float64) bool { return f != nums[0] }) {
		return Value{}
	}

	var out float64
	switch s.Arg(0) {
	case qdmr.ArithDifference:
		var rest float64
		for _, f := range nums[1:] {
			rest += f
		}
		out = math.Abs(nums[0] - rest)
	case qdmr.ArithSum:
		for _, f := range nums {
			out += f
		}
	case qdmr.ArithMultiplication:
		out = 1
		for _, f := range nums {
			out *= f
		}
	default:
		return Value{}
	}
	if integral {
		return Int(int64(out))
	}
	return Float(out)
}

// comparison resolves a min/max over two references to the entity the
// question names for the winning side, not to the extreme value.
func (e *Evaluator) comparison(r *run, s *qdmr.Step) Value {
	op := s.Arg(0)
	refs := s.RefArgs()
	if (op != qdmr.AggMin && op != qdmr.AggMax) || len(refs) != 2 {
		return Value{}
	}
	a, _ := r.value(refs[0])
	b, _ := r.value(refs[1])
	c, err := Compare(a, b)
	if err != nil || c == 0 {
		return Value{}
	}
	side := 0
	if (op == qdmr.AggMin) == (c > 0) {
		side = 1
	}

	for _, q := range []string{r.in.Paraphrase, r.in.Question} {
		if q == "" {
			continue
		}
		if st, ok := coord.Parse(q); ok {
			span, _ := st.Candidate(side)
			return Text(span)
		}
	}
	return Value{}
}

type threshold struct {
	prefix string
	op     string
}

var thresholds = []threshold{
	{"is higher than ", "higher"},
	{"is lower than ", "lower"},
	{"is the same as ", "same"},
	{"is equal to ", "same"},
}

func (e *Evaluator) boolean(r *run, s *qdmr.Step) Value {
	ref, ok := qdmr.RefIndex(s.Arg(0))
	if !ok {
		return Value{}
	}
	cond := strings.ToLower(s.Arg(1))
	var t threshold
	for _, cand := range thresholds {
		if strings.HasPrefix(cond, cand.prefix) {
			t = cand
			break
		}
	}
	if t.op == "" {
		return Value{}
	}
	literal := strings.TrimSpace(cond[len(t.prefix):])

	left, _ := r.value(ref)
	var right Value
	k, isRef := qdmr.RefIndex(literal)
	if isRef {
		right, _ = r.value(k)
		if left.Equal(right) {
			return Value{}
		}
	} else if right = Clean(literal); !right.Kind.Numeric() {
		if f, err := e.numbers.Parse(literal); err == nil {
			right = Float(f)
		}
	}

	c, err := Compare(left, right)
	if err != nil {
		return Value{}
	}
	var yes bool
	switch t.op {
	case "higher":
		yes = c > 0
	case "lower":
		yes = c < 0
	default:
		yes = c == 0
	}

	// Ages are usually answered with birth years, which order the other way.
	if t.op != "same" {
		text := strings.ToLower(r.in.Program.Step(ref).Text)
		if strings.Contains(text, "how young") || strings.Contains(text, "how old") {
			yes = !yes
		}
	}
	if yes {
		return Text("yes")
	}
	return Text("no")
}
