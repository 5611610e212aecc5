// Package answer derives the answer of a transformed program from the
// original answer, the descriptor of the change, and per-step leaf
// predictions.
//
// Each transformation family has a short list of closed-form rules tried
// in order. When every rule declines, or its answer fails validation, the
// evaluator runs on the leaf predictions instead.
package answer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapqdmr/internal/coord"
	"github.com/leapstack-labs/leapqdmr/internal/evaluator"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// SourceEvaluator names answers computed by the evaluator.
const SourceEvaluator = "evaluator"

var (
	// ErrNoAnswer is returned when neither the rules nor the evaluator
	// produce a valid answer.
	ErrNoAnswer = errors.New("no answer derived")
	// ErrAmbiguousDerivation reports more than one consistent operand pair.
	ErrAmbiguousDerivation = errors.New("ambiguous derivation")
)

// Request carries one candidate and what is known about its original.
type Request struct {
	ID         string
	Question   string
	Paraphrase string
	Original   *qdmr.Program
	Program    *qdmr.Program
	Descriptor transform.Descriptor
	// OrigAnswer is the first gold answer span of the original question.
	OrigAnswer string
	// Numbers are the numeric literals of the passage.
	Numbers []float64
	Leaves  evaluator.Leaves
}

// Result is a validated answer with the rule that produced it.
type Result struct {
	Answer     Answer
	Source     string
	Constraint string
}

type derivation struct {
	req  *Request
	diag []error
}

type rule struct {
	name   string
	derive func(d *Deriver, x *derivation) Option[Answer]
}

var (
	comparisonRules = []rule{
		{"comparison_question", func(d *Deriver, x *derivation) Option[Answer] {
			return d.opposite(x, x.req.Question)
		}},
		{"comparison_paraphrase", func(d *Deriver, x *derivation) Option[Answer] {
			return d.opposite(x, x.req.Paraphrase)
		}},
	}
	numberOfLeaf   = rule{"number_of_leaf", (*Deriver).numberOfLeaf}
	singleStepLeaf = rule{"single_step_leaf", (*Deriver).singleStepLeaf}
)

// familyRules lists each family's rules in the order they are tried.
// Families without rules go straight to the evaluator.
var familyRules = map[transform.Family][]rule{
	transform.OpReplaceArithmetic:  {{"arithmetic_pair", (*Deriver).arithmeticPair}},
	transform.OpReplaceComparison:  comparisonRules,
	transform.OpReplaceSuperlative: comparisonRules,
	transform.OpReplaceBoolean:     {{"boolean_flip", (*Deriver).booleanFlip}},
	transform.PruneLastStep:        {numberOfLeaf, {"hundred_minus", (*Deriver).hundredMinus}, singleStepLeaf},
	transform.PruneLastStepUnused:  {numberOfLeaf, singleStepLeaf},
	transform.PruneStep:            {numberOfLeaf, singleStepLeaf},
	transform.AppendBooleanStep:    {{"append_boolean", (*Deriver).appendBoolean}},
}

// Deriver holds read-only tables and is safe for concurrent use.
type Deriver struct {
	numbers *numeric.Table
	eval    *evaluator.Evaluator
	logger  *slog.Logger
}

// NewDeriver creates a deriver. A nil evaluator gets one built on numbers.
func NewDeriver(numbers *numeric.Table, eval *evaluator.Evaluator, logger *slog.Logger) *Deriver {
	if numbers == nil {
		numbers = numeric.NewTable()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if eval == nil {
		eval = evaluator.New(numbers, logger)
	}
	return &Deriver{numbers: numbers, eval: eval, logger: logger}
}

// Derive returns the first valid answer from the family rules or the
// evaluator. The constraint is set whenever one applies, even when no
// answer could be derived.
func (d *Deriver) Derive(req Request) (Result, error) {
	res := Result{}
	res.Constraint, _ = Constraint(req.Descriptor, req.Program.Len())
	x := &derivation{req: &req}
	final := req.Program.Final()

	for _, r := range familyRules[req.Descriptor.Family] {
		a, ok := r.derive(d, x).Get()
		if !ok {
			continue
		}
		valid, err := Validate(a, final)
		if err != nil {
			x.diag = append(x.diag, fmt.Errorf("%s: %w", r.name, err))
			// A rule answer that fails the gate goes to the evaluator.
			break
		}
		res.Answer, res.Source = valid, r.name
		return res, nil
	}

	v, ok := d.eval.Evaluate(evaluator.Input{
		Program:    req.Program,
		Leaves:     req.Leaves,
		Question:   req.Question,
		Paraphrase: req.Paraphrase,
	}).Final()
	if ok {
		valid, err := Validate(FromValue(v), final)
		if err == nil {
			res.Answer, res.Source = valid, SourceEvaluator
			return res, nil
		}
		x.diag = append(x.diag, fmt.Errorf("%s: %w", SourceEvaluator, err))
	}

	err := errors.Join(x.diag...)
	d.logger.Debug("no answer derived",
		slog.String("candidate", req.ID),
		slog.String("family", string(req.Descriptor.Family)),
		slog.Any("reasons", err))
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrNoAnswer, err)
	}
	return res, ErrNoAnswer
}

func (x *derivation) targetsFinal() bool {
	return x.req.Descriptor.TargetsFinal(x.req.Program.Len())
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

type pair struct{ lo, hi float64 }

// arithmeticPair finds the one pair of passage numbers (plus 100) that the
// original operator maps to the original answer, then applies the new
// operator to it. For a sum, the first referenced step's prediction must
// be the larger number and the second's the smaller, which keeps the
// comparison direction of the question.
func (d *Deriver) arithmeticPair(x *derivation) Option[Answer] {
	req := x.req
	if !x.targetsFinal() {
		return None[Answer]()
	}
	orig, err := d.numbers.Parse(req.OrigAnswer)
	if err != nil {
		return None[Answer]()
	}
	// Small integers are usually counts, not arithmetic over the passage.
	if orig == math.Trunc(orig) && orig < 10 {
		return None[Answer]()
	}

	var leafOrder []float64
	if refs := req.Program.Final().RefArgs(); len(refs) == 2 {
		for _, k := range refs {
			if v := req.Leaves.At(k).Value(); v.Kind.Numeric() {
				leafOrder = append(leafOrder, v.Num)
			}
		}
	}

	numbers := append(slices.Clone(req.Numbers), 100)
	var pairs []pair
	for i := range numbers {
		for j := i + 1; j < len(numbers); j++ {
			p := pair{min(numbers[i], numbers[j]), max(numbers[i], numbers[j])}
			var match bool
			switch req.Descriptor.Orig {
			case qdmr.ArithSum:
				match = nearlyEqual(p.lo+p.hi, orig) && len(leafOrder) == 2 &&
					nearlyEqual(leafOrder[0], p.hi) && nearlyEqual(leafOrder[1], p.lo)
			case qdmr.ArithDifference:
				match = nearlyEqual(p.hi-p.lo, orig)
			}
			if match && !slices.Contains(pairs, p) {
				pairs = append(pairs, p)
			}
		}
	}
	if len(pairs) != 1 {
		if len(pairs) > 1 {
			x.diag = append(x.diag, fmt.Errorf("%w: %d operand pairs give %s",
				ErrAmbiguousDerivation, len(pairs), formatNumber(orig)))
		}
		return None[Answer]()
	}

	p := pairs[0]
	var out float64
	switch req.Descriptor.New {
	case qdmr.ArithSum:
		out = p.lo + p.hi
	case qdmr.ArithDifference:
		out = p.hi - p.lo
	case qdmr.ArithMultiplication:
		out = p.lo * p.hi
	case qdmr.ArithDivision:
		if p.lo <= 0 {
			return None[Answer]()
		}
		out = p.hi / p.lo
	default:
		return None[Answer]()
	}
	return Some(ScalarAnswer(formatNumber(out)))
}

// opposite answers a flipped comparison with the side of the question's
// "A or B" that is less similar to the original answer.
func (d *Deriver) opposite(x *derivation, question string) Option[Answer] {
	if !x.targetsFinal() || question == "" || x.req.OrigAnswer == "" {
		return None[Answer]()
	}
	s, ok := coord.Parse(question)
	if !ok {
		return None[Answer]()
	}
	if other := s.Opposite(x.req.OrigAnswer); other != "" {
		return Some(ScalarAnswer(other))
	}
	return None[Answer]()
}

func (d *Deriver) booleanFlip(x *derivation) Option[Answer] {
	desc := x.req.Descriptor
	orig := x.req.OrigAnswer
	if !x.targetsFinal() || (orig != "yes" && orig != "no") {
		return None[Answer]()
	}
	flipped := "yes"
	if orig == "yes" {
		flipped = "no"
	}
	literal := desc.New == qdmr.True || desc.New == qdmr.False

	switch {
	case desc.Orig == qdmr.BoolAnd && desc.New == qdmr.BoolOr:
		return Some(ScalarAnswer(orig))
	case desc.Orig == qdmr.BoolAnd && literal && orig == "yes":
		return Some(ScalarAnswer(flipped))
	case desc.Orig == qdmr.BoolOr && literal && orig == "no":
		return Some(ScalarAnswer(flipped))
	}
	return None[Answer]()
}

var numberOfPhrases = []string{
	"the number of #1", "number of #1", "numberof #1", "the amount of #1", "amount of #1",
}

// numberOfLeaf reuses the first step's prediction when the program was cut
// down to counting it.
func (d *Deriver) numberOfLeaf(x *derivation) Option[Answer] {
	p := x.req.Program
	if p.Len() != 2 || !slices.Contains(numberOfPhrases, strings.ToLower(p.Final().Text)) {
		return None[Answer]()
	}
	leaf := x.req.Leaves.At(1)
	if !d.numbers.IsNumber(leaf.Text()) {
		return None[Answer]()
	}
	return Some(ScalarAnswer(leaf.Text()))
}

// hundredMinus handles a dropped "difference of 100 and #1", whose
// remaining program asks for the complement of the original percentage.
func (d *Deriver) hundredMinus(x *derivation) Option[Answer] {
	final := x.req.Original.Final()
	if final == nil || !strings.Contains(strings.ToLower(final.Text), "difference of 100 and #1") {
		return None[Answer]()
	}
	orig, err := d.numbers.Parse(x.req.OrigAnswer)
	if err != nil {
		return None[Answer]()
	}
	return Some(ScalarAnswer(formatNumber(100 - orig)))
}

func (d *Deriver) singleStepLeaf(x *derivation) Option[Answer] {
	leaf := x.req.Leaves.At(1)
	if x.req.Program.Len() != 1 || !leaf.Present() {
		return None[Answer]()
	}
	return Some(FromLeaf(leaf))
}

// appendBoolean compares the original numeric answer with the threshold.
func (d *Deriver) appendBoolean(x *derivation) Option[Answer] {
	orig, ok := d.numbers.Extract(x.req.OrigAnswer)
	if !ok {
		return None[Answer]()
	}
	value, ok := d.numbers.Extract(x.req.Descriptor.Literal)
	if !ok {
		return None[Answer]()
	}
	var yes bool
	switch x.req.Descriptor.New {
	case "lower":
		yes = orig < value
	case "higher":
		yes = orig > value
	case "equal":
		yes = orig == value
	default:
		return None[Answer]()
	}
	if yes {
		return Some(ScalarAnswer("yes"))
	}
	return Some(ScalarAnswer("no"))
}
