package qdmr

import (
	"fmt"
	"slices"
	"strings"
)

// RefPlaceholder marks where a project step's reference goes inside its
// phrase argument.
const RefPlaceholder = "#REF"

// Step is one clause of a decomposition. Steps are shared between programs
// and must not be modified after construction.
type Step struct {
	Op   Operator
	Args []string
	Text string
}

// NewStep builds a step and renders its text from the arguments.
func NewStep(op Operator, args ...string) *Step {
	args = slices.Clone(args)
	return &Step{Op: op, Args: args, Text: Render(op, args)}
}

// Arg returns argument i, or "" when the step has fewer arguments.
func (s *Step) Arg(i int) string {
	if i < 0 || i >= len(s.Args) {
		return ""
	}
	return s.Args[i]
}

// References returns the steps this step depends on.
func (s *Step) References() []int {
	return References(s.Text)
}

// RefArgs returns the indices of arguments that are bare references, in
// argument order.
func (s *Step) RefArgs() []int {
	var refs []int
	for _, a := range s.Args {
		if k, ok := RefIndex(a); ok {
			refs = append(refs, k)
		}
	}
	return refs
}

// WithArgs returns a copy of the step with new arguments and re-rendered
// text.
func (s *Step) WithArgs(args ...string) *Step {
	return NewStep(s.Op, args...)
}

func (s *Step) String() string {
	return fmt.Sprintf("%s%q", s.Op, s.Args)
}

// Render produces the canonical text of a step.
func Render(op Operator, args []string) string {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	var text string
	switch op {
	case OpSelect:
		text = arg(0)
	case OpProject:
		text = strings.ReplaceAll(arg(0), RefPlaceholder, arg(1))
	case OpFilter:
		text = arg(0) + " " + arg(1)
	case OpAggregate:
		text = AggregatePhrase(arg(0)) + " of " + arg(1)
	case OpGroup:
		text = AggregatePhrase(arg(0)) + " of " + arg(1) + " for each " + arg(2)
	case OpSuperlative:
		text = arg(1) + " where " + arg(2) + " is " + AggregatePhrase(arg(0))
	case OpComparative:
		text = arg(0) + " where " + arg(1) + " " + arg(2)
	case OpUnion:
		text = strings.Join(args, " , ")
	case OpIntersection:
		text = arg(0) + " in both " + arg(1) + " and " + arg(2)
	case OpDiscard:
		text = arg(0) + " besides " + arg(1)
	case OpSort:
		text = arg(0) + " sorted by " + arg(1)
	case OpBoolean:
		text = renderBoolean(args)
	case OpArithmetic:
		text = "the " + arg(0) + " of " + strings.Join(args[min(1, len(args)):], " and ")
	case OpComparison:
		phrase := arg(0)
		if phrase == AggMin || phrase == AggMax {
			phrase = AggregatePhrase(phrase)
		}
		text = "which is " + phrase + " of " + strings.Join(args[min(1, len(args)):], " , ")
	}
	return strings.Join(strings.Fields(text), " ")
}

func renderBoolean(args []string) string {
	if len(args) == 0 {
		return ""
	}
	switch args[0] {
	case BoolAnd, BoolOr:
		if len(args) < 3 {
			return ""
		}
		if args[0] == BoolAnd {
			return "if both " + strings.Join(args[2:], " and ") + " are " + args[1]
		}
		return "if either " + strings.Join(args[2:], " or ") + " are " + args[1]
	case BoolExist:
		if len(args) < 3 {
			return ""
		}
		return "if any " + args[1] + " " + args[2]
	}
	if len(args) < 2 {
		return ""
	}
	if strings.Contains(args[1], RefPlaceholder) {
		return strings.ReplaceAll(args[1], RefPlaceholder, args[0])
	}
	return "if " + args[0] + " " + args[1]
}

var copulas = []string{"is", "are", "was", "were"}

func hasCopula(s string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return slices.Contains(copulas, strings.ToLower(first))
}
