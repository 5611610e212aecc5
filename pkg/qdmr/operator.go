package qdmr

import "fmt"

// Operator is the closed set of QDMR step operators.
type Operator int

// Operators, in the order they are usually introduced by the grammar.
const (
	OpSelect Operator = iota
	OpProject
	OpFilter
	OpAggregate
	OpGroup
	OpSuperlative
	OpComparative
	OpUnion
	OpIntersection
	OpDiscard
	OpSort
	OpBoolean
	OpArithmetic
	OpComparison
)

var operatorNames = [...]string{
	OpSelect:       "select",
	OpProject:      "project",
	OpFilter:       "filter",
	OpAggregate:    "aggregate",
	OpGroup:        "group",
	OpSuperlative:  "superlative",
	OpComparative:  "comparative",
	OpUnion:        "union",
	OpIntersection: "intersection",
	OpDiscard:      "discard",
	OpSort:         "sort",
	OpBoolean:      "boolean",
	OpArithmetic:   "arithmetic",
	OpComparison:   "comparison",
}

// Operators returns every operator in declaration order.
func Operators() []Operator {
	ops := make([]Operator, len(operatorNames))
	for i := range operatorNames {
		ops[i] = Operator(i)
	}
	return ops
}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// ParseOperator maps an operator name back to its tag.
func ParseOperator(name string) (Operator, error) {
	for i, n := range operatorNames {
		if n == name {
			return Operator(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", name)
}

// MinArgs is the smallest argument count a well-formed step of this
// operator carries.
func (o Operator) MinArgs() int {
	switch o {
	case OpSelect:
		return 1
	case OpProject, OpFilter, OpAggregate, OpDiscard, OpSort, OpBoolean, OpUnion:
		return 2
	case OpGroup, OpSuperlative, OpComparative, OpIntersection, OpArithmetic, OpComparison:
		return 3
	default:
		return 0
	}
}

// PassThroughArg reports which argument of a step carries the set the
// step narrows. Removing such a step can splice its input into its
// dependents.
func (o Operator) PassThroughArg() (int, bool) {
	switch o {
	case OpFilter, OpComparative:
		return 0, true
	case OpSuperlative:
		return 1, true
	default:
		return 0, false
	}
}

// Aggregate function names used in aggregate, group, superlative and
// comparison steps.
const (
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
	AggSum   = "sum"
	AggAvg   = "avg"
)

// Arithmetic operation names.
const (
	ArithSum            = "sum"
	ArithDifference     = "difference"
	ArithMultiplication = "multiplication"
	ArithDivision       = "division"
)

// Boolean step sub-forms carried in the first argument.
const (
	BoolAnd   = "logical_and"
	BoolOr    = "logical_or"
	BoolExist = "if_exist"
)

// Truth literals used by comparison and logical boolean steps.
const (
	True  = "true"
	False = "false"
)

// aggregatePhrases renders aggregate function names.
var aggregatePhrases = map[string]string{
	AggMin:   "lowest",
	AggMax:   "highest",
	AggCount: "number",
	AggSum:   "sum",
	AggAvg:   "average",
}

// AggregatePhrase returns the English phrase for an aggregate function, or
// the name itself when it has none.
func AggregatePhrase(agg string) string {
	if p, ok := aggregatePhrases[agg]; ok {
		return p
	}
	return agg
}
