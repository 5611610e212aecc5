package answer

import (
	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Constraint tags.
const (
	AtLeast = ">="
	AtMost  = "<="
)

type opChange struct{ from, to string }

// Quantities are assumed non-negative.
var (
	aggregateBounds = map[opChange]string{
		{qdmr.AggMin, qdmr.AggMax}: AtLeast,
		{qdmr.AggMax, qdmr.AggMin}: AtMost,
		{qdmr.AggSum, qdmr.AggMin}: AtMost,
		{qdmr.AggSum, qdmr.AggMax}: AtMost,
		{qdmr.AggAvg, qdmr.AggMin}: AtMost,
		{qdmr.AggAvg, qdmr.AggMax}: AtLeast,
	}
	arithmeticBounds = map[opChange]string{
		{qdmr.ArithSum, qdmr.ArithDifference}: AtMost,
		{qdmr.ArithDifference, qdmr.ArithSum}: AtLeast,
	}
)

// Constraint returns the bound relating the new answer to the original
// one, for changes to the final step of an n-step program where an exact
// value is not derivable but an inequality is. A change of the final step
// to a boolean or arithmetic step is tagged with the new operator.
func Constraint(d transform.Descriptor, n int) (string, bool) {
	if !d.TargetsFinal(n) {
		return "", false
	}
	var tag string
	switch d.Family {
	case transform.OpReplaceAggregate:
		tag = aggregateBounds[opChange{d.Orig, d.New}]
	case transform.OpReplaceArithmetic:
		tag = arithmeticBounds[opChange{d.Orig, d.New}]
	case transform.ChangeLastStep:
		if d.New == qdmr.OpBoolean.String() || d.New == qdmr.OpArithmetic.String() {
			tag = d.New
		}
	}
	return tag, tag != ""
}
