package editor

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapqdmr/internal/dag"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// ErrStructuralInvalidity is wrapped by every StructuralError.
var ErrStructuralInvalidity = errors.New("structurally invalid program")

// StructuralError reports a forward or dangling reference, or a step the
// final step does not use.
type StructuralError struct {
	Step   int
	Ref    int
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Ref > 0 {
		return fmt.Sprintf("%v: step %d references #%d: %s", ErrStructuralInvalidity, e.Step, e.Ref, e.Reason)
	}
	return fmt.Sprintf("%v: step %d: %s", ErrStructuralInvalidity, e.Step, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrStructuralInvalidity
}

// CheckReferences verifies that every reference points to an earlier step.
func CheckReferences(p *qdmr.Program) error {
	for i := 1; i <= p.Len(); i++ {
		for _, k := range p.Step(i).References() {
			if k < 1 || k > p.Len() {
				return &StructuralError{Step: i, Ref: k, Reason: "reference to missing step"}
			}
		}
	}
	g, err := dag.FromProgram(p)
	if err != nil {
		return &StructuralError{Step: p.Len(), Reason: err.Error()}
	}
	if fwd := g.ForwardReferences(); len(fwd) > 0 {
		return &StructuralError{Step: fwd[0][0], Ref: fwd[0][1], Reason: "reference must point to an earlier step"}
	}
	return nil
}

// Validate checks that p is non-empty, references only earlier steps and
// has no step the final step does not depend on.
func Validate(p *qdmr.Program) error {
	if p.Len() == 0 {
		return &StructuralError{Reason: "empty program"}
	}
	if err := CheckReferences(p); err != nil {
		return err
	}
	g, err := dag.FromProgram(p)
	if err != nil {
		return &StructuralError{Step: p.Len(), Reason: err.Error()}
	}
	if dead := g.Unreachable(); len(dead) > 0 {
		return &StructuralError{Step: dead[0], Reason: "step is not used by the final step"}
	}
	return nil
}
