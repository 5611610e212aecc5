package qdmr

import (
	"slices"
	"strings"
)

// Program is a 1-indexed sequence of steps. The zero value is an empty
// program. Programs are never modified in place; every edit returns a new
// Program sharing the unchanged steps.
type Program struct {
	steps []*Step
}

// NewProgram builds a program from steps.
func NewProgram(steps ...*Step) *Program {
	return &Program{steps: slices.Clone(steps)}
}

// Len returns the number of steps.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.steps)
}

// Step returns step i (1-based), or nil when i is out of range.
func (p *Program) Step(i int) *Step {
	if i < 1 || i > p.Len() {
		return nil
	}
	return p.steps[i-1]
}

// Final returns the last step.
func (p *Program) Final() *Step {
	return p.Step(p.Len())
}

// Steps returns the step slice. The slice is a copy; the steps are shared.
func (p *Program) Steps() []*Step {
	if p == nil {
		return nil
	}
	return slices.Clone(p.steps)
}

// Texts returns the rendered text of every step.
func (p *Program) Texts() []string {
	texts := make([]string, p.Len())
	for i := range texts {
		texts[i] = p.steps[i].Text
	}
	return texts
}

// Replace returns a program with step i (1-based) replaced.
func (p *Program) Replace(i int, s *Step) *Program {
	steps := slices.Clone(p.steps)
	steps[i-1] = s
	return &Program{steps: steps}
}

// Append returns a program with s added as the new final step.
func (p *Program) Append(s *Step) *Program {
	steps := make([]*Step, 0, p.Len()+1)
	steps = append(steps, p.steps...)
	return &Program{steps: append(steps, s)}
}

// Truncate returns the first n steps.
func (p *Program) Truncate(n int) *Program {
	return &Program{steps: slices.Clone(p.steps[:n])}
}

// Swap returns a program with steps i and j (1-based) exchanged. References
// are not rewritten.
func (p *Program) Swap(i, j int) *Program {
	steps := slices.Clone(p.steps)
	steps[i-1], steps[j-1] = steps[j-1], steps[i-1]
	return &Program{steps: steps}
}

// Equal reports whether two programs have the same operators, arguments
// and text.
func (p *Program) Equal(o *Program) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i, s := range p.steps {
		t := o.steps[i]
		if s.Op != t.Op || s.Text != t.Text || !slices.Equal(s.Args, t.Args) {
			return false
		}
	}
	return true
}

// String encodes the program in decomposition form, e.g.
// "return objects ;return number of #1".
func (p *Program) String() string {
	var b strings.Builder
	for i, s := range p.steps {
		if i > 0 {
			b.WriteString(" " + clauseSep)
		}
		b.WriteString(returnMarker + " " + s.Text)
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p *Program) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Program) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}
