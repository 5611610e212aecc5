package filter

import (
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Signature tokens for arithmetic operands.
const (
	sigRef   = "#"
	sigConst = "const"
)

// StepSignature encodes a step as its operator plus the argument that
// selects its behaviour, with operands anonymized.
//
//	aggregate_count, comparative_>=, boolean_logical_and, arithmetic_sum_#_const
func StepSignature(s *qdmr.Step) string {
	var parts []string
	switch s.Op {
	case qdmr.OpAggregate, qdmr.OpComparison, qdmr.OpSuperlative:
		parts = []string{s.Arg(0)}
	case qdmr.OpComparative:
		if comp, _, ok := qdmr.ExtractComparator(s.Arg(2)); ok {
			parts = []string{string(comp)}
		}
	case qdmr.OpBoolean:
		if a := s.Arg(0); a == qdmr.BoolAnd || a == qdmr.BoolOr {
			parts = []string{a}
		}
	case qdmr.OpArithmetic:
		parts = []string{s.Arg(0)}
		for _, operand := range s.Args[1:] {
			if strings.HasPrefix(operand, "#") {
				parts = append(parts, sigRef)
			} else {
				parts = append(parts, sigConst)
			}
		}
	}
	if len(parts) == 0 {
		return s.Op.String()
	}
	return s.Op.String() + "_" + strings.Join(parts, "_")
}

// ProgramSignature returns the signature of every step in order.
func ProgramSignature(p *qdmr.Program) []string {
	sig := make([]string, 0, p.Len())
	for _, s := range p.Steps() {
		sig = append(sig, StepSignature(s))
	}
	return sig
}

// Corpus holds the signatures of un-transformed programs. It is read-only
// once built and safe to share between workers.
type Corpus struct {
	programs map[string]struct{}
	counts   map[string]int
	examples int
}

// Snapshot is the persisted form of a Corpus.
type Snapshot struct {
	// Programs are space-joined program signatures.
	Programs []string
	// Counts is the number of examples each step signature occurs in.
	Counts   map[string]int
	Examples int
}

// FromSnapshot rebuilds a corpus.
func FromSnapshot(s Snapshot) *Corpus {
	c := &Corpus{
		programs: make(map[string]struct{}, len(s.Programs)),
		counts:   maps.Clone(s.Counts),
		examples: s.Examples,
	}
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	for _, p := range s.Programs {
		c.programs[p] = struct{}{}
	}
	return c
}

// Snapshot returns the corpus contents with programs sorted.
func (c *Corpus) Snapshot() Snapshot {
	return Snapshot{
		Programs: slices.Sorted(maps.Keys(c.programs)),
		Counts:   maps.Clone(c.counts),
		Examples: c.examples,
	}
}

// ContainsProgram reports whether the exact signature sequence occurs.
func (c *Corpus) ContainsProgram(sig []string) bool {
	_, ok := c.programs[strings.Join(sig, " ")]
	return ok
}

// ContainsStep reports whether a step signature occurs at all.
func (c *Corpus) ContainsStep(sig string) bool {
	return c.counts[sig] > 0
}

// Percent returns the percentage of examples containing the signature.
func (c *Corpus) Percent(sig string) float64 {
	if c.examples == 0 {
		return 0
	}
	return float64(c.counts[sig]) * 100 / float64(c.examples)
}

// Examples returns the number of programs the corpus was built from.
func (c *Corpus) Examples() int { return c.examples }

// ProgramCount returns the number of distinct program signatures.
func (c *Corpus) ProgramCount() int { return len(c.programs) }

// Builder accumulates a Corpus.
type Builder struct {
	c *Corpus
}

// NewBuilder returns an empty corpus builder.
func NewBuilder() *Builder {
	return &Builder{c: &Corpus{programs: map[string]struct{}{}, counts: map[string]int{}}}
}

// Add records one program. Each step signature counts once per program.
func (b *Builder) Add(p *qdmr.Program) {
	sig := ProgramSignature(p)
	b.c.programs[strings.Join(sig, " ")] = struct{}{}
	seen := make(map[string]bool, len(sig))
	for _, s := range sig {
		if !seen[s] {
			seen[s] = true
			b.c.counts[s]++
		}
	}
	b.c.examples++
}

// Build returns the corpus. The builder must not be used afterwards.
func (b *Builder) Build() *Corpus {
	c := b.c
	b.c = nil
	return c
}
