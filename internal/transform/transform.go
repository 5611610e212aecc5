// Package transform generates contrast candidates from a QDMR program.
//
// Five mutators each propose edited programs together with a Descriptor of
// the change. The Engine runs them all and collapses candidates with the
// same rendered program. Mutators never modify their input program.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Example is one original question with its decomposition.
type Example struct {
	ID       string
	Question string
	Program  *qdmr.Program
}

// Candidate is one transformed program.
type Candidate struct {
	ID         string
	SourceID   string
	Question   string
	Program    *qdmr.Program
	Descriptor Descriptor
	// Paraphrase is a rule-based rewrite of Question matching the change,
	// when one could be produced.
	Paraphrase string
}

// Mutator proposes candidates for one example. rng is only used by
// mutators that sample; it may be nil.
type Mutator interface {
	Name() string
	Mutate(ex Example, rng *rand.Rand) ([]Candidate, error)
}

func newCandidate(ex Example, p *qdmr.Program, d Descriptor, paraphrase string) Candidate {
	return Candidate{
		ID:         ex.ID + familySep + d.String(),
		SourceID:   ex.ID,
		Question:   ex.Question,
		Program:    p,
		Descriptor: d,
		Paraphrase: paraphrase,
	}
}

// Engine runs a fixed list of mutators.
type Engine struct {
	mutators []Mutator
	logger   *slog.Logger
}

// NewEngine creates an engine. With no mutators it uses DefaultMutators.
func NewEngine(logger *slog.Logger, mutators ...Mutator) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(mutators) == 0 {
		mutators = DefaultMutators(Options{AppendBooleanLimit: -1})
	}
	return &Engine{mutators: mutators, logger: logger}
}

// Options configures the default mutators.
type Options struct {
	// AppendBooleanLimit caps appended-boolean candidates per example;
	// negative means no cap.
	AppendBooleanLimit int
	Numbers            NumberSource
}

// DefaultMutators returns the five mutators in generation order.
func DefaultMutators(opts Options) []Mutator {
	return []Mutator{
		OpReplace{},
		PruneLast{},
		PruneSteps{},
		ChangeLast{},
		&AppendBoolean{Limit: opts.AppendBooleanLimit, Numbers: opts.Numbers},
	}
}

// Mutators returns the engine's mutators.
func (e *Engine) Mutators() []Mutator {
	return e.mutators
}

// Generate returns the union of every mutator's candidates, dropping
// candidates whose program renders the same as an earlier one or as the
// input. A failed attempt inside a mutator drops only that candidate; the
// failures are returned joined alongside the candidates.
func (e *Engine) Generate(ex Example, rng *rand.Rand) ([]Candidate, error) {
	seen := map[string]bool{ex.Program.String(): true}
	var out []Candidate
	var errs []error
	for _, m := range e.mutators {
		cands, err := m.Mutate(ex, rng)
		if err != nil {
			e.logger.Debug("transformation attempt failed",
				slog.String("example", ex.ID),
				slog.String("mutator", m.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
		for _, c := range cands {
			key := c.Program.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out, errors.Join(errs...)
}
