// Package filter discards transformed candidates that are implausible
// against a corpus of real decompositions or degenerate by heuristic.
//
// Rules register themselves in a global registry from init, the same way
// for built-in and dataset rules. A Filter selects the enabled rules once
// and is then safe for concurrent use.
package filter

import (
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// DefaultOperatorThreshold is the minimum percentage of corpus examples a
// step signature must occur in.
const DefaultOperatorThreshold = 0.15

// Datasets accepted by the dataset policy rule.
var Datasets = []string{"drop", "iirc", "hotpotqa", "break"}

// Config controls which rules run.
type Config struct {
	// Disabled contains rule IDs to skip.
	Disabled map[string]bool
	// OperatorThreshold is a percentage in [0, 100]; zero only checks
	// that each step signature occurs in the corpus.
	OperatorThreshold float64
	// Dataset enables dataset-specific policy when set.
	Dataset string
}

// NewConfig returns the default configuration with all rules enabled.
func NewConfig() *Config {
	return &Config{
		Disabled:          make(map[string]bool),
		OperatorThreshold: DefaultOperatorThreshold,
	}
}

// IsDisabled reports whether the rule should be skipped.
func (c *Config) IsDisabled(id string) bool {
	if c == nil {
		return false
	}
	return c.Disabled[id]
}

// Disable disables a rule by ID.
func (c *Config) Disable(id string) *Config {
	if c.Disabled == nil {
		c.Disabled = make(map[string]bool)
	}
	c.Disabled[id] = true
	return c
}

// Context is what a rule sees of one candidate.
type Context struct {
	Candidate transform.Candidate
	Program   *qdmr.Program
	Corpus    *Corpus
	Config    *Config
}

// Rejection records the rules a candidate failed.
type Rejection struct {
	ID     string
	Family transform.Family
	Rules  []string
	// Program is the rejected candidate's program.
	Program *qdmr.Program
}

// Filter applies the enabled rules.
type Filter struct {
	rules  []RuleDef
	corpus *Corpus
	cfg    *Config
	logger *slog.Logger
}

// New creates a filter. corpus may be nil, which disables the corpus rules.
func New(corpus *Corpus, cfg *Config, logger *slog.Logger) *Filter {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := &Filter{corpus: corpus, cfg: cfg, logger: logger}
	for _, r := range All() {
		switch {
		case cfg.IsDisabled(r.ID):
		case r.NeedsCorpus && corpus == nil:
			logger.Debug("filter rule skipped without corpus", slog.String("rule", r.ID))
		case r.Active != nil && !r.Active(cfg):
		default:
			f.rules = append(f.rules, r)
		}
	}
	return f
}

// Rules returns the enabled rules.
func (f *Filter) Rules() []RuleDef {
	return slices.Clone(f.rules)
}

// Failed returns the IDs of the rules the candidate fails.
func (f *Filter) Failed(c transform.Candidate) []string {
	ctx := &Context{Candidate: c, Program: c.Program, Corpus: f.corpus, Config: f.cfg}
	var failed []string
	for _, r := range f.rules {
		if r.exempts(c.Descriptor.Family) {
			continue
		}
		if !r.Check(ctx) {
			failed = append(failed, r.ID)
		}
	}
	return failed
}

// Keep reports whether the candidate passes every enabled rule.
func (f *Filter) Keep(c transform.Candidate) bool {
	return len(f.Failed(c)) == 0
}

// Apply splits candidates into survivors and rejections, preserving order.
func (f *Filter) Apply(cands []transform.Candidate) ([]transform.Candidate, []Rejection) {
	var kept []transform.Candidate
	var rejected []Rejection
	for _, c := range cands {
		failed := f.Failed(c)
		if len(failed) == 0 {
			kept = append(kept, c)
			continue
		}
		f.logger.Debug("candidate filtered",
			slog.String("candidate", c.ID),
			slog.Any("rules", failed))
		rejected = append(rejected, Rejection{ID: c.ID, Family: c.Descriptor.Family, Rules: failed, Program: c.Program})
	}
	return kept, rejected
}
