package filter

import (
	"slices"
	"sync"

	"github.com/leapstack-labs/leapqdmr/internal/transform"
)

// CheckFunc reports whether a candidate passes a rule.
type CheckFunc func(ctx *Context) bool

// RuleDef defines a filter rule.
type RuleDef struct {
	ID          string
	Description string
	// Active, when set, gates the rule on configuration. Rules without it
	// run unless disabled.
	Active func(cfg *Config) bool
	// NeedsCorpus rules are skipped when no corpus is loaded.
	NeedsCorpus bool
	// Exempt families always pass this rule.
	Exempt []transform.Family
	Check  CheckFunc
}

func (r RuleDef) exempts(f transform.Family) bool {
	return slices.Contains(r.Exempt, f)
}

var globalRegistry = &Registry{rules: make(map[string]RuleDef)}

// Registry stores registered filter rules.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]RuleDef
	order []string
}

// Register adds a rule to the global registry. Call it from init.
func Register(rule RuleDef) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if _, ok := globalRegistry.rules[rule.ID]; !ok {
		globalRegistry.order = append(globalRegistry.order, rule.ID)
	}
	globalRegistry.rules[rule.ID] = rule
}

// All returns every registered rule in registration order.
func All() []RuleDef {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	rules := make([]RuleDef, 0, len(globalRegistry.order))
	for _, id := range globalRegistry.order {
		rules = append(rules, globalRegistry.rules[id])
	}
	return rules
}

// Get returns a rule by its ID.
func Get(id string) (RuleDef, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	rule, ok := globalRegistry.rules[id]
	return rule, ok
}

// IDs returns the registered rule IDs in registration order.
func IDs() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return slices.Clone(globalRegistry.order)
}
