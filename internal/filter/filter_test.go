package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

func candidate(d transform.Descriptor, steps ...*qdmr.Step) transform.Candidate {
	return transform.Candidate{ID: "q+" + d.String(), Program: qdmr.NewProgram(steps...), Descriptor: d}
}

func TestStepSignature(t *testing.T) {
	tests := []struct {
		step *qdmr.Step
		want string
	}{
		{qdmr.NewStep(qdmr.OpSelect, "objects"), "select"},
		{qdmr.NewStep(qdmr.OpFilter, "#1", "that are green"), "filter"},
		{qdmr.NewStep(qdmr.OpAggregate, qdmr.AggCount, "#1"), "aggregate_count"},
		{qdmr.NewStep(qdmr.OpComparison, qdmr.AggMin, "#1", "#2"), "comparison_min"},
		{qdmr.NewStep(qdmr.OpSuperlative, qdmr.AggMax, "#1", "#2"), "superlative_max"},
		{qdmr.NewStep(qdmr.OpComparative, "#1", "#2", "is higher than 3"), "comparative_>"},
		{qdmr.NewStep(qdmr.OpBoolean, qdmr.BoolAnd, qdmr.True, "#1", "#2"), "boolean_logical_and"},
		{qdmr.NewStep(qdmr.OpBoolean, "#1", "is lower than two"), "boolean"},
		{qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithDifference, "100", "#1"), "arithmetic_difference_const_#"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, StepSignature(tt.step))
		})
	}
}

func TestCorpusBuilder(t *testing.T) {
	b := NewBuilder()
	b.Add(qdmr.NewProgram(
		qdmr.NewStep(qdmr.OpSelect, "a"),
		qdmr.NewStep(qdmr.OpSelect, "b"),
		qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithSum, "#1", "#2"),
	))
	b.Add(qdmr.NewProgram(qdmr.NewStep(qdmr.OpSelect, "c")))
	c := b.Build()

	assert.Equal(t, 2, c.Examples())
	assert.Equal(t, 2, c.ProgramCount())
	assert.True(t, c.ContainsProgram([]string{"select", "select", "arithmetic_sum_#_#"}))
	assert.False(t, c.ContainsProgram([]string{"select", "arithmetic_sum_#_#"}))
	// Counted once per example.
	assert.InDelta(t, 100.0, c.Percent("select"), 1e-9)
	assert.InDelta(t, 50.0, c.Percent("arithmetic_sum_#_#"), 1e-9)
	assert.False(t, c.ContainsStep("arithmetic_difference_#_#"))

	round := FromSnapshot(c.Snapshot())
	assert.Equal(t, c.Snapshot(), round.Snapshot())
}

func TestDataRules(t *testing.T) {
	corpus := FromSnapshot(Snapshot{
		Programs: []string{"select aggregate_count", "select aggregate_max"},
		Counts:   map[string]int{"select": 1000, "aggregate_count": 900, "aggregate_max": 1},
		Examples: 1000,
	})
	f := New(corpus, NewConfig(), nil)

	count := qdmr.NewStep(qdmr.OpAggregate, qdmr.AggCount, "#1")
	maxStep := qdmr.NewStep(qdmr.OpAggregate, qdmr.AggMax, "#1")
	minStep := qdmr.NewStep(qdmr.OpAggregate, qdmr.AggMin, "#1")
	sel := qdmr.NewStep(qdmr.OpSelect, "touchdowns")
	opReplace := transform.Descriptor{Family: transform.OpReplaceAggregate, Step: 2, Orig: "min", New: "count"}

	assert.Empty(t, f.Failed(candidate(opReplace, sel, count)))
	// Known program, rare operator.
	assert.Equal(t, []string{RuleDataOperators}, f.Failed(candidate(opReplace, sel, maxStep)))
	// Unknown program and operator.
	assert.Equal(t, []string{RuleDataPrograms, RuleDataOperators}, f.Failed(candidate(opReplace, sel, minStep)))

	appended := transform.Descriptor{Family: transform.AppendBooleanStep, Step: 3, Orig: "aggregate", New: "lower", Literal: "two"}
	assert.Empty(t, f.Failed(candidate(appended, sel, minStep)))

	noThreshold := NewConfig()
	noThreshold.OperatorThreshold = 0
	assert.Empty(t, New(corpus, noThreshold, nil).Failed(candidate(opReplace, sel, maxStep)))
}

func TestTimeDiffSum(t *testing.T) {
	diffToSum := transform.Descriptor{Family: transform.OpReplaceArithmetic, Step: 3, Orig: "difference", New: "sum"}
	sumStep := qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithSum, "#1", "#2")
	f := New(nil, NewConfig(), nil)

	tests := []struct {
		name  string
		first string
		d     transform.Descriptor
		keep  bool
	}{
		{"year", "year Jon was born", diffToSum, false},
		{"when", "when was Jane born", diffToSum, false},
		{"no trigger", "yards of the first goal", diffToSum, true},
		{"whole words only", "yearly revenue of the firm", diffToSum, true},
		{"other direction", "year Jon was born", transform.Descriptor{Family: transform.OpReplaceArithmetic, Step: 3, Orig: "sum", New: "difference"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate(tt.d,
				qdmr.NewStep(qdmr.OpSelect, tt.first),
				qdmr.NewStep(qdmr.OpSelect, "the other value of the pair"),
				sumStep)
			assert.Equal(t, tt.keep, f.Keep(c))
		})
	}
}

func TestSelfDiff(t *testing.T) {
	d := transform.Descriptor{Family: transform.PruneStep, Step: 2}
	f := New(nil, NewConfig(), nil)

	same := candidate(d,
		qdmr.NewStep(qdmr.OpSelect, "points scored by the Bears"),
		qdmr.NewStep(qdmr.OpSelect, "points scored by the Bears"),
		qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithDifference, "#1", "#2"))
	assert.Equal(t, []string{RuleSelfDiff}, f.Failed(same))

	selfRef := candidate(d,
		qdmr.NewStep(qdmr.OpSelect, "points scored by the Bears"),
		qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithDifference, "#1", "#1"))
	assert.False(t, f.Keep(selfRef))

	distinct := candidate(d,
		qdmr.NewStep(qdmr.OpSelect, "points scored by the Bears"),
		qdmr.NewStep(qdmr.OpSelect, "points scored by the Lions"),
		qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithDifference, "#1", "#2"))
	assert.True(t, f.Keep(distinct))

	constant := candidate(d,
		qdmr.NewStep(qdmr.OpSelect, "percent of people who are Asian"),
		qdmr.NewStep(qdmr.OpArithmetic, qdmr.ArithDifference, "100", "#1"))
	assert.True(t, f.Keep(constant))
}

func TestSingleNounPhrase(t *testing.T) {
	d := transform.Descriptor{Family: transform.PruneLastStep, Orig: "aggregate"}
	f := New(nil, NewConfig(), nil)

	assert.False(t, f.Keep(candidate(d, qdmr.NewStep(qdmr.OpSelect, "ethnic groups"))))
	assert.True(t, f.Keep(candidate(d, qdmr.NewStep(qdmr.OpSelect, "touchdowns Tom Brady threw"))))
}

func TestDatasetPolicy(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		d       transform.Descriptor
		keep    bool
	}{
		{"aggregate replace", "drop", transform.Descriptor{Family: transform.OpReplaceAggregate, Step: 2, Orig: "max", New: "min"}, false},
		{"comparison replace", "drop", transform.Descriptor{Family: transform.OpReplaceComparison, Step: 2, Orig: "max", New: "min"}, true},
		{"prune last project", "break", transform.Descriptor{Family: transform.PruneLastStep, Orig: "project"}, true},
		{"prune last filter", "break", transform.Descriptor{Family: transform.PruneLastStep, Orig: "filter"}, false},
		{"prune step drop", "drop", transform.Descriptor{Family: transform.PruneStep, Step: 2}, false},
		{"prune step hotpotqa", "hotpotqa", transform.Descriptor{Family: transform.PruneStep, Step: 2}, true},
		{"change to arithmetic drop", "drop", transform.Descriptor{Family: transform.ChangeLastStep, Step: 3, Orig: "comparison", New: "arithmetic", Literal: "sum"}, true},
		{"change to union drop", "drop", transform.Descriptor{Family: transform.ChangeLastStep, Step: 3, Orig: "comparison", New: "union", Literal: "union"}, false},
		{"same as iirc", "iirc", transform.Descriptor{Family: transform.ChangeLastStep, Step: 3, Orig: "arithmetic", New: "boolean", Literal: "the_same_as"}, true},
		{"higher than iirc", "iirc", transform.Descriptor{Family: transform.ChangeLastStep, Step: 3, Orig: "arithmetic", New: "boolean", Literal: "higher_than"}, false},
		{"union break", "break", transform.Descriptor{Family: transform.ChangeLastStep, Step: 3, Orig: "comparison", New: "union", Literal: "union"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Dataset = tt.dataset
			cfg.Disable(RuleSingleNounPhrase)
			f := New(nil, cfg, nil)
			c := candidate(tt.d, qdmr.NewStep(qdmr.OpSelect, "x"))
			assert.Equal(t, tt.keep, f.Keep(c))
		})
	}
}

func TestNewSelectsRules(t *testing.T) {
	ids := func(rules []RuleDef) []string {
		out := make([]string, len(rules))
		for i, r := range rules {
			out[i] = r.ID
		}
		return out
	}

	assert.Equal(t, []string{RuleTimeDiffSum, RuleSelfDiff, RuleSingleNounPhrase},
		ids(New(nil, nil, nil).Rules()))

	cfg := NewConfig().Disable(RuleSelfDiff)
	cfg.Dataset = "drop"
	assert.Equal(t,
		[]string{RuleDataPrograms, RuleDataOperators, RuleTimeDiffSum, RuleSingleNounPhrase, RuleDatasetPolicy},
		ids(New(NewBuilder().Build(), cfg, nil).Rules()))

	_, ok := Get(RuleDatasetPolicy)
	assert.True(t, ok)
	assert.Len(t, IDs(), 6)
}

func TestApply(t *testing.T) {
	d := transform.Descriptor{Family: transform.PruneLastStep, Orig: "aggregate"}
	short := candidate(d, qdmr.NewStep(qdmr.OpSelect, "teams"))
	long := candidate(transform.Descriptor{Family: transform.PruneLastStepUnused, Orig: "comparison"},
		qdmr.NewStep(qdmr.OpSelect, "teams that won the cup"))

	kept, rejected := New(nil, nil, nil).Apply([]transform.Candidate{short, long})
	require.Len(t, kept, 1)
	assert.Equal(t, long.ID, kept[0].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, Rejection{ID: short.ID, Family: transform.PruneLastStep, Rules: []string{RuleSingleNounPhrase}, Program: short.Program}, rejected[0])
}
