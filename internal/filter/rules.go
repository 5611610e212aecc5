package filter

import (
	"slices"
	"strings"
	"unicode"

	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Rule IDs.
const (
	RuleDataPrograms     = "data_programs"
	RuleDataOperators    = "data_operators"
	RuleTimeDiffSum      = "time_diff_sum"
	RuleSelfDiff         = "self_diff"
	RuleSingleNounPhrase = "single_noun_phrase"
	RuleDatasetPolicy    = "dataset_policy"
)

var timeTriggers = []string{"when", "date", "year", "years", "month", "months", "day", "days", "hour", "hours"}

func init() {
	Register(RuleDef{
		ID:          RuleDataPrograms,
		Description: "Program signature must occur in the corpus",
		NeedsCorpus: true,
		Exempt:      []transform.Family{transform.AppendBooleanStep},
		Check:       checkDataPrograms,
	})
	Register(RuleDef{
		ID:          RuleDataOperators,
		Description: "Every step signature must be frequent enough in the corpus",
		NeedsCorpus: true,
		Exempt:      []transform.Family{transform.AppendBooleanStep},
		Check:       checkDataOperators,
	})
	Register(RuleDef{
		ID:          RuleTimeDiffSum,
		Description: "A difference of dates must not become a sum",
		Check:       checkTimeDiffSum,
	})
	Register(RuleDef{
		ID:          RuleSelfDiff,
		Description: "A difference must not subtract a step from an identical one",
		Check:       checkSelfDiff,
	})
	Register(RuleDef{
		ID:          RuleSingleNounPhrase,
		Description: "A single-step program must be more than a short noun phrase",
		Check:       checkSingleNounPhrase,
	})
	Register(RuleDef{
		ID:          RuleDatasetPolicy,
		Description: "Drop transformation kinds known to produce poor examples for the dataset",
		Active:      func(cfg *Config) bool { return cfg.Dataset != "" },
		Check:       checkDatasetPolicy,
	})
}

func checkDataPrograms(ctx *Context) bool {
	return ctx.Corpus.ContainsProgram(ProgramSignature(ctx.Program))
}

func checkDataOperators(ctx *Context) bool {
	for _, sig := range ProgramSignature(ctx.Program) {
		if !ctx.Corpus.ContainsStep(sig) {
			return false
		}
		if t := ctx.Config.OperatorThreshold; t > 0 && ctx.Corpus.Percent(sig) < t {
			return false
		}
	}
	return true
}

func checkTimeDiffSum(ctx *Context) bool {
	d := ctx.Candidate.Descriptor
	if d.Family != transform.OpReplaceArithmetic || d.Orig != qdmr.ArithDifference || d.New != qdmr.ArithSum {
		return true
	}
	for _, text := range ctx.Program.Texts() {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
		for _, w := range words {
			if slices.Contains(timeTriggers, w) {
				return false
			}
		}
	}
	return true
}

// checkSelfDiff inspects the first difference step only.
func checkSelfDiff(ctx *Context) bool {
	for _, s := range ctx.Program.Steps() {
		if s.Op != qdmr.OpArithmetic || s.Arg(0) != qdmr.ArithDifference || len(s.Args) < 3 {
			continue
		}
		a, b := s.Arg(1), s.Arg(2)
		if a == b {
			return false
		}
		i, okA := qdmr.RefIndex(a)
		j, okB := qdmr.RefIndex(b)
		if !okA || !okB {
			return true
		}
		si, sj := ctx.Program.Step(i), ctx.Program.Step(j)
		return si == nil || sj == nil || si.Text != sj.Text
	}
	return true
}

func checkSingleNounPhrase(ctx *Context) bool {
	if ctx.Program.Len() != 1 {
		return true
	}
	return len(strings.Fields(ctx.Program.Step(1).Arg(0))) >= 3
}

func checkDatasetPolicy(ctx *Context) bool {
	d := ctx.Candidate.Descriptor
	dataset := ctx.Config.Dataset

	if slices.Contains(Datasets, dataset) {
		if d.Family == transform.OpReplaceAggregate {
			return false
		}
		if d.Family == transform.PruneLastStep && d.Orig != qdmr.OpProject.String() {
			return false
		}
	}
	if (dataset == "drop" || dataset == "iirc") && d.Family == transform.PruneStep {
		return false
	}
	if d.Family == transform.ChangeLastStep {
		switch dataset {
		case "drop":
			return d.New == qdmr.OpArithmetic.String()
		case "iirc", "hotpotqa":
			return d.New == qdmr.OpBoolean.String() && d.Literal == "the_same_as"
		}
	}
	return true
}
