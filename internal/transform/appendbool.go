package transform

import (
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapqdmr/internal/question"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// NumberSource looks up the numeric gold answer of an original question.
type NumberSource interface {
	Lookup(id string) (float64, bool)
}

// Base thresholds used for every appended boolean step.
var baseThresholds = []string{"two", "17"}

var booleanConditions = []string{"lower than", "higher than", "equal to"}

// AppendBoolean appends a threshold test over a final aggregate step.
type AppendBoolean struct {
	// Limit caps candidates per example by uniform sampling; negative
	// means no cap. With a nil rng Mutate keeps the first Limit candidates
	// in generation order instead of sampling.
	Limit   int
	Numbers NumberSource
}

func (a *AppendBoolean) Name() string { return "append_boolean_step" }

func (a *AppendBoolean) Mutate(ex Example, rng *rand.Rand) ([]Candidate, error) {
	p := ex.Program
	final := p.Final()
	if final == nil || final.Op != qdmr.OpAggregate {
		return nil, nil
	}
	n := p.Len()
	ref := qdmr.Ref(n)

	var out []Candidate
	for _, value := range a.thresholds(ex.ID) {
		for _, cond := range booleanConditions {
			step := qdmr.NewStep(qdmr.OpBoolean, ref, "is "+cond+" "+value)
			op, _, _ := strings.Cut(cond, " ")
			d := Descriptor{
				Family:  AppendBooleanStep,
				Step:    n + 1,
				Orig:    final.Op.String(),
				New:     op,
				Literal: value,
			}
			paraphrase, _ := question.AppendCondition(ex.Question, questionCondition(op, value))
			out = append(out, newCandidate(ex, p.Append(step), d, paraphrase))
		}
	}

	if a.Limit >= 0 && len(out) > a.Limit {
		if rng != nil {
			rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		}
		out = out[:a.Limit]
	}
	return out, nil
}

// thresholds returns the base values followed by values derived from the
// original numeric answer v: v+k, |v-k|, v*k for k in 0..2 and v/k for
// k in 1..2, truncated to integers.
func (a *AppendBoolean) thresholds(id string) []string {
	values := slices.Clone(baseThresholds)
	if a.Numbers == nil {
		return values
	}
	v, ok := a.Numbers.Lookup(id)
	if !ok || v < 0 {
		return values
	}
	for k := 0.0; k <= 2; k++ {
		derived := []float64{v + k, math.Abs(v - k), v * k}
		if k != 0 {
			derived = append([]float64{v / k}, derived...)
		}
		for _, d := range derived {
			s := strconv.Itoa(int(d))
			if !slices.Contains(values, s) {
				values = append(values, s)
			}
		}
	}
	return values
}

func questionCondition(op, value string) string {
	switch op {
	case "lower":
		return "less than " + value
	case "higher":
		return "more than " + value
	default:
		return value
	}
}
