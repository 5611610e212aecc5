package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/internal/answer"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/editor"
	"github.com/leapstack-labs/leapqdmr/internal/evaluator"
	"github.com/leapstack-labs/leapqdmr/internal/metrics"
	tu "github.com/leapstack-labs/leapqdmr/internal/testutil"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
)

var breakRecords = []dataio.BreakRecord{
	{
		ID:            "DROP_train_1",
		Question:      "How many touchdowns did Tom Brady throw?",
		Decomposition: "return touchdowns ;return #1 that Tom Brady threw ;return number of #2",
	},
	{
		ID:            "DROP_train_2",
		Question:      "broken",
		Decomposition: "return touchdowns ;return #3 that Tom Brady threw ;return number of #2",
	},
	{
		ID:            "CLEVR_dev_3",
		Question:      "Are there fewer green objects than cylinders?",
		Decomposition: "return objects ;return #1 that are green ;return #1 that are cylinders ;return number of #2 ;return number of #3 ;return which is lowest of #4 , #5",
	},
}

func collectIDs(t *testing.T, e *Engine, recs []dataio.BreakRecord) ([]string, Stats) {
	t.Helper()
	var ids []string
	stats, err := e.Generate(context.Background(), recs, func(g Generated) error {
		for _, c := range g.Kept {
			ids = append(ids, c.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids, stats
}

func TestGenerate(t *testing.T) {
	m := metrics.New(nil)
	logger, logs := tu.NewRecordingLogger(t)
	e := New(Config{AppendBooleanLimit: -1, Workers: 2, Metrics: m, Logger: logger})

	var order []string
	var skipped []error
	stats, err := e.Generate(context.Background(), breakRecords, func(g Generated) error {
		order = append(order, g.Record.ID)
		if g.Err != nil {
			skipped = append(skipped, g.Err)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"DROP_train_1", "DROP_train_2", "CLEVR_dev_3"}, order)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], editor.ErrStructuralInvalidity)

	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 6, stats.Families[transform.AppendBooleanStep])
	assert.Equal(t, 1, stats.Families[transform.OpReplaceComparison])
	assert.Positive(t, stats.Families[transform.PruneStep])

	assert.InDelta(t, 3, testutil.ToFloat64(m.Records.WithLabelValues("generate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Skipped.WithLabelValues("generate", metrics.ReasonStructural)), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(m.Kept.WithLabelValues(string(transform.AppendBooleanStep))), 0)

	warnings := logs.Entries(slog.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "skipping record", warnings[0].Message)
	assert.Equal(t, "DROP_train_2", warnings[0].Attrs["record"])
	assert.Equal(t, metrics.ReasonStructural, warnings[0].Attrs["reason"])
}

func TestGenerate_CandidateIDs(t *testing.T) {
	e := New(Config{AppendBooleanLimit: -1})
	ids, _ := collectIDs(t, e, breakRecords[:1])

	assert.Contains(t, ids, "DROP_train_1+prune_step+2")
	assert.Contains(t, ids, "DROP_train_1+prune_last_step+aggregate")
	assert.Contains(t, ids, "DROP_train_1+append_boolean_step+4-aggregate-lower-two")
	for _, id := range ids {
		assert.True(t, strings.HasPrefix(id, "DROP_train_1+"), id)
	}
}

func TestMutate_Unfiltered(t *testing.T) {
	e := New(Config{AppendBooleanLimit: 0})

	cands, err := e.Mutate(0, breakRecords[0])
	require.NoError(t, err)
	g := e.GenerateRecord(0, breakRecords[0])
	require.NoError(t, g.Err)
	assert.Len(t, cands, len(g.Kept)+len(g.Rejected))

	_, err = e.Mutate(1, breakRecords[1])
	assert.ErrorIs(t, err, editor.ErrStructuralInvalidity)
}

func TestGenerate_DeterministicAcrossWorkers(t *testing.T) {
	recs := make([]dataio.BreakRecord, 0, 12)
	for range 4 {
		recs = append(recs, breakRecords...)
	}

	serial, _ := collectIDs(t, New(Config{AppendBooleanLimit: 2, Seed: 7, Workers: 1}), recs)
	parallel, _ := collectIDs(t, New(Config{AppendBooleanLimit: 2, Seed: 7, Workers: 8}), recs)
	assert.Equal(t, serial, parallel)
}

func TestGenerate_EmitErrorStops(t *testing.T) {
	e := New(Config{})
	errStop := errors.New("disk full")
	calls := 0
	_, err := e.Generate(context.Background(), breakRecords, func(Generated) error {
		calls++
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Generate(ctx, breakRecords, func(Generated) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsolate_RecoversPanic(t *testing.T) {
	m := metrics.New(nil)
	e := New(Config{Metrics: m, Logger: tu.NewTestLogger(t)})

	err := e.isolate(stageGenerate, "X", func() error { panic("index out of range") })
	require.ErrorIs(t, err, ErrRecordPanic)
	assert.Contains(t, err.Error(), "index out of range")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Skipped.WithLabelValues(stageGenerate, metrics.ReasonPanic)), 0)

	assert.NoError(t, e.isolate(stageGenerate, "Y", func() error { return nil }))
}

func TestAnswer(t *testing.T) {
	orig := []string{"touchdowns", "#1 that Tom Brady threw", "number of #2"}
	reqs := []dataio.AnswerRequest{
		{
			ID:             "DROP_1+append_boolean_step+4-aggregate-lower-two",
			Question:       "How many touchdowns did Tom Brady throw?",
			Decomposition:  orig,
			Transformed:    append(orig[:3:3], "if #3 is lower than two"),
			Transformation: "append_boolean_step+4-aggregate-lower-two",
			OrigAnswers:    []string{"5"},
		},
		{
			ID:             "DROP_1+bad",
			Decomposition:  orig,
			Transformed:    orig,
			Transformation: "not_a_family+1",
		},
		{
			ID:             "DROP_1+prune_step+2",
			Decomposition:  orig,
			Transformed:    []string{"touchdowns", "number of #1"},
			Transformation: "prune_step+2",
			StepAnswers:    evaluator.Leaves{evaluator.Scalar("4")},
		},
		{
			ID:             "DROP_1+op_replace_aggregate+1-max-min",
			Decomposition:  []string{"yards", "the highest of #1"},
			Transformed:    []string{"yards", "the lowest of #1"},
			Transformation: "op_replace_aggregate+1-max-min",
			OrigAnswers:    []string{"40"},
		},
	}

	m := metrics.New(nil)
	e := New(Config{Workers: 3, Metrics: m, Logger: tu.NewTestLogger(t)})
	var got []Answered
	stats, err := e.Answer(context.Background(), reqs, func(a Answered) error {
		got = append(got, a)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.NotNil(t, got[0].Record.Answer)
	assert.Equal(t, answer.ScalarAnswer("no"), *got[0].Record.Answer)
	assert.Equal(t, "append_boolean", got[0].Record.Source)

	assert.Error(t, got[1].Err)

	require.NotNil(t, got[2].Record.Answer)
	assert.Equal(t, answer.ScalarAnswer("4"), *got[2].Record.Answer)
	assert.Equal(t, "number_of_leaf", got[2].Record.Source)

	assert.Nil(t, got[3].Record.Answer)
	assert.Contains(t, got[3].Record.Error, "no answer derived")
	assert.Equal(t, answer.AtMost, got[3].Record.Constraint)

	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 2, stats.Produced)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Sources["append_boolean"])
	assert.InDelta(t, 1, testutil.ToFloat64(m.Unanswered.WithLabelValues(string(transform.OpReplaceAggregate))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Constraints.WithLabelValues(answer.AtMost)), 0)
}

func TestBuildCorpus(t *testing.T) {
	c, skipped := BuildCorpus(breakRecords, tu.NewTestLogger(t))
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, c.Examples())
	assert.True(t, c.ContainsProgram([]string{"select", "filter", "aggregate_count"}))
	assert.InDelta(t, 100, c.Percent("select"), 0.001)
	assert.InDelta(t, 50, c.Percent("comparison_min"), 0.001)
}
