package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/internal/cli/config"
	"github.com/leapstack-labs/leapqdmr/internal/cli/testutil"
	intconfig "github.com/leapstack-labs/leapqdmr/internal/config"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

const threeStep = "return touchdowns ;return #1 that Tom Brady threw ;return number of #2"

// execute runs cmd under a root that loads configuration from its flags,
// and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	root := &cobra.Command{
		Use: "leapqdmr",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			_, err := config.LoadConfig("", c.Flags())
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("format", "f", "", "output format")
	root.AddCommand(cmd)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(append([]string{cmd.Name()}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func openStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(intconfig.DefaultStateFile))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{"generate", NewGenerateCommand(), "generate", []string{"input", "output", "corpus", "disable", "threshold", "limit", "seed", "numeric-answers", "augmented"}},
		{"answer", NewAnswerCommand(), "answer", []string{"input", "output"}},
		{"corpus", NewCorpusCommand(), "corpus", nil},
		{"parse", NewParseCommand(), "parse <decomposition>", nil},
		{"mutate", NewMutateCommand(), "mutate <decomposition>", []string{"question", "id", "filter", "corpus", "disable", "limit", "seed"}},
		{"filters", NewFiltersCommand(), "filters [rule-id]", nil},
		{"repl", NewREPLCommand(), "repl", nil},
		{"runs", NewRunsCommand(), "runs", []string{"count"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	sub := make([]string, 0, 2)
	for _, c := range NewCorpusCommand().Commands() {
		sub = append(sub, c.Name())
	}
	assert.ElementsMatch(t, []string{"build", "stats"}, sub)
}

func TestParseView(t *testing.T) {
	view, err := parseView(threeStep)
	require.NoError(t, err)
	require.Len(t, view.Steps, 3)
	assert.True(t, view.Valid)
	assert.Equal(t, "select", view.Steps[0].Operator)
	assert.Equal(t, []int{1}, view.Steps[1].References)
	assert.Equal(t, "aggregate_count", view.Steps[2].Signature)
	assert.Equal(t, 2, view.References)
	assert.Equal(t, []int{1, 2, 3}, view.Order)
	assert.Empty(t, view.Cycle)

	view, err = parseView("return #2 ;return teams")
	require.NoError(t, err)
	assert.False(t, view.Valid)
	assert.NotEmpty(t, view.Error)
	assert.Equal(t, []int{2, 1}, view.Order)

	view, err = parseView("return #2 that scored ;return #1 that won ;return number of #2")
	require.NoError(t, err)
	assert.False(t, view.Valid)
	assert.Equal(t, []int{1, 2, 1}, view.Cycle)
	assert.Empty(t, view.Order)
}

func TestRenderParse(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderParse(tr.Renderer, threeStep))
		out := tr.Output()
		assert.Contains(t, out, "| operator | arguments | refs | signature |")
		assert.Contains(t, out, "aggregate_count")
		assert.Contains(t, out, "evaluation order: #1 #2 #3")
		assert.Contains(t, out, "valid")
		testutil.AssertNoANSI(t, out)
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, renderParse(tr.Renderer, threeStep))
		var view ParseView
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &view))
		assert.Len(t, view.Steps, 3)
		assert.True(t, view.Valid)
	})
}

func TestMutateViews(t *testing.T) {
	eng := engine.New(engine.Config{AppendBooleanLimit: -1})

	all, err := mutateViews(eng, "DROP_train_1", "How many touchdowns did Tom Brady throw?", threeStep, false)
	require.NoError(t, err)
	var transformations []string
	for _, v := range all {
		assert.Empty(t, v.Rejected)
		assert.True(t, strings.HasPrefix(v.ID, "DROP_train_1+"), v.ID)
		transformations = append(transformations, v.Transformation)
	}
	assert.Contains(t, transformations, "prune_step+2")
	assert.Contains(t, transformations, "append_boolean_step+4-aggregate-lower-two")

	filtered, err := mutateViews(eng, "DROP_train_1", "How many touchdowns did Tom Brady throw?", threeStep, true)
	require.NoError(t, err)
	assert.Len(t, filtered, len(all), "filtered listing keeps rejected candidates")

	_, err = mutateViews(eng, "x", "", "return #2 ;return teams", false)
	assert.Error(t, err)
}

func TestRuleViews(t *testing.T) {
	cfg := filter.NewConfig().Disable(filter.RuleSelfDiff)
	views := ruleViews(filter.All(), cfg)
	require.Len(t, views, len(filter.IDs()))

	status := map[string]string{}
	for _, v := range views {
		status[v.ID] = v.Status
	}
	assert.Equal(t, StatusDisabled, status[filter.RuleSelfDiff])
	assert.Equal(t, StatusInactive, status[filter.RuleDatasetPolicy])
	assert.Equal(t, StatusEnabled, status[filter.RuleDataPrograms])

	cfg.Dataset = "drop"
	for _, v := range ruleViews([]filter.RuleDef{mustRule(t, filter.RuleDatasetPolicy)}, cfg) {
		assert.Equal(t, StatusEnabled, v.Status)
	}
}

func mustRule(t *testing.T, id string) filter.RuleDef {
	t.Helper()
	r, ok := filter.Get(id)
	require.True(t, ok)
	return r
}

func TestFiltersCommand(t *testing.T) {
	config.ResetConfig()
	testutil.SetupTestProject(t)

	out, _, err := execute(t, NewFiltersCommand())
	require.NoError(t, err)
	for _, id := range filter.IDs() {
		assert.Contains(t, out, id)
	}

	_, _, err = execute(t, NewFiltersCommand(), "no_such_rule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter")
}

func TestGenerateCommand(t *testing.T) {
	config.ResetConfig()
	dir := testutil.SetupTestProject(t)

	out, errOut, err := execute(t, NewGenerateCommand(),
		"--input", "break.csv", "--output", "candidates.csv", "--augmented", "augmented.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "# Generation")
	assert.Contains(t, out, "- **Skipped:** 1")
	assert.Contains(t, errOut, "no corpus in state store")

	f, err := os.Open(filepath.Join(dir, "candidates.csv"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := dataio.ReadCandidates(f)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.False(t, strings.HasPrefix(row.ID, "DROP_train_2"), "invalid record must be skipped")
	}
	assert.Equal(t, threeStep, rows[0].Decomposition)

	aug, err := os.ReadFile(filepath.Join(dir, "augmented.csv"))
	require.NoError(t, err)
	assert.Equal(t, len(rows)+1, strings.Count(string(aug), "\n"), "one augmented row per candidate plus header")

	runs, err := openStore(t).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.StageGenerate, runs[0].Stage)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].Stats.Records)
	assert.Equal(t, 1, runs[0].Stats.Skipped)
	assert.Equal(t, len(rows), runs[0].Stats.Produced)
}

func TestGenerateCommand_MissingInput(t *testing.T) {
	config.ResetConfig()
	testutil.SetupTestProject(t)

	_, _, err := execute(t, NewGenerateCommand(), "--input", "missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input")
}

func TestCorpusBuildAndStats(t *testing.T) {
	config.ResetConfig()
	testutil.SetupTestProject(t)

	out, errOut, err := execute(t, NewCorpusCommand(), "build", "--input", "break.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpus built from 2 examples")
	assert.Contains(t, errOut, "1 records skipped")

	out, _, err = execute(t, NewCorpusCommand(), "stats", "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "# Corpus")
	assert.Contains(t, out, "- **Examples:** 2")
	assert.Contains(t, out, "- **Source:** break.csv")
	assert.Contains(t, out, "| select | 2 | 100.00 |")

	runs, err := openStore(t).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.StageCorpus, runs[0].Stage)
}

func TestCorpusStats_NoCorpus(t *testing.T) {
	config.ResetConfig()
	testutil.SetupTestProject(t)

	_, _, err := execute(t, NewCorpusCommand(), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus build")
}

func TestTopSignatures(t *testing.T) {
	snap := filter.Snapshot{
		Counts:   map[string]int{"select": 4, "filter": 2, "aggregate_count": 2, "project": 1},
		Examples: 4,
	}
	got := topSignatures(snap, 3)
	require.Len(t, got, 3)
	assert.Equal(t, SignatureStat{Signature: "select", Examples: 4, Percent: 100}, got[0])
	assert.Equal(t, "aggregate_count", got[1].Signature, "ties are ordered by name")
	assert.Equal(t, "filter", got[2].Signature)

	assert.Len(t, topSignatures(snap, 0), 4)
}

func TestAnswerCommand(t *testing.T) {
	config.ResetConfig()
	dir := testutil.SetupTestProject(t)

	reqs := []dataio.AnswerRequest{
		{
			ID:             "DROP_1+append_boolean_step+4-aggregate-lower-two",
			Question:       "How many touchdowns did Tom Brady throw?",
			Decomposition:  []string{"touchdowns", "#1 that Tom Brady threw", "number of #2"},
			Transformed:    []string{"touchdowns", "#1 that Tom Brady threw", "number of #2", "if #3 is lower than two"},
			Transformation: "append_boolean_step+4-aggregate-lower-two",
			OrigAnswers:    []string{"5"},
		},
		{
			ID:             "DROP_1+op_replace_aggregate+1-max-min",
			Decomposition:  []string{"yards", "the highest of #1"},
			Transformed:    []string{"yards", "the lowest of #1"},
			Transformation: "op_replace_aggregate+1-max-min",
			OrigAnswers:    []string{"40"},
		},
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range reqs {
		require.NoError(t, enc.Encode(r))
	}
	testutil.WriteFile(t, filepath.Join(dir, "requests.jsonl"), buf.String())

	out, _, err := execute(t, NewAnswerCommand(), "--input", "requests.jsonl")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "no", first["transformed_answer"])
	assert.Equal(t, "append_boolean", first["answer_source"])
	assert.Nil(t, second["transformed_answer"])
	assert.Equal(t, "<=", second["answer_constraint"])
}

func TestRunsCommand(t *testing.T) {
	config.ResetConfig()
	testutil.SetupTestProject(t)

	out, _, err := execute(t, NewRunsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, _, err = execute(t, NewCorpusCommand(), "build", "--input", "break.csv")
	require.NoError(t, err)

	out, _, err = execute(t, NewRunsCommand(), "--count", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "| corpus | break.csv | completed | 3 | 2 | 1 |")
}
