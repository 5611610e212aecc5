package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Input  string
	Output string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate contrast candidates from Break decompositions",
		Long: `Parse each decomposition of a Break-format CSV, apply every
transformation and write the candidates that pass the filters.

Records that fail to parse or are structurally invalid are skipped with a
warning. The corpus filters use --corpus when given, else the corpus saved
by 'leapqdmr corpus build'.`,
		Example: `  # Generate candidates with the stored corpus
  leapqdmr generate --input break_dev.csv --output candidates.csv

  # Build the corpus on the fly and keep at most two boolean appends
  leapqdmr generate -i break_dev.csv --corpus break_train.csv --limit 2

  # Also write the candidates in Break format for question generation
  leapqdmr generate -i break_dev.csv --augmented augmented.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "-", "Break-format CSV to read (- for stdin)")
	cmd.Flags().StringVar(&opts.Output, "output", "-", "candidate CSV to write (- for stdout)")
	cmd.Flags().String("corpus", "", "Break-format CSV to build the filter corpus from")
	cmd.Flags().StringSlice("disable", nil, "filter rules to disable")
	cmd.Flags().Float64("threshold", filter.DefaultOperatorThreshold, "minimum step signature frequency (percent)")
	cmd.Flags().Int("limit", -1, "maximum appended boolean steps per record (-1 for no limit)")
	cmd.Flags().Uint64("seed", engine.DefaultSeed, "seed for sampling")
	cmd.Flags().String("numeric-answers", "", "JSON file of question id to numeric answer")
	cmd.Flags().String("augmented", "", "also write candidates as Break-format CSV")

	_ = cmd.RegisterFlagCompletionFunc("disable", completeFilterIDs)

	return cmd
}

func completeFilterIDs(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return filter.IDs(), cobra.ShellCompDirectiveNoFileComp
}

func readBreakFile(path string) ([]dataio.BreakRecord, error) {
	in, err := openInput(path, os.Stdin)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()
	return dataio.ReadBreak(in)
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) (err error) {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	in, err := openInput(opts.Input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	recs, err := dataio.ReadBreak(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	corpus, err := cc.LoadCorpus(ctx, store)
	if err != nil {
		return err
	}
	answers, err := cc.LoadNumericAnswers(ctx, store)
	if err != nil {
		return err
	}

	run, err := store.CreateRun(ctx, state.StageGenerate, opts.Input)
	if err != nil {
		return err
	}
	var stats engine.Stats
	defer func() { err = finishRun(ctx, cc, store, run, stats, err) }()

	out, err := openOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	cw, err := dataio.NewCandidateWriter(out)
	if err != nil {
		return err
	}

	var bw *dataio.BreakWriter
	if path := cc.Cfg.Generate.Augmented; path != "" {
		aug, err := openOutput(path, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = aug.Close() }()
		if bw, err = dataio.NewBreakWriter(aug); err != nil {
			return err
		}
	}

	eng := cc.NewEngine(corpus, answers)
	stats, err = eng.Generate(ctx, recs, func(g engine.Generated) error {
		for _, c := range g.Kept {
			if err := cw.Write(dataio.RowFromCandidate(c, g.Record.Decomposition)); err != nil {
				return err
			}
			if bw == nil {
				continue
			}
			question := c.Paraphrase
			if question == "" {
				question = c.Question
			}
			if err := bw.Write(dataio.BreakRecord{ID: c.ID, Question: question, Decomposition: c.Program.String()}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("failed to write candidates: %w", err)
	}
	if bw != nil {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to write augmented output: %w", err)
		}
	}

	// Candidates on stdout leave no room for a summary.
	if opts.Output != "" && opts.Output != "-" {
		return renderStats(cc.Renderer, "Generation", stats)
	}
	return nil
}

// finishRun records the outcome of a run and writes metrics. It returns
// runErr unless finishing fails on an otherwise successful run.
func finishRun(ctx context.Context, cc *CommandContext, store state.Store, run *state.Run, stats engine.Stats, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	rs := state.RunStats{Records: stats.Records, Produced: stats.Produced, Skipped: stats.Skipped}
	if err := store.CompleteRun(context.WithoutCancel(ctx), run.ID, rs, msg); err != nil {
		cc.Logger.Error("failed to record run", slog.String("run", run.ID), slog.String("error", err.Error()))
		runErr = errors.Join(runErr, err)
	}
	return errors.Join(runErr, cc.WriteMetrics())
}

func renderStats(r *output.Renderer, title string, stats engine.Stats) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(stats)
	}
	r.Header(1, title)
	r.KeyValue("Records", strconv.Itoa(stats.Records))
	r.KeyValue("Produced", strconv.Itoa(stats.Produced))
	r.KeyValue("Skipped", strconv.Itoa(stats.Skipped))
	r.Println()

	if len(stats.Families) > 0 {
		var rows [][]string
		for _, f := range slices.Sorted(maps.Keys(stats.Families)) {
			rows = append(rows, []string{string(f), strconv.Itoa(stats.Families[f])})
		}
		if err := r.Table([]string{"family", "count"}, rows); err != nil {
			return err
		}
	}
	if len(stats.Rejections) > 0 {
		var rows [][]string
		for _, id := range slices.Sorted(maps.Keys(stats.Rejections)) {
			rows = append(rows, []string{id, strconv.Itoa(stats.Rejections[id])})
		}
		if err := r.Table([]string{"filter", "rejected"}, rows); err != nil {
			return err
		}
	}
	if len(stats.Sources) > 0 {
		var rows [][]string
		for _, s := range slices.Sorted(maps.Keys(stats.Sources)) {
			rows = append(rows, []string{s, strconv.Itoa(stats.Sources[s])})
		}
		if err := r.Table([]string{"source", "answers"}, rows); err != nil {
			return err
		}
	}
	return nil
}
