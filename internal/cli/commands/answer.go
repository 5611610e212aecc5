package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

// AnswerOptions holds options for the answer command.
type AnswerOptions struct {
	Input  string
	Output string
}

// NewAnswerCommand creates the answer command.
func NewAnswerCommand() *cobra.Command {
	opts := &AnswerOptions{}
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Derive answers for transformed questions",
		Long: `Read JSON-lines answer requests and write one answer record per request.

Each request carries the original question and answer, the transformation,
the transformed program, an optional generated question and per-step leaf
predictions. Answers come from the closed-form rule for the transformation
when one applies, else from evaluating the transformed program on the leaf
predictions. Records without an answer keep the constraint relating them to
the original answer.`,
		Example: `  # Derive answers
  leapqdmr answer --input requests.jsonl --output answers.jsonl

  # Read from stdin with four workers
  cat requests.jsonl | leapqdmr answer --workers 4 > answers.jsonl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnswer(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "-", "JSON-lines requests to read (- for stdin)")
	cmd.Flags().StringVar(&opts.Output, "output", "-", "JSON-lines answers to write (- for stdout)")

	return cmd
}

func runAnswer(cmd *cobra.Command, opts *AnswerOptions) (err error) {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	in, err := openInput(opts.Input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reqs, err := dataio.ReadAnswerRequests(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.CreateRun(ctx, state.StageAnswer, opts.Input)
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
	jw := dataio.NewJSONLWriter[dataio.AnswerRecord](out)

	eng := cc.NewEngine(nil, nil)
	stats, err = eng.Answer(ctx, reqs, func(a engine.Answered) error {
		if a.Err != nil {
			return nil
		}
		return jw.Write(a.Record)
	})
	if err != nil {
		return err
	}
	if err := jw.Flush(); err != nil {
		return fmt.Errorf("failed to write answers: %w", err)
	}

	if opts.Output != "" && opts.Output != "-" {
		return renderStats(cc.Renderer, "Answers", stats)
	}
	return nil
}
