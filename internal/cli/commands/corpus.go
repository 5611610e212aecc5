package commands

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

// NewCorpusCommand creates the corpus command group.
func NewCorpusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Build and inspect the filter corpus",
		Long: `The corpus records which step signatures and program signatures occur
in real decompositions. The data_programs and data_operators filters reject
candidates whose structure the corpus has never seen.`,
	}
	cmd.AddCommand(newCorpusBuildCommand(), newCorpusStatsCommand())
	return cmd
}

func newCorpusBuildCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the corpus from a Break-format CSV",
		Example: `  # Replace the stored corpus with the training split
  leapqdmr corpus build --input break_train.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCorpusBuild(cmd, input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Break-format CSV to read (- for stdin)")
	return cmd
}

func runCorpusBuild(cmd *cobra.Command, input string) (err error) {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	in, err := openInput(input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	// Reading the whole file first keeps a malformed row from replacing
	// the stored corpus with a partial one.
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

	run, err := store.CreateRun(ctx, state.StageCorpus, input)
	if err != nil {
		return err
	}
	stats := engine.Stats{Records: len(recs)}
	defer func() { err = finishRun(ctx, cc, store, run, stats, err) }()

	corpus, skipped := engine.BuildCorpus(recs, cc.Logger)
	stats.Produced, stats.Skipped = corpus.Examples(), skipped
	snap := corpus.Snapshot()
	if err := store.SaveCorpus(ctx, snap, input); err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]int{
			"records":  len(recs),
			"examples": corpus.Examples(),
			"programs": corpus.ProgramCount(),
			"steps":    len(snap.Counts),
			"skipped":  skipped,
		})
	}
	r.Success(fmt.Sprintf("Corpus built from %d examples (%d distinct programs, %d step signatures)",
		corpus.Examples(), corpus.ProgramCount(), len(snap.Counts)))
	if skipped > 0 {
		r.Warning(fmt.Sprintf("%d records skipped", skipped))
	}
	return nil
}

func newCorpusStatsCommand() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the stored corpus",
		Example: `  # Show the 20 most frequent step signatures
  leapqdmr corpus stats --top 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCorpusStats(cmd, top)
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of step signatures to list (0 for all)")
	return cmd
}

// SignatureStat is one step signature and its corpus frequency.
type SignatureStat struct {
	Signature string  `json:"signature"`
	Examples  int     `json:"examples"`
	Percent   float64 `json:"percent"`
}

// topSignatures orders step signatures by example count, then name.
func topSignatures(snap filter.Snapshot, n int) []SignatureStat {
	corpus := filter.FromSnapshot(snap)
	sigs := slices.SortedFunc(maps.Keys(snap.Counts), func(a, b string) int {
		return cmp.Or(cmp.Compare(snap.Counts[b], snap.Counts[a]), cmp.Compare(a, b))
	})
	if n > 0 && len(sigs) > n {
		sigs = sigs[:n]
	}
	out := make([]SignatureStat, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, SignatureStat{Signature: s, Examples: snap.Counts[s], Percent: corpus.Percent(s)})
	}
	return out
}

func runCorpusStats(cmd *cobra.Command, top int) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	info, err := store.CorpusInfo(ctx)
	if errors.Is(err, state.ErrNoCorpus) {
		return fmt.Errorf("no corpus in %s; run 'leapqdmr corpus build' first", cc.Cfg.StatePath)
	}
	if err != nil {
		return err
	}
	snap, err := store.LoadCorpus(ctx)
	if err != nil {
		return err
	}
	sigs := topSignatures(snap, top)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			*state.CorpusInfo
			Signatures []SignatureStat `json:"signatures"`
		}{info, sigs})
	}

	r.Header(1, "Corpus")
	r.KeyValue("Source", info.Source)
	r.KeyValue("Built", info.BuiltAt.Format(time.RFC3339))
	r.KeyValue("Examples", strconv.Itoa(info.Examples))
	r.KeyValue("Programs", strconv.Itoa(info.Programs))
	r.KeyValue("Step signatures", strconv.Itoa(info.Steps))
	r.Println()

	rows := make([][]string, 0, len(sigs))
	for _, s := range sigs {
		rows = append(rows, []string{s.Signature, strconv.Itoa(s.Examples), strconv.FormatFloat(s.Percent, 'f', 2, 64)})
	}
	return r.Table([]string{"signature", "examples", "percent"}, rows)
}
