package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		Long:  `List the generate, answer and corpus runs recorded in the state database, newest first.`,
		Example: `  leapqdmr runs
  leapqdmr runs --count 50 --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			store, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), count)
			if err != nil {
				return err
			}
			return renderRuns(cc.Renderer, runs)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 20, "maximum runs to show (0 for all)")
	return cmd
}

func renderRuns(r *output.Renderer, runs []*state.Run) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Println(r.Styles().Muted.Render("No runs recorded."))
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			run.ID[:min(8, len(run.ID))],
			string(run.Stage),
			run.Input,
			string(run.Status),
			strconv.Itoa(run.Stats.Records),
			strconv.Itoa(run.Stats.Produced),
			strconv.Itoa(run.Stats.Skipped),
			run.StartedAt.Local().Format(time.DateTime),
			duration,
			run.Error,
		})
	}
	return r.Table([]string{"id", "stage", "input", "status", "records", "produced", "skipped", "started", "duration", "error"}, rows)
}
