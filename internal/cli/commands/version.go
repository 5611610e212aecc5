package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	if info.Go == "" {
		info.Go = runtime.Version()
	}
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapqdmr version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContext(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("leapqdmr v%s\n", info.Version)
			r.Println("QDMR contrast set generator")
			if info.Commit != "" && info.Commit != "unknown" {
				r.Println(r.Styles().Muted.Render(fmt.Sprintf("commit %s, built %s, %s", info.Commit, info.Date, info.Go)))
			}
			return nil
		},
	}
}
