package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
)

// Rule states shown by the filters command.
const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
	StatusInactive = "inactive"
)

// NewFiltersCommand creates the filters command.
func NewFiltersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters [rule-id]",
		Short: "List candidate filter rules",
		Long: `List the rules that discard implausible candidates and whether each
one is enabled by the current configuration.

Rules are disabled with filters.disabled in leapqdmr.yaml or --disable on
generate. The dataset policy rule is only active when a dataset is set.
Corpus rules are skipped when no corpus is available.`,
		Example: `  # List all rules
  leapqdmr filters

  # Show one rule
  leapqdmr filters self_diff

  # List rules as JSON
  leapqdmr filters --format json`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return filter.IDs(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			rules := filter.All()
			if len(args) > 0 {
				rule, ok := filter.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown filter %q (available: %s)", args[0], strings.Join(filter.IDs(), ", "))
				}
				rules = []filter.RuleDef{rule}
			}
			return renderFilters(cc.Renderer, ruleViews(rules, cc.Cfg.FilterConfig()))
		},
	}
	return cmd
}

// RuleView is the JSON form of a filter rule.
type RuleView struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	NeedsCorpus bool     `json:"needs_corpus"`
	Exempt      []string `json:"exempt,omitempty"`
}

func ruleViews(rules []filter.RuleDef, cfg *filter.Config) []RuleView {
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		status := StatusEnabled
		switch {
		case cfg.IsDisabled(r.ID):
			status = StatusDisabled
		case r.Active != nil && !r.Active(cfg):
			status = StatusInactive
		}
		v := RuleView{ID: r.ID, Description: r.Description, Status: status, NeedsCorpus: r.NeedsCorpus}
		for _, f := range r.Exempt {
			v.Exempt = append(v.Exempt, string(f))
		}
		views = append(views, v)
	}
	return views
}

func renderFilters(r *output.Renderer, views []RuleView) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(views)
	case output.ModeText:
		renderFiltersText(r, views)
		return nil
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		notes := strings.Join(ruleNotes(v), "; ")
		rows = append(rows, []string{v.ID, v.Status, v.Description, notes})
	}
	return r.Table([]string{"rule", "status", "description", "notes"}, rows)
}

func renderFiltersText(r *output.Renderer, views []RuleView) {
	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Filter rules (%d)", len(views)))

	idWidth := 0
	for _, v := range views {
		idWidth = max(idWidth, lipgloss.Width(v.ID))
	}
	idStyle := styles.Bold.Width(idWidth + 2)
	for _, v := range views {
		statusStyle := styles.Success
		switch v.Status {
		case StatusDisabled:
			statusStyle = styles.Error
		case StatusInactive:
			statusStyle = styles.Muted
		}
		r.Printf("%s%s %s\n", idStyle.Render(v.ID), statusStyle.Width(10).Render(v.Status), v.Description)
		for _, note := range ruleNotes(v) {
			r.Printf("%s %s\n", strings.Repeat(" ", idWidth+2), styles.Muted.Render(note))
		}
	}
}

func ruleNotes(v RuleView) []string {
	var notes []string
	if v.NeedsCorpus {
		notes = append(notes, "needs a corpus")
	}
	if len(v.Exempt) > 0 {
		notes = append(notes, "exempt: "+strings.Join(v.Exempt, ", "))
	}
	return notes
}
