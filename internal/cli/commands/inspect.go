package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/dag"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/editor"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <decomposition>",
		Short: "Show how a decomposition is parsed",
		Long: `Parse a decomposition and show each step's operator, arguments,
references and corpus signature, followed by the structural validity of
the program. Steps are separated by ';'.`,
		Example: `  leapqdmr parse "return touchdowns ;return number of #1"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			return renderParse(cc.Renderer, args[0])
		},
	}
}

// StepView is the JSON form of a parsed step.
type StepView struct {
	Index      int      `json:"index"`
	Operator   string   `json:"operator"`
	Arguments  []string `json:"arguments"`
	References []int    `json:"references,omitempty"`
	Signature  string   `json:"signature"`
	Text       string   `json:"text"`
}

// ParseView is the JSON form of a parsed program. Order is the step
// evaluation order; it is empty when the references form a cycle.
type ParseView struct {
	Steps      []StepView `json:"steps"`
	References int        `json:"references"`
	Order      []int      `json:"order,omitempty"`
	Cycle      []int      `json:"cycle,omitempty"`
	Valid      bool       `json:"valid"`
	Error      string     `json:"error,omitempty"`
}

func parseView(decomposition string) (ParseView, error) {
	p, err := qdmr.Parse(decomposition)
	if err != nil {
		return ParseView{}, err
	}
	view := ParseView{Valid: true}
	for i, s := range p.Steps() {
		view.Steps = append(view.Steps, StepView{
			Index:      i + 1,
			Operator:   s.Op.String(),
			Arguments:  s.Args,
			References: s.References(),
			Signature:  filter.StepSignature(s),
			Text:       s.Text,
		})
	}
	if g, err := dag.FromProgram(p); err == nil {
		view.References = g.EdgeCount()
		if cyclic, path := g.HasCycle(); cyclic {
			view.Cycle = path
		} else if view.Order, err = g.TopologicalSort(); err != nil {
			return ParseView{}, err
		}
	}
	if err := editor.Validate(p); err != nil {
		view.Valid, view.Error = false, err.Error()
	}
	return view, nil
}

func renderParse(r *output.Renderer, decomposition string) error {
	view, err := parseView(decomposition)
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(view)
	}

	rows := make([][]string, 0, len(view.Steps))
	for _, s := range view.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Index), s.Operator, strings.Join(s.Arguments, " | "), joinRefs(s.References, " "), s.Signature,
		})
	}
	if err := r.Table([]string{"#", "operator", "arguments", "refs", "signature"}, rows); err != nil {
		return err
	}
	muted := r.Styles().Muted
	switch {
	case len(view.Cycle) > 0:
		r.Println(muted.Render("cycle: " + joinRefs(view.Cycle, " -> ")))
	case len(view.Order) > 0:
		r.Println(muted.Render(fmt.Sprintf("%d references, evaluation order: %s", view.References, joinRefs(view.Order, " "))))
	}
	if view.Valid {
		r.Success("valid")
	} else {
		r.Println(r.Styles().Error.Render("invalid: " + view.Error))
	}
	return nil
}

func joinRefs(steps []int, sep string) string {
	refs := make([]string, len(steps))
	for i, k := range steps {
		refs[i] = qdmr.Ref(k)
	}
	return strings.Join(refs, sep)
}

// MutateOptions holds options for the mutate command.
type MutateOptions struct {
	Question string
	ID       string
	Filter   bool
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand() *cobra.Command {
	opts := &MutateOptions{}
	cmd := &cobra.Command{
		Use:   "mutate <decomposition>",
		Short: "List the candidates generated for one decomposition",
		Long: `Apply every transformation to one decomposition and list the candidates.

Candidates are not filtered unless --filter is given; the corpus filters
then use the stored corpus or --corpus.`,
		Example: `  # All candidates
  leapqdmr mutate "return touchdowns ;return number of #1"

  # Candidates with a question, after filtering
  leapqdmr mutate -q "How many touchdowns were scored?" --filter \
    "return touchdowns ;return number of #1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutate(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Question, "question", "q", "", "question text used for rewrites")
	cmd.Flags().StringVar(&opts.ID, "id", "example", "question id used in candidate ids")
	cmd.Flags().BoolVar(&opts.Filter, "filter", false, "apply the candidate filters")
	cmd.Flags().String("corpus", "", "Break-format CSV to build the filter corpus from")
	cmd.Flags().StringSlice("disable", nil, "filter rules to disable")
	cmd.Flags().Int("limit", -1, "maximum appended boolean steps (-1 for no limit)")
	cmd.Flags().Uint64("seed", engine.DefaultSeed, "seed for sampling")
	cmd.Flags().String("numeric-answers", "", "JSON file of question id to numeric answer")
	_ = cmd.RegisterFlagCompletionFunc("disable", completeFilterIDs)
	return cmd
}

// CandidateView is the JSON form of a candidate.
type CandidateView struct {
	ID             string   `json:"id"`
	Family         string   `json:"family"`
	Transformation string   `json:"transformation"`
	Program        string   `json:"program"`
	Paraphrase     string   `json:"paraphrase,omitempty"`
	Rejected       []string `json:"rejected_by,omitempty"`
}

func runMutate(cmd *cobra.Command, decomposition string, opts *MutateOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	var corpus *filter.Corpus
	var eng *engine.Engine
	if opts.Filter || cc.Cfg.Generate.NumericAnswers != "" {
		store, err := cc.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		if opts.Filter {
			if corpus, err = cc.LoadCorpus(ctx, store); err != nil {
				return err
			}
		}
		answers, err := cc.LoadNumericAnswers(ctx, store)
		if err != nil {
			return err
		}
		eng = cc.NewEngine(corpus, answers)
	} else {
		eng = cc.NewEngine(nil, nil)
	}

	views, err := mutateViews(eng, opts.ID, opts.Question, decomposition, opts.Filter)
	if err != nil {
		return err
	}
	return renderCandidates(cc.Renderer, views)
}

// mutateViews generates candidates for one decomposition. With filtered
// set, rejected candidates are listed with the rules they failed.
func mutateViews(eng *engine.Engine, id, question, decomposition string, filtered bool) ([]CandidateView, error) {
	rec := dataio.BreakRecord{ID: id, Question: question, Decomposition: decomposition}
	if !filtered {
		cands, err := eng.Mutate(0, rec)
		if err != nil {
			return nil, err
		}
		views := make([]CandidateView, 0, len(cands))
		for _, c := range cands {
			views = append(views, candidateView(c))
		}
		return views, nil
	}

	g := eng.GenerateRecord(0, rec)
	if g.Err != nil {
		return nil, g.Err
	}
	views := make([]CandidateView, 0, len(g.Kept)+len(g.Rejected))
	for _, c := range g.Kept {
		views = append(views, candidateView(c))
	}
	for _, rej := range g.Rejected {
		views = append(views, CandidateView{
			ID:             rej.ID,
			Family:         string(rej.Family),
			Transformation: strings.TrimPrefix(rej.ID, id+"+"),
			Program:        rej.Program.String(),
			Rejected:       rej.Rules,
		})
	}
	return views, nil
}

func candidateView(c transform.Candidate) CandidateView {
	return CandidateView{
		ID:             c.ID,
		Family:         string(c.Descriptor.Family),
		Transformation: c.Descriptor.String(),
		Program:        c.Program.String(),
		Paraphrase:     c.Paraphrase,
	}
}

func renderCandidates(r *output.Renderer, views []CandidateView) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}
	rows := make([][]string, 0, len(views))
	kept := 0
	for _, v := range views {
		status := "kept"
		if len(v.Rejected) > 0 {
			status = "rejected: " + strings.Join(v.Rejected, ", ")
		} else {
			kept++
		}
		rows = append(rows, []string{v.Transformation, v.Program, v.Paraphrase, status})
	}
	if err := r.Table([]string{"transformation", "program", "paraphrase", "status"}, rows); err != nil {
		return err
	}
	r.Println(r.Styles().Muted.Render(fmt.Sprintf("%d candidates, %d kept", len(views), kept)))
	return nil
}
