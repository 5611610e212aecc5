package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/config"
	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
)

const replPrompt = "qdmr> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Explore decompositions interactively",
		Long: `Start an interactive session. Each line is a decomposition; the session
prints the candidates generated for it. Dot-commands parse a decomposition,
set the question used for rewrites and switch filtering on or off.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

// replSession holds the state of one interactive session.
type replSession struct {
	eng      *engine.Engine
	r        *output.Renderer
	question string
	filter   bool
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)

	var corpus *filter.Corpus
	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	corpus, err = cc.LoadCorpus(ctx, store)
	_ = store.Close()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(config.StateDir(cc.Cfg), "repl_history"),
		AutoComplete:    newREPLCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{eng: cc.NewEngine(corpus, nil), r: cc.Renderer}
	s.r.Println(s.r.Styles().Header1.Render("leapqdmr REPL"))
	s.r.Println("Enter a decomposition (steps separated by ';'). Type .help for commands, .quit to exit")
	s.r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if quit := s.handle(strings.TrimSpace(line)); quit {
			break
		}
	}
	return nil
}

// handle runs one input line and reports whether the session should end.
func (s *replSession) handle(line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ".") {
		s.report(s.mutate(line))
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.r.Writer())
	case ".parse":
		if arg == "" {
			s.r.Error("usage: .parse <decomposition>")
			break
		}
		s.report(renderParse(s.r, arg))
	case ".question":
		s.question = arg
		if arg == "" {
			s.r.Println(s.r.Styles().Muted.Render("question cleared"))
		}
	case ".filter":
		switch strings.ToLower(arg) {
		case "on":
			s.filter = true
		case "off":
			s.filter = false
		default:
			s.r.Error("usage: .filter on|off")
		}
	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (s *replSession) mutate(decomposition string) error {
	views, err := mutateViews(s.eng, "repl", s.question, decomposition, s.filter)
	if err != nil {
		return err
	}
	return renderCandidates(s.r, views)
}

func (s *replSession) report(err error) {
	if err != nil {
		s.r.Error(err.Error())
	}
	s.r.Println()
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  <decomposition>        List the candidates for a decomposition
  .parse <decomposition> Show parsed steps and validity
  .question <text>       Set the question used for rewrites (empty clears)
  .filter on|off         Apply the candidate filters
  .help                  Show this help message
  .quit / .exit          Exit the REPL

Tips:
  - Steps are separated by ';' and reference earlier steps as #1, #2, ...
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newREPLCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".parse"),
		readline.PcItem(".question"),
		readline.PcItem(".filter", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
