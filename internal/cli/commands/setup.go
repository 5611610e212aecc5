package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapqdmr/internal/cli/config"
	"github.com/leapstack-labs/leapqdmr/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapqdmr/internal/config"
	"github.com/leapstack-labs/leapqdmr/internal/engine"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/metrics"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
	"github.com/leapstack-labs/leapqdmr/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Metrics  *metrics.Pipeline
	Registry *prometheus.Registry
}

// NewCommandContext creates a CommandContext for cmd.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	reg := prometheus.NewRegistry()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
		Metrics:  metrics.New(reg),
		Registry: reg,
	}
}

// getConfig returns the loaded configuration, or the defaults when the
// command runs without the root pre-run (as in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return intconfig.Default()
}

// OpenStore opens and migrates the state database. The caller must close it.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore()
	store.SetLogger(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}

// LoadCorpus returns the corpus for filtering. A configured corpus CSV is
// built on the fly; otherwise the corpus saved in the state store is used.
// No corpus at all disables the corpus rules with a warning.
func (c *CommandContext) LoadCorpus(ctx context.Context, store state.Store) (*filter.Corpus, error) {
	if path := c.Cfg.Filters.Corpus; path != "" {
		recs, err := readBreakFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus: %w", err)
		}
		corpus, skipped := engine.BuildCorpus(recs, c.Logger)
		c.Logger.Info("built corpus", slog.String("path", path),
			slog.Int("examples", corpus.Examples()), slog.Int("skipped", skipped))
		return corpus, nil
	}
	if store == nil {
		return nil, nil
	}
	snap, err := store.LoadCorpus(ctx)
	if errors.Is(err, state.ErrNoCorpus) {
		c.Renderer.Warning("no corpus in state store; corpus filters are disabled (run 'leapqdmr corpus build')")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return filter.FromSnapshot(snap), nil
}

// LoadNumericAnswers returns the numeric answers from the configured file,
// saving them to the store, or else the ones already in the store.
func (c *CommandContext) LoadNumericAnswers(ctx context.Context, store state.Store) (*numeric.Answers, error) {
	if path := c.Cfg.Generate.NumericAnswers; path != "" {
		answers, err := numeric.LoadAnswers(path)
		if err != nil {
			return nil, err
		}
		if store != nil {
			if err := store.SaveNumericAnswers(ctx, answers); err != nil {
				return nil, err
			}
		}
		return answers, nil
	}
	if store == nil {
		return nil, nil
	}
	answers, err := store.LoadNumericAnswers(ctx)
	if err != nil {
		return nil, err
	}
	if answers.Len() == 0 {
		return nil, nil
	}
	return answers, nil
}

// NewEngine creates a pipeline engine from the configuration.
func (c *CommandContext) NewEngine(corpus *filter.Corpus, answers *numeric.Answers) *engine.Engine {
	return engine.New(engine.Config{
		Corpus:             corpus,
		Filter:             c.Cfg.FilterConfig(),
		AppendBooleanLimit: c.Cfg.Generate.AppendBooleanLimit,
		NumericAnswers:     answers,
		Seed:               c.Cfg.Generate.Seed,
		Workers:            c.Cfg.Workers,
		Metrics:            c.Metrics,
		Logger:             c.Logger,
	})
}

// WriteMetrics writes the metrics file when one is configured.
func (c *CommandContext) WriteMetrics() error {
	if c.Cfg.MetricsFile == "" {
		return nil
	}
	if err := c.Metrics.WriteFile(c.Cfg.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// openInput opens path for reading; "-" reads from in.
func openInput(path string, in io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(in), nil
	}
	f, err := os.Open(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// openOutput creates path for writing; "" or "-" writes to out.
func openOutput(path string, out io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{out}, nil
	}
	f, err := os.Create(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
