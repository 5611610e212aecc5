// Package engine runs the two batch stages of the pipeline: generating
// filtered contrast candidates from Break records, and deriving answers
// for candidates once their paraphrases and step predictions exist.
//
// Records are independent. A record that fails to parse, is structurally
// invalid, or panics is skipped with a warning and never affects the
// other records. Workers run in parallel but results are emitted in
// input order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapqdmr/internal/answer"
	"github.com/leapstack-labs/leapqdmr/internal/evaluator"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/metrics"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
)

// DefaultSeed seeds the per-record random sources.
const DefaultSeed = 42

// ErrRecordPanic wraps a panic recovered while processing one record.
var ErrRecordPanic = errors.New("record processing panicked")

// Config holds engine configuration.
type Config struct {
	// Corpus enables the corpus filter rules when set.
	Corpus *filter.Corpus
	// Filter selects and tunes filter rules; nil uses the defaults.
	Filter *filter.Config
	// AppendBooleanLimit caps appended-boolean candidates per record;
	// negative means no cap.
	AppendBooleanLimit int
	// NumericAnswers feeds the appended-boolean thresholds.
	NumericAnswers *numeric.Answers
	// Seed makes sampling reproducible. Each record draws from its own
	// source seeded with Seed and the record index.
	Seed uint64
	// Workers bounds parallelism; values below 1 mean 1.
	Workers int
	// Metrics is optional.
	Metrics *metrics.Pipeline
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine orchestrates both stages. It holds only read-only tables after
// construction and is safe for concurrent use.
type Engine struct {
	transformer *transform.Engine
	filter      *filter.Filter
	deriver     *answer.Deriver
	metrics     *metrics.Pipeline
	logger      *slog.Logger
	seed        uint64
	workers     int
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	workers := max(cfg.Workers, 1)

	numbers := numeric.NewTable()
	mutators := transform.DefaultMutators(transform.Options{
		AppendBooleanLimit: cfg.AppendBooleanLimit,
		Numbers:            cfg.NumericAnswers,
	})

	return &Engine{
		transformer: transform.NewEngine(logger, mutators...),
		filter:      filter.New(cfg.Corpus, cfg.Filter, logger),
		deriver:     answer.NewDeriver(numbers, evaluator.New(numbers, logger), logger),
		metrics:     m,
		logger:      logger,
		seed:        cfg.Seed,
		workers:     workers,
	}
}

// Filter returns the candidate filter in use.
func (e *Engine) Filter() *filter.Filter { return e.filter }

// Stats summarizes one stage run.
type Stats struct {
	Records  int
	Produced int
	Skipped  int
	// Families counts produced items by transformation family.
	Families map[transform.Family]int
	// Rejections counts failed filter rules by id.
	Rejections map[string]int
	// Sources counts derived answers by rule or evaluator.
	Sources map[string]int
}

func newStats() Stats {
	return Stats{
		Families:   map[transform.Family]int{},
		Rejections: map[string]int{},
		Sources:    map[string]int{},
	}
}

func (e *Engine) rng(index int) *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, uint64(index))) //nolint:gosec // sampling, not security
}

// isolate runs fn and converts a panic into an error for this record.
func (e *Engine) isolate(stage, id string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRecordPanic, r)
			e.metrics.Skipped.WithLabelValues(stage, metrics.ReasonPanic).Inc()
			e.logger.Warn("recovered from panic", slog.String("stage", stage), slog.String("record", id), slog.Any("panic", r))
		}
	}()
	return fn()
}

// forEach runs work for every index on a bounded pool, then calls emit
// for each index in order. An emit error stops the run.
func (e *Engine) forEach(ctx context.Context, n int, work func(i int), emit func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			work(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range n {
		if err := emit(i); err != nil {
			return err
		}
	}
	return nil
}
