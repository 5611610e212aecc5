package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/editor"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/metrics"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

const stageGenerate = "generate"

// Generated is the outcome for one Break record.
type Generated struct {
	Record dataio.BreakRecord
	// Kept are the candidates that passed every filter, in generation order.
	Kept     []transform.Candidate
	Rejected []filter.Rejection
	// Err is set when the record was skipped.
	Err error
}

// GenerateRecord parses, validates, mutates and filters one record. index
// selects the record's random source.
func (e *Engine) GenerateRecord(index int, rec dataio.BreakRecord) Generated {
	out := Generated{Record: rec}
	out.Err = e.isolate(stageGenerate, rec.ID, func() error {
		cands, err := e.mutate(index, rec)
		if err != nil {
			return err
		}
		out.Kept, out.Rejected = e.filter.Apply(cands)
		return nil
	})
	return out
}

// Mutate returns every candidate for one record, without filtering.
func (e *Engine) Mutate(index int, rec dataio.BreakRecord) ([]transform.Candidate, error) {
	var cands []transform.Candidate
	err := e.isolate(stageGenerate, rec.ID, func() (err error) {
		cands, err = e.mutate(index, rec)
		return err
	})
	return cands, err
}

func (e *Engine) mutate(index int, rec dataio.BreakRecord) ([]transform.Candidate, error) {
	p, err := qdmr.Parse(rec.Decomposition)
	if err != nil {
		e.skip(stageGenerate, rec.ID, metrics.ReasonParse, err)
		return nil, fmt.Errorf("parsing %s: %w", rec.ID, err)
	}
	if err := editor.Validate(p); err != nil {
		e.skip(stageGenerate, rec.ID, metrics.ReasonStructural, err)
		return nil, fmt.Errorf("validating %s: %w", rec.ID, err)
	}

	ex := transform.Example{ID: rec.ID, Question: rec.Question, Program: p}
	// Failed attempts are logged by the transformer and only drop
	// the candidates they affect.
	cands, _ := e.transformer.Generate(ex, e.rng(index))
	for _, c := range cands {
		e.metrics.Candidates.WithLabelValues(string(c.Descriptor.Family)).Inc()
	}
	return cands, nil
}

func (e *Engine) skip(stage, id, reason string, err error) {
	e.metrics.Skipped.WithLabelValues(stage, reason).Inc()
	e.logger.Warn("skipping record",
		slog.String("stage", stage),
		slog.String("record", id),
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}

// Generate runs the generation stage over recs and calls emit once per
// record in input order, skipped records included.
func (e *Engine) Generate(ctx context.Context, recs []dataio.BreakRecord, emit func(Generated) error) (Stats, error) {
	start := time.Now()
	defer func() {
		e.metrics.Duration.WithLabelValues(stageGenerate).Observe(time.Since(start).Seconds())
	}()
	e.logger.Info("generating candidates", slog.Int("records", len(recs)), slog.Int("workers", e.workers))

	results := make([]Generated, len(recs))
	stats := newStats()
	err := e.forEach(ctx, len(recs),
		func(i int) { results[i] = e.GenerateRecord(i, recs[i]) },
		func(i int) error {
			res := results[i]
			stats.Records++
			e.metrics.Records.WithLabelValues(stageGenerate).Inc()
			if res.Err != nil {
				stats.Skipped++
				return emit(res)
			}
			for _, c := range res.Kept {
				stats.Produced++
				stats.Families[c.Descriptor.Family]++
				e.metrics.Kept.WithLabelValues(string(c.Descriptor.Family)).Inc()
			}
			for _, r := range res.Rejected {
				for _, id := range r.Rules {
					stats.Rejections[id]++
					e.metrics.Rejections.WithLabelValues(id).Inc()
				}
			}
			return emit(res)
		})
	if err != nil {
		return stats, err
	}

	e.logger.Info("generation complete",
		slog.Int("records", stats.Records),
		slog.Int("candidates", stats.Produced),
		slog.Int("skipped", stats.Skipped))
	return stats, nil
}

// BuildCorpus records the signature of every record that parses and is
// structurally valid. It returns the number of records skipped.
func BuildCorpus(recs []dataio.BreakRecord, logger *slog.Logger) (*filter.Corpus, int) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := filter.NewBuilder()
	skipped := 0
	for _, rec := range recs {
		p, err := qdmr.Parse(rec.Decomposition)
		if err == nil {
			err = editor.Validate(p)
		}
		if err != nil {
			skipped++
			logger.Debug("corpus record skipped", slog.String("record", rec.ID), slog.String("error", err.Error()))
			continue
		}
		b.Add(p)
	}
	return b.Build(), skipped
}
