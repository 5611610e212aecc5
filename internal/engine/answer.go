package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapqdmr/internal/answer"
	"github.com/leapstack-labs/leapqdmr/internal/dataio"
	"github.com/leapstack-labs/leapqdmr/internal/metrics"
	"github.com/leapstack-labs/leapqdmr/internal/transform"
	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

const stageAnswer = "answer"

// Answered is the outcome for one answer request.
type Answered struct {
	Record dataio.AnswerRecord
	Family transform.Family
	// Err is set when the request was skipped as malformed.
	Err error
}

// Request converts an answer request into a derivation request.
func Request(req dataio.AnswerRequest) (answer.Request, error) {
	d, err := transform.ParseDescriptor(req.Transformation)
	if err != nil {
		return answer.Request{}, fmt.Errorf("transformation: %w", err)
	}
	prog, err := qdmr.ParseClauses(req.Transformed)
	if err != nil {
		return answer.Request{}, fmt.Errorf("transformed program: %w", err)
	}
	var orig *qdmr.Program
	if len(req.Decomposition) > 0 {
		if orig, err = qdmr.ParseClauses(req.Decomposition); err != nil {
			return answer.Request{}, fmt.Errorf("original program: %w", err)
		}
	}
	var origAnswer string
	if len(req.OrigAnswers) > 0 {
		origAnswer = req.OrigAnswers[0]
	}
	return answer.Request{
		ID:         req.ID,
		Question:   req.Question,
		Paraphrase: req.GeneratedQuestion,
		Original:   orig,
		Program:    prog,
		Descriptor: d,
		OrigAnswer: origAnswer,
		Numbers:    req.OrigNumbers,
		Leaves:     req.StepAnswers,
	}, nil
}

// AnswerRecord derives the answer and constraint for one request. A
// request without a derivable answer still yields a record, with Error
// set and the constraint when one applies.
func (e *Engine) AnswerRecord(req dataio.AnswerRequest) Answered {
	out := Answered{Record: dataio.AnswerRecord{
		ID:                req.ID,
		Transformation:    req.Transformation,
		GeneratedQuestion: req.GeneratedQuestion,
		Transformed:       req.Transformed,
	}}
	out.Err = e.isolate(stageAnswer, req.ID, func() error {
		ar, err := Request(req)
		if err != nil {
			e.skip(stageAnswer, req.ID, metrics.ReasonInput, err)
			return fmt.Errorf("request %s: %w", req.ID, err)
		}
		out.Family = ar.Descriptor.Family

		res, err := e.deriver.Derive(ar)
		out.Record.Constraint = res.Constraint
		if err != nil {
			if !errors.Is(err, answer.ErrNoAnswer) {
				return err
			}
			out.Record.Error = err.Error()
			return nil
		}
		a := res.Answer
		out.Record.Answer = &a
		out.Record.Source = res.Source
		return nil
	})
	return out
}

// Answer runs the answering stage and calls emit once per request in
// input order, skipped requests included.
func (e *Engine) Answer(ctx context.Context, reqs []dataio.AnswerRequest, emit func(Answered) error) (Stats, error) {
	start := time.Now()
	defer func() {
		e.metrics.Duration.WithLabelValues(stageAnswer).Observe(time.Since(start).Seconds())
	}()
	e.logger.Info("deriving answers", slog.Int("requests", len(reqs)), slog.Int("workers", e.workers))

	results := make([]Answered, len(reqs))
	stats := newStats()
	err := e.forEach(ctx, len(reqs),
		func(i int) { results[i] = e.AnswerRecord(reqs[i]) },
		func(i int) error {
			res := results[i]
			stats.Records++
			e.metrics.Records.WithLabelValues(stageAnswer).Inc()
			switch {
			case res.Err != nil:
				stats.Skipped++
			case res.Record.Answer == nil:
				e.metrics.Unanswered.WithLabelValues(string(res.Family)).Inc()
			default:
				stats.Produced++
				stats.Families[res.Family]++
				stats.Sources[res.Record.Source]++
				e.metrics.Answers.WithLabelValues(res.Record.Source).Inc()
			}
			if c := res.Record.Constraint; c != "" && res.Err == nil {
				e.metrics.Constraints.WithLabelValues(c).Inc()
			}
			return emit(res)
		})
	if err != nil {
		return stats, err
	}

	e.logger.Info("answering complete",
		slog.Int("requests", stats.Records),
		slog.Int("answered", stats.Produced),
		slog.Int("skipped", stats.Skipped))
	return stats, nil
}
