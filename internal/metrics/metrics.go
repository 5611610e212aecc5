// Package metrics holds the Prometheus counters of the generation and
// answering pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leapqdmr"

// Skip reasons.
const (
	ReasonParse      = "parse"
	ReasonStructural = "structural"
	ReasonPanic      = "panic"
	ReasonInput      = "input"
)

// Pipeline holds the counters updated by the engine.
type Pipeline struct {
	// Records counts input records by stage.
	Records *prometheus.CounterVec
	// Skipped counts records dropped by stage and reason.
	Skipped *prometheus.CounterVec
	// Candidates counts generated candidates by family.
	Candidates *prometheus.CounterVec
	// Kept counts candidates that passed every filter by family.
	Kept *prometheus.CounterVec
	// Rejections counts failed filter rules by rule id.
	Rejections *prometheus.CounterVec
	// Answers counts derived answers by source.
	Answers *prometheus.CounterVec
	// Unanswered counts candidates without an answer by family.
	Unanswered *prometheus.CounterVec
	// Constraints counts emitted constraint tags.
	Constraints *prometheus.CounterVec
	// Duration observes stage wall time in seconds.
	Duration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the pipeline metrics on reg. A nil reg gets a private
// registry, so concurrent pipelines never collide.
func New(reg *prometheus.Registry) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Pipeline{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Input records read, by stage",
		}, []string{"stage"}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Input records skipped, by stage and reason",
		}, []string{"stage", "reason"}),
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_generated_total",
			Help:      "Candidates produced by the mutators, by family",
		}, []string{"family"}),
		Kept: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_kept_total",
			Help:      "Candidates that passed every filter, by family",
		}, []string{"family"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_rejections_total",
			Help:      "Failed filter rules, by rule",
		}, []string{"rule"}),
		Answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_derived_total",
			Help:      "Answers derived, by rule or evaluator",
		}, []string{"source"}),
		Unanswered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_missing_total",
			Help:      "Candidates left without an answer, by family",
		}, []string{"family"}),
		Constraints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraints_total",
			Help:      "Constraint tags emitted",
		}, []string{"constraint"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		gatherer: reg,
	}
}

// WriteFile writes every metric in the text exposition format, for
// collection by a node exporter textfile collector.
func (p *Pipeline) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.gatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
