// Package state persists the corpus signatures, numeric answers and run
// history shared between invocations of the pipeline.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
)

// ErrNoCorpus is returned by LoadCorpus before any corpus was saved.
var ErrNoCorpus = errors.New("no corpus in state store")

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Stage names the pipeline stage a run executed.
type Stage string

// Pipeline stages.
const (
	StageGenerate Stage = "generate"
	StageAnswer   Stage = "answer"
	StageCorpus   Stage = "corpus"
)

// RunStats are the record counts reported when a run completes.
type RunStats struct {
	Records  int
	Produced int
	Skipped  int
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID          string
	Stage       Stage
	Input       string
	Status      RunStatus
	Stats       RunStats
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// CorpusInfo describes the saved corpus.
type CorpusInfo struct {
	Examples int
	Programs int
	Steps    int
	Source   string
	BuiltAt  time.Time
}

// Store is the persistence interface used by the CLI.
type Store interface {
	Open(path string) error
	Close() error
	Migrate(ctx context.Context) error

	SaveCorpus(ctx context.Context, snap filter.Snapshot, source string) error
	LoadCorpus(ctx context.Context) (filter.Snapshot, error)
	CorpusInfo(ctx context.Context) (*CorpusInfo, error)

	SaveNumericAnswers(ctx context.Context, answers *numeric.Answers) error
	LoadNumericAnswers(ctx context.Context) (*numeric.Answers, error)

	CreateRun(ctx context.Context, stage Stage, input string) (*Run, error)
	CompleteRun(ctx context.Context, id string, stats RunStats, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

var _ Store = (*SQLiteStore)(nil)
