package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state", "state.db")))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_OpenMemory(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate(context.Background()))

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Migrate(context.Background()), errNotOpened)
	_, err := store.LoadCorpus(ctx)
	assert.ErrorIs(t, err, errNotOpened)
	_, err = store.CreateRun(ctx, StageGenerate, "in.csv")
	assert.ErrorIs(t, err, errNotOpened)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Corpus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LoadCorpus(ctx)
	require.ErrorIs(t, err, ErrNoCorpus)
	_, err = store.CorpusInfo(ctx)
	require.ErrorIs(t, err, ErrNoCorpus)

	snap := filter.Snapshot{
		Programs: []string{"select project aggregate_count", "select select comparison_max"},
		Counts:   map[string]int{"select": 2, "project": 1, "aggregate_count": 1, "comparison_max": 1},
		Examples: 2,
	}
	require.NoError(t, store.SaveCorpus(ctx, snap, "train.csv"))

	got, err := store.LoadCorpus(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	info, err := store.CorpusInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Examples)
	assert.Equal(t, 2, info.Programs)
	assert.Equal(t, 4, info.Steps)
	assert.Equal(t, "train.csv", info.Source)
	assert.False(t, info.BuiltAt.IsZero())

	// Saving again replaces the previous corpus.
	require.NoError(t, store.SaveCorpus(ctx, filter.Snapshot{
		Programs: []string{"select"},
		Counts:   map[string]int{"select": 1},
		Examples: 1,
	}, "dev.csv"))
	got, err = store.LoadCorpus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"select"}, got.Programs)
	assert.Equal(t, map[string]int{"select": 1}, got.Counts)
	assert.Equal(t, 1, got.Examples)
}

func TestSQLiteStore_NumericAnswers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadNumericAnswers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	require.NoError(t, store.SaveNumericAnswers(ctx, numeric.NewAnswers(map[string]float64{
		"DROP_train_1": 5,
		"DROP_train_2": 12.5,
	})))
	require.NoError(t, store.SaveNumericAnswers(ctx, numeric.NewAnswers(map[string]float64{
		"DROP_train_1": 7,
	})))

	answers, err := store.LoadNumericAnswers(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"DROP_train_1": 7, "DROP_train_2": 12.5}, answers.All())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		errMsg     string
		wantStatus RunStatus
	}{
		{name: "completed", wantStatus: RunStatusCompleted},
		{name: "failed", errMsg: "input missing", wantStatus: RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			run, err := store.CreateRun(ctx, StageGenerate, "break.csv")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			stats := RunStats{Records: 10, Produced: 42, Skipped: 1}
			require.NoError(t, store.CompleteRun(ctx, run.ID, stats, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, StageGenerate, got.Stage)
			assert.Equal(t, "break.csv", got.Input)
			assert.Equal(t, stats, got.Stats)
			assert.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
		})
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, stage := range []Stage{StageCorpus, StageGenerate, StageAnswer} {
		_, err := store.CreateRun(ctx, stage, "")
		require.NoError(t, err)
	}

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_UnknownRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")
	err = store.CompleteRun(ctx, "missing", RunStats{}, "")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_ErrorPaths(t *testing.T) {
	errBoom := errors.New("boom")
	snap := filter.Snapshot{Programs: []string{"select"}, Counts: map[string]int{"select": 1}, Examples: 1}

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(s *SQLiteStore) error
		wantErr   string
	}{
		{
			name: "save corpus rolls back on failed clear",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM corpus_programs").WillReturnError(errBoom)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				return s.SaveCorpus(context.Background(), snap, "x.csv")
			},
			wantErr: "failed to clear corpus_programs",
		},
		{
			name: "save corpus fails on begin",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				return s.SaveCorpus(context.Background(), snap, "x.csv")
			},
			wantErr: "failed to begin transaction",
		},
		{
			name: "load corpus metadata",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT examples FROM corpus_meta").WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.LoadCorpus(context.Background())
				return err
			},
			wantErr: "failed to read corpus metadata",
		},
		{
			name: "load corpus programs",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT examples FROM corpus_meta").
					WillReturnRows(sqlmock.NewRows([]string{"examples"}).AddRow(1))
				mock.ExpectQuery("SELECT signature FROM corpus_programs").WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.LoadCorpus(context.Background())
				return err
			},
			wantErr: "failed to query programs",
		},
		{
			name: "load numeric answers",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT question_id, value FROM numeric_answers").WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.LoadNumericAnswers(context.Background())
				return err
			},
			wantErr: "failed to query answers",
		},
		{
			name: "create run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO runs").WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.CreateRun(context.Background(), StageAnswer, "")
				return err
			},
			wantErr: "failed to create run",
		},
		{
			name: "complete run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE runs SET").WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				return s.CompleteRun(context.Background(), "id", RunStats{}, "")
			},
			wantErr: "failed to complete run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)
			err = tt.run(NewSQLiteStoreWithDB(db))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.ErrorIs(t, err, errBoom)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
