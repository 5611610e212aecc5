package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapqdmr/internal/filter"
	"github.com/leapstack-labs/leapqdmr/internal/numeric"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

var errNotOpened = errors.New("database not opened")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{logger: slog.New(slog.DiscardHandler)}
}

// NewSQLiteStoreWithDB wraps an already open connection.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, logger: slog.New(slog.DiscardHandler)}
}

// SetLogger sets the logger used for migration progress. Nil discards.
func (s *SQLiteStore) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s.logger = logger
}

// Open opens a connection to the SQLite database, creating its directory.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every pooled connection to ":memory:" would see its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// --- Corpus ---

// SaveCorpus replaces the stored corpus.
func (s *SQLiteStore) SaveCorpus(ctx context.Context, snap filter.Snapshot, source string) error {
	if s.db == nil {
		return errNotOpened
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"corpus_programs", "corpus_steps", "corpus_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil { //nolint:gosec // fixed table names
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	progStmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_programs (signature) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare program insert: %w", err)
	}
	defer func() { _ = progStmt.Close() }()
	for _, sig := range snap.Programs {
		if _, err := progStmt.ExecContext(ctx, sig); err != nil {
			return fmt.Errorf("failed to insert program %q: %w", sig, err)
		}
	}

	stepStmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_steps (signature, examples) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer func() { _ = stepStmt.Close() }()
	for sig, n := range snap.Counts {
		if _, err := stepStmt.ExecContext(ctx, sig, n); err != nil {
			return fmt.Errorf("failed to insert step %q: %w", sig, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpus_meta (id, examples, source, built_at) VALUES (1, ?, ?, ?)`,
		snap.Examples, source, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert corpus metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corpus: %w", err)
	}
	return nil
}

// LoadCorpus reads the stored corpus. It returns ErrNoCorpus when none
// was saved.
func (s *SQLiteStore) LoadCorpus(ctx context.Context) (filter.Snapshot, error) {
	snap := filter.Snapshot{Counts: map[string]int{}}
	if s.db == nil {
		return snap, errNotOpened
	}

	err := s.db.QueryRowContext(ctx, `SELECT examples FROM corpus_meta WHERE id = 1`).Scan(&snap.Examples)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoCorpus
	}
	if err != nil {
		return snap, fmt.Errorf("failed to read corpus metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT signature FROM corpus_programs ORDER BY signature`)
	if err != nil {
		return snap, fmt.Errorf("failed to query programs: %w", err)
	}
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			_ = rows.Close()
			return snap, fmt.Errorf("failed to scan program: %w", err)
		}
		snap.Programs = append(snap.Programs, sig)
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("failed to read programs: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT signature, examples FROM corpus_steps`)
	if err != nil {
		return snap, fmt.Errorf("failed to query steps: %w", err)
	}
	for rows.Next() {
		var sig string
		var n int
		if err := rows.Scan(&sig, &n); err != nil {
			_ = rows.Close()
			return snap, fmt.Errorf("failed to scan step: %w", err)
		}
		snap.Counts[sig] = n
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("failed to read steps: %w", err)
	}
	return snap, nil
}

// CorpusInfo summarizes the stored corpus, or returns ErrNoCorpus.
func (s *SQLiteStore) CorpusInfo(ctx context.Context) (*CorpusInfo, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	info := &CorpusInfo{}
	var source sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT m.examples, m.source, m.built_at,
		        (SELECT COUNT(*) FROM corpus_programs),
		        (SELECT COUNT(*) FROM corpus_steps)
		 FROM corpus_meta m WHERE m.id = 1`,
	).Scan(&info.Examples, &source, &info.BuiltAt, &info.Programs, &info.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCorpus
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus info: %w", err)
	}
	info.Source = source.String
	return info, nil
}

// --- Numeric answers ---

// SaveNumericAnswers upserts every answer in the table.
func (s *SQLiteStore) SaveNumericAnswers(ctx context.Context, answers *numeric.Answers) error {
	if s.db == nil {
		return errNotOpened
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO numeric_answers (question_id, value) VALUES (?, ?)
		 ON CONFLICT(question_id) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare answer insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for id, v := range answers.All() {
		if _, err := stmt.ExecContext(ctx, id, v); err != nil {
			return fmt.Errorf("failed to save answer %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit answers: %w", err)
	}
	return nil
}

// LoadNumericAnswers reads every stored answer.
func (s *SQLiteStore) LoadNumericAnswers(ctx context.Context) (*numeric.Answers, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, value FROM numeric_answers`)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	values := make(map[string]float64)
	for rows.Next() {
		var id string
		var v float64
		if err := rows.Scan(&id, &v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		values[id] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return numeric.NewAnswers(values), nil
}

// --- Runs ---

// CreateRun records the start of a pipeline run.
func (s *SQLiteStore) CreateRun(ctx context.Context, stage Stage, input string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:        generateID(),
		Stage:     stage,
		Input:     input,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, input, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Stage), run.Input, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished. A non-empty errMsg marks it failed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, stats RunStats, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	status := RunStatusCompleted
	var errorPtr *string
	if errMsg != "" {
		status = RunStatusFailed
		errorPtr = &errMsg
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, records = ?, produced = ?, skipped = ?, completed_at = ?, error = ?
		 WHERE id = ?`,
		string(status), stats.Records, stats.Produced, stats.Skipped, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, stage, input, status, records, produced, skipped, started_at, completed_at, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var input, errMsg sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.Stage, &input, &run.Status,
		&run.Stats.Records, &run.Stats.Produced, &run.Stats.Skipped,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Input = input.String
	run.Error = errMsg.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
