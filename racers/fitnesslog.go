package racers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FitnessRecord is one line of the fitness log.
type FitnessRecord struct {
	Generation int
	Best       float64
	Mean       float64
}

// FitnessSink is an append-only destination for per-generation fitness.
type FitnessSink interface {
	Append(ctx context.Context, rec FitnessRecord) error
	Close() error
}

// NewFitnessSink opens a sink of the given kind: "file" appends text lines to
// path, "sqlite" stores rows in the database at path, "memory" (or "") keeps
// records in memory.
func NewFitnessSink(ctx context.Context, kind, path string) (FitnessSink, error) {
	switch kind {
	case "", "memory":
		return NewMemorySink(), nil
	case "file":
		return OpenFileSink(path)
	case "sqlite":
		return OpenSQLiteSink(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported fitness sink: %s", kind)
	}
}

// FileSink appends "generation,best_fitness" lines to a file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileSink opens path for appending, creating it when missing.
func OpenFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("fitness log path is required")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open fitness log '%s': %w", path, err)
	}
	return &FileSink{file: f}, nil
}

// Append writes one record. Fitness is written as an integer.
func (s *FileSink) Append(_ context.Context, rec FitnessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("fitness log is closed")
	}
	_, err := fmt.Fprintf(s.file, "%d,%d\n", rec.Generation, int64(rec.Best))
	return err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.RWMutex
	records []FitnessRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores a record.
func (s *MemorySink) Append(_ context.Context, rec FitnessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *MemorySink) Records() []FitnessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FitnessRecord(nil), s.records...)
}

// Close is a no-op.
func (s *MemorySink) Close() error {
	return nil
}

// SQLiteSink stores records in a sqlite table, keyed by a run ID so several
// runs can share one database file.
type SQLiteSink struct {
	runID string

	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLiteSink opens or creates the database at path and starts a new run.
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fitness_log (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			mean_fitness REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, generation)
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create fitness_log table: %w", err)
	}
	return &SQLiteSink{runID: uuid.NewString(), db: db}, nil
}

// RunID identifies the rows written by this sink.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// Append inserts one row for the current run.
func (s *SQLiteSink) Append(ctx context.Context, rec FitnessRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO fitness_log (run_id, generation, best_fitness, mean_fitness, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.runID, rec.Generation, rec.Best, rec.Mean, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// History returns the records of the current run ordered by generation.
func (s *SQLiteSink) History(ctx context.Context) ([]FitnessRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT generation, best_fitness, mean_fitness
		FROM fitness_log
		WHERE run_id = ?
		ORDER BY generation
	`, s.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FitnessRecord
	for rows.Next() {
		var rec FitnessRecord
		if err := rows.Scan(&rec.Generation, &rec.Best, &rec.Mean); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteSink) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite fitness sink is closed")
	}
	return s.db, nil
}
