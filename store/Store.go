// Package store persists training runs in a sqlite database: the
// configuration of each run, checkpoints of agent weights, and the
// return of each episode.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned by operations on a Store before Init
var ErrNotInitialized = errors.New("store is not initialized")

// Store is a sqlite-backed record of training runs. It is safe for
// concurrent use.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// New returns a Store for the database at path. Init must be called
// before the Store is used.
func New(path string) *Store {
	return &Store{path: path}
}

// Init opens the database and creates its tables if needed
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("init: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("init: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("init: could not create tables: %w", err)
	}

	s.db = db
	return nil
}

// CreateRun records a new run with the given configuration and returns
// its id
func (s *Store) CreateRun(ctx context.Context, config []byte) (string,
	error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, config)
		VALUES (?, ?, ?)
	`, id, time.Now().UTC().Format(time.RFC3339Nano), config)
	if err != nil {
		return "", fmt.Errorf("createRun: %w", err)
	}
	return id, nil
}

// Runs returns the ids of all runs, oldest first
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id FROM runs
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("runs: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	return ids, nil
}

// RunConfig returns the configuration a run was created with
func (s *Store) RunConfig(ctx context.Context, runID string) ([]byte, bool,
	error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var config []byte
	err = db.QueryRowContext(ctx, `SELECT config FROM runs WHERE id = ?`,
		runID).Scan(&config)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("runConfig: %w", err)
	}
	return config, true, nil
}

// SaveCheckpoint stores an encoded checkpoint taken at a given step of
// a run, replacing any checkpoint of the same step
func (s *Store) SaveCheckpoint(ctx context.Context, runID string, step int,
	payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, step, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			payload = excluded.payload
	`, runID, step, payload)
	if err != nil {
		return fmt.Errorf("saveCheckpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the checkpoint of a run with the highest
// step
func (s *Store) LatestCheckpoint(ctx context.Context, runID string) (
	step int, payload []byte, ok bool, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, nil, false, err
	}

	err = db.QueryRowContext(ctx, `
		SELECT step, payload FROM checkpoints
		WHERE run_id = ?
		ORDER BY step DESC
		LIMIT 1
	`, runID).Scan(&step, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, fmt.Errorf("latestCheckpoint: %w", err)
	}
	return step, payload, true, nil
}

// SaveReturn records the return and length of an episode of a run
func (s *Store) SaveReturn(ctx context.Context, runID string, episode int,
	ret float64, steps int) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO returns (run_id, episode, episode_return, steps)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, episode) DO UPDATE SET
			episode_return = excluded.episode_return,
			steps = excluded.steps
	`, runID, episode, ret, steps)
	if err != nil {
		return fmt.Errorf("saveReturn: %w", err)
	}
	return nil
}

// Returns returns the episodic returns of a run in episode order
func (s *Store) Returns(ctx context.Context, runID string) ([]float64,
	error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT episode_return FROM returns
		WHERE run_id = ?
		ORDER BY episode
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}
	defer rows.Close()

	var returns []float64
	for rows.Next() {
		var ret float64
		if err := rows.Scan(&ret); err != nil {
			return nil, fmt.Errorf("returns: %w", err)
		}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}
	return returns, nil
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			config BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, step)
		);
		CREATE TABLE IF NOT EXISTS returns (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			episode_return REAL NOT NULL,
			steps INTEGER NOT NULL,
			PRIMARY KEY (run_id, episode)
		);
	`)
	return err
}
