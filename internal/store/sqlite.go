package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// SQLiteStateStore implements StateStore on a SQLite database.
type SQLiteStateStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStateStore opens (or creates) the database at dbPath.
func NewSQLiteStateStore(ctx context.Context, dbPath string) (*SQLiteStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStateStore{db: db, dbPath: dbPath}, nil
}

// Load reads the state stored under key.
func (s *SQLiteStateStore) Load(ctx context.Context, key string) (*models.LearnerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, key)
	metrics.ObserveStore(string(BackendSQLite), "load", err)
	return st, err
}

func (s *SQLiteStateStore) load(ctx context.Context, key string) (*models.LearnerState, error) {
	var st models.LearnerState
	var current sql.NullString
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT domain_id, learner_id, current_unit, updated_at FROM learner_state WHERE state_key = ?`, key).
		Scan(&st.DomainID, &st.LearnerID, &current, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query learner state: %w", err)
	}
	st.CurrentUnit = current.String
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		st.UpdatedAt = t
	}

	st.Mastery = make(map[string]float64)
	rows, err := s.db.QueryContext(ctx, `SELECT competence_id, probability FROM mastery WHERE state_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastery: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var p float64
		if err := rows.Scan(&id, &p); err != nil {
			return nil, fmt.Errorf("failed to scan mastery: %w", err)
		}
		st.Mastery[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	playRows, err := s.db.QueryContext(ctx, `SELECT unit_id, plays FROM play_counts WHERE state_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query play counts: %w", err)
	}
	defer playRows.Close()
	for playRows.Next() {
		var id string
		var n int
		if err := playRows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan play counts: %w", err)
		}
		if st.PlayCounts == nil {
			st.PlayCounts = make(map[string]int)
		}
		st.PlayCounts[id] = n
	}
	return &st, playRows.Err()
}

// Save replaces the state stored under key in one transaction.
func (s *SQLiteStateStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	err := s.save(ctx, key, state)
	metrics.ObserveStore(string(BackendSQLite), "save", err)
	return err
}

func (s *SQLiteStateStore) save(ctx context.Context, key string, state *models.LearnerState) error {
	if err := ValidateState(key, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO learner_state (state_key, domain_id, learner_id, current_unit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(state_key) DO UPDATE SET
			domain_id = excluded.domain_id,
			learner_id = excluded.learner_id,
			current_unit = excluded.current_unit,
			updated_at = excluded.updated_at`,
		key, state.DomainID, state.LearnerID, nullString(state.CurrentUnit), updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert learner state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mastery WHERE state_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear mastery: %w", err)
	}
	for id, p := range state.Mastery {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mastery (state_key, competence_id, probability) VALUES (?, ?, ?)`, key, id, p); err != nil {
			return fmt.Errorf("failed to insert mastery for %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM play_counts WHERE state_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear play counts: %w", err)
	}
	for id, n := range state.PlayCounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO play_counts (state_key, unit_id, plays) VALUES (?, ?, ?)`, key, id, n); err != nil {
			return fmt.Errorf("failed to insert play count for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Delete removes key and its rows. Deleting a missing key is not an error.
func (s *SQLiteStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM learner_state WHERE state_key = ?`, key)
	metrics.ObserveStore(string(BackendSQLite), "delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete learner state: %w", err)
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (s *SQLiteStateStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT state_key FROM learner_state ORDER BY state_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DB exposes the underlying database handle.
func (s *SQLiteStateStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
