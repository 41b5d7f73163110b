package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// FileStateStore implements StateStore with one JSON document per key under
// a directory. Files are named by the SHA-256 of the key, since domain ids
// grow with the number of competences; the key itself is kept in the
// document. Writes go through a temp file and rename so a crash never
// leaves a half-written state behind.
type FileStateStore struct {
	mu  sync.RWMutex
	dir string

	// LoadErrors records state files that could not be parsed by Keys.
	LoadErrors []LoadError
}

// LoadError represents an error encountered while reading a state file.
type LoadError struct {
	File    string `json:"file"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// NewFileStateStore creates a store rooted at dir, creating it if needed.
func NewFileStateStore(dir string) (*FileStateStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStateStore{dir: dir}, nil
}

// Dir returns the directory holding the state files.
func (s *FileStateStore) Dir() string { return s.dir }

// fileRecord is the on-disk form of one learner state.
type fileRecord struct {
	Key string `json:"key"`
	models.LearnerState
}

func (s *FileStateStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Load reads the state stored under key.
func (s *FileStateStore) Load(ctx context.Context, key string) (*models.LearnerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.read(s.path(key))
	if err == nil && rec.Key != key {
		err = fmt.Errorf("state file %s holds key %q, want %q", filepath.Base(s.path(key)), rec.Key, key)
	}
	metrics.ObserveStore(string(BackendFile), "load", err)
	if err != nil {
		return nil, err
	}
	return &rec.LearnerState, nil
}

func (s *FileStateStore) read(path string) (*fileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if rec.Key == "" {
		return nil, fmt.Errorf("%s has no key", filepath.Base(path))
	}
	return &rec, nil
}

// Save writes state under key atomically.
func (s *FileStateStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	err := s.save(key, state)
	metrics.ObserveStore(string(BackendFile), "save", err)
	return err
}

func (s *FileStateStore) save(key string, state *models.LearnerState) error {
	if err := ValidateState(key, state); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileRecord{Key: key, LearnerState: *state}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Delete removes the state file for key. A missing file is not an error.
func (s *FileStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	metrics.ObserveStore(string(BackendFile), "delete", err)
	return err
}

// Keys lists the keys recorded in every readable state file. Unparseable
// files are skipped and recorded in LoadErrors.
func (s *FileStateStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}
	s.LoadErrors = nil
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			data, _ := os.ReadFile(filepath.Join(s.dir, name))
			s.LoadErrors = append(s.LoadErrors, LoadError{File: name, Content: truncateForError(string(data)), Error: err.Error()})
			continue
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; every Save is already durable.
func (s *FileStateStore) Close() error { return nil }

// truncateForError truncates a string for error reporting to avoid huge messages.
func truncateForError(s string) string {
	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
