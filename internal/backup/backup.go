// Package backup exports learner state from a store to a checksummed,
// gzip-compressed file and restores it again.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/store"
)

// BackupFormat is the payload of a backup file.
type BackupFormat struct {
	Version   int                   `json:"version"`
	CreatedAt time.Time             `json:"created_at"`
	States    []models.LearnerState `json:"states"`
}

// DefaultBackupDir returns ~/.competence/backups.
func DefaultBackupDir() (string, error) {
	global, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, "backups"), nil
}

// Backup writes every learner state in s to outputPath in the V2 format.
// When domainID is not empty only that domain is exported.
func Backup(ctx context.Context, s store.StateStore, outputPath, domainID string) (*BackupFormat, error) {
	states, err := store.Snapshot(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot store: %w", err)
	}
	if domainID != "" {
		filtered := states[:0]
		for _, st := range states {
			if st.DomainID == domainID {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}

	b := &BackupFormat{
		Version:   FormatV2,
		CreatedAt: time.Now().UTC(),
		States:    states,
	}
	if err := WriteV2(outputPath, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RestoreMode specifies how to handle existing learner state.
type RestoreMode string

const (
	// RestoreMerge skips learners that already have state.
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites existing state.
	RestoreReplace RestoreMode = "replace"
)

// RestoreResult counts restored and skipped learners.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Restore reads a backup (V1 plain JSON or V2) and writes its states to s.
func Restore(ctx context.Context, s store.StateStore, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	b, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for i := range b.States {
		st := &b.States[i]
		key := models.StateKey(st.DomainID, st.LearnerID)
		if mode == RestoreMerge {
			_, err := s.Load(ctx, key)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to check existing state %s: %w", key, err)
			}
		}
		if err := s.Save(ctx, key, st); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", key, err)
		}
		result.Restored++
	}
	return result, nil
}

// Read loads a backup file of either format.
func Read(path string) (*BackupFormat, error) {
	version, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if version == FormatV2 {
		return ReadV2(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	var b BackupFormat
	if err := json.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if b.Version != FormatV1 {
		return nil, fmt.Errorf("unsupported backup version: %d", b.Version)
	}
	return &b, nil
}

// GenerateBackupPath returns a timestamped backup path in dir.
func GenerateBackupPath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s.json.gz", backupPrefix, ts))
}
