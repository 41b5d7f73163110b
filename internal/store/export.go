package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/competence/internal/models"
)

// Snapshot loads every state in s, ordered by key.
func Snapshot(ctx context.Context, s StateStore) ([]models.LearnerState, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	out := make([]models.LearnerState, 0, len(keys))
	for _, k := range keys {
		st, err := s.Load(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue // deleted or expired since listing
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", k, err)
		}
		out = append(out, *st)
	}
	return out, nil
}

// CopyResult counts the outcome of Copy.
type CopyResult struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// Copy writes every state of src into dst. Existing keys in dst are
// overwritten unless keepExisting is set, in which case they are skipped.
func Copy(ctx context.Context, dst, src StateStore, keepExisting bool) (*CopyResult, error) {
	states, err := Snapshot(ctx, src)
	if err != nil {
		return nil, err
	}
	res := &CopyResult{}
	for i := range states {
		st := &states[i]
		key := models.StateKey(st.DomainID, st.LearnerID)
		if keepExisting {
			if _, err := dst.Load(ctx, key); err == nil {
				res.Skipped++
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return res, fmt.Errorf("failed to check %s: %w", key, err)
			}
		}
		if err := dst.Save(ctx, key, st); err != nil {
			return res, fmt.Errorf("failed to copy %s: %w", key, err)
		}
		res.Copied++
	}
	return res, nil
}
