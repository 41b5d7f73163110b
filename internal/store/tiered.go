package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/nvandessel/competence/internal/models"
)

// TieredStore layers a cache store (typically Redis or memory) in front of a
// durable primary store. Reads check the cache first and fill it on a miss;
// writes go to the primary and then the cache. The primary is authoritative:
// a cache failure is logged, never returned.
type TieredStore struct {
	primary StateStore
	cache   StateStore
	logger  *slog.Logger
}

// NewTieredStore wraps primary with cache. A nil logger discards output.
func NewTieredStore(primary, cache StateStore, logger *slog.Logger) *TieredStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TieredStore{primary: primary, cache: cache, logger: logger}
}

// Primary returns the authoritative store.
func (t *TieredStore) Primary() StateStore { return t.primary }

// Load checks the cache, then the primary.
func (t *TieredStore) Load(ctx context.Context, key string) (*models.LearnerState, error) {
	st, err := t.cache.Load(ctx, key)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		t.logger.Warn("state cache read failed", "key", key, "error", err)
	}

	st, err = t.primary.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if cerr := t.cache.Save(ctx, key, st); cerr != nil {
		t.logger.Warn("state cache fill failed", "key", key, "error", cerr)
	}
	return st, nil
}

// Save writes the primary, then the cache.
func (t *TieredStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	if err := t.primary.Save(ctx, key, state); err != nil {
		return err
	}
	if err := t.cache.Save(ctx, key, state); err != nil {
		t.logger.Warn("state cache write failed", "key", key, "error", err)
		// Drop a stale entry so the next Load falls through to the primary.
		_ = t.cache.Delete(ctx, key)
	}
	return nil
}

// Delete removes key from both tiers (idempotent).
func (t *TieredStore) Delete(ctx context.Context, key string) error {
	cacheErr := t.cache.Delete(ctx, key)
	if err := t.primary.Delete(ctx, key); err != nil {
		return err
	}
	if cacheErr != nil {
		t.logger.Warn("state cache delete failed", "key", key, "error", cacheErr)
	}
	return nil
}

// Keys returns the primary's keys merged with any cache-only keys.
func (t *TieredStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := t.primary.Keys(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := t.cache.Keys(ctx)
	if err != nil {
		t.logger.Warn("state cache list failed", "error", err)
		return keys, nil
	}
	return mergeKeys(keys, cached), nil
}

// Close closes both stores.
func (t *TieredStore) Close() error {
	primaryErr := t.primary.Close()
	cacheErr := t.cache.Close()

	if primaryErr != nil && cacheErr != nil {
		return fmt.Errorf("failed to close both stores: primary=%v, cache=%v", primaryErr, cacheErr)
	}
	if primaryErr != nil {
		return fmt.Errorf("failed to close primary store: %w", primaryErr)
	}
	if cacheErr != nil {
		return fmt.Errorf("failed to close cache store: %w", cacheErr)
	}
	return nil
}

// mergeKeys merges two key lists, removing duplicates, sorted.
func mergeKeys(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
