// Package store persists learner state: one mastery vector, play history
// and current unit per (domain, learner) key.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/models"
)

// ErrNotFound is returned by Load when no state exists for a key.
var ErrNotFound = errors.New("learner state not found")

// StateStore is a key-value sink for learner state. Keys are built with
// models.StateKey. Implementations are safe for concurrent use.
type StateStore interface {
	Load(ctx context.Context, key string) (*models.LearnerState, error)
	Save(ctx context.Context, key string, state *models.LearnerState) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names a StateStore implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
	BackendRedis  Backend = "redis"
)

// Backends lists every backend name accepted by Open.
var Backends = []Backend{BackendMemory, BackendFile, BackendSQLite, BackendBadger, BackendRedis}

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	// Root is the project root; on-disk backends live under Root/.competence.
	Root string
	// Cache, when set, layers a second backend in front of the primary one.
	Cache Backend

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	Logger *slog.Logger
}

// Open creates the store described by opts.
func Open(ctx context.Context, opts Options) (StateStore, error) {
	primary, err := openBackend(ctx, opts.Backend, opts)
	if err != nil {
		return nil, err
	}
	if opts.Cache == "" || opts.Cache == opts.Backend {
		return primary, nil
	}
	cache, err := openBackend(ctx, opts.Cache, opts)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("opening cache backend: %w", err)
	}
	return NewTieredStore(primary, cache, opts.Logger), nil
}

func openBackend(ctx context.Context, b Backend, opts Options) (StateStore, error) {
	dir := LocalPath(opts.Root)
	switch b {
	case BackendMemory:
		return NewMemoryStateStore(), nil
	case BackendFile, "":
		return NewFileStateStore(filepath.Join(dir, constants.StateSubdir))
	case BackendSQLite:
		return NewSQLiteStateStore(ctx, filepath.Join(dir, "competence.db"))
	case BackendBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = filepath.Join(dir, "badger")
		cfg.Logger = opts.Logger
		return NewBadgerStateStore(cfg)
	case BackendRedis:
		return NewRedisStateStore(ctx, RedisConfig{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			TTL:      opts.RedisTTL,
		})
	default:
		return nil, &models.ConfigError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", b)}
	}
}

// cloneState deep-copies s so stores never share maps with callers.
func cloneState(s *models.LearnerState) *models.LearnerState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Mastery = make(map[string]float64, len(s.Mastery))
	for k, v := range s.Mastery {
		cp.Mastery[k] = v
	}
	if s.PlayCounts != nil {
		cp.PlayCounts = make(map[string]int, len(s.PlayCounts))
		for k, v := range s.PlayCounts {
			cp.PlayCounts[k] = v
		}
	}
	return &cp
}
