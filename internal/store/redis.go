package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// RedisKeyPrefix namespaces learner state in a shared Redis.
const RedisKeyPrefix = "competence:state:"

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires idle learner state. Zero keeps it forever.
	TTL time.Duration
}

// RedisStateStore implements StateStore on Redis, one JSON string per key.
type RedisStateStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStateStore connects to cfg.Addr and pings it.
func NewRedisStateStore(ctx context.Context, cfg RedisConfig) (*RedisStateStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, &models.ConfigError{Field: "store.redis_addr", Reason: "redis address is required"}
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStateStore{rdb: rdb, ttl: cfg.TTL}, nil
}

// NewRedisStateStoreWithClient wraps an existing client.
func NewRedisStateStoreWithClient(rdb *goredis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string { return RedisKeyPrefix + key }

func (s *RedisStateStore) ready() error {
	if s == nil || s.rdb == nil {
		return errors.New("redis state store not initialized")
	}
	return nil
}

// Load reads the state stored under key.
func (s *RedisStateStore) Load(ctx context.Context, key string) (*models.LearnerState, error) {
	st, err := s.load(ctx, key)
	metrics.ObserveStore(string(BackendRedis), "load", err)
	return st, err
}

func (s *RedisStateStore) load(ctx context.Context, key string) (*models.LearnerState, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var st models.LearnerState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}
	return &st, nil
}

// Save writes state under key.
func (s *RedisStateStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	err := s.save(ctx, key, state)
	metrics.ObserveStore(string(BackendRedis), "save", err)
	return err
}

func (s *RedisStateStore) save(ctx context.Context, key string, state *models.LearnerState) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := ValidateState(key, state); err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKey(key), raw, s.ttl).Err()
}

// Delete removes key.
func (s *RedisStateStore) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := s.rdb.Del(ctx, redisKey(key)).Err()
	metrics.ObserveStore(string(BackendRedis), "delete", err)
	return err
}

// Keys scans the prefix and returns every stored key in sorted order.
func (s *RedisStateStore) Keys(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var keys []string
	iter := s.rdb.Scan(ctx, 0, RedisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), RedisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client.
func (s *RedisStateStore) Close() error {
	if err := s.ready(); err != nil {
		return nil
	}
	return s.rdb.Close()
}
