// Package config provides unified configuration loading for competence.
// Settings come from defaults, then ~/.competence/config.yaml (or an explicit
// file), then COMPETENCE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/logging"
	"github.com/nvandessel/competence/internal/models"
)

// CompetenceConfig contains all competence configuration settings.
type CompetenceConfig struct {
	Mastery MasteryConfig `json:"mastery" yaml:"mastery"`
	Session SessionConfig `json:"session" yaml:"session"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Backup  BackupConfig  `json:"backup" yaml:"backup"`
	MCP     MCPConfig     `json:"mcp" yaml:"mcp"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// MasteryConfig configures the mastery model.
type MasteryConfig struct {
	// Threshold is the transition probability at or above which a
	// competence counts as mastered. Range: (0, 1).
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// SessionConfig configures learner sessions.
type SessionConfig struct {
	// Learner is the default learner id when --learner is not given.
	Learner string `json:"learner,omitempty" yaml:"learner,omitempty"`

	// Domain is the default domain description path, relative to the
	// project root unless absolute.
	Domain string `json:"domain" yaml:"domain"`

	// UnitStrength is the evidence strength derived from a unit result.
	UnitStrength models.Strength `json:"unit_strength" yaml:"unit_strength"`
}

// StoreConfig selects where learner state lives.
type StoreConfig struct {
	// Backend is "file" (default), "memory", "sqlite", "badger" or "redis".
	Backend string `json:"backend" yaml:"backend"`

	// Cache optionally fronts Backend with a second backend, typically
	// "memory" or "redis".
	Cache string `json:"cache,omitempty" yaml:"cache,omitempty"`

	// RedisAddr is host:port of the Redis server. Used when Backend or
	// Cache is "redis".
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`

	// RedisPassword supports ${VAR} syntax for env vars.
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`

	RedisDB int `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`

	// RedisTTL expires cached state. Zero keeps it forever.
	RedisTTL time.Duration `json:"redis_ttl,omitempty" yaml:"redis_ttl,omitempty"`
}

// RedactedPassword returns "" for an empty password and "(set)" otherwise.
func (c StoreConfig) RedactedPassword() string {
	if c.RedisPassword == "" {
		return ""
	}
	return "(set)"
}

// String implements fmt.Stringer so the Redis password never reaches a log.
func (c StoreConfig) String() string {
	return fmt.Sprintf("StoreConfig{Backend:%s, Cache:%s, RedisAddr:%s, RedisPassword:%s}",
		c.Backend, c.Cache, c.RedisAddr, c.RedactedPassword())
}

// BackupConfig configures `competence export` and retention.
type BackupConfig struct {
	// Dir defaults to ~/.competence/backups when empty.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// MaxCount keeps at most this many backups. Zero disables the limit.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups newer than this, e.g. "30d". Empty disables it.
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	// RateLimit enables per-tool rate limiting.
	RateLimit bool `json:"rate_limit" yaml:"rate_limit"`
}

// LoggingConfig configures operational and decision logging.
type LoggingConfig struct {
	// Level is "error", "warn", "info" (default), "debug" or "trace".
	// "debug" and "trace" enable decision logging to
	// .competence/decisions.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a CompetenceConfig with sensible defaults.
func Default() *CompetenceConfig {
	return &CompetenceConfig{
		Mastery: MasteryConfig{
			Threshold: constants.DefaultTransitionProbability,
		},
		Session: SessionConfig{
			Domain:       filepath.Join(constants.DirName, constants.DomainFile),
			UnitStrength: models.StrengthMedium,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Backup: BackupConfig{
			MaxCount: constants.MaxBackupRotation,
		},
		MCP: MCPConfig{
			RateLimit: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.competence/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.DirName, "config.yaml"), nil
}

// Load loads configuration from the default location and the environment.
// Order: defaults -> ~/.competence/config.yaml -> environment variables.
func Load() (*CompetenceConfig, error) {
	config := Default()

	if path, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFrom loads an explicit config file and applies environment overrides.
// An empty path behaves like Load.
func LoadFrom(path string) (*CompetenceConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Unset fields
// keep their defaults.
func LoadFromFile(path string) (*CompetenceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Store.RedisPassword = expandEnvVars(config.Store.RedisPassword)
	return config, nil
}

// Validate checks that the configuration is usable. Failures are
// models.ConfigError values naming the offending key.
func (c *CompetenceConfig) Validate() error {
	if !(c.Mastery.Threshold > 0 && c.Mastery.Threshold < 1) {
		return &models.ConfigError{Field: "mastery.threshold", Reason: fmt.Sprintf("must be between 0 and 1 exclusive, got %g", c.Mastery.Threshold)}
	}
	if !c.Session.UnitStrength.Valid() {
		return &models.ConfigError{Field: "session.unit_strength", Reason: fmt.Sprintf("invalid strength %q (valid: low, medium, high)", c.Session.UnitStrength)}
	}

	validBackends := map[string]bool{"": true, "file": true, "memory": true, "sqlite": true, "badger": true, "redis": true}
	if !validBackends[c.Store.Backend] {
		return &models.ConfigError{Field: "store.backend", Reason: fmt.Sprintf("invalid backend %q (valid: file, memory, sqlite, badger, redis)", c.Store.Backend)}
	}
	if !validBackends[c.Store.Cache] {
		return &models.ConfigError{Field: "store.cache", Reason: fmt.Sprintf("invalid backend %q", c.Store.Cache)}
	}
	if (c.Store.Backend == "redis" || c.Store.Cache == "redis") && c.Store.RedisAddr == "" {
		return &models.ConfigError{Field: "store.redis_addr", Reason: "required when using the redis backend"}
	}
	if c.Store.RedisTTL < 0 {
		return &models.ConfigError{Field: "store.redis_ttl", Reason: fmt.Sprintf("must be non-negative, got %v", c.Store.RedisTTL)}
	}

	if c.Backup.MaxCount < 0 {
		return &models.ConfigError{Field: "backup.max_count", Reason: fmt.Sprintf("must be non-negative, got %d", c.Backup.MaxCount)}
	}
	if c.Backup.MaxAge != "" {
		if _, err := parseAge(c.Backup.MaxAge); err != nil {
			return &models.ConfigError{Field: "backup.max_age", Reason: err.Error()}
		}
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return &models.ConfigError{Field: "logging.level", Reason: fmt.Sprintf("invalid level %q (valid: error, warn, info, debug, trace)", c.Logging.Level)}
	}
	return nil
}

// BackupMaxAge returns the parsed Backup.MaxAge, or zero when unset.
func (c *CompetenceConfig) BackupMaxAge() time.Duration {
	d, _ := parseAge(c.Backup.MaxAge)
	return d
}

// parseAge accepts time.ParseDuration strings plus whole days ("30d").
func parseAge(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// applyEnvOverrides applies COMPETENCE_* environment variables. Values that
// do not parse are ignored.
func applyEnvOverrides(config *CompetenceConfig) {
	if v := os.Getenv("COMPETENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Mastery.Threshold = f
		}
	}
	if v := os.Getenv("COMPETENCE_LEARNER"); v != "" {
		config.Session.Learner = v
	}
	if v := os.Getenv("COMPETENCE_DOMAIN"); v != "" {
		config.Session.Domain = v
	}
	if v := os.Getenv("COMPETENCE_UNIT_STRENGTH"); v != "" {
		config.Session.UnitStrength = models.Strength(strings.ToLower(v))
	}
	if v := os.Getenv("COMPETENCE_STORE"); v != "" {
		config.Store.Backend = v
	}
	if v := os.Getenv("COMPETENCE_STORE_CACHE"); v != "" {
		config.Store.Cache = v
	}
	if v := os.Getenv("COMPETENCE_REDIS_ADDR"); v != "" {
		config.Store.RedisAddr = v
	}
	if v := os.Getenv("COMPETENCE_REDIS_PASSWORD"); v != "" {
		config.Store.RedisPassword = v
	}
	if v := os.Getenv("COMPETENCE_RATE_LIMIT"); v != "" {
		config.MCP.RateLimit = v == "true" || v == "1"
	}
	if v := os.Getenv("COMPETENCE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
