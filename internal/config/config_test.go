package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/competence/internal/models"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Mastery.Threshold != 0.7 {
		t.Errorf("expected Threshold 0.7, got %v", config.Mastery.Threshold)
	}
	if config.Session.UnitStrength != models.StrengthMedium {
		t.Errorf("expected UnitStrength medium, got %q", config.Session.UnitStrength)
	}
	if config.Session.Domain != filepath.Join(".competence", "domain.yaml") {
		t.Errorf("unexpected Domain %q", config.Session.Domain)
	}
	if config.Store.Backend != "file" || config.Store.Cache != "" {
		t.Errorf("unexpected store defaults %v", config.Store)
	}
	if config.Backup.MaxCount != 10 {
		t.Errorf("expected Backup.MaxCount 10, got %d", config.Backup.MaxCount)
	}
	if !config.MCP.RateLimit {
		t.Error("expected rate limiting on by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
mastery:
  threshold: 0.8
session:
  learner: ana
  unit_strength: high
store:
  backend: sqlite
  cache: redis
  redis_addr: localhost:6379
  redis_ttl: 1h
backup:
  max_age: 30d
logging:
  level: debug
`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Mastery.Threshold != 0.8 {
		t.Errorf("expected Threshold 0.8, got %v", config.Mastery.Threshold)
	}
	if config.Session.Learner != "ana" || config.Session.UnitStrength != models.StrengthHigh {
		t.Errorf("unexpected session %+v", config.Session)
	}
	if config.Store.Backend != "sqlite" || config.Store.Cache != "redis" || config.Store.RedisTTL != time.Hour {
		t.Errorf("unexpected store %v ttl=%v", config.Store, config.Store.RedisTTL)
	}
	if config.BackupMaxAge() != 30*24*time.Hour {
		t.Errorf("BackupMaxAge = %v", config.BackupMaxAge())
	}
	// Unset keys keep defaults.
	if config.Backup.MaxCount != 10 || config.Session.Domain == "" {
		t.Errorf("defaults lost: %+v %+v", config.Backup, config.Session)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "hunter2")
	path := writeConfig(t, "store:\n  redis_password: ${TEST_REDIS_PASSWORD}\n")

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Store.RedisPassword != "hunter2" {
		t.Errorf("expected expanded password, got %q", config.Store.RedisPassword)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFromFile(writeConfig(t, "mastery: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COMPETENCE_THRESHOLD", "0.65")
	t.Setenv("COMPETENCE_LEARNER", "ben")
	t.Setenv("COMPETENCE_UNIT_STRENGTH", "LOW")
	t.Setenv("COMPETENCE_STORE", "badger")
	t.Setenv("COMPETENCE_STORE_CACHE", "memory")
	t.Setenv("COMPETENCE_REDIS_ADDR", "cache:6379")
	t.Setenv("COMPETENCE_RATE_LIMIT", "false")
	t.Setenv("COMPETENCE_LOG_LEVEL", "trace")

	config := Default()
	applyEnvOverrides(config)

	if config.Mastery.Threshold != 0.65 {
		t.Errorf("Threshold = %v", config.Mastery.Threshold)
	}
	if config.Session.Learner != "ben" || config.Session.UnitStrength != models.StrengthLow {
		t.Errorf("session = %+v", config.Session)
	}
	if config.Store.Backend != "badger" || config.Store.Cache != "memory" || config.Store.RedisAddr != "cache:6379" {
		t.Errorf("store = %v", config.Store)
	}
	if config.MCP.RateLimit {
		t.Error("expected rate limiting disabled")
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q", config.Logging.Level)
	}
}

func TestEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("COMPETENCE_THRESHOLD", "high")
	config := Default()
	applyEnvOverrides(config)
	if config.Mastery.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want default", config.Mastery.Threshold)
	}
}

func TestLoadFrom_AppliesEnv(t *testing.T) {
	t.Setenv("COMPETENCE_LEARNER", "cleo")
	config, err := LoadFrom(writeConfig(t, "session:\n  learner: ana\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if config.Session.Learner != "cleo" {
		t.Errorf("Learner = %q, want env override", config.Session.Learner)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CompetenceConfig)
		field  string
	}{
		{"threshold zero", func(c *CompetenceConfig) { c.Mastery.Threshold = 0 }, "mastery.threshold"},
		{"threshold one", func(c *CompetenceConfig) { c.Mastery.Threshold = 1 }, "mastery.threshold"},
		{"unit strength", func(c *CompetenceConfig) { c.Session.UnitStrength = "extreme" }, "session.unit_strength"},
		{"backend", func(c *CompetenceConfig) { c.Store.Backend = "postgres" }, "store.backend"},
		{"cache", func(c *CompetenceConfig) { c.Store.Cache = "memcached" }, "store.cache"},
		{"redis without addr", func(c *CompetenceConfig) { c.Store.Backend = "redis" }, "store.redis_addr"},
		{"redis ttl", func(c *CompetenceConfig) { c.Store.RedisTTL = -time.Second }, "store.redis_ttl"},
		{"backup count", func(c *CompetenceConfig) { c.Backup.MaxCount = -1 }, "backup.max_count"},
		{"backup age", func(c *CompetenceConfig) { c.Backup.MaxAge = "forever" }, "backup.max_age"},
		{"log level", func(c *CompetenceConfig) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			var ce *models.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"", "error", "warn", "info", "debug", "trace"} {
		config := Default()
		config.Logging.Level = level
		if err := config.Validate(); err != nil {
			t.Errorf("level %q: %v", level, err)
		}
	}
}

func TestStoreConfig_String(t *testing.T) {
	c := StoreConfig{Backend: "redis", RedisAddr: "localhost:6379", RedisPassword: "supersecret"}
	s := c.String()
	if strings.Contains(s, "supersecret") {
		t.Errorf("String() leaked the password: %s", s)
	}
	if !strings.Contains(s, "(set)") {
		t.Errorf("String() = %s", s)
	}
	if (StoreConfig{}).RedactedPassword() != "" {
		t.Error("empty password should redact to empty")
	}
}
