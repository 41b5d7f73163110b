package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvandessel/competence/internal/config"
	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/logging"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/session"
	"github.com/nvandessel/competence/internal/store"
	"github.com/spf13/cobra"
)

// projectConfigPath is the per-project config written by `competence init`.
func projectConfigPath(root string) string {
	return filepath.Join(store.LocalPath(root), "config.yaml")
}

// loadConfig resolves configuration for cmd: --config if given, else the
// project config if present, else the user config. Environment overrides
// apply in every case.
func loadConfig(cmd *cobra.Command) (*config.CompetenceConfig, error) {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if p := projectConfigPath(root); fileExists(p) {
			path = p
		}
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// domainPath returns --domain or session.domain, relative to --root.
func domainPath(cmd *cobra.Command, cfg *config.CompetenceConfig) string {
	root, _ := cmd.Flags().GetString("root")
	p, _ := cmd.Flags().GetString("domain")
	if p == "" {
		p = cfg.Session.Domain
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return p
}

// learnerID returns --learner or session.learner.
func learnerID(cmd *cobra.Command, cfg *config.CompetenceConfig) (string, error) {
	id, _ := cmd.Flags().GetString("learner")
	if id == "" {
		id = cfg.Session.Learner
	}
	if id == "" {
		return "", &models.ConfigError{Field: "session.learner", Reason: "no learner: pass --learner, set COMPETENCE_LEARNER, or run 'competence init'"}
	}
	return id, nil
}

// newCmdLogger logs to the command's stderr at logging.level.
func newCmdLogger(cmd *cobra.Command, cfg *config.CompetenceConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// appEnv is everything a command needs to work on learner state.
type appEnv struct {
	root       string
	cfg        *config.CompetenceConfig
	logger     *slog.Logger
	decisions  *logging.DecisionLogger
	domainPath string
	dom        *domain.Compiled
	store      store.StateStore
	sess       *session.Session
}

// openStoreEnv loads config, logging and the store, plus the domain when
// withDomain is set.
func openStoreEnv(cmd *cobra.Command, withDomain bool) (*appEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, _ := cmd.Flags().GetString("root")

	env := &appEnv{
		root:   root,
		cfg:    cfg,
		logger: newCmdLogger(cmd, cfg),
	}
	if fileExists(store.LocalPath(root)) {
		env.decisions = logging.NewDecisionLogger(store.LocalPath(root), cfg.Logging.Level)
	}

	if withDomain {
		env.domainPath = domainPath(cmd, cfg)
		desc, err := domain.LoadFile(env.domainPath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.dom, err = domain.Compile(desc)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("%s: %w", env.domainPath, err)
		}
	}

	env.store, err = openStore(cmd.Context(), root, cfg.Store, cfg.Store.Backend, env.logger)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return env, nil
}

// openSessionEnv is openStoreEnv plus the learner session.
func openSessionEnv(cmd *cobra.Command) (*appEnv, error) {
	env, err := openStoreEnv(cmd, true)
	if err != nil {
		return nil, err
	}
	learner, err := learnerID(cmd, env.cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.sess, err = session.Open(cmd.Context(), session.Options{
		Domain:       env.dom,
		LearnerID:    learner,
		Store:        env.store,
		Threshold:    env.cfg.Mastery.Threshold,
		UnitStrength: env.cfg.Session.UnitStrength,
		Logger:       env.logger,
		Decisions:    env.decisions,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// domainName is the description's name, or the file name without extension.
func (e *appEnv) domainName() string {
	if e.dom.Description.Name != "" {
		return e.dom.Description.Name
	}
	base := filepath.Base(e.domainPath)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Close releases the store and the decision log.
func (e *appEnv) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("closing store", "error", err)
		}
	}
	e.decisions.Close()
}

// openStore opens backend with the connection settings of sc. The cache
// layer from sc applies only when backend is the configured one.
func openStore(ctx context.Context, root string, sc config.StoreConfig, backend string, logger *slog.Logger) (store.StateStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := store.Options{
		Backend:       store.Backend(backend),
		Root:          root,
		RedisAddr:     sc.RedisAddr,
		RedisPassword: sc.RedisPassword,
		RedisDB:       sc.RedisDB,
		RedisTTL:      sc.RedisTTL,
		Logger:        logger,
	}
	if backend == sc.Backend {
		opts.Cache = store.Backend(sc.Cache)
	}
	if backend != string(store.BackendMemory) {
		if _, err := store.EnsureLocalDir(root); err != nil {
			return nil, err
		}
	}
	return store.Open(ctx, opts)
}

// writeJSON encodes v to w with indentation.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
