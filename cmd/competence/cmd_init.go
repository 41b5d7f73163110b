package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize competence tracking in the project directory",
		Long: `Create .competence/ with a sample domain, a project config naming the
learner, and the learner's initial mastery state.

The learner id is taken from --learner, or generated when none is given.
Existing domain and config files are left untouched.

Examples:
  competence init
  competence init --learner ada`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := store.EnsureLocalDir(root)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			domainFile := domainPath(cmd, cfg)
			wroteDomain, err := domain.WriteSample(domainFile)
			if err != nil {
				return err
			}

			learner, _ := cmd.Flags().GetString("learner")
			if learner == "" {
				learner = cfg.Session.Learner
			}
			if learner == "" {
				learner = uuid.NewString()
			}

			cfgPath := projectConfigPath(root)
			wroteConfig := false
			if !fileExists(cfgPath) {
				if err := writeProjectConfig(cfgPath, learner); err != nil {
					return err
				}
				wroteConfig = true
			}
			if err := cmd.Flags().Set("learner", learner); err != nil {
				return err
			}

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			fresh := env.sess.Fresh()
			if fresh {
				if err := env.sess.Save(cmd.Context()); err != nil {
					return fmt.Errorf("failed to save initial state: %w", err)
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status":         "initialized",
					"path":           dir,
					"domain":         domainFile,
					"domain_written": wroteDomain,
					"config_written": wroteConfig,
					"learner":        learner,
					"new_learner":    fresh,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized %s\n", dir)
			if wroteDomain {
				fmt.Fprintf(out, "  Domain:  %s (sample)\n", domainFile)
			} else {
				fmt.Fprintf(out, "  Domain:  %s (existing)\n", domainFile)
			}
			fmt.Fprintf(out, "  Learner: %s\n", learner)
			if wroteConfig {
				fmt.Fprintf(out, "  Config:  %s\n", cfgPath)
			}
			return nil
		},
	}
}

// writeProjectConfig writes a config that only names the learner; every
// other setting keeps its default.
func writeProjectConfig(path, learner string) error {
	doc := struct {
		Session struct {
			Learner string `yaml:"learner"`
		} `yaml:"session"`
	}{}
	doc.Session.Learner = learner

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding project config: %w", err)
	}
	header := fmt.Sprintf("# competence project config, created %s\n# See 'competence config show' for every setting.\n", time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
