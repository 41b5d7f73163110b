package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/competence/internal/backup"
	"github.com/nvandessel/competence/internal/config"
	"github.com/nvandessel/competence/internal/pathutil"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export learner state to a backup file",
		Long: `Write learner state for the current domain to a compressed, checksummed
backup file. With --all every domain in the store is exported.

Without a file argument the backup goes to the backup directory
(backup.dir, default ~/.competence/backups) and the retention policy
(backup.max_count, backup.max_age) is applied there.

Examples:
  competence export
  competence export progress.json.gz
  competence export --all
  competence export list
  competence export verify progress.json.gz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			all, _ := cmd.Flags().GetBool("all")

			env, err := openStoreEnv(cmd, !all)
			if err != nil {
				return err
			}
			defer env.Close()

			var outputPath, dir string
			if len(args) == 1 {
				outputPath = args[0]
				if err := checkBackupPath(env.cfg, env.root, outputPath); err != nil {
					return err
				}
			} else {
				dir, err = backupDir(env.cfg)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0700); err != nil {
					return fmt.Errorf("failed to create backup directory: %w", err)
				}
				outputPath = backup.GenerateBackupPath(dir)
			}

			domainID := ""
			if !all {
				domainID = env.dom.Graph.DomainID()
			}
			result, err := backup.Backup(cmd.Context(), env.store, outputPath, domainID)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var deleted []string
			if policy := retentionPolicy(env.cfg); dir != "" && policy != nil {
				deleted, err = backup.ApplyRetention(dir, policy)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			if jsonOut {
				var sizeBytes int64
				if info, err := os.Stat(outputPath); err == nil {
					sizeBytes = info.Size()
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":        outputPath,
					"state_count": len(result.States),
					"version":     result.Version,
					"size_bytes":  sizeBytes,
					"pruned":      deleted,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d learner state(s)\n", len(result.States))
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old backup(s)\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Export every domain, not only the current one")

	cmd.AddCommand(
		newExportListCmd(),
		newExportVerifyCmd(),
	)
	return cmd
}

func newExportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"dir":     dir,
					"backups": backups,
				})
			}
			if len(backups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No backups in %s\n", dir)
				return nil
			}
			for _, b := range backups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  v%d  %8d bytes  %s\n",
					b.CreatedAt.Format("2006-01-02 15:04:05"), b.Version, b.Size, filepath.Base(b.Path))
			}
			return nil
		},
	}
}

func newExportVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			version, err := backup.DetectFormat(path)
			if err != nil {
				return err
			}
			if version == backup.FormatV2 {
				if err := backup.VerifyChecksum(path); err != nil {
					return err
				}
			}
			b, err := backup.Read(path)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":        path,
					"valid":       true,
					"version":     version,
					"state_count": len(b.States),
					"created_at":  b.CreatedAt,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (v%d, %d learner state(s))\n", path, version, len(b.States))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import learner state from a backup file",
		Long: `Restore learner state from a backup file (V1 or V2, auto-detected).

Modes:
  merge   - Skip learners that already have state (default)
  replace - Overwrite existing state

Examples:
  competence import progress.json.gz
  competence import progress.json.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			mode, _ := cmd.Flags().GetString("mode")

			var restoreMode backup.RestoreMode
			switch mode {
			case "merge":
				restoreMode = backup.RestoreMerge
			case "replace":
				restoreMode = backup.RestoreReplace
			default:
				return fmt.Errorf("invalid mode %q (use 'merge' or 'replace')", mode)
			}

			env, err := openStoreEnv(cmd, false)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := checkBackupPath(env.cfg, env.root, args[0]); err != nil {
				return err
			}
			result, err := backup.Restore(cmd.Context(), env.store, args[0], restoreMode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"restored": result.Restored,
					"skipped":  result.Skipped,
					"mode":     mode,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete (mode: %s): %d restored, %d skipped\n",
				mode, result.Restored, result.Skipped)
			return nil
		},
	}

	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")
	return cmd
}

// backupDir returns backup.dir or the default backup directory.
func backupDir(cfg *config.CompetenceConfig) (string, error) {
	if cfg.Backup.Dir != "" {
		return cfg.Backup.Dir, nil
	}
	dir, err := backup.DefaultBackupDir()
	if err != nil {
		return "", fmt.Errorf("failed to get backup directory: %w", err)
	}
	return dir, nil
}

// checkBackupPath confines export and import files to the backup
// directory and the project root.
func checkBackupPath(cfg *config.CompetenceConfig, root, path string) error {
	dir, err := backupDir(cfg)
	if err != nil {
		return err
	}
	if err := pathutil.ValidatePath(path, pathutil.BackupDirs(dir, root)); err != nil {
		return fmt.Errorf("backup path rejected: %w", err)
	}
	return nil
}

// retentionPolicy builds the policy from backup.max_count and
// backup.max_age. A backup survives if any configured policy keeps it.
func retentionPolicy(cfg *config.CompetenceConfig) backup.RetentionPolicy {
	var policies backup.AnyPolicy
	if cfg.Backup.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.Backup.MaxCount})
	}
	if age := cfg.BackupMaxAge(); age > 0 {
		policies = append(policies, &backup.AgePolicy{MaxAge: age})
	}

	switch len(policies) {
	case 0:
		return nil
	case 1:
		return policies[0]
	default:
		return policies
	}
}
