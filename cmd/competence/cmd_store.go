package main

import (
	"fmt"

	"github.com/nvandessel/competence/internal/store"
	"github.com/spf13/cobra"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the learner state store",
	}
	cmd.AddCommand(
		newStoreMigrateCmd(),
		newStoreKeysCmd(),
	)
	return cmd
}

func newStoreMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every learner state from one backend to another",
		Long: `Copy all learner state from the --from backend (default: store.backend)
to the --to backend. Existing state in the target is kept unless
--overwrite is given. Afterwards set store.backend to the new backend.

Examples:
  competence store migrate --to sqlite
  competence store migrate --from sqlite --to badger --overwrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if from == "" {
				from = cfg.Store.Backend
			}
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			if from == to {
				return fmt.Errorf("source and target backend are both %q", from)
			}
			if from == string(store.BackendMemory) || to == string(store.BackendMemory) {
				return fmt.Errorf("the memory backend does not outlive the process and cannot be migrated")
			}

			logger := newCmdLogger(cmd, cfg)
			src, err := openStore(cmd.Context(), root, cfg.Store, from, logger)
			if err != nil {
				return fmt.Errorf("failed to open source store %s: %w", from, err)
			}
			defer src.Close()
			dst, err := openStore(cmd.Context(), root, cfg.Store, to, logger)
			if err != nil {
				return fmt.Errorf("failed to open target store %s: %w", to, err)
			}
			defer dst.Close()

			res, err := store.Copy(cmd.Context(), dst, src, !overwrite)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"from":    from,
					"to":      to,
					"copied":  res.Copied,
					"skipped": res.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s -> %s: %d copied, %d skipped\n", from, to, res.Copied, res.Skipped)
			return nil
		},
	}

	cmd.Flags().String("from", "", "Source backend (default: store.backend)")
	cmd.Flags().String("to", "", "Target backend: file, sqlite, badger or redis")
	cmd.Flags().Bool("overwrite", false, "Overwrite state that already exists in the target")
	return cmd
}

func newStoreKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the domain/learner keys in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := openStoreEnv(cmd, false)
			if err != nil {
				return err
			}
			defer env.Close()

			keys, err := env.store.Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			if jsonOut {
				if keys == nil {
					keys = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"keys": keys})
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
