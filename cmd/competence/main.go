package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "competence",
		Short: "Adaptive competence mastery tracking",
		Long: `competence tracks how likely a learner is to have mastered each competence
of a learning domain, updates that estimate from evidence, and picks the
next content unit to play.

A domain is a set of competences with prerequisite relations, content units
that exercise them, and an update-level table. Run 'competence init' to
write a sample domain to .competence/domain.yaml.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: .competence/config.yaml, then ~/.competence/config.yaml)")
	rootCmd.PersistentFlags().String("domain", "", "Domain description file (default: session.domain from config)")
	rootCmd.PersistentFlags().String("learner", "", "Learner id (default: session.learner from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newValidateCmd(),
		newMasteryCmd(),
		newEvidenceCmd(),
		newResultCmd(),
		newNextCmd(),
		newResetCmd(),
		newGraphCmd(),
		newExportCmd(),
		newImportCmd(),
		newStoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}
