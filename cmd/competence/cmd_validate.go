package main

import (
	"fmt"

	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a domain description",
		Long: `Load, validate and compile the domain description, then check that its
initial mastery vector respects the prerequisite order.

Examples:
  competence validate
  competence validate --domain fractions.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := domainPath(cmd, cfg)

			desc, err := domain.LoadFile(path)
			if err != nil {
				return err
			}
			dom, err := domain.Compile(desc)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			initial := mastery.Initial(dom.Graph, mastery.WithThreshold(cfg.Mastery.Threshold))
			ok, p, s := initial.Consistent(0)
			if !ok {
				return fmt.Errorf("%s: initial vector puts %s at or below its successor %s", path, p, s)
			}

			edges := 0
			for _, pe := range desc.Prerequisites {
				edges += len(pe.Requires)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"valid":         true,
					"path":          path,
					"name":          desc.Name,
					"domain_id":     dom.Graph.DomainID(),
					"competences":   dom.Graph.Len(),
					"prerequisites": edges,
					"units":         dom.Content.Len(),
					"update_levels": len(dom.Levels.Rows()),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Domain %s is valid: %d competences, %d prerequisite edges, %d units\n",
				path, dom.Graph.Len(), edges, dom.Content.Len())
			return nil
		},
	}
}
