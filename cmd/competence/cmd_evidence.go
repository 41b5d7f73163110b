package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/update"
	"github.com/spf13/cobra"
)

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence [competence] [up|down]",
		Short: "Apply evidence about competences",
		Long: `Apply one or more evidence items to the learner's mastery vector.

Items given together are applied as one batch: each is computed from the
same starting vector and the results are averaged. Items naming unknown
competences are reported and skipped.

Examples:
  competence evidence C4 down
  competence evidence C1 up --strength high
  competence evidence --item C1:up --item C2:up:low`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			rawItems, _ := cmd.Flags().GetStringArray("item")
			strengthFlag, _ := cmd.Flags().GetString("strength")

			strength, err := models.ParseStrength(strengthFlag)
			if err != nil {
				return err
			}

			switch len(args) {
			case 1:
				return fmt.Errorf("expected a competence and a direction, got only %q", args[0])
			case 2:
				rawItems = append([]string{args[0] + ":" + args[1]}, rawItems...)
			}
			if len(rawItems) == 0 {
				return fmt.Errorf("no evidence given: pass <competence> <up|down> or --item id:direction[:strength]")
			}

			items := make([]models.Evidence, 0, len(rawItems))
			for _, raw := range rawItems {
				ev, err := models.ParseEvidence(raw, strength)
				if err != nil {
					return err
				}
				items = append(items, ev)
			}

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			before := env.sess.Vector()
			res, err := env.sess.ApplyEvidence(cmd.Context(), items)
			if err != nil {
				return fmt.Errorf("evidence update failed: %w", err)
			}
			return printUpdate(cmd, jsonOut, before, env.sess.Vector(), res)
		},
	}

	cmd.Flags().StringArray("item", nil, "Evidence item id:direction[:strength] (repeatable)")
	cmd.Flags().String("strength", string(models.StrengthMedium), "Default strength: low, medium or high")
	return cmd
}

func newResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <unit> <success|failure>",
		Short: "Record the outcome of a played content unit",
		Long: `Record whether the learner succeeded at a content unit. Every competence
the unit requires receives evidence: up on success, down on failure, at the
strength set by session.unit_strength.

Examples:
  competence result counting-game success
  competence result carry-race failure`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := models.ParseDirection(args[1])
			if err != nil {
				return err
			}

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			before := env.sess.Vector()
			res, err := env.sess.ApplyEvidenceForUnit(cmd.Context(), args[0], dir.Upgrade())
			if err != nil {
				return err
			}
			return printUpdate(cmd, jsonOut, before, env.sess.Vector(), res)
		},
	}
}

// printUpdate reports a batch result and the competences whose mastered
// status changed.
func printUpdate(cmd *cobra.Command, jsonOut bool, before, after *mastery.Vector, res *update.BatchResult) error {
	var crossed []string
	for i := 0; i < before.Len(); i++ {
		if before.MasteredAt(i) != after.MasteredAt(i) {
			crossed = append(crossed, before.Graph().ID(i))
		}
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"applied":  res.Applied(),
			"rejected": res.Rejected,
			"traces":   res.Traces,
			"crossed":  crossed,
			"mastery":  after.Ranked(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Applied %d evidence item(s)\n", res.Applied())
	for _, r := range res.Rejected {
		fmt.Fprintf(out, "  skipped %s: %s\n", r.Evidence, r.Reason)
	}
	if len(crossed) > 0 {
		var parts []string
		for _, id := range crossed {
			state := "lost"
			if after.Mastered(id) {
				state = "mastered"
			}
			parts = append(parts, fmt.Sprintf("%s %s", id, state))
		}
		fmt.Fprintf(out, "  %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintln(out)
	printEntries(out, after.Ranked())
	return nil
}
