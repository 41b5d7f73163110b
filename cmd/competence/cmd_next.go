package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Select the next content unit",
		Long: `Pick the next content unit for the learner and record it as played.

Among the successors of the current unit, the one requiring the fewest
unmastered competences wins; ties go to the least played unit, then to the
first declared. Units that need a competence whose own prerequisites are not
mastered yet are skipped. When every candidate is skipped nothing is
recorded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			explain, _ := cmd.Flags().GetBool("explain")

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cands := env.sess.Candidates()
			id, ok, err := env.sess.NextUnit(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to record selection: %w", err)
			}

			if jsonOut {
				result := map[string]any{"exhausted": !ok}
				if ok {
					unit, _ := env.dom.Content.Unit(id)
					counts, _ := env.sess.History()
					result["unit"] = unit
					result["plays"] = counts[id]
				}
				if explain {
					result["candidates"] = cands
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			if explain {
				fmt.Fprintln(out, "Candidates:")
				for _, c := range cands {
					status := fmt.Sprintf("gap %d, played %d", c.Gap, c.Plays)
					if c.Gated != "" {
						status = "skipped, needs " + c.Gated
					}
					fmt.Fprintf(out, "  %-16s %s\n", c.Unit.ID, status)
				}
				fmt.Fprintln(out)
			}
			if !ok {
				fmt.Fprintln(out, "No reachable unit: every candidate needs a competence that is not ready yet.")
				return nil
			}
			unit, _ := env.dom.Content.Unit(id)
			if unit.Title != "" {
				fmt.Fprintf(out, "Next unit: %s (%s)\n", unit.ID, unit.Title)
			} else {
				fmt.Fprintf(out, "Next unit: %s\n", unit.ID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("explain", false, "List every candidate with its gap and play count")
	return cmd
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the learner to the initial mastery estimate",
		Long: `Discard the learner's mastery and content history for this domain and
start again from the initial estimate. Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.sess.ResetToInitial(cmd.Context()); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"status":  "reset",
					"learner": env.sess.LearnerID(),
					"key":     env.sess.Key(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Learner %s reset to the initial estimate\n", env.sess.LearnerID())
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm the reset")
	return cmd
}
