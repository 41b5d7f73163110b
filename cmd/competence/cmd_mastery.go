package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/spf13/cobra"
)

func newMasteryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mastery",
		Short: "Show the learner's mastery probabilities",
		Long: `List every competence with the probability that the learner has mastered
it, highest first. Competences at or above the threshold are marked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			masteredOnly, _ := cmd.Flags().GetBool("mastered")

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			v := env.sess.Vector()
			entries := v.Ranked()
			masteredCount := 0
			shown := entries[:0:0]
			for _, e := range entries {
				if e.Mastered {
					masteredCount++
				} else if masteredOnly {
					continue
				}
				shown = append(shown, e)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"learner":        env.sess.LearnerID(),
					"threshold":      v.Threshold(),
					"mastered_count": masteredCount,
					"total":          len(entries),
					"competences":    shown,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Learner %s: %d of %d competences mastered (threshold %.2f)\n\n",
				env.sess.LearnerID(), masteredCount, len(entries), v.Threshold())
			printEntries(out, shown)
			return nil
		},
	}

	cmd.Flags().Bool("mastered", false, "Only list mastered competences")
	return cmd
}

// printEntries renders one line per competence.
func printEntries(w io.Writer, entries []mastery.Entry) {
	for _, e := range entries {
		mark := " "
		if e.Mastered {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-8s %5.1f%%  %s\n", mark, e.ID, e.Probability*100, e.Title)
	}
}
