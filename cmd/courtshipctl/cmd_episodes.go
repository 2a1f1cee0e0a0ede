package main

import (
	"github.com/spf13/cobra"

	"courtship/internal/format"
	"courtship/pkg/courtship"
)

func newEpisodesCmd(g *globalFlags) *cobra.Command {
	var (
		sel   runSelector
		limit int
		out   outputFlags
	)
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Show per-episode summaries of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			episodes, err := client.Episodes(cmd.Context(), courtship.EpisodesRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.jsonOut {
				return writeJSON(w, episodes)
			}

			tb, err := out.table()
			if err != nil {
				return err
			}
			tb.Header("Episode", "Tracked", "Proposals", "Accepted", "Bonus", "Bonus accepted", "Skipped", "Exploration")
			for _, e := range episodes {
				tb.Row(
					e.Episode,
					format.BoolMark(e.Tracked),
					e.Proposals,
					format.Ratio(e.Accepted, e.Proposals),
					e.BonusProposals,
					format.Ratio(e.BonusAccepted, e.BonusProposals),
					e.SkippedSends,
					format.Float(e.MeanExplorationRate, 4),
				)
			}
			render(w, tb)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "show only the last N episodes (0 shows all)")
	out.register(cmd)
	return cmd
}
