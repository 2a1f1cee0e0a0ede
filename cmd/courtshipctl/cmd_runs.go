package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"courtship/internal/format"
	"courtship/pkg/courtship"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	var (
		limit int
		out   outputFlags
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List indexed runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), courtship.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.jsonOut {
				return writeJSON(w, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "no runs found")
				return nil
			}

			tb, err := out.table()
			if err != nil {
				return err
			}
			tb.Header("Run", "Created", "Seed", "Men", "Women", "Episodes", "Max proposals", "Acceptance")
			for _, r := range runs {
				tb.Row(r.RunID, r.CreatedAtUTC, r.Seed, r.NumMen, r.NumWomen, r.Episodes, r.MaxProposals, format.Percent(r.AcceptanceRate))
			}
			render(w, tb)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	out.register(cmd)
	return cmd
}
