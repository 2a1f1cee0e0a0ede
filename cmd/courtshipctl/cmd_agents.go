package main

import (
	"github.com/spf13/cobra"

	"courtship/internal/format"
	"courtship/pkg/courtship"
)

func newAgentsCmd(g *globalFlags) *cobra.Command {
	var (
		sel  runSelector
		role string
		out  outputFlags
	)
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Show the per-agent stats records of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			records, err := client.Agents(cmd.Context(), courtship.AgentsRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				Role:   role,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.jsonOut {
				return writeJSON(w, records)
			}

			tb, err := out.table()
			if err != nil {
				return err
			}
			tb.Header("Agent", "Desirability", "Roses", "Sent", "Sent accepted", "Roses accepted", "Received", "Received accepted", "Avg desirability sent", "Avg desirability received")
			for _, r := range records {
				tb.Row(
					r.AgentID,
					format.Float(r.DesirabilityScore, 1),
					r.NumRoses,
					r.ProposalsSent,
					format.Ratio(r.ProposalsSentAccepted, r.ProposalsSent),
					format.Ratio(r.RosesSentAccepted, r.RosesSent),
					r.ProposalsReceived,
					format.Ratio(r.ProposalsReceivedAccepted, r.ProposalsReceived),
					format.Float(r.AvgDesirabilitySent, 1),
					format.Float(r.AvgDesirabilityReceived, 1),
				)
			}
			tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
			render(w, tb)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&role, "role", "", "restrict to one role: man|woman")
	out.register(cmd)
	return cmd
}
