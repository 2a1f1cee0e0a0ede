package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courtship/internal/agent"
	"courtship/internal/format"
	"courtship/internal/model"
	"courtship/pkg/courtship"
)

func newQTableCmd(g *globalFlags) *cobra.Command {
	var (
		sel     runSelector
		agentID string
		kind    string
		out     outputFlags
	)
	cmd := &cobra.Command{
		Use:   "qtable",
		Short: "Show an agent's learned send or receive table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			q, err := client.QTable(cmd.Context(), courtship.QTableRequest{
				RunID:   sel.runID,
				Latest:  sel.latest,
				AgentID: agentID,
				Kind:    kind,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.jsonOut {
				return writeJSON(w, q)
			}

			role, _, err := agent.ParseID(q.AgentID)
			if err != nil {
				return err
			}
			tb, err := out.table()
			if err != nil {
				return err
			}
			header := []string{"Partner", "Plain", "Bonus"}
			if q.Kind == model.QTableReceive {
				header = []string{"Partner", "Reject", "Accept"}
			}
			tb.Header(header...)
			for row := 0; row < q.Rows; row++ {
				partner, err := agent.ID(role.Opposite(), row)
				if err != nil {
					return err
				}
				vals := []any{partner}
				for col := 0; col < q.Cols; col++ {
					vals = append(vals, format.Float(q.Values[row*q.Cols+col], 3))
				}
				tb.Row(vals...)
			}
			fmt.Fprintf(w, "%s %s q table\n", q.AgentID, q.Kind)
			render(w, tb)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id, e.g. man_0")
	cmd.Flags().StringVar(&kind, "kind", model.QTableSend, "table kind: send|receive")
	_ = cmd.MarkFlagRequired("agent")
	out.register(cmd)
	return cmd
}
