package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"courtship/internal/format"
	"courtship/internal/stats"
	"courtship/pkg/courtship"
)

func newReportCmd(g *globalFlags) *cobra.Command {
	var (
		sel runSelector
		out outputFlags
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analyse rose and desirability effects of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			report, err := client.Report(cmd.Context(), courtship.ReportRequest{RunID: sel.runID, Latest: sel.latest})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.jsonOut {
				return writeJSON(w, report)
			}
			return renderReport(w, &out, report)
		},
	}
	sel.register(cmd)
	out.register(cmd)
	return cmd
}

func renderReport(w io.Writer, out *outputFlags, report stats.Report) error {
	fmt.Fprintf(w, "run_id=%s agents=%d\n\n", report.RunID, report.Agents)

	effect, err := out.table()
	if err != nil {
		return err
	}
	effect.Header("Proposal", "Agents", "Mean acceptance")
	effect.Row("with rose", len(report.RoseEffect.WithRose), format.Percent(report.RoseEffect.MeanWithRose))
	effect.Row("without rose", len(report.RoseEffect.WithoutRose), format.Percent(report.RoseEffect.MeanWithoutRose))
	render(w, effect)

	roles, err := out.table()
	if err != nil {
		return err
	}
	roles.Header("Role", "Rose usage", "Sent acceptance", "Received acceptance")
	roles.Row("men", format.Percent(report.RoseUsage.MeanMen()), format.Percent(report.SentAcceptance.MeanMen()), format.Percent(report.ReceivedAcceptance.MeanMen()))
	roles.Row("women", format.Percent(report.RoseUsage.MeanWomen()), format.Percent(report.SentAcceptance.MeanWomen()), format.Percent(report.ReceivedAcceptance.MeanWomen()))
	fmt.Fprintln(w)
	render(w, roles)

	fmt.Fprintln(w)
	if report.DesirabilityEffect == nil {
		fmt.Fprintln(w, "desirability effect: unavailable (some agents have no tracked proposals)")
		return nil
	}
	fmt.Fprintf(w, "desirability effect: corr(desirability, sent acceptance)=%s corr(desirability, received acceptance)=%s\n",
		format.Float(report.DesirabilityEffect.SentCorrelation, 3), format.Float(report.DesirabilityEffect.ReceivedCorrelation, 3))
	return nil
}
