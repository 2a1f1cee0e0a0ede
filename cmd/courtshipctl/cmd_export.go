package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courtship/pkg/courtship"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		sel    runSelector
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifact directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			exported, err := client.Export(cmd.Context(), courtship.ExportRequest{
				RunID:  sel.runID,
				Latest: sel.latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	sel.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "export destination (defaults to --exports-dir)")
	return cmd
}
