package main

import (
	"github.com/spf13/cobra"

	"courtship/internal/logging"
	"courtship/internal/storage"
	"courtship/pkg/courtship"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalFlags struct {
	logLevel   string
	logFormat  string
	storeKind  string
	dbPath     string
	resultsDir string
	exportsDir string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "courtshipctl",
		Short:         "Simulate a repeated two-sided matching market with Q-learning agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(g.logLevel)
			if err != nil {
				return err
			}
			logging.Init(level, g.logFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	f.StringVar(&g.logFormat, "log-format", "text", "log format: text|json")
	f.StringVar(&g.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	f.StringVar(&g.dbPath, "db-path", storage.DefaultSQLitePath, "sqlite database path")
	f.StringVar(&g.resultsDir, "results-dir", "results", "directory holding run artifacts")
	f.StringVar(&g.exportsDir, "exports-dir", "exports", "default export destination")

	root.AddCommand(
		newRunCmd(&g),
		newRunsCmd(&g),
		newAgentsCmd(&g),
		newReportCmd(&g),
		newQTableCmd(&g),
		newEpisodesCmd(&g),
		newExportCmd(&g),
	)
	return root
}

func (g *globalFlags) client() (*courtship.Client, error) {
	return courtship.New(courtship.Options{
		StoreKind:  g.storeKind,
		DBPath:     g.dbPath,
		ResultsDir: g.resultsDir,
		ExportsDir: g.exportsDir,
		Logger:     logging.New("courtshipctl"),
	})
}

// runSelector is shared by every command that reads one run.
type runSelector struct {
	runID  string
	latest bool
}

func (s *runSelector) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.runID, "run-id", "", "run id to read")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "read the most recent run")
	cmd.MarkFlagsMutuallyExclusive("run-id", "latest")
}
