package main

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"courtship/internal/format"
	"courtship/pkg/courtship"
)

type runFlags struct {
	config     string
	runID      string
	seed       uint64
	episodes   int
	trackFrom  int
	replicates int
	workers    int

	men                int
	women              int
	maxProposals       int
	roses              string
	desirabilityMean   float64
	desirabilityStdDev float64
	learningRate       float64
	discount           float64
	initialExploration float64
	explorationDecay   float64
	minExploration     float64

	profile    string
	profileDir string
	jsonOut    bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a market and persist its results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, &rf)
		},
	}

	defaults := defaultRunRequest()
	f := cmd.Flags()
	f.StringVar(&rf.config, "config", "", "optional run config file (YAML or JSON)")
	f.StringVar(&rf.runID, "run-id", "", "explicit run id (optional)")
	f.Uint64Var(&rf.seed, "seed", defaults.Seed, "rng seed; replicate i uses seed+i")
	f.IntVar(&rf.episodes, "episodes", defaults.Episodes, "episode count")
	f.IntVar(&rf.trackFrom, "track-from", defaults.TrackFrom, "first episode whose proposals are tracked")
	f.IntVar(&rf.replicates, "replicates", defaults.Replicates, "independent seeded replicates")
	f.IntVar(&rf.workers, "workers", defaults.Workers, "replicates simulated concurrently")
	f.IntVar(&rf.men, "men", defaults.Market.NumMen, "number of men")
	f.IntVar(&rf.women, "women", defaults.Market.NumWomen, "number of women")
	f.IntVar(&rf.maxProposals, "max-proposals", defaults.Market.MaxProposals, "proposals per agent per episode")
	f.StringVar(&rf.roses, "roses", "0.8:2,0.2:6", "rose budget distribution as prob:count pairs")
	f.Float64Var(&rf.desirabilityMean, "desirability-mean", defaults.Market.DesirabilityMean, "mean of the desirability distribution")
	f.Float64Var(&rf.desirabilityStdDev, "desirability-stddev", defaults.Market.DesirabilityStdDev, "standard deviation of the desirability distribution")
	f.Float64Var(&rf.learningRate, "learning-rate", defaults.Market.LearningRate, "Q-learning rate")
	f.Float64Var(&rf.discount, "discount", defaults.Market.DiscountFactor, "Q-learning discount factor")
	f.Float64Var(&rf.initialExploration, "exploration", defaults.Market.InitialExploration, "initial exploration rate")
	f.Float64Var(&rf.explorationDecay, "exploration-decay", defaults.Market.ExplorationDecay, "per-episode exploration decay factor")
	f.Float64Var(&rf.minExploration, "min-exploration", defaults.Market.MinExploration, "exploration floor")
	f.StringVar(&rf.profile, "profile", "", "capture a pprof profile: cpu|mem")
	f.StringVar(&rf.profileDir, "profile-dir", ".", "directory for profile output")
	f.BoolVar(&rf.jsonOut, "json", false, "emit run summaries as JSON")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalFlags, rf *runFlags) error {
	req, err := loadOrDefaultRunRequest(rf.config)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, rf, &req); err != nil {
		return err
	}

	if rf.profile != "" {
		if err := os.MkdirAll(rf.profileDir, 0o755); err != nil {
			return err
		}
	}
	switch rf.profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(rf.profileDir), profile.Quiet, profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(rf.profileDir), profile.Quiet, profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q (want cpu|mem)", rf.profile)
	}

	client, err := g.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summaries, err := client.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rf.jsonOut {
		return writeJSON(out, summaries)
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "run_id=%s seed=%d episodes=%d acceptance=%s exploration=%s artifacts=%s\n",
			s.RunID, s.Seed, s.Episodes, format.Percent(s.AcceptanceRate), format.Float(s.FinalExplorationRate, 4), s.ArtifactsDir)
	}
	return nil
}

// applyRunFlags lets explicitly set flags win over the config file.
func applyRunFlags(cmd *cobra.Command, rf *runFlags, req *courtship.RunRequest) error {
	changed := cmd.Flags().Changed
	set := func(name string, apply func()) {
		if rf.config == "" || changed(name) {
			apply()
		}
	}
	if rf.runID != "" {
		set("run-id", func() { req.RunID = rf.runID })
	}
	set("seed", func() { req.Seed = rf.seed })
	set("episodes", func() { req.Episodes = rf.episodes })
	set("track-from", func() { req.TrackFrom = rf.trackFrom })
	set("replicates", func() { req.Replicates = rf.replicates })
	set("workers", func() { req.Workers = rf.workers })

	m := req.Market
	set("men", func() { m.NumMen = rf.men })
	set("women", func() { m.NumWomen = rf.women })
	set("max-proposals", func() { m.MaxProposals = rf.maxProposals })
	set("desirability-mean", func() { m.DesirabilityMean = rf.desirabilityMean })
	set("desirability-stddev", func() { m.DesirabilityStdDev = rf.desirabilityStdDev })
	set("learning-rate", func() { m.LearningRate = rf.learningRate })
	set("discount", func() { m.DiscountFactor = rf.discount })
	set("exploration", func() { m.InitialExploration = rf.initialExploration })
	set("exploration-decay", func() { m.ExplorationDecay = rf.explorationDecay })
	set("min-exploration", func() { m.MinExploration = rf.minExploration })

	if changed("roses") {
		roses, err := parseRoses(rf.roses)
		if err != nil {
			return err
		}
		m.Roses = roses
	}
	return nil
}
