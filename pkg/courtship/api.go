package courtship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"courtship/internal/agent"
	"courtship/internal/logging"
	"courtship/internal/market"
	"courtship/internal/model"
	"courtship/internal/stats"
	"courtship/internal/storage"
)

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultWorkers    = 4
	defaultRunsLimit  = 20
)

type Options struct {
	StoreKind  string
	DBPath     string
	ResultsDir string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	resultsDir string
	exportsDir string

	initMu      sync.Mutex
	initialized bool
	indexMu     sync.Mutex
}

// RunRequest describes one simulation, or several seeded replicates of it.
// A nil Market uses market.DefaultConfig.
type RunRequest struct {
	RunID      string
	Seed       uint64
	Episodes   int
	TrackFrom  int
	Replicates int
	Workers    int
	Market     *market.Config
}

type RunSummary struct {
	RunID                string  `json:"run_id"`
	Seed                 uint64  `json:"seed"`
	Replicate            int     `json:"replicate"`
	ArtifactsDir         string  `json:"artifacts_dir"`
	Episodes             int     `json:"episodes"`
	AcceptanceRate       float64 `json:"acceptance_rate"`
	FinalExplorationRate float64 `json:"final_exploration_rate"`
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string  `json:"run_id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Seed           uint64  `json:"seed"`
	Replicate      int     `json:"replicate"`
	NumMen         int     `json:"num_men"`
	NumWomen       int     `json:"num_women"`
	Episodes       int     `json:"episodes"`
	MaxProposals   int     `json:"max_proposals"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string `json:"run_id"`
	Directory string `json:"directory"`
}

type AgentsRequest struct {
	RunID  string
	Latest bool
	Role   string
}

type ReportRequest struct {
	RunID  string
	Latest bool
}

type QTableRequest struct {
	RunID   string
	Latest  bool
	AgentID string
	Kind    string
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("client")
	}

	store, err := storage.NewStore(storeKind, opts.DBPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		resultsDir: resultsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run simulates every replicate, persists it to the store and writes its
// artifacts. Replicate i uses seed Seed+i; replicates run in parallel, each on
// its own single-threaded market.
func (c *Client) Run(ctx context.Context, req RunRequest) ([]RunSummary, error) {
	cfg := market.DefaultConfig()
	if req.Market != nil {
		cfg = *req.Market
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.Episodes <= 0 {
		return nil, fmt.Errorf("%w: episodes must be > 0, got %d", market.ErrConfig, req.Episodes)
	}
	if req.TrackFrom < 0 {
		return nil, fmt.Errorf("%w: track from must be >= 0, got %d", market.ErrConfig, req.TrackFrom)
	}
	if req.Replicates <= 0 {
		req.Replicates = 1
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}
	if req.RunID == "" {
		req.RunID = fmt.Sprintf("market-%d-%s", req.Seed, uuid.NewString()[:8])
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, req.Replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for i := 0; i < req.Replicates; i++ {
		runID := req.RunID
		if req.Replicates > 1 {
			runID = fmt.Sprintf("%s-r%d", req.RunID, i)
		}
		g.Go(func() error {
			summary, err := c.runReplicate(gctx, runID, i, req, cfg)
			if err != nil {
				return fmt.Errorf("run %s: %w", runID, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) runReplicate(ctx context.Context, runID string, replicate int, req RunRequest, cfg market.Config) (RunSummary, error) {
	seed := req.Seed + uint64(replicate)
	logger := c.logger.With(slog.String("run_id", runID))

	started := time.Now()
	env, err := market.NewSeeded(cfg, seed, market.WithLogger(logger))
	if err != nil {
		return RunSummary{}, err
	}
	if err := env.Simulate(ctx, req.Episodes, req.TrackFrom); err != nil {
		return RunSummary{}, err
	}

	version := storage.CurrentVersion()
	records := env.Records()
	for i := range records {
		records[i].VersionedRecord = version
	}
	tables := env.QTables()
	history := env.History()
	now := time.Now().UTC()
	run := model.RunRecord{
		VersionedRecord:    version,
		ID:                 runID,
		Seed:               seed,
		Replicate:          replicate,
		NumMen:             cfg.NumMen,
		NumWomen:           cfg.NumWomen,
		Episodes:           req.Episodes,
		MaxProposals:       cfg.MaxProposals,
		TrackFrom:          req.TrackFrom,
		Roses:              append([]model.RoseOption(nil), cfg.Roses...),
		LearningRate:       cfg.LearningRate,
		DiscountFactor:     cfg.DiscountFactor,
		ExplorationDecay:   cfg.ExplorationDecay,
		MinExploration:     cfg.MinExploration,
		DesirabilityMean:   cfg.DesirabilityMean,
		DesirabilityStdDev: cfg.DesirabilityStdDev,
		CreatedAtUTC:       now.Format(time.RFC3339Nano),
	}

	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveAgentRecords(ctx, runID, records); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveQTables(ctx, runID, tables); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveEpisodes(ctx, runID, history); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.resultsDir, stats.RunArtifacts{
		Config:   run,
		Episodes: history,
		Agents:   records,
		QTables:  tables,
	})
	if err != nil {
		return RunSummary{}, err
	}

	acceptance := stats.AcceptanceRate(records)
	c.indexMu.Lock()
	err = stats.AppendRunIndex(c.resultsDir, stats.RunIndexEntry{
		RunID:          runID,
		Seed:           seed,
		Replicate:      replicate,
		NumMen:         cfg.NumMen,
		NumWomen:       cfg.NumWomen,
		Episodes:       req.Episodes,
		MaxProposals:   cfg.MaxProposals,
		AcceptanceRate: acceptance,
		CreatedAtUTC:   run.CreatedAtUTC,
	})
	c.indexMu.Unlock()
	if err != nil {
		return RunSummary{}, err
	}

	finalExploration := 0.0
	if len(history) > 0 {
		finalExploration = history[len(history)-1].MeanExplorationRate
	}
	logger.Info("run complete",
		slog.Uint64("seed", seed),
		slog.Int("episodes", req.Episodes),
		slog.Float64("acceptance_rate", acceptance),
		slog.Duration("elapsed", time.Since(started)),
	)
	return RunSummary{
		RunID:                runID,
		Seed:                 seed,
		Replicate:            replicate,
		ArtifactsDir:         filepath.Clean(runDir),
		Episodes:             req.Episodes,
		AcceptanceRate:       acceptance,
		FinalExplorationRate: finalExploration,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Seed:           e.Seed,
			Replicate:      e.Replicate,
			NumMen:         e.NumMen,
			NumWomen:       e.NumWomen,
			Episodes:       e.Episodes,
			MaxProposals:   e.MaxProposals,
			AcceptanceRate: e.AcceptanceRate,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.resultsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Agents returns the per-agent records of a run in processing order, optionally
// restricted to one role.
func (c *Client) Agents(ctx context.Context, req AgentsRequest) ([]model.AgentRecord, error) {
	var role agent.Role
	if req.Role != "" {
		parsed, err := agent.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	records, err := c.agentRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return records, nil
	}
	out := make([]model.AgentRecord, 0, len(records))
	for _, r := range records {
		if r.Role == string(role) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) Report(ctx context.Context, req ReportRequest) (stats.Report, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return stats.Report{}, err
	}
	records, err := c.agentRecords(ctx, runID)
	if err != nil {
		return stats.Report{}, err
	}
	return stats.BuildReport(runID, records)
}

func (c *Client) QTable(ctx context.Context, req QTableRequest) (model.QTableSnapshot, error) {
	if req.AgentID == "" {
		return model.QTableSnapshot{}, errors.New("agent id is required")
	}
	if _, _, err := agent.ParseID(req.AgentID); err != nil {
		return model.QTableSnapshot{}, err
	}
	if req.Kind == "" {
		req.Kind = model.QTableSend
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return model.QTableSnapshot{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.QTableSnapshot{}, err
	}

	q, ok, err := c.store.GetQTable(ctx, runID, req.AgentID, req.Kind)
	if err != nil {
		return model.QTableSnapshot{}, err
	}
	if ok {
		return q, nil
	}
	q, ok, err = stats.ReadQTable(c.resultsDir, runID, req.AgentID, req.Kind)
	if err != nil {
		return model.QTableSnapshot{}, err
	}
	if !ok {
		return model.QTableSnapshot{}, fmt.Errorf("%s q table not found for %s in run %s", req.Kind, req.AgentID, runID)
	}
	return q, nil
}

func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]model.EpisodeSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	episodes, ok, err := c.store.GetEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		episodes, ok, err = stats.ReadEpisodes(c.resultsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("episodes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(episodes) > req.Limit {
		episodes = episodes[len(episodes)-req.Limit:]
	}
	return episodes, nil
}

// agentRecords prefers the store and falls back to the artifacts directory, so
// runs written by an earlier process stay readable with the memory backend.
func (c *Client) agentRecords(ctx context.Context, runID string) ([]model.AgentRecord, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	records, ok, err := c.store.GetAgentRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		records, ok, err = stats.ReadAgentRecords(c.resultsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("agent records not found for run id: %s", runID)
	}
	stats.SortRecords(records)
	return records, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		if runID == "" {
			return "", errors.New("run id or latest is required")
		}
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
