package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"courtship/internal/agent"
	"courtship/internal/logging"
	"courtship/internal/model"
	"courtship/internal/stats"
)

type Option func(*Environment)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEpisodeHook registers a callback invoked with every finished episode.
func WithEpisodeHook(hook func(EpisodeResult)) Option {
	return func(e *Environment) {
		e.onEpisode = hook
	}
}

// Environment owns both populations and drives the episode protocol. It is
// single-threaded: every random draw comes from one injected generator.
type Environment struct {
	cfg    Config
	rng    *rand.Rand
	roses  roseSampler
	logger *slog.Logger

	men    []*agent.Agent
	women  []*agent.Agent
	all    []*agent.Agent
	byID   map[string]*agent.Agent
	stats  map[string]*stats.Stats
	events []*agent.Proposal

	episode   int
	history   []model.EpisodeSummary
	onEpisode func(EpisodeResult)
}

// NewSeeded builds an Environment on a PCG generator derived from seed.
func NewSeeded(cfg Config, seed uint64, opts ...Option) (*Environment, error) {
	return New(cfg, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), opts...)
}

func New(cfg Config, rng *rand.Rand, opts ...Option) (*Environment, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Roses = append([]model.RoseOption(nil), cfg.Roses...)

	roses, err := newRoseSampler(cfg.Roses, rng)
	if err != nil {
		return nil, err
	}
	e := &Environment{
		cfg:    cfg,
		rng:    rng,
		roses:  roses,
		logger: logging.New("market"),
		byID:   make(map[string]*agent.Agent, cfg.NumMen+cfg.NumWomen),
		stats:  make(map[string]*stats.Stats, cfg.NumMen+cfg.NumWomen),
	}
	for _, opt := range opts {
		opt(e)
	}

	desirability := distuv.Normal{Mu: cfg.DesirabilityMean, Sigma: cfg.DesirabilityStdDev, Src: rng}
	if e.men, err = e.populate(agent.RoleMan, cfg.NumMen, cfg.NumWomen, desirability); err != nil {
		return nil, err
	}
	if e.women, err = e.populate(agent.RoleWoman, cfg.NumWomen, cfg.NumMen, desirability); err != nil {
		return nil, err
	}
	e.all = append(append([]*agent.Agent(nil), e.men...), e.women...)
	return e, nil
}

func (e *Environment) populate(role agent.Role, size, partners int, desirability distuv.Normal) ([]*agent.Agent, error) {
	out := make([]*agent.Agent, 0, size)
	for i := 0; i < size; i++ {
		numRoses := e.roses.Draw()
		a, err := agent.New(agent.Config{
			Role:            role,
			Index:           i,
			Desirability:    desirability.Rand(),
			NumRoses:        numRoses,
			NumProposals:    e.cfg.MaxProposals,
			NumPartners:     partners,
			LearningRate:    e.cfg.LearningRate,
			DiscountFactor:  e.cfg.DiscountFactor,
			ExplorationRate: e.cfg.InitialExploration,
		}, e.rng)
		if err != nil {
			return nil, err
		}
		st := stats.New(a)
		a.SetTracker(st)
		e.stats[a.ID()] = st
		e.byID[a.ID()] = a
		out = append(out, a)
	}
	return out, nil
}

func (e *Environment) Config() Config {
	cfg := e.cfg
	cfg.Roses = append([]model.RoseOption(nil), e.cfg.Roses...)
	return cfg
}

// Agents lists every agent in processing order: all men, then all women.
func (e *Environment) Agents() []*agent.Agent {
	return append([]*agent.Agent(nil), e.all...)
}

func (e *Environment) Agent(id string) (*agent.Agent, bool) {
	a, ok := e.byID[id]
	return a, ok
}

func (e *Environment) Episode() int {
	return e.episode
}

func (e *Environment) History() []model.EpisodeSummary {
	return append([]model.EpisodeSummary(nil), e.history...)
}

func (e *Environment) partner(role agent.Role, index int) (*agent.Agent, error) {
	population := e.men
	if role == agent.RoleWoman {
		population = e.women
	}
	if index < 0 || index >= len(population) {
		return nil, fmt.Errorf("no %s with index %d", role, index)
	}
	return population[index], nil
}

// Reset clears every agent's episode state and redraws rose budgets.
func (e *Environment) Reset() {
	e.events = nil
	for _, a := range e.all {
		a.Reset(e.roses.Draw())
	}
}

// ProposeStage lets every agent spend its proposal budget. Attempts with no
// eligible receiver are logged and skipped.
func (e *Environment) ProposeStage() ([]SkippedSend, error) {
	var skipped []SkippedSend
	for _, sender := range e.all {
		for attempt := 0; attempt < e.cfg.MaxProposals; attempt++ {
			action, ok, err := sender.ChooseSendAction()
			if err != nil {
				return skipped, fmt.Errorf("propose stage: %w", err)
			}
			if !ok {
				e.logger.Warn("no valid receiver",
					slog.String("agent", sender.ID()),
					slog.Int("episode", e.episode),
					slog.Int("attempt", attempt),
				)
				skipped = append(skipped, SkippedSend{AgentID: sender.ID(), Attempt: attempt})
				continue
			}
			receiver, err := e.partner(sender.Role().Opposite(), action.Receiver)
			if err != nil {
				return skipped, fmt.Errorf("propose stage: %w", err)
			}
			p := agent.NewProposal(sender, receiver, action.Choice == agent.SendBonus)
			if err := sender.Send(p); err != nil {
				return skipped, fmt.Errorf("propose stage: %w", err)
			}
			if err := receiver.Receive(p); err != nil {
				return skipped, fmt.Errorf("propose stage: %w", err)
			}
			e.events = append(e.events, p)
		}
	}
	return skipped, nil
}

// RespondStage finalises every decision in the market before any agent learns,
// since a sender's reward depends on the receiver's decision.
func (e *Environment) RespondStage(track bool) error {
	for _, a := range e.all {
		if err := a.ScreenProposalsReceived(); err != nil {
			return fmt.Errorf("respond stage: %w", err)
		}
	}
	for _, a := range e.all {
		if err := a.ProcessMatches(track); err != nil {
			return fmt.Errorf("respond stage: %w", err)
		}
	}
	return nil
}

// RunEpisode runs one propose/respond/learn cycle without decaying or resetting.
func (e *Environment) RunEpisode(track bool) (EpisodeResult, error) {
	skipped, err := e.ProposeStage()
	if err != nil {
		return EpisodeResult{}, err
	}
	if err := e.RespondStage(track); err != nil {
		return EpisodeResult{}, err
	}

	result := EpisodeResult{
		Episode:   e.episode,
		Tracked:   track,
		Proposals: make([]ProposalRecord, 0, len(e.events)),
		Skipped:   skipped,
	}
	for _, p := range e.events {
		result.Proposals = append(result.Proposals, ProposalRecord{
			Sender:   p.Sender().ID(),
			Receiver: p.Receiver().ID(),
			Bonus:    p.HasBonus(),
			Accepted: p.Accepted(),
		})
	}
	result.MeanExplorationRate = e.meanExplorationRate()
	return result, nil
}

// Simulate runs n episodes. Stats are tracked once the cumulative episode
// index reaches trackFrom, so repeated calls share one threshold. After each
// episode exploration decays and transient state resets.
func (e *Environment) Simulate(ctx context.Context, n, trackFrom int) error {
	if n < 0 {
		return fmt.Errorf("%w: episode count must be >= 0, got %d", ErrConfig, n)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := e.RunEpisode(e.episode >= trackFrom)
		if err != nil {
			return fmt.Errorf("episode %d: %w", e.episode, err)
		}
		summary := result.Summary()
		e.history = append(e.history, summary)
		e.logger.Debug("episode complete",
			slog.Int("episode", summary.Episode),
			slog.Int("proposals", summary.Proposals),
			slog.Int("accepted", summary.Accepted),
			slog.Float64("exploration", summary.MeanExplorationRate),
		)
		if e.onEpisode != nil {
			e.onEpisode(result)
		}

		for _, a := range e.all {
			a.DecayExploration(e.cfg.ExplorationDecay, e.cfg.MinExploration)
		}
		e.Reset()
		e.episode++
	}
	return nil
}

func (e *Environment) meanExplorationRate() float64 {
	if len(e.all) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range e.all {
		sum += a.ExplorationRate()
	}
	return sum / float64(len(e.all))
}

// Records returns the stats record of every agent in processing order.
func (e *Environment) Records() []model.AgentRecord {
	out := make([]model.AgentRecord, 0, len(e.all))
	for _, a := range e.all {
		rec := e.stats[a.ID()].Record()
		rec.ExplorationRate = a.ExplorationRate()
		rec.NumRoses = a.NumRoses()
		out = append(out, rec)
	}
	return out
}

// QTables dumps the send and receive tables of every agent.
func (e *Environment) QTables() []model.QTableSnapshot {
	out := make([]model.QTableSnapshot, 0, 2*len(e.all))
	for _, a := range e.all {
		out = append(out, snapshot(a.ID(), model.QTableSend, a.SendQTable()))
		out = append(out, snapshot(a.ID(), model.QTableReceive, a.ReceiveQTable()))
	}
	return out
}
