package storage

import (
	"context"
	"errors"
	"sync"

	"courtship/internal/model"
)

type qtableKey struct {
	runID   string
	agentID string
	kind    string
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	agents      map[string][]model.AgentRecord
	qtables     map[qtableKey]model.QTableSnapshot
	episodes    map[string][]model.EpisodeSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.agents = make(map[string][]model.AgentRecord)
	s.qtables = make(map[qtableKey]model.QTableSnapshot)
	s.episodes = make(map[string][]model.EpisodeSummary)
	return nil
}

func (s *MemoryStore) checkInit() error {
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return model.RunRecord{}, false, err
	}
	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveAgentRecords(_ context.Context, runID string, records []model.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	copied := make([]model.AgentRecord, len(records))
	copy(copied, records)
	s.agents[runID] = copied
	return nil
}

func (s *MemoryStore) GetAgentRecords(_ context.Context, runID string) ([]model.AgentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, false, err
	}
	records, ok := s.agents[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.AgentRecord, len(records))
	copy(copied, records)
	return copied, true, nil
}

func (s *MemoryStore) SaveQTables(_ context.Context, runID string, tables []model.QTableSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	for _, q := range tables {
		if err := checkShape(q); err != nil {
			return err
		}
	}
	for _, q := range tables {
		s.qtables[qtableKey{runID: runID, agentID: q.AgentID, kind: q.Kind}] = cloneQTable(q)
	}
	return nil
}

func (s *MemoryStore) GetQTable(_ context.Context, runID, agentID, kind string) (model.QTableSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return model.QTableSnapshot{}, false, err
	}
	q, ok := s.qtables[qtableKey{runID: runID, agentID: agentID, kind: kind}]
	if !ok {
		return model.QTableSnapshot{}, false, nil
	}
	return cloneQTable(q), true, nil
}

func (s *MemoryStore) SaveEpisodes(_ context.Context, runID string, episodes []model.EpisodeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	copied := make([]model.EpisodeSummary, len(episodes))
	copy(copied, episodes)
	s.episodes[runID] = copied
	return nil
}

func (s *MemoryStore) GetEpisodes(_ context.Context, runID string) ([]model.EpisodeSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, false, err
	}
	episodes, ok := s.episodes[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.EpisodeSummary, len(episodes))
	copy(copied, episodes)
	return copied, true, nil
}
