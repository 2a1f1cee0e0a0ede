package storage

import (
	"context"

	"courtship/internal/model"
)

// Store defines persistence for finished market runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveAgentRecords(ctx context.Context, runID string, records []model.AgentRecord) error
	GetAgentRecords(ctx context.Context, runID string) ([]model.AgentRecord, bool, error)
	SaveQTables(ctx context.Context, runID string, tables []model.QTableSnapshot) error
	GetQTable(ctx context.Context, runID, agentID, kind string) (model.QTableSnapshot, bool, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeSummary) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeSummary, bool, error)
}
