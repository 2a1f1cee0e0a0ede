package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"courtship/internal/model"
)

func newMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "run-1"}); err == nil {
		t.Fatal("expected error before init")
	}
}

func TestMemoryStoreRunRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	runs := []model.RunRecord{
		{VersionedRecord: CurrentVersion(), ID: "run-a", Seed: 1, CreatedAtUTC: "2026-03-01T10:00:00Z"},
		{VersionedRecord: CurrentVersion(), ID: "run-b", Seed: 2, CreatedAtUTC: "2026-03-01T11:00:00Z",
			Roses: []model.RoseOption{{Probability: 1, Roses: 3}}},
		{VersionedRecord: CurrentVersion(), ID: "run-c", Seed: 3, CreatedAtUTC: "2026-03-01T10:00:00Z"},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(runs[1], loaded); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
	loaded.Roses[0].Roses = 99
	again, _, _ := store.GetRun(ctx, "run-b")
	if again.Roses[0].Roses != 3 {
		t.Fatal("expected stored run to be isolated from caller mutation")
	}

	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	var ids []string
	for _, run := range listed {
		ids = append(ids, run.ID)
	}
	if diff := cmp.Diff([]string{"run-b", "run-a", "run-c"}, ids); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreAgentRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	input := []model.AgentRecord{
		{VersionedRecord: CurrentVersion(), AgentID: "man_0", Role: "man", ProposalsSent: 3},
		{VersionedRecord: CurrentVersion(), AgentID: "woman_0", Role: "woman", ProposalsReceived: 3},
	}
	if err := store.SaveAgentRecords(ctx, "run-1", input); err != nil {
		t.Fatalf("save records: %v", err)
	}
	input[0].ProposalsSent = 42

	output, ok, err := store.GetAgentRecords(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get records ok=%v err=%v", ok, err)
	}
	if len(output) != 2 || output[0].ProposalsSent != 3 {
		t.Fatalf("unexpected records: %+v", output)
	}
}

func TestMemoryStoreQTablesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	tables := []model.QTableSnapshot{
		{AgentID: "man_0", Kind: model.QTableSend, Rows: 1, Cols: 2, Values: []float64{1, 2}},
		{AgentID: "man_0", Kind: model.QTableReceive, Rows: 1, Cols: 2, Values: []float64{3, 4}},
	}
	if err := store.SaveQTables(ctx, "run-1", tables); err != nil {
		t.Fatalf("save q tables: %v", err)
	}
	q, ok, err := store.GetQTable(ctx, "run-1", "man_0", model.QTableReceive)
	if err != nil || !ok {
		t.Fatalf("get q table ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(tables[1], q); diff != "" {
		t.Fatalf("q table mismatch (-want +got):\n%s", diff)
	}
	if _, ok, _ := store.GetQTable(ctx, "run-2", "man_0", model.QTableSend); ok {
		t.Fatal("q tables must be scoped by run")
	}

	bad := []model.QTableSnapshot{{AgentID: "man_1", Kind: model.QTableSend, Rows: 2, Cols: 2, Values: []float64{1}}}
	if err := store.SaveQTables(ctx, "run-1", bad); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestMemoryStoreEpisodesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	input := []model.EpisodeSummary{
		{Episode: 0, Proposals: 30, Accepted: 12, MeanExplorationRate: 1},
		{Episode: 1, Tracked: true, Proposals: 30, Accepted: 14, MeanExplorationRate: 0.995},
	}
	if err := store.SaveEpisodes(ctx, "run-1", input); err != nil {
		t.Fatalf("save episodes: %v", err)
	}
	output, ok, err := store.GetEpisodes(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get episodes ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(input, output); diff != "" {
		t.Fatalf("episodes mismatch (-want +got):\n%s", diff)
	}
}
