package courtship

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"courtship/internal/logging"
	"courtship/internal/market"
	"courtship/internal/model"
	"courtship/internal/stats"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		ResultsDir: filepath.Join(base, "results"),
		ExportsDir: filepath.Join(base, "exports"),
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func smallMarket() *market.Config {
	cfg := market.DefaultConfig()
	cfg.NumMen = 3
	cfg.NumWomen = 4
	return &cfg
}

func TestClientRunRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summaries, err := client.Run(ctx, RunRequest{
		Seed:      42,
		Episodes:  20,
		TrackFrom: 10,
		Market:    smallMarket(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	summary := summaries[0]
	if !strings.HasPrefix(summary.RunID, "market-42-") {
		t.Fatalf("unexpected run id: %s", summary.RunID)
	}
	if summary.Episodes != 20 || summary.Seed != 42 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.FinalExplorationRate >= 1 {
		t.Fatalf("expected exploration to decay, got %v", summary.FinalExplorationRate)
	}
	for _, name := range []string{"config.json", "episodes.json", filepath.Join("agents", "man_0.json"), filepath.Join("qtables", "woman_3_q.csv")} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].NumWomen != 4 {
		t.Fatalf("unexpected runs list: %+v", runs)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("export resolved %s, want %s", exported.RunID, summary.RunID)
	}
	wantDir := filepath.Join(base, "exports", summary.RunID)
	if exported.Directory != wantDir {
		t.Fatalf("export dir = %s, want %s", exported.Directory, wantDir)
	}
	if _, err := os.Stat(filepath.Join(wantDir, "qtables", "man_0_receive_q.csv")); err != nil {
		t.Fatalf("expected exported q table: %v", err)
	}
}

func TestClientReplicatesUseConsecutiveSeeds(t *testing.T) {
	client, _ := newTestClient(t)

	summaries, err := client.Run(context.Background(), RunRequest{
		RunID:      "sweep",
		Seed:       7,
		Episodes:   5,
		Replicates: 3,
		Workers:    2,
		Market:     smallMarket(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var ids []string
	var seeds []uint64
	for _, s := range summaries {
		ids = append(ids, s.RunID)
		seeds = append(seeds, s.Seed)
	}
	if diff := cmp.Diff([]string{"sweep-r0", "sweep-r1", "sweep-r2"}, ids); diff != "" {
		t.Fatalf("run ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint64{7, 8, 9}, seeds); diff != "" {
		t.Fatalf("seeds mismatch (-want +got):\n%s", diff)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected three indexed runs, got %d", len(runs))
	}
}

func TestClientRunIsReproducible(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := client.Run(ctx, RunRequest{RunID: id, Seed: 3, Episodes: 15, Market: smallMarket()}); err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
	}
	first, err := client.Agents(ctx, AgentsRequest{RunID: "a"})
	if err != nil {
		t.Fatalf("agents a: %v", err)
	}
	second, err := client.Agents(ctx, AgentsRequest{RunID: "b"})
	if err != nil {
		t.Fatalf("agents b: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same seed produced different records (-a +b):\n%s", diff)
	}
}

func TestClientQueriesFallBackToArtifacts(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Run(ctx, RunRequest{RunID: "persisted", Seed: 1, Episodes: 10, Market: smallMarket()}); err != nil {
		t.Fatalf("run: %v", err)
	}

	// A fresh memory-backed client only sees what was written to disk.
	reader, err := New(Options{
		StoreKind:  "memory",
		ResultsDir: filepath.Join(base, "results"),
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	women, err := reader.Agents(ctx, AgentsRequest{Latest: true, Role: "woman"})
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(women) != 4 || women[0].AgentID != "woman_0" {
		t.Fatalf("unexpected women: %+v", women)
	}

	q, err := reader.QTable(ctx, QTableRequest{RunID: "persisted", AgentID: "man_2", Kind: model.QTableReceive})
	if err != nil {
		t.Fatalf("q table: %v", err)
	}
	if q.Rows != 4 || q.Cols != 2 || len(q.Values) != 8 {
		t.Fatalf("unexpected q table shape: %+v", q)
	}

	episodes, err := reader.Episodes(ctx, EpisodesRequest{RunID: "persisted", Limit: 3})
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if len(episodes) != 3 || episodes[0].Episode != 7 {
		t.Fatalf("unexpected episode tail: %+v", episodes)
	}

	report, err := reader.Report(ctx, ReportRequest{RunID: "persisted"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.RunID != "persisted" || report.Agents != 7 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.RoseUsage.Men) != 3 || len(report.RoseUsage.Women) != 4 {
		t.Fatalf("unexpected rose usage: %+v", report.RoseUsage)
	}
}

func TestClientQueryValidation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export without run id to fail")
	}
	if _, err := client.Agents(ctx, AgentsRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id plus latest to fail")
	}
	if _, err := client.Agents(ctx, AgentsRequest{Latest: true}); err == nil {
		t.Fatal("expected latest with no runs to fail")
	}
	if _, err := client.Agents(ctx, AgentsRequest{RunID: "x", Role: "robot"}); err == nil {
		t.Fatal("expected unknown role to fail")
	}
	if _, err := client.QTable(ctx, QTableRequest{RunID: "x", AgentID: "nobody"}); err == nil {
		t.Fatal("expected malformed agent id to fail")
	}
	if _, err := client.Agents(ctx, AgentsRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing run to fail")
	}
}

func TestClientRunRejectsInvalidRequests(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	bad := market.DefaultConfig()
	bad.Roses = []model.RoseOption{{Probability: 0.5, Roses: 1}}
	if _, err := client.Run(ctx, RunRequest{Market: &bad}); !errors.Is(err, market.ErrConfig) {
		t.Fatalf("expected ErrConfig for rose distribution, got %v", err)
	}
	if _, err := client.Run(ctx, RunRequest{Episodes: -1}); !errors.Is(err, market.ErrConfig) {
		t.Fatalf("expected ErrConfig for episodes, got %v", err)
	}
	if _, err := client.Run(ctx, RunRequest{Market: smallMarket()}); !errors.Is(err, market.ErrConfig) {
		t.Fatalf("expected ErrConfig for zero episodes, got %v", err)
	}
	if _, err := client.Run(ctx, RunRequest{Episodes: 1, TrackFrom: -2}); !errors.Is(err, market.ErrConfig) {
		t.Fatalf("expected ErrConfig for track from, got %v", err)
	}

	entries, err := stats.ListRunIndex(client.resultsDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected runs must not be indexed: %+v", entries)
	}
}

func TestClientRunHonoursCancellation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Run(ctx, RunRequest{Episodes: 5, Market: smallMarket()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
