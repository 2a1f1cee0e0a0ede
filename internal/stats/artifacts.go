package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"courtship/internal/agent"
	"courtship/internal/model"
)

const (
	runIndexFile = "run_index.json"
	agentsDir    = "agents"
	qtablesDir   = "qtables"
)

type RunArtifacts struct {
	Config   model.RunRecord
	Episodes []model.EpisodeSummary
	Agents   []model.AgentRecord
	QTables  []model.QTableSnapshot
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Seed           uint64  `json:"seed"`
	Replicate      int     `json:"replicate"`
	NumMen         int     `json:"num_men"`
	NumWomen       int     `json:"num_women"`
	Episodes       int     `json:"episodes"`
	MaxProposals   int     `json:"max_proposals"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays a run out on disk:
//
//	<run>/config.json
//	<run>/episodes.json
//	<run>/agents/<agent id>.json
//	<run>/qtables/<agent id>_q.csv and <agent id>_receive_q.csv
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.ID)
	for _, dir := range []string{runDir, filepath.Join(runDir, agentsDir), filepath.Join(runDir, qtablesDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	episodes := artifacts.Episodes
	if episodes == nil {
		episodes = []model.EpisodeSummary{}
	}
	if err := writeJSON(filepath.Join(runDir, "episodes.json"), episodes); err != nil {
		return "", err
	}
	for _, rec := range artifacts.Agents {
		if rec.AgentID == "" {
			return "", fmt.Errorf("agent record without id")
		}
		if err := writeJSON(filepath.Join(runDir, agentsDir, rec.AgentID+".json"), rec); err != nil {
			return "", err
		}
	}
	for _, q := range artifacts.QTables {
		path, err := qtablePath(runDir, q.AgentID, q.Kind)
		if err != nil {
			return "", err
		}
		if err := writeQTable(path, q); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory tree into outDir.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return "", err
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (model.RunRecord, bool, error) {
	var cfg model.RunRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadEpisodes(baseDir, runID string) ([]model.EpisodeSummary, bool, error) {
	var episodes []model.EpisodeSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, "episodes.json"), &episodes)
	return episodes, ok, err
}

// ReadAgentRecords loads every agent record of a run, men before women and by
// index within a role.
func ReadAgentRecords(baseDir, runID string) ([]model.AgentRecord, bool, error) {
	dir := filepath.Join(baseDir, runID, agentsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	records := make([]model.AgentRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var rec model.AgentRecord
		if _, err := readJSON(filepath.Join(dir, entry.Name()), &rec); err != nil {
			return nil, false, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		records = append(records, rec)
	}
	SortRecords(records)
	return records, true, nil
}

// SortRecords orders records the way the market processes agents. Records with
// unparseable ids sort last by id.
func SortRecords(records []model.AgentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, ii, erri := agent.ParseID(records[i].AgentID)
		rj, ij, errj := agent.ParseID(records[j].AgentID)
		switch {
		case erri != nil && errj != nil:
			return records[i].AgentID < records[j].AgentID
		case erri != nil:
			return false
		case errj != nil:
			return true
		case ri != rj:
			return ri == agent.RoleMan
		default:
			return ii < ij
		}
	})
}

func ReadQTable(baseDir, runID, agentID, kind string) (model.QTableSnapshot, bool, error) {
	path, err := qtablePath(filepath.Join(baseDir, runID), agentID, kind)
	if err != nil {
		return model.QTableSnapshot{}, false, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.QTableSnapshot{}, false, nil
		}
		return model.QTableSnapshot{}, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return model.QTableSnapshot{}, false, fmt.Errorf("q table %s is empty", path)
		}
		return model.QTableSnapshot{}, false, err
	}
	cols := len(header) - 1
	if cols < 1 {
		return model.QTableSnapshot{}, false, fmt.Errorf("q table header must have at least 2 columns")
	}

	snap := model.QTableSnapshot{AgentID: agentID, Kind: kind, Cols: cols}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.QTableSnapshot{}, false, err
		}
		if len(record) != cols+1 {
			return model.QTableSnapshot{}, false, fmt.Errorf("q table row %d has %d columns, want %d", snap.Rows, len(record), cols+1)
		}
		for _, field := range record[1:] {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return model.QTableSnapshot{}, false, err
			}
			snap.Values = append(snap.Values, value)
		}
		snap.Rows++
	}
	return snap, true, nil
}

func qtablePath(runDir, agentID, kind string) (string, error) {
	if strings.TrimSpace(agentID) == "" {
		return "", fmt.Errorf("agent id is required")
	}
	switch kind {
	case model.QTableSend:
		return filepath.Join(runDir, qtablesDir, agentID+"_q.csv"), nil
	case model.QTableReceive:
		return filepath.Join(runDir, qtablesDir, agentID+"_receive_q.csv"), nil
	default:
		return "", fmt.Errorf("unknown q table kind %q", kind)
	}
}

func qtableHeader(kind string) []string {
	if kind == model.QTableReceive {
		return []string{"partner", "reject", "accept"}
	}
	return []string{"partner", "plain", "bonus"}
}

func writeQTable(path string, q model.QTableSnapshot) error {
	if q.Rows*q.Cols != len(q.Values) {
		return fmt.Errorf("q table %s/%s: %dx%d does not match %d values", q.AgentID, q.Kind, q.Rows, q.Cols, len(q.Values))
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := qtableHeader(q.Kind)
	if q.Cols != len(header)-1 {
		header = []string{"partner"}
		for j := 0; j < q.Cols; j++ {
			header = append(header, "a"+strconv.Itoa(j))
		}
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < q.Rows; i++ {
		row := make([]string, 0, q.Cols+1)
		row = append(row, strconv.Itoa(i))
		for _, v := range q.Values[i*q.Cols : (i+1)*q.Cols] {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
