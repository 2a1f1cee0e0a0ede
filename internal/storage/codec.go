package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"courtship/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp new records are written with.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeAgentRecords(records []model.AgentRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeAgentRecords(data []byte) ([]model.AgentRecord, error) {
	var records []model.AgentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, fmt.Errorf("agent %s: %w", record.AgentID, err)
		}
	}
	return records, nil
}

func EncodeQTable(q model.QTableSnapshot) ([]byte, error) {
	if err := checkShape(q); err != nil {
		return nil, err
	}
	return json.Marshal(q)
}

func DecodeQTable(data []byte) (model.QTableSnapshot, error) {
	var q model.QTableSnapshot
	if err := json.Unmarshal(data, &q); err != nil {
		return model.QTableSnapshot{}, err
	}
	if err := checkShape(q); err != nil {
		return model.QTableSnapshot{}, err
	}
	return q, nil
}

func EncodeEpisodes(episodes []model.EpisodeSummary) ([]byte, error) {
	return json.Marshal(episodes)
}

func DecodeEpisodes(data []byte) ([]model.EpisodeSummary, error) {
	var episodes []model.EpisodeSummary
	if err := json.Unmarshal(data, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func checkShape(q model.QTableSnapshot) error {
	if q.Kind != model.QTableSend && q.Kind != model.QTableReceive {
		return fmt.Errorf("q table %s: unknown kind %q", q.AgentID, q.Kind)
	}
	if q.Rows < 0 || q.Cols < 0 || q.Rows*q.Cols != len(q.Values) {
		return fmt.Errorf("q table %s/%s: %dx%d does not match %d values", q.AgentID, q.Kind, q.Rows, q.Cols, len(q.Values))
	}
	return nil
}

// sortRuns orders runs newest first, then by id.
func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
		}
		return strings.Compare(runs[i].ID, runs[j].ID) < 0
	})
}

func cloneRun(r model.RunRecord) model.RunRecord {
	r.Roses = append([]model.RoseOption(nil), r.Roses...)
	return r
}

func cloneQTable(q model.QTableSnapshot) model.QTableSnapshot {
	q.Values = append([]float64(nil), q.Values...)
	return q
}
