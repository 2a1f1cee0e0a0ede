package market

import (
	"gonum.org/v1/gonum/mat"

	"courtship/internal/model"
)

// ProposalRecord is the resolved outcome of one proposal in an episode log.
type ProposalRecord struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Bonus    bool   `json:"bonus"`
	Accepted bool   `json:"accepted"`
}

// SkippedSend marks a send attempt that found no eligible receiver.
type SkippedSend struct {
	AgentID string `json:"agent_id"`
	Attempt int    `json:"attempt"`
}

type EpisodeResult struct {
	Episode             int
	Tracked             bool
	Proposals           []ProposalRecord
	Skipped             []SkippedSend
	MeanExplorationRate float64
}

func (r EpisodeResult) Summary() model.EpisodeSummary {
	s := model.EpisodeSummary{
		Episode:             r.Episode,
		Tracked:             r.Tracked,
		Proposals:           len(r.Proposals),
		SkippedSends:        len(r.Skipped),
		MeanExplorationRate: r.MeanExplorationRate,
	}
	for _, p := range r.Proposals {
		if p.Accepted {
			s.Accepted++
		}
		if p.Bonus {
			s.BonusProposals++
			if p.Accepted {
				s.BonusAccepted++
			}
		}
	}
	return s
}

func snapshot(agentID, kind string, m mat.Matrix) model.QTableSnapshot {
	rows, cols := m.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values = append(values, m.At(i, j))
		}
	}
	return model.QTableSnapshot{
		AgentID: agentID,
		Kind:    kind,
		Rows:    rows,
		Cols:    cols,
		Values:  values,
	}
}
