package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RoseOption is one outcome of the rose budget distribution.
type RoseOption struct {
	Probability float64 `json:"probability" yaml:"probability"`
	Roses       int     `json:"roses" yaml:"roses"`
}

type RunRecord struct {
	VersionedRecord
	ID                 string       `json:"id"`
	Seed               uint64       `json:"seed"`
	Replicate          int          `json:"replicate"`
	NumMen             int          `json:"num_men"`
	NumWomen           int          `json:"num_women"`
	Episodes           int          `json:"episodes"`
	MaxProposals       int          `json:"max_proposals"`
	TrackFrom          int          `json:"track_from"`
	Roses              []RoseOption `json:"roses"`
	LearningRate       float64      `json:"learning_rate"`
	DiscountFactor     float64      `json:"discount_factor"`
	ExplorationDecay   float64      `json:"exploration_decay"`
	MinExploration     float64      `json:"min_exploration"`
	DesirabilityMean   float64      `json:"desirability_mean"`
	DesirabilityStdDev float64      `json:"desirability_stddev"`
	CreatedAtUTC       string       `json:"created_at_utc"`
}

// AgentRecord is the per-agent stats record persisted at the end of a run.
type AgentRecord struct {
	VersionedRecord
	AgentID                         string  `json:"agent_id"`
	Role                            string  `json:"role"`
	DesirabilityScore               float64 `json:"desirability_score"`
	ExplorationRate                 float64 `json:"exploration_rate"`
	NumRoses                        int     `json:"num_roses"`
	ProposalsSent                   int     `json:"proposals_sent"`
	RosesSent                       int     `json:"roses_sent"`
	ProposalsSentAccepted           int     `json:"proposals_sent_accepted"`
	RosesSentAccepted               int     `json:"roses_sent_accepted"`
	AvgDesirabilitySent             float64 `json:"avg_desirability_sent"`
	AvgDesirabilitySentAccepted     float64 `json:"avg_desirability_sent_accepted"`
	ProposalsReceived               int     `json:"proposals_received"`
	RosesReceived                   int     `json:"roses_received"`
	ProposalsReceivedAccepted       int     `json:"proposals_received_accepted"`
	RosesReceivedAccepted           int     `json:"roses_received_accepted"`
	AvgDesirabilityReceived         float64 `json:"avg_desirability_received"`
	AvgDesirabilityReceivedAccepted float64 `json:"avg_desirability_received_accepted"`
}

// QTableSnapshot is a row-major dump of one learned table.
type QTableSnapshot struct {
	AgentID string    `json:"agent_id"`
	Kind    string    `json:"kind"`
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Values  []float64 `json:"values"`
}

const (
	QTableSend    = "send"
	QTableReceive = "receive"
)

// EpisodeSummary aggregates one propose/respond/learn cycle.
type EpisodeSummary struct {
	Episode             int     `json:"episode"`
	Tracked             bool    `json:"tracked"`
	Proposals           int     `json:"proposals"`
	Accepted            int     `json:"accepted"`
	BonusProposals      int     `json:"bonus_proposals"`
	BonusAccepted       int     `json:"bonus_accepted"`
	SkippedSends        int     `json:"skipped_sends"`
	MeanExplorationRate float64 `json:"mean_exploration_rate"`
}
