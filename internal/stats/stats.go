package stats

import (
	"courtship/internal/agent"
	"courtship/internal/model"
)

// Stats accumulates outcome counts for one agent while tracking is enabled. It
// implements agent.Tracker.
type Stats struct {
	agentID      string
	role         agent.Role
	desirability float64

	proposalsSent         int
	rosesSent             int
	proposalsSentAccepted int
	rosesSentAccepted     int
	avgSent               runningMean
	avgSentAccepted       runningMean

	proposalsReceived         int
	rosesReceived             int
	proposalsReceivedAccepted int
	rosesReceivedAccepted     int
	avgReceived               runningMean
	avgReceivedAccepted       runningMean
}

func New(a *agent.Agent) *Stats {
	return &Stats{
		agentID:      a.ID(),
		role:         a.Role(),
		desirability: a.Desirability(),
	}
}

func (s *Stats) AgentID() string {
	return s.agentID
}

func (s *Stats) TrackSent(p *agent.Proposal) {
	d := p.Receiver().Desirability()
	s.proposalsSent++
	s.avgSent.add(d)
	if p.HasBonus() {
		s.rosesSent++
	}
	if !p.Accepted() {
		return
	}
	s.proposalsSentAccepted++
	s.avgSentAccepted.add(d)
	if p.HasBonus() {
		s.rosesSentAccepted++
	}
}

func (s *Stats) TrackReceived(p *agent.Proposal) {
	d := p.Sender().Desirability()
	s.proposalsReceived++
	s.avgReceived.add(d)
	if p.HasBonus() {
		s.rosesReceived++
	}
	if !p.Accepted() {
		return
	}
	s.proposalsReceivedAccepted++
	s.avgReceivedAccepted.add(d)
	if p.HasBonus() {
		s.rosesReceivedAccepted++
	}
}

// Record snapshots the counters as a persistable record.
func (s *Stats) Record() model.AgentRecord {
	return model.AgentRecord{
		AgentID:                         s.agentID,
		Role:                            string(s.role),
		DesirabilityScore:               s.desirability,
		ProposalsSent:                   s.proposalsSent,
		RosesSent:                       s.rosesSent,
		ProposalsSentAccepted:           s.proposalsSentAccepted,
		RosesSentAccepted:               s.rosesSentAccepted,
		AvgDesirabilitySent:             s.avgSent.value,
		AvgDesirabilitySentAccepted:     s.avgSentAccepted.value,
		ProposalsReceived:               s.proposalsReceived,
		RosesReceived:                   s.rosesReceived,
		ProposalsReceivedAccepted:       s.proposalsReceivedAccepted,
		RosesReceivedAccepted:           s.rosesReceivedAccepted,
		AvgDesirabilityReceived:         s.avgReceived.value,
		AvgDesirabilityReceivedAccepted: s.avgReceivedAccepted.value,
	}
}

type runningMean struct {
	n     int
	value float64
}

func (m *runningMean) add(x float64) {
	m.n++
	m.value += (x - m.value) / float64(m.n)
}
