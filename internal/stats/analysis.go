package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"courtship/internal/agent"
	"courtship/internal/model"
)

var (
	ErrSeriesMismatch  = errors.New("desirability series mismatch")
	ErrUnknownRateKind = errors.New("unknown acceptance rate kind")
)

const (
	RateSent     = "sent"
	RateReceived = "received"
)

// RoseEffect compares per-agent acceptance rates of proposals sent with and
// without a rose.
type RoseEffect struct {
	WithRose        []float64 `json:"with_rose"`
	WithoutRose     []float64 `json:"without_rose"`
	MeanWithRose    float64   `json:"mean_with_rose"`
	MeanWithoutRose float64   `json:"mean_without_rose"`
}

type DesirabilityEffect struct {
	Desirability        []float64 `json:"desirability"`
	SentRate            []float64 `json:"sent_rate"`
	ReceivedRate        []float64 `json:"received_rate"`
	SentCorrelation     float64   `json:"sent_correlation"`
	ReceivedCorrelation float64   `json:"received_correlation"`
}

// RoleSeries holds one value per agent, split by role.
type RoleSeries struct {
	Men   []float64 `json:"men"`
	Women []float64 `json:"women"`
}

func (s RoleSeries) MeanMen() float64 {
	return mean(s.Men)
}

func (s RoleSeries) MeanWomen() float64 {
	return mean(s.Women)
}

func (s *RoleSeries) add(agentID string, v float64) {
	role, _, err := agent.ParseID(agentID)
	if err != nil {
		return
	}
	switch role {
	case agent.RoleMan:
		s.Men = append(s.Men, v)
	case agent.RoleWoman:
		s.Women = append(s.Women, v)
	}
}

func AnalyzeRoseEffect(records []model.AgentRecord) RoseEffect {
	var out RoseEffect
	for _, r := range records {
		if r.RosesSent > 0 {
			out.WithRose = append(out.WithRose, float64(r.RosesSentAccepted)/float64(r.RosesSent))
		}
		if plain := r.ProposalsSent - r.RosesSent; plain > 0 {
			out.WithoutRose = append(out.WithoutRose, float64(r.ProposalsSentAccepted-r.RosesSentAccepted)/float64(plain))
		}
	}
	out.MeanWithRose = mean(out.WithRose)
	out.MeanWithoutRose = mean(out.WithoutRose)
	return out
}

// AnalyzeDesirabilityEffect pairs each agent's desirability with its sent and
// received acceptance rates. Every agent must have both sent and received at
// least one tracked proposal.
func AnalyzeDesirabilityEffect(records []model.AgentRecord) (DesirabilityEffect, error) {
	var out DesirabilityEffect
	for _, r := range records {
		out.Desirability = append(out.Desirability, r.DesirabilityScore)
		if r.ProposalsSent > 0 {
			out.SentRate = append(out.SentRate, float64(r.ProposalsSentAccepted)/float64(r.ProposalsSent))
		}
		if r.ProposalsReceived > 0 {
			out.ReceivedRate = append(out.ReceivedRate, float64(r.ProposalsReceivedAccepted)/float64(r.ProposalsReceived))
		}
	}
	if len(out.SentRate) != len(out.Desirability) || len(out.ReceivedRate) != len(out.Desirability) {
		return DesirabilityEffect{}, fmt.Errorf("%w: %d agents, %d sent rates, %d received rates",
			ErrSeriesMismatch, len(out.Desirability), len(out.SentRate), len(out.ReceivedRate))
	}
	if len(out.Desirability) > 1 {
		out.SentCorrelation = correlation(out.Desirability, out.SentRate)
		out.ReceivedCorrelation = correlation(out.Desirability, out.ReceivedRate)
	}
	return out, nil
}

// AnalyzeRoleRoseUsage is the share of each agent's proposals that carried a rose.
func AnalyzeRoleRoseUsage(records []model.AgentRecord) RoleSeries {
	var out RoleSeries
	for _, r := range records {
		if r.ProposalsSent > 0 {
			out.add(r.AgentID, float64(r.RosesSent)/float64(r.ProposalsSent))
		}
	}
	return out
}

func AnalyzeRoleAcceptanceRates(records []model.AgentRecord, kind string) (RoleSeries, error) {
	if kind != RateSent && kind != RateReceived {
		return RoleSeries{}, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownRateKind, kind, RateSent, RateReceived)
	}
	var out RoleSeries
	for _, r := range records {
		total, accepted := r.ProposalsSent, r.ProposalsSentAccepted
		if kind == RateReceived {
			total, accepted = r.ProposalsReceived, r.ProposalsReceivedAccepted
		}
		if total == 0 {
			continue
		}
		out.add(r.AgentID, float64(accepted)/float64(total))
	}
	return out, nil
}

// Report bundles every analysis of one run.
type Report struct {
	RunID              string              `json:"run_id"`
	Agents             int                 `json:"agents"`
	RoseEffect         RoseEffect          `json:"rose_effect"`
	DesirabilityEffect *DesirabilityEffect `json:"desirability_effect,omitempty"`
	RoseUsage          RoleSeries          `json:"rose_usage"`
	SentAcceptance     RoleSeries          `json:"sent_acceptance"`
	ReceivedAcceptance RoleSeries          `json:"received_acceptance"`
}

// BuildReport runs every analysis. The desirability effect is omitted when some
// agent has no tracked proposals in one direction.
func BuildReport(runID string, records []model.AgentRecord) (Report, error) {
	report := Report{
		RunID:      runID,
		Agents:     len(records),
		RoseEffect: AnalyzeRoseEffect(records),
		RoseUsage:  AnalyzeRoleRoseUsage(records),
	}
	effect, err := AnalyzeDesirabilityEffect(records)
	switch {
	case err == nil:
		report.DesirabilityEffect = &effect
	case !errors.Is(err, ErrSeriesMismatch):
		return Report{}, err
	}
	if report.SentAcceptance, err = AnalyzeRoleAcceptanceRates(records, RateSent); err != nil {
		return Report{}, err
	}
	if report.ReceivedAcceptance, err = AnalyzeRoleAcceptanceRates(records, RateReceived); err != nil {
		return Report{}, err
	}
	return report, nil
}

// AcceptanceRate is the share of all sent proposals that were accepted.
func AcceptanceRate(records []model.AgentRecord) float64 {
	sent, accepted := 0, 0
	for _, r := range records {
		sent += r.ProposalsSent
		accepted += r.ProposalsSentAccepted
	}
	if sent == 0 {
		return 0
	}
	return float64(accepted) / float64(sent)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// correlation is Pearson's r, or 0 when either series is constant.
func correlation(x, y []float64) float64 {
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
