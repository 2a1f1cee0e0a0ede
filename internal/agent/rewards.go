package agent

// Rewards holds the reward shaping constants of one role. The two roles share the
// sent-proposal reward and differ in how harshly they punish screening mistakes,
// which is what drives the sides toward different selectivity.
type Rewards struct {
	// RejectedPenalty is paid to a sender whose proposal was rejected.
	RejectedPenalty float64
	// GainWeight scales the desirability difference added to an accepted proposal.
	GainWeight float64
	// AcceptBase is the base reward for accepting a suitor at or above threshold.
	AcceptBase float64
	// CorrectRejectReward is paid for rejecting a suitor below threshold.
	CorrectRejectReward float64
	// OverAcceptPenalty is paid for accepting a suitor below threshold.
	OverAcceptPenalty float64
	// UnderRejectPenalty is paid for rejecting a suitor at or above threshold.
	UnderRejectPenalty float64
}

// RewardsFor returns the reward policy for a role.
func RewardsFor(role Role) (Rewards, error) {
	if err := role.Validate(); err != nil {
		return Rewards{}, err
	}
	rewards := Rewards{
		RejectedPenalty:     -10,
		GainWeight:          2,
		AcceptBase:          50,
		CorrectRejectReward: 10,
	}
	switch role {
	case RoleMan:
		rewards.OverAcceptPenalty = -50
		rewards.UnderRejectPenalty = -30
	case RoleWoman:
		rewards.OverAcceptPenalty = -10
		rewards.UnderRejectPenalty = -10
	}
	return rewards, nil
}

// Openness is how far below its own desirability an agent is still open to suitors.
// An agent at 40 tolerates ~10 points, one at 90 only ~5.
func Openness(desirability float64) float64 {
	return 4 + (100-desirability)/10
}

// Sent is the reward for a resolved sent proposal.
func (r Rewards) Sent(self, receiver float64, accepted bool) float64 {
	if !accepted {
		return r.RejectedPenalty
	}
	return receiver + r.GainWeight*(receiver-self)
}

// Received is the reward for a resolved received proposal.
func (r Rewards) Received(self, sender float64, bonus, accepted bool) float64 {
	openness := Openness(self)
	boost := 0.0
	if bonus {
		boost = openness / 2
	}
	belowThreshold := sender < self-(openness+boost)

	if accepted {
		if belowThreshold {
			return r.OverAcceptPenalty
		}
		return r.AcceptBase + (sender - self) + boost
	}
	if belowThreshold {
		return r.CorrectRejectReward
	}
	return r.UnderRejectPenalty
}
