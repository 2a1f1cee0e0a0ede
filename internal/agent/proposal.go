package agent

import (
	"errors"
	"fmt"
)

var ErrAlreadyResolved = errors.New("proposal already resolved")

// Decision is the tri-state outcome of a proposal.
type Decision int

const (
	Pending Decision = iota
	Accepted
	Rejected
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Proposal is a directed offer from sender to receiver. Only the decision changes
// after creation, and only once.
type Proposal struct {
	sender   *Agent
	receiver *Agent
	hasBonus bool
	decision Decision
}

func NewProposal(sender, receiver *Agent, hasBonus bool) *Proposal {
	return &Proposal{sender: sender, receiver: receiver, hasBonus: hasBonus}
}

func (p *Proposal) Sender() *Agent {
	return p.sender
}

func (p *Proposal) Receiver() *Agent {
	return p.receiver
}

func (p *Proposal) HasBonus() bool {
	return p.hasBonus
}

func (p *Proposal) Decision() Decision {
	return p.decision
}

func (p *Proposal) Resolved() bool {
	return p.decision != Pending
}

func (p *Proposal) Accepted() bool {
	return p.decision == Accepted
}

func (p *Proposal) Accept() error {
	return p.resolve(Accepted)
}

func (p *Proposal) Reject() error {
	return p.resolve(Rejected)
}

func (p *Proposal) resolve(d Decision) error {
	if p.decision != Pending {
		return fmt.Errorf("%w: %s->%s is %s", ErrAlreadyResolved, p.sender.ID(), p.receiver.ID(), p.decision)
	}
	p.decision = d
	return nil
}

func (p *Proposal) String() string {
	return fmt.Sprintf("%s->%s bonus=%t %s", p.sender.ID(), p.receiver.ID(), p.hasBonus, p.decision)
}
