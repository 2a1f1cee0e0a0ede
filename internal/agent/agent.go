package agent

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrProposalLimit      = errors.New("proposal limit reached")
	ErrIdentityMismatch   = errors.New("proposal does not belong to agent")
	ErrProposalUnresolved = errors.New("proposal not resolved")
	ErrInvalidReceiver    = errors.New("receiver not eligible")
	ErrNoRoses            = errors.New("no roses left")
)

// SendChoice is a column of the send Q table.
type SendChoice int

const (
	SendPlain SendChoice = iota
	SendBonus
)

// ReceiveChoice is a column of the receive Q table.
type ReceiveChoice int

const (
	ReceiveReject ReceiveChoice = iota
	ReceiveAccept
)

// SendAction is a chosen target (opposite-role index) and action.
type SendAction struct {
	Receiver int
	Choice   SendChoice
}

// Rand is the random source the policies draw from. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Tracker receives resolved proposals while stats tracking is enabled.
type Tracker interface {
	TrackSent(p *Proposal)
	TrackReceived(p *Proposal)
}

type Config struct {
	Role            Role
	Index           int
	Desirability    float64
	NumRoses        int
	NumProposals    int
	NumPartners     int
	LearningRate    float64
	DiscountFactor  float64
	ExplorationRate float64
}

type Agent struct {
	id           string
	role         Role
	index        int
	desirability float64
	rewards      Rewards

	numRoses     int
	rosesSent    int
	numProposals int
	numPartners  int

	proposalsSent     []*Proposal
	proposalsReceived []*Proposal
	validReceivers    []int

	sendQ    *QTable
	receiveQ *QTable

	explorationRate float64
	learningRate    float64
	discountFactor  float64

	rng     Rand
	tracker Tracker
}

func New(cfg Config, rng Rand) (*Agent, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	id, err := ID(cfg.Role, cfg.Index)
	if err != nil {
		return nil, err
	}
	rewards, err := RewardsFor(cfg.Role)
	if err != nil {
		return nil, err
	}
	if cfg.NumRoses < 0 {
		return nil, fmt.Errorf("agent %s: num roses must be >= 0", id)
	}
	if cfg.NumProposals < 0 {
		return nil, fmt.Errorf("agent %s: num proposals must be >= 0", id)
	}
	sendQ, err := NewQTable(cfg.NumPartners)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}
	receiveQ, err := NewQTable(cfg.NumPartners)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}

	a := &Agent{
		id:              id,
		role:            cfg.Role,
		index:           cfg.Index,
		desirability:    cfg.Desirability,
		rewards:         rewards,
		numRoses:        cfg.NumRoses,
		numProposals:    cfg.NumProposals,
		numPartners:     cfg.NumPartners,
		sendQ:           sendQ,
		receiveQ:        receiveQ,
		explorationRate: cfg.ExplorationRate,
		learningRate:    cfg.LearningRate,
		discountFactor:  cfg.DiscountFactor,
		rng:             rng,
	}
	a.resetValidReceivers()
	return a, nil
}

func (a *Agent) ID() string {
	return a.id
}

func (a *Agent) Role() Role {
	return a.role
}

func (a *Agent) Index() int {
	return a.index
}

func (a *Agent) Desirability() float64 {
	return a.desirability
}

func (a *Agent) Rewards() Rewards {
	return a.rewards
}

func (a *Agent) NumRoses() int {
	return a.numRoses
}

func (a *Agent) RosesSent() int {
	return a.rosesSent
}

func (a *Agent) NumProposals() int {
	return a.numProposals
}

func (a *Agent) ExplorationRate() float64 {
	return a.explorationRate
}

func (a *Agent) SetExplorationRate(rate float64) {
	a.explorationRate = rate
}

func (a *Agent) SetTracker(t Tracker) {
	a.tracker = t
}

func (a *Agent) ProposalsSent() []*Proposal {
	return append([]*Proposal(nil), a.proposalsSent...)
}

func (a *Agent) ProposalsReceived() []*Proposal {
	return append([]*Proposal(nil), a.proposalsReceived...)
}

// ValidReceivers lists the opposite-role indices not yet targeted this episode.
func (a *Agent) ValidReceivers() []int {
	return append([]int(nil), a.validReceivers...)
}

// SendQTable returns a read-only copy of the send Q table.
func (a *Agent) SendQTable() mat.Matrix {
	return a.sendQ.Matrix()
}

// ReceiveQTable returns a read-only copy of the receive Q table.
func (a *Agent) ReceiveQTable() mat.Matrix {
	return a.receiveQ.Matrix()
}

func (a *Agent) canSendBonus() bool {
	return a.rosesSent < a.numRoses
}

func (a *Agent) validSendChoices() []SendChoice {
	if a.canSendBonus() {
		return []SendChoice{SendPlain, SendBonus}
	}
	return []SendChoice{SendPlain}
}

// ChooseSendAction picks the next proposal epsilon-greedily. ok is false when every
// opposite-role agent was already targeted this episode.
func (a *Agent) ChooseSendAction() (SendAction, bool, error) {
	if len(a.proposalsSent) >= a.numProposals {
		return SendAction{}, false, fmt.Errorf("%w: agent %s sent %d of %d", ErrProposalLimit, a.id, len(a.proposalsSent), a.numProposals)
	}
	if len(a.validReceivers) == 0 {
		return SendAction{}, false, nil
	}

	choices := a.validSendChoices()
	if a.rng.Float64() < a.explorationRate {
		choice := choices[a.rng.IntN(len(choices))]
		receiver := a.validReceivers[a.rng.IntN(len(a.validReceivers))]
		return SendAction{Receiver: receiver, Choice: choice}, true, nil
	}
	return a.bestSendAction(choices), true, nil
}

// bestSendAction scans receivers then actions; the first maximum wins.
func (a *Agent) bestSendAction(choices []SendChoice) SendAction {
	best := SendAction{Receiver: a.validReceivers[0], Choice: choices[0]}
	bestValue := a.sendQ.At(best.Receiver, int(best.Choice))
	for _, receiver := range a.validReceivers {
		for _, choice := range choices {
			if v := a.sendQ.At(receiver, int(choice)); v > bestValue {
				best = SendAction{Receiver: receiver, Choice: choice}
				bestValue = v
			}
		}
	}
	return best
}

// Send records an outgoing proposal, consuming its target and, for a bonus
// proposal, one rose.
func (a *Agent) Send(p *Proposal) error {
	if p.Sender() != a {
		return fmt.Errorf("%w: %s is not the sender of %s", ErrIdentityMismatch, a.id, p)
	}
	if len(a.proposalsSent) >= a.numProposals {
		return fmt.Errorf("%w: agent %s sent %d of %d", ErrProposalLimit, a.id, len(a.proposalsSent), a.numProposals)
	}
	receiver := p.Receiver()
	if receiver.Role() != a.role.Opposite() {
		return fmt.Errorf("%w: %s cannot propose to %s", ErrInvalidReceiver, a.id, receiver.ID())
	}
	pos := -1
	for i, idx := range a.validReceivers {
		if idx == receiver.Index() {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("%w: %s already targeted %s", ErrInvalidReceiver, a.id, receiver.ID())
	}
	if p.HasBonus() {
		if !a.canSendBonus() {
			return fmt.Errorf("%w: agent %s sent %d of %d", ErrNoRoses, a.id, a.rosesSent, a.numRoses)
		}
		a.rosesSent++
	}
	a.validReceivers = append(a.validReceivers[:pos], a.validReceivers[pos+1:]...)
	a.proposalsSent = append(a.proposalsSent, p)
	return nil
}

func (a *Agent) Receive(p *Proposal) error {
	if p.Receiver() != a {
		return fmt.Errorf("%w: %s is not the receiver of %s", ErrIdentityMismatch, a.id, p)
	}
	a.proposalsReceived = append(a.proposalsReceived, p)
	return nil
}

// ChooseReceiveAction decides a received proposal epsilon-greedily from the
// sender's row of the receive table. Ties go to reject. ok is false when nothing
// was received this episode.
func (a *Agent) ChooseReceiveAction(p *Proposal) (ReceiveChoice, bool) {
	if len(a.proposalsReceived) == 0 {
		return ReceiveReject, false
	}
	if a.rng.Float64() < a.explorationRate {
		return ReceiveChoice(a.rng.IntN(NumActions)), true
	}
	row := p.Sender().Index()
	if a.receiveQ.At(row, int(ReceiveAccept)) > a.receiveQ.At(row, int(ReceiveReject)) {
		return ReceiveAccept, true
	}
	return ReceiveReject, true
}

// ScreenProposalsReceived resolves every received proposal. Rewards are not
// computed here: senders need every decision in the market first.
func (a *Agent) ScreenProposalsReceived() error {
	for _, p := range a.proposalsReceived {
		choice, ok := a.ChooseReceiveAction(p)
		if !ok {
			continue
		}
		var err error
		if choice == ReceiveAccept {
			err = p.Accept()
		} else {
			err = p.Reject()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) SentReward(p *Proposal) (float64, error) {
	if p.Sender() != a {
		return 0, fmt.Errorf("%w: expected sender %s, got %s", ErrIdentityMismatch, a.id, p.Sender().ID())
	}
	if !p.Resolved() {
		return 0, fmt.Errorf("%w: %s", ErrProposalUnresolved, p)
	}
	return a.rewards.Sent(a.desirability, p.Receiver().Desirability(), p.Accepted()), nil
}

func (a *Agent) ReceivedReward(p *Proposal) (float64, error) {
	if p.Receiver() != a {
		return 0, fmt.Errorf("%w: expected receiver %s, got %s", ErrIdentityMismatch, a.id, p.Receiver().ID())
	}
	if !p.Resolved() {
		return 0, fmt.Errorf("%w: %s", ErrProposalUnresolved, p)
	}
	return a.rewards.Received(a.desirability, p.Sender().Desirability(), p.HasBonus(), p.Accepted()), nil
}

// ProcessMatches learns from every resolved proposal of the episode and, when
// track is set, reports them to the tracker.
func (a *Agent) ProcessMatches(track bool) error {
	for _, p := range a.proposalsSent {
		reward, err := a.SentReward(p)
		if err != nil {
			return err
		}
		col := SendPlain
		if p.HasBonus() {
			col = SendBonus
		}
		a.sendQ.Update(p.Receiver().Index(), int(col), reward, a.learningRate, a.discountFactor)
		if track && a.tracker != nil {
			a.tracker.TrackSent(p)
		}
	}

	for _, p := range a.proposalsReceived {
		reward, err := a.ReceivedReward(p)
		if err != nil {
			return err
		}
		col := ReceiveReject
		if p.Accepted() {
			col = ReceiveAccept
		}
		a.receiveQ.Update(p.Sender().Index(), int(col), reward, a.learningRate, a.discountFactor)
		if track && a.tracker != nil {
			a.tracker.TrackReceived(p)
		}
	}
	return nil
}

// DecayExploration multiplies the exploration rate by factor without going below
// floor. A rate already under floor is left alone.
func (a *Agent) DecayExploration(factor, floor float64) {
	next := a.explorationRate * factor
	if next < floor {
		next = floor
	}
	if next < a.explorationRate {
		a.explorationRate = next
	}
}

// Reset clears the episode's transient state and installs a fresh rose budget.
// Learned tables and the exploration rate persist.
func (a *Agent) Reset(numRoses int) {
	a.numRoses = numRoses
	a.rosesSent = 0
	a.proposalsSent = nil
	a.proposalsReceived = nil
	a.resetValidReceivers()
}

func (a *Agent) resetValidReceivers() {
	a.validReceivers = make([]int, a.numPartners)
	for i := range a.validReceivers {
		a.validReceivers[i] = i
	}
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s, ds=%.2f", a.id, a.desirability)
}
