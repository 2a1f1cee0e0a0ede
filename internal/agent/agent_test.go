package agent

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

// scriptedRand replays fixed draws so policy branches can be pinned.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		panic("scriptedRand: no float draws left")
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		panic("scriptedRand: no int draws left")
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		panic("scriptedRand: int draw out of range")
	}
	return v
}

func newTestAgent(t *testing.T, role Role, index int, desirability float64, roses, proposals, partners int, explore float64, rng Rand) *Agent {
	t.Helper()
	a, err := New(Config{
		Role:            role,
		Index:           index,
		Desirability:    desirability,
		NumRoses:        roses,
		NumProposals:    proposals,
		NumPartners:     partners,
		LearningRate:    0.1,
		DiscountFactor:  0.95,
		ExplorationRate: explore,
	}, rng)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func TestNewAgentRejectsUnknownRole(t *testing.T) {
	_, err := New(Config{Role: "robot", NumPartners: 2, NumProposals: 1}, &scriptedRand{})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestNewAgentStartsWithZeroTablesAndAllReceivers(t *testing.T) {
	a := newTestAgent(t, RoleMan, 2, 50, 2, 3, 4, 1.0, &scriptedRand{})
	if a.ID() != "man_2" {
		t.Fatalf("unexpected id %s", a.ID())
	}
	rows, cols := a.SendQTable().Dims()
	if rows != 4 || cols != NumActions {
		t.Fatalf("unexpected send table dims %dx%d", rows, cols)
	}
	for _, v := range append(a.sendQ.Values(), a.receiveQ.Values()...) {
		if v != 0 {
			t.Fatalf("expected zero-initialised tables, got %v", v)
		}
	}
	if got := a.ValidReceivers(); len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Fatalf("unexpected valid receivers %v", got)
	}
}

func TestChooseSendActionFailsAtProposalLimit(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 0, 1, 2, 0, &scriptedRand{floats: []float64{0.5}})
	b := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 2, 0, &scriptedRand{})
	if err := a.Send(NewProposal(a, b, false)); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err := a.ChooseSendAction()
	if !errors.Is(err, ErrProposalLimit) {
		t.Fatalf("expected ErrProposalLimit, got %v", err)
	}
}

func TestChooseSendActionExploitTieBreaksToFirstPair(t *testing.T) {
	a := newTestAgent(t, RoleWoman, 0, 50, 2, 3, 3, 0, &scriptedRand{floats: []float64{0.3}})
	action, ok, err := a.ChooseSendAction()
	if err != nil || !ok {
		t.Fatalf("choose: ok=%v err=%v", ok, err)
	}
	if action.Receiver != 0 || action.Choice != SendPlain {
		t.Fatalf("expected first pair (0, plain), got %+v", action)
	}
}

func TestChooseSendActionExploitPicksMaximumAmongValid(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 1, 3, 3, 0, &scriptedRand{floats: []float64{0.9, 0.9}})
	a.sendQ.Set(1, int(SendPlain), 3)
	a.sendQ.Set(2, int(SendBonus), 5)

	action, _, err := a.ChooseSendAction()
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if action != (SendAction{Receiver: 2, Choice: SendBonus}) {
		t.Fatalf("expected (2, bonus), got %+v", action)
	}

	// Spending the only rose removes the bonus column from consideration.
	b := newTestAgent(t, RoleWoman, 2, 50, 0, 1, 3, 0, &scriptedRand{})
	if err := a.Send(NewProposal(a, b, true)); err != nil {
		t.Fatalf("send: %v", err)
	}
	action, _, err = a.ChooseSendAction()
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if action != (SendAction{Receiver: 1, Choice: SendPlain}) {
		t.Fatalf("expected (1, plain), got %+v", action)
	}
}

func TestChooseSendActionExploreDrawsActionThenReceiver(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 1, 2, 3, 1.0, &scriptedRand{floats: []float64{0.2}, ints: []int{1, 2}})
	action, ok, err := a.ChooseSendAction()
	if err != nil || !ok {
		t.Fatalf("choose: ok=%v err=%v", ok, err)
	}
	if action != (SendAction{Receiver: 2, Choice: SendBonus}) {
		t.Fatalf("expected (2, bonus), got %+v", action)
	}
}

func TestChooseSendActionWithoutRosesNeverPicksBonus(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		a := newTestAgent(t, RoleMan, 0, 50, 0, 1, 5, 1.0, rng)
		action, ok, err := a.ChooseSendAction()
		if err != nil || !ok {
			t.Fatalf("choose: ok=%v err=%v", ok, err)
		}
		if action.Choice != SendPlain {
			t.Fatalf("draw %d selected bonus without roses", i)
		}
	}
}

func TestChooseSendActionNoValidReceivers(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 0, 3, 1, 0, &scriptedRand{})
	b := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 1, 0, &scriptedRand{})
	if err := a.Send(NewProposal(a, b, false)); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, ok, err := a.ChooseSendAction()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected no action once receivers are exhausted")
	}
}

func TestSendEnforcesSingleProposalPerReceiverAndRoseBudget(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 1, 3, 2, 0, &scriptedRand{})
	b0 := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 1, 0, &scriptedRand{})
	b1 := newTestAgent(t, RoleWoman, 1, 50, 0, 1, 1, 0, &scriptedRand{})

	if err := a.Send(NewProposal(a, b0, true)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.RosesSent() != 1 {
		t.Fatalf("expected one rose spent, got %d", a.RosesSent())
	}
	if err := a.Send(NewProposal(a, b0, false)); !errors.Is(err, ErrInvalidReceiver) {
		t.Fatalf("expected ErrInvalidReceiver for repeat target, got %v", err)
	}
	if err := a.Send(NewProposal(a, b1, true)); !errors.Is(err, ErrNoRoses) {
		t.Fatalf("expected ErrNoRoses, got %v", err)
	}
	if got := a.ValidReceivers(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected valid receivers %v", got)
	}
	other := newTestAgent(t, RoleMan, 1, 50, 0, 1, 2, 0, &scriptedRand{})
	if err := a.Send(NewProposal(other, b1, false)); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestChooseReceiveAction(t *testing.T) {
	sender := newTestAgent(t, RoleMan, 1, 50, 0, 1, 2, 0, &scriptedRand{})
	receiver := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 2, 0, &scriptedRand{floats: []float64{0.5, 0.5}})
	p := NewProposal(sender, receiver, false)

	if _, ok := receiver.ChooseReceiveAction(p); ok {
		t.Fatal("expected no decision before anything was received")
	}
	if err := receiver.Receive(p); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if choice, ok := receiver.ChooseReceiveAction(p); !ok || choice != ReceiveReject {
		t.Fatalf("expected tie to reject, got %v ok=%v", choice, ok)
	}
	receiver.receiveQ.Set(1, int(ReceiveAccept), 0.5)
	if choice, _ := receiver.ChooseReceiveAction(p); choice != ReceiveAccept {
		t.Fatalf("expected accept, got %v", choice)
	}
}

func TestScreenProposalsReceivedResolvesOnce(t *testing.T) {
	sender := newTestAgent(t, RoleMan, 0, 50, 0, 1, 1, 0, &scriptedRand{})
	receiver := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 1, 1.0, &scriptedRand{floats: []float64{0.1}, ints: []int{1}})
	p := NewProposal(sender, receiver, false)
	if err := receiver.Receive(p); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := receiver.ScreenProposalsReceived(); err != nil {
		t.Fatalf("screen: %v", err)
	}
	if !p.Accepted() {
		t.Fatalf("expected accepted, got %s", p.Decision())
	}
	if err := p.Reject(); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestSentReward(t *testing.T) {
	sender := newTestAgent(t, RoleMan, 0, 40, 0, 1, 1, 0, &scriptedRand{})
	receiver := newTestAgent(t, RoleWoman, 0, 60, 0, 1, 1, 0, &scriptedRand{})
	p := NewProposal(sender, receiver, false)

	if _, err := sender.SentReward(p); !errors.Is(err, ErrProposalUnresolved) {
		t.Fatalf("expected ErrProposalUnresolved, got %v", err)
	}
	if _, err := receiver.SentReward(p); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
	if err := p.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	reward, err := sender.SentReward(p)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if reward != 100 {
		t.Fatalf("expected 60 + 2*(60-40) = 100, got %v", reward)
	}

	rejected := NewProposal(sender, receiver, true)
	_ = rejected.Reject()
	if reward, _ := sender.SentReward(rejected); reward != -10 {
		t.Fatalf("expected rejection penalty -10, got %v", reward)
	}
}

func TestReceivedRewardBranches(t *testing.T) {
	// Receiver at 50: openness 9, threshold 41 (36.5 with a rose).
	cases := []struct {
		name       string
		role       Role
		sender     float64
		bonus      bool
		accept     bool
		wantReward float64
	}{
		{name: "good fit accepted", role: RoleWoman, sender: 90, accept: true, wantReward: 50 + 40},
		{name: "good fit rejected woman", role: RoleWoman, sender: 90, accept: false, wantReward: -10},
		{name: "good fit rejected man", role: RoleMan, sender: 90, accept: false, wantReward: -30},
		{name: "low fit rejected", role: RoleMan, sender: 10, accept: false, wantReward: 10},
		{name: "low fit accepted man", role: RoleMan, sender: 10, accept: true, wantReward: -50},
		{name: "low fit accepted woman", role: RoleWoman, sender: 10, accept: true, wantReward: -10},
		{name: "rose lowers threshold", role: RoleWoman, sender: 40, bonus: true, accept: true, wantReward: 50 - 10 + 4.5},
		{name: "no rose below threshold", role: RoleWoman, sender: 40, accept: true, wantReward: -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			receiver := newTestAgent(t, tc.role, 0, 50, 0, 1, 1, 0, &scriptedRand{})
			sender := newTestAgent(t, tc.role.Opposite(), 0, tc.sender, 1, 1, 1, 0, &scriptedRand{})
			p := NewProposal(sender, receiver, tc.bonus)
			if tc.accept {
				_ = p.Accept()
			} else {
				_ = p.Reject()
			}
			got, err := receiver.ReceivedReward(p)
			if err != nil {
				t.Fatalf("reward: %v", err)
			}
			if math.Abs(got-tc.wantReward) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.wantReward, got)
			}
		})
	}
}

func TestProcessMatchesUpdatesBothTablesAndTracks(t *testing.T) {
	man := newTestAgent(t, RoleMan, 0, 50, 1, 1, 1, 0, &scriptedRand{})
	woman := newTestAgent(t, RoleWoman, 0, 50, 0, 1, 1, 0, &scriptedRand{})
	tracker := &countingTracker{}
	man.SetTracker(tracker)

	p := NewProposal(man, woman, true)
	if err := man.Send(p); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := woman.Receive(p); err != nil {
		t.Fatalf("receive: %v", err)
	}
	_ = p.Accept()

	if err := man.ProcessMatches(true); err != nil {
		t.Fatalf("process man: %v", err)
	}
	if err := woman.ProcessMatches(false); err != nil {
		t.Fatalf("process woman: %v", err)
	}
	// sent reward 50, table max 0 before the update
	if got := man.sendQ.At(0, int(SendBonus)); math.Abs(got-5) > 1e-9 {
		t.Fatalf("expected send q 5, got %v", got)
	}
	// received reward 50 + 0 + 4.5
	if got := woman.receiveQ.At(0, int(ReceiveAccept)); math.Abs(got-5.45) > 1e-9 {
		t.Fatalf("expected receive q 5.45, got %v", got)
	}
	if tracker.sent != 1 || tracker.received != 0 {
		t.Fatalf("unexpected tracker counts %+v", tracker)
	}
}

type countingTracker struct {
	sent     int
	received int
}

func (c *countingTracker) TrackSent(*Proposal) {
	c.sent++
}

func (c *countingTracker) TrackReceived(*Proposal) {
	c.received++
}

func TestDecayExplorationIsMonotoneAndFloored(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 0, 1, 1, 1.0, &scriptedRand{})
	prev := a.ExplorationRate()
	for i := 0; i < 2000; i++ {
		a.DecayExploration(0.995, 0.01)
		if a.ExplorationRate() > prev {
			t.Fatalf("exploration increased at step %d", i)
		}
		if a.ExplorationRate() < 0.01 {
			t.Fatalf("exploration below floor at step %d", i)
		}
		prev = a.ExplorationRate()
	}
	if prev != 0.01 {
		t.Fatalf("expected exploration to settle at floor, got %v", prev)
	}
}

func TestResetClearsEpisodeStateButKeepsLearning(t *testing.T) {
	a := newTestAgent(t, RoleMan, 0, 50, 1, 2, 2, 0.5, &scriptedRand{})
	b := newTestAgent(t, RoleWoman, 1, 50, 0, 1, 2, 0, &scriptedRand{})
	p := NewProposal(a, b, true)
	_ = a.Send(p)
	a.sendQ.Set(1, 1, 3)

	a.Reset(6)
	if a.NumRoses() != 6 || a.RosesSent() != 0 {
		t.Fatalf("unexpected roses %d/%d", a.RosesSent(), a.NumRoses())
	}
	if len(a.ProposalsSent()) != 0 || len(a.ProposalsReceived()) != 0 {
		t.Fatal("expected proposal lists to be cleared")
	}
	if len(a.ValidReceivers()) != 2 {
		t.Fatalf("expected full receiver set, got %v", a.ValidReceivers())
	}
	if a.sendQ.At(1, 1) != 3 || a.ExplorationRate() != 0.5 {
		t.Fatal("expected learning state to persist across reset")
	}
}
