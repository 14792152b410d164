package decision

import (
	"math"
	"math/rand"

	"github.com/dtnsim/dtnsim/sim"
	"github.com/dtnsim/dtnsim/sim/social"
)

// PeopleRank forwards towards socially better-connected nodes. Friendship
// is derived from contact duration or frequency; ranks are the fixed point
// of PeopleRank over the friendship graph each node has observed.
type PeopleRank struct {
	base
	params  sim.PeopleRankParams
	tracker *social.RankTracker
	rng     *rand.Rand
	rolls   map[sim.NodeID]map[string]bool // probabilistic verdicts for the current contact
}

// NewPeopleRank creates the PeopleRank engine of node self. rng drives the
// probabilistic mode.
func NewPeopleRank(self sim.Peer, p sim.PeopleRankParams, rng *rand.Rand) *PeopleRank {
	return &PeopleRank{
		base:    newBase(self),
		params:  p,
		tracker: social.NewRankTracker(self.ID(), p),
		rng:     rng,
		rolls:   make(map[sim.NodeID]map[string]bool),
	}
}

func (pr *PeopleRank) Name() sim.RouterKind { return sim.RouterPeopleRank }

// Rank returns the node's own PeopleRank.
func (pr *PeopleRank) Rank() float64 { return pr.tracker.Self() }

// Tracker exposes the friendship graph and rank cache.
func (pr *PeopleRank) Tracker() *social.RankTracker { return pr.tracker }

func (pr *PeopleRank) OnContact(peer sim.Peer, now float64) error {
	other, err := peerEngine[*PeopleRank](peer)
	if err != nil {
		return err
	}
	if err := pr.base.OnContact(peer, now); err != nil {
		return err
	}
	pr.tracker.Observe(pr.history, now)
	pr.tracker.Exchange(other.tracker)
	return nil
}

func (pr *PeopleRank) OnContactEnd(peer sim.Peer, now float64) error {
	if err := pr.base.OnContactEnd(peer, now); err != nil {
		return err
	}
	delete(pr.rolls, peer.ID())
	pr.tracker.Observe(pr.history, now)
	return nil
}

func (pr *PeopleRank) OnTick(now float64) error {
	pr.tracker.Observe(pr.history, now)
	return pr.tracker.Refresh(now)
}

func (pr *PeopleRank) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	if msg.Destination == peer.ID() {
		return sim.ForwardDecision("destination")
	}
	other, ok := mustPeerEngine[*PeopleRank](peer)
	if !ok {
		return sim.SkipDecision("foreign engine")
	}
	delta := other.Rank() - pr.Rank()
	if delta <= 0 {
		return sim.SkipDecision("peer rank not higher")
	}
	if pr.params.Probabilistic && !pr.roll(msg.ID, peer.ID(), delta) {
		return sim.SkipDecision("probabilistic skip")
	}
	return sim.ForwardDecision("higher rank")
}

// roll draws the forwarding coin for msg towards peer with probability
// min(1, 2*delta). One draw per message and contact: the verdict holds until
// the contact with peer ends, however often it is asked.
func (pr *PeopleRank) roll(id string, peer sim.NodeID, delta float64) bool {
	seen := pr.rolls[peer]
	if seen == nil {
		seen = make(map[string]bool)
		pr.rolls[peer] = seen
	}
	ok, done := seen[id]
	if !done {
		ok = pr.rng.Float64() < math.Min(1, 2*delta)
		seen[id] = ok
	}
	return ok
}

// Priority prefers handing messages to the peer it ranks highest.
func (pr *PeopleRank) Priority(msg *sim.Message, peer sim.Peer, now float64) float64 {
	if other, ok := mustPeerEngine[*PeopleRank](peer); ok {
		return other.Rank()
	}
	return 0
}
