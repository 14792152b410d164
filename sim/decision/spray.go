package decision

import (
	"math"

	"github.com/dtnsim/dtnsim/sim"
)

// SprayAndWait bounds replication to L copies per message. While a holder
// has more than one copy it sprays: in binary mode it hands half of its
// copies to any peer lacking the message; in source mode only the source
// hands out copies, one at a time. A holder with one copy waits for the
// destination.
type SprayAndWait struct {
	base
	copies int
	binary bool
}

// NewSprayAndWait creates the Spray and Wait engine of node self.
func NewSprayAndWait(self sim.Peer, p sim.SprayParams) *SprayAndWait {
	return &SprayAndWait{base: newBase(self), copies: p.Copies, binary: p.Binary == nil || *p.Binary}
}

func (s *SprayAndWait) Name() sim.RouterKind { return sim.RouterSprayAndWait }

func (s *SprayAndWait) OnNewMessage(msg *sim.Message) error {
	msg.Meta.Copies = s.copies
	return nil
}

func (s *SprayAndWait) OnContact(peer sim.Peer, now float64) error {
	if _, err := peerEngine[*SprayAndWait](peer); err != nil {
		return err
	}
	return s.base.OnContact(peer, now)
}

func (s *SprayAndWait) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	if msg.Destination == peer.ID() {
		return sim.ForwardDecision("destination")
	}
	return spray(msg, s.self, s.binary)
}

// spray is the spray-phase rule shared by Spray and Wait and Spray and Focus.
func spray(msg *sim.Message, self sim.Peer, binary bool) sim.Decision {
	l := msg.Meta.Copies
	switch {
	case l <= 1:
		return sim.SkipDecision("wait phase")
	case binary:
		return sim.SplitDecision(l/2, "binary spray")
	case msg.Source == self.ID():
		return sim.SplitDecision(1, "source spray")
	}
	return sim.SkipDecision("relay waits")
}

// SprayAndFocus sprays like binary Spray and Wait, then, with a single copy
// left, hands it over to peers that saw the destination more recently.
// Last-seen times spread transitively at contact, discounted by the time
// the peer would need to cover the distance between the two nodes.
type SprayAndFocus struct {
	base
	copies    int
	threshold float64
	timediff  float64
	lastSeen  map[sim.NodeID]float64
}

// NewSprayAndFocus creates the Spray and Focus engine of node self.
func NewSprayAndFocus(self sim.Peer, p sim.SprayAndFocusParams) *SprayAndFocus {
	return &SprayAndFocus{
		base:      newBase(self),
		copies:    p.Copies,
		threshold: p.TimerThreshold,
		timediff:  p.DefaultTimediff,
		lastSeen:  make(map[sim.NodeID]float64),
	}
}

func (s *SprayAndFocus) Name() sim.RouterKind { return sim.RouterSprayAndFocus }

func (s *SprayAndFocus) OnNewMessage(msg *sim.Message) error {
	msg.Meta.Copies = s.copies
	msg.Meta.Utility = s.Utility(msg.Destination, msg.Created)
	return nil
}

// travelTime estimates how long a node moving at speed needs to cover dist.
func (s *SprayAndFocus) travelTime(dist, speed float64) float64 {
	if speed == 0 {
		return s.timediff
	}
	return dist / speed
}

func (s *SprayAndFocus) OnContact(peer sim.Peer, now float64) error {
	other, err := peerEngine[*SprayAndFocus](peer)
	if err != nil {
		return err
	}
	if err := s.base.OnContact(peer, now); err != nil {
		return err
	}
	dist := s.self.Position().Distance(peer.Position())
	diff := s.travelTime(dist, s.self.Speed())
	s.lastSeen[peer.ID()] = now
	for h, peerTime := range other.lastSeen {
		if h == s.self.ID() {
			continue
		}
		if mine, ok := s.lastSeen[h]; !ok || mine+diff < peerTime {
			s.lastSeen[h] = peerTime - diff
		}
	}
	return nil
}

// LastSeen returns the estimated last time this node saw id.
func (s *SprayAndFocus) LastSeen(id sim.NodeID) (float64, bool) {
	t, ok := s.lastSeen[id]
	return t, ok
}

// Utility is the freshness of this node's knowledge of id, in [0,1]:
// 1 while in contact, decaying as 1/(1+age), 0 if never seen.
func (s *SprayAndFocus) Utility(id sim.NodeID, now float64) float64 {
	t, ok := s.lastSeen[id]
	if s.history.InContact(id) {
		t, ok = now, true
	}
	if !ok {
		return 0
	}
	return 1 / (1 + math.Max(0, now-t))
}

func (s *SprayAndFocus) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	if msg.Destination == peer.ID() {
		return sim.ForwardDecision("destination")
	}
	if msg.Meta.Copies > 1 {
		return spray(msg, s.self, true)
	}
	if msg.Meta.Copies < 1 {
		return sim.SkipDecision("no copies")
	}
	other, ok := mustPeerEngine[*SprayAndFocus](peer)
	if !ok {
		return sim.SkipDecision("foreign engine")
	}
	peerLast, peerKnows := other.lastSeen[msg.Destination]
	if !peerKnows {
		return sim.SkipDecision("peer never saw destination")
	}
	myLast, iKnow := s.lastSeen[msg.Destination]
	if !iKnow || peerLast > myLast+s.threshold {
		return sim.SplitDecision(1, "focus")
	}
	return sim.SkipDecision("own timer fresher")
}

func (s *SprayAndFocus) OnReceived(msg *sim.Message, from sim.Peer, now float64) {
	msg.Meta.Utility = s.Utility(msg.Destination, now)
}

// ShouldDeleteSent drops the copy once ownership of the last copy moved.
func (s *SprayAndFocus) ShouldDeleteSent(msg *sim.Message, peer sim.Peer) bool {
	return msg.Meta.Copies == 0
}

// Priority prefers messages for which the peer's knowledge of the
// destination improves most on the freshness recorded with this copy.
func (s *SprayAndFocus) Priority(msg *sim.Message, peer sim.Peer, now float64) float64 {
	other, ok := mustPeerEngine[*SprayAndFocus](peer)
	if !ok {
		return 0
	}
	return other.Utility(msg.Destination, now) - msg.Meta.Utility
}
