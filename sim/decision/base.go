// Package decision implements the DecisionEngine variants: Epidemic,
// Spray and Wait, Spray and Focus, PRoPHET, PeopleRank and BubbleRap.
// Importing it registers every engine with the sim package.
package decision

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dtnsim/dtnsim/sim"
	"github.com/dtnsim/dtnsim/sim/social"
)

// base provides the no-op half of the DecisionEngine contract and keeps the
// node's contact history.
type base struct {
	self    sim.Peer
	history *social.History
}

func newBase(self sim.Peer) base {
	return base{self: self, history: social.NewHistory()}
}

func (b *base) OnNewMessage(*sim.Message) error { return nil }

func (b *base) OnContact(peer sim.Peer, now float64) error {
	b.history.Begin(peer.ID(), now)
	return nil
}

func (b *base) OnContactEnd(peer sim.Peer, now float64) error {
	b.history.End(peer.ID(), now)
	return nil
}

func (b *base) OnReceived(*sim.Message, sim.Peer, float64)   {}
func (b *base) ShouldDeleteSent(*sim.Message, sim.Peer) bool { return false }
func (b *base) OnTick(float64) error                         { return nil }

// History returns the node's contact history.
func (b *base) History() *social.History { return b.history }

// peerEngine returns the peer's engine as the caller's own type.
func peerEngine[T sim.DecisionEngine](peer sim.Peer) (T, error) {
	e, ok := peer.Engine().(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("peer %d runs %T, want %T: %w", peer.ID(), peer.Engine(), zero, sim.ErrProtocolState)
	}
	return e, nil
}

// mustPeerEngine is peerEngine for decisions, which cannot fail: a mismatch
// was already reported at contact time, so the message is skipped.
func mustPeerEngine[T sim.DecisionEngine](peer sim.Peer) (T, bool) {
	e, err := peerEngine[T](peer)
	if err != nil {
		logrus.Warnf("decision: %v", err)
		return e, false
	}
	return e, true
}
