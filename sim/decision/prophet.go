package decision

import (
	"fmt"
	"math"

	"github.com/dtnsim/dtnsim/sim"
)

// Prophet forwards along rising delivery predictability (PRoPHET).
// Predictabilities grow at each encounter, spread transitively and age
// exponentially between encounters.
type Prophet struct {
	base
	params  sim.ProphetParams
	preds   map[sim.NodeID]float64
	lastAge float64
}

// NewProphet creates the PRoPHET engine of node self.
func NewProphet(self sim.Peer, p sim.ProphetParams) *Prophet {
	return &Prophet{base: newBase(self), params: p, preds: make(map[sim.NodeID]float64)}
}

func (p *Prophet) Name() sim.RouterKind { return sim.RouterProphet }

// age applies P <- P * gamma^(elapsed/secondsInTimeUnit) up to now.
func (p *Prophet) age(now float64) {
	if now <= p.lastAge {
		return
	}
	mult := math.Pow(p.params.Gamma, (now-p.lastAge)/p.params.SecondsInTimeUnit)
	for id := range p.preds {
		p.preds[id] *= mult
	}
	p.lastAge = now
}

// Predictability returns P(self, dest) aged to now.
func (p *Prophet) Predictability(dest sim.NodeID, now float64) float64 {
	p.age(now)
	return p.preds[dest]
}

func (p *Prophet) check() error {
	for id, v := range p.preds {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("node %d: P(%d) = %g: %w", p.self.ID(), id, v, sim.ErrProtocolState)
		}
	}
	return nil
}

func (p *Prophet) OnContact(peer sim.Peer, now float64) error {
	other, err := peerEngine[*Prophet](peer)
	if err != nil {
		return err
	}
	if err := p.base.OnContact(peer, now); err != nil {
		return err
	}
	p.age(now)
	other.age(now)

	b := peer.ID()
	old := p.preds[b]
	p.preds[b] = old + (1-old)*p.params.PInit

	pab := p.preds[b]
	for c, pbc := range other.preds {
		if c == p.self.ID() || c == b {
			continue
		}
		pac := p.preds[c]
		p.preds[c] = pac + (1-pac)*pab*pbc*p.params.Beta
	}
	return p.check()
}

func (p *Prophet) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	if msg.Destination == peer.ID() {
		return sim.ForwardDecision("destination")
	}
	other, ok := mustPeerEngine[*Prophet](peer)
	if !ok {
		return sim.SkipDecision("foreign engine")
	}
	pb := other.Predictability(msg.Destination, now)
	pa := p.Predictability(msg.Destination, now)
	if pb <= pa {
		return sim.SkipDecision("peer predictability not higher")
	}
	if p.params.UsePrevPred && msg.HopCount() > 0 && pb < msg.Meta.Predictability {
		return sim.SkipDecision("below predictability at reception")
	}
	return sim.ForwardDecision("higher predictability")
}

// OnReceived snapshots P(self, dest) on the copy for the previous-predictability guard.
func (p *Prophet) OnReceived(msg *sim.Message, from sim.Peer, now float64) {
	msg.Meta.Predictability = p.Predictability(msg.Destination, now)
}

// Priority orders queued messages by the peer's predictability for their destination.
func (p *Prophet) Priority(msg *sim.Message, peer sim.Peer, now float64) float64 {
	other, ok := mustPeerEngine[*Prophet](peer)
	if !ok {
		return 0
	}
	return other.Predictability(msg.Destination, now)
}

func (p *Prophet) OnTick(now float64) error {
	p.age(now)
	return p.check()
}
