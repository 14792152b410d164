package decision

import "github.com/dtnsim/dtnsim/sim"

// Epidemic floods: every peer gets every message it lacks.
type Epidemic struct {
	base
}

// NewEpidemic creates the Epidemic engine of node self.
func NewEpidemic(self sim.Peer) *Epidemic {
	return &Epidemic{base: newBase(self)}
}

func (e *Epidemic) Name() sim.RouterKind { return sim.RouterEpidemic }

func (e *Epidemic) OnContact(peer sim.Peer, now float64) error {
	if _, err := peerEngine[*Epidemic](peer); err != nil {
		return err
	}
	return e.base.OnContact(peer, now)
}

func (e *Epidemic) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	return sim.ForwardDecision("flood")
}
