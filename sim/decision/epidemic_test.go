package decision

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim"
)

func TestEpidemic_ForwardsEverything(t *testing.T) {
	peers := newPeers(func(self sim.Peer) sim.DecisionEngine { return NewEpidemic(self) }, 1, 2, 3)
	a := peers[1].engine.(*Epidemic)

	d := a.ShouldForward(message("M1", 1, 3, 0), peers[2], 0)
	assert.Equal(t, sim.Forward, d.Action)
	assert.Equal(t, sim.RouterEpidemic, a.Name())
}

func TestEpidemic_RecordsHistory(t *testing.T) {
	peers := newPeers(func(self sim.Peer) sim.DecisionEngine { return NewEpidemic(self) }, 1, 2)

	meet(t, peers[1], peers[2], 10, 40)

	h := peers[1].engine.(*Epidemic).History()
	assert.Equal(t, 1, h.Encounters(2))
	assert.Equal(t, 30.0, h.TotalDuration(2, 100))
	assert.False(t, h.InContact(2))
}

// TestEngines_RejectForeignPeer verifies that every engine refuses a contact
// with a node running a different protocol.
func TestEngines_RejectForeignPeer(t *testing.T) {
	params := defaultParams()

	builders := map[string]func(self sim.Peer) sim.DecisionEngine{
		"sprayAndWait":  func(self sim.Peer) sim.DecisionEngine { return NewSprayAndWait(self, params.SprayAndWait) },
		"sprayAndFocus": func(self sim.Peer) sim.DecisionEngine { return NewSprayAndFocus(self, params.SprayAndFocus) },
		"prophet":       func(self sim.Peer) sim.DecisionEngine { return NewProphet(self, params.Prophet) },
		"peopleRank": func(self sim.Peer) sim.DecisionEngine {
			return NewPeopleRank(self, params.PeopleRank, rand.New(rand.NewSource(1)))
		},
		"bubbleRap": func(self sim.Peer) sim.DecisionEngine { return NewBubbleRap(self, params.BubbleRap, params.PeopleRank) },
	}
	foreign := newPeers(func(self sim.Peer) sim.DecisionEngine { return NewEpidemic(self) }, 9)[9]

	for name, mk := range builders {
		t.Run(name, func(t *testing.T) {
			// GIVEN a node and a peer running epidemic
			self := newPeers(mk, 1)[1]

			// WHEN they meet
			err := self.engine.OnContact(foreign, 0)

			// THEN the contact is refused as a protocol mismatch
			require.Error(t, err)
			assert.ErrorIs(t, err, sim.ErrProtocolState)

			// AND the foreign peer is also rejected by epidemic
			assert.ErrorIs(t, foreign.engine.OnContact(self, 0), sim.ErrProtocolState)
		})
	}
}
