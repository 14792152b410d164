package decision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim"
)

func prophetPeers(usePrev bool, ids ...sim.NodeID) map[sim.NodeID]*fakePeer {
	return newPeers(func(self sim.Peer) sim.DecisionEngine {
		return NewProphet(self, sim.ProphetParams{PInit: 0.75, Beta: 0.25, Gamma: 0.98, SecondsInTimeUnit: 30, UsePrevPred: usePrev})
	}, ids...)
}

func prophet(p *fakePeer) *Prophet { return p.engine.(*Prophet) }

func TestProphet_Encounter(t *testing.T) {
	peers := prophetPeers(false, 1, 2)

	require.NoError(t, peers[1].engine.OnContact(peers[2], 0))
	assert.InDelta(t, 0.75, prophet(peers[1]).Predictability(2, 0), 1e-12)

	// A second encounter moves P towards 1: 0.75 + 0.25*0.75.
	require.NoError(t, peers[1].engine.OnContactEnd(peers[2], 0))
	require.NoError(t, peers[1].engine.OnContact(peers[2], 0))
	assert.InDelta(t, 0.9375, prophet(peers[1]).Predictability(2, 0), 1e-12)
}

func TestProphet_Transitivity(t *testing.T) {
	// GIVEN b already knows c with P(b,c) = 0.75
	peers := prophetPeers(false, 1, 2, 3)
	a, b, c := peers[1], peers[2], peers[3]
	meet(t, b, c, 0, 0)

	// WHEN a meets b at the same instant
	require.NoError(t, a.engine.OnContact(b, 0))

	// THEN P(a,c) = P(a,b) * P(b,c) * beta
	assert.InDelta(t, 0.75*0.75*0.25, prophet(a).Predictability(3, 0), 1e-12)
	// AND a learns nothing about itself
	assert.Zero(t, prophet(a).Predictability(1, 0))
}

func TestProphet_Aging(t *testing.T) {
	peers := prophetPeers(false, 1, 2)
	require.NoError(t, peers[1].engine.OnContact(peers[2], 0))
	p := prophet(peers[1])

	assert.InDelta(t, 0.75*0.98, p.Predictability(2, 30), 1e-12)
	assert.InDelta(t, 0.75*math.Pow(0.98, 3), p.Predictability(2, 90), 1e-12)

	// Time never runs backwards for aging.
	assert.InDelta(t, 0.75*math.Pow(0.98, 3), p.Predictability(2, 60), 1e-12)
}

func TestProphet_ShouldForward(t *testing.T) {
	peers := prophetPeers(false, 1, 2, 3)
	a, b, c := peers[1], peers[2], peers[3]
	meet(t, b, c, 0, 10)
	msg := message("M1", 1, 3, 0)

	d := a.engine.ShouldForward(msg, b, 10)
	assert.Equal(t, sim.Forward, d.Action, d.Reason)

	d = b.engine.ShouldForward(msg, a, 10)
	assert.Equal(t, sim.Skip, d.Action, d.Reason)

	d = a.engine.ShouldForward(msg, c, 10)
	assert.Equal(t, sim.Forward, d.Action, "destination")
}

func TestProphet_PreviousPredictabilityGuard(t *testing.T) {
	peers := prophetPeers(true, 1, 2, 3)
	a, b, c := peers[1], peers[2], peers[3]
	meet(t, b, c, 0, 0)

	// GIVEN a relay copy received when the holder's predictability was 0.9
	msg := message("M1", 4, 3, 0)
	msg.Hops = append(msg.Hops, 1)
	msg.Meta.Predictability = 0.9

	// WHEN the peer's predictability (0.75) is higher than a's but below 0.9
	d := a.engine.ShouldForward(msg, b, 0)

	// THEN the copy stays
	assert.Equal(t, sim.Skip, d.Action, d.Reason)

	// AND a copy created at a is not subject to the guard
	d = a.engine.ShouldForward(message("M2", 1, 3, 0), b, 0)
	assert.Equal(t, sim.Forward, d.Action, d.Reason)
}

func TestProphet_OnReceivedSnapshotsPredictability(t *testing.T) {
	peers := prophetPeers(true, 1, 2)
	require.NoError(t, peers[1].engine.OnContact(peers[2], 0))
	msg := message("M1", 3, 2, 0)

	peers[1].engine.OnReceived(msg, peers[2], 0)

	assert.InDelta(t, 0.75, msg.Meta.Predictability, 1e-12)
}

// TestProphet_PredictabilityStaysBounded drives a dense contact pattern and
// checks every predictability stays within [0,1].
func TestProphet_PredictabilityStaysBounded(t *testing.T) {
	ids := []sim.NodeID{1, 2, 3, 4, 5}
	peers := prophetPeers(false, ids...)
	now := 0.0
	for round := 0; round < 50; round++ {
		for i, x := range ids {
			y := ids[(i+round+1)%len(ids)]
			if x == y {
				continue
			}
			meet(t, peers[x], peers[y], now, now+5)
			now += 7
		}
		for _, id := range ids {
			require.NoError(t, peers[id].engine.OnTick(now))
		}
	}
	for _, id := range ids {
		for _, other := range ids {
			v := prophet(peers[id]).Predictability(other, now)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}
