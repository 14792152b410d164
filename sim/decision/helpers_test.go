package decision

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.ErrorLevel)
	}
	os.Exit(m.Run())
}

// fakePeer is a node stand-in whose position, speed and buffer contents are
// set directly by the test.
type fakePeer struct {
	id     sim.NodeID
	engine sim.DecisionEngine
	pos    sim.Coord
	speed  float64
	held   map[string]bool
}

func (p *fakePeer) ID() sim.NodeID             { return p.id }
func (p *fakePeer) Engine() sim.DecisionEngine { return p.engine }
func (p *fakePeer) Has(id string) bool         { return p.held[id] }
func (p *fakePeer) FreeBuffer() int64          { return 1 << 20 }
func (p *fakePeer) Position() sim.Coord        { return p.pos }
func (p *fakePeer) Speed() float64             { return p.speed }

// newPeers builds one fake peer per id, attaching the engine built by mk.
func newPeers(mk func(self sim.Peer) sim.DecisionEngine, ids ...sim.NodeID) map[sim.NodeID]*fakePeer {
	out := make(map[sim.NodeID]*fakePeer, len(ids))
	for _, id := range ids {
		p := &fakePeer{id: id, held: make(map[string]bool)}
		p.engine = mk(p)
		out[id] = p
	}
	return out
}

// meet runs a full contact between a and b over [start, end].
func meet(t *testing.T, a, b *fakePeer, start, end float64) {
	t.Helper()
	require.NoError(t, a.engine.OnContact(b, start))
	require.NoError(t, b.engine.OnContact(a, start))
	require.NoError(t, a.engine.OnContactEnd(b, end))
	require.NoError(t, b.engine.OnContactEnd(a, end))
}

func message(id string, src, dst sim.NodeID, copies int) *sim.Message {
	m := sim.NewMessage(id, src, dst, 10, 0, 3600)
	m.Meta.Copies = copies
	return m
}

// defaultParams returns the protocol parameters a scenario gets by default.
func defaultParams() sim.ProtocolParams {
	sc := &sim.Scenario{}
	sc.ApplyDefaults()
	return sc.ProtocolParams
}
