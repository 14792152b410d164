package sim

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// routerScripted is a test-only engine whose decisions are set per test.
const routerScripted RouterKind = "scripted"

func init() {
	engines[routerScripted] = func(self Peer, _ ProtocolParams, _ *rand.Rand) (DecisionEngine, error) {
		return &scriptedEngine{self: self}, nil
	}
}

// scriptedEngine forwards everything unless decide says otherwise and
// records the callbacks it receives.
type scriptedEngine struct {
	self       Peer
	decide     func(msg *Message, peer Peer) Decision
	newCopies  int
	deleteSent bool
	contacts   []NodeID
	ended      []NodeID
	received   []string
	ticks      int
}

func (e *scriptedEngine) Name() RouterKind { return routerScripted }

func (e *scriptedEngine) OnNewMessage(msg *Message) error {
	msg.Meta.Copies = e.newCopies
	return nil
}

func (e *scriptedEngine) OnContact(peer Peer, _ float64) error {
	e.contacts = append(e.contacts, peer.ID())
	return nil
}

func (e *scriptedEngine) OnContactEnd(peer Peer, _ float64) error {
	e.ended = append(e.ended, peer.ID())
	return nil
}

func (e *scriptedEngine) ShouldForward(msg *Message, peer Peer, _ float64) Decision {
	if e.decide != nil {
		return e.decide(msg, peer)
	}
	return ForwardDecision("scripted")
}

func (e *scriptedEngine) OnReceived(msg *Message, _ Peer, _ float64) {
	e.received = append(e.received, msg.ID)
}

func (e *scriptedEngine) ShouldDeleteSent(*Message, Peer) bool { return e.deleteSent }

func (e *scriptedEngine) OnTick(float64) error {
	e.ticks++
	return nil
}

// positionFunc adapts a function to PositionSource.
type positionFunc func(id NodeID, t float64) (Coord, error)

func (f positionFunc) PositionAt(id NodeID, t float64) (Coord, error) { return f(id, t) }

// farApart places every node out of everyone's range, so only injected
// contacts connect them.
var farApart = positionFunc(func(id NodeID, _ float64) (Coord, error) {
	return Coord{X: float64(id) * 1e6}, nil
})

// testScenario returns a valid n-node scenario on the scripted engine:
// 1000-byte buffers, 10 m range, 100 B/s, one-hour TTL, 1000 s horizon.
func testScenario(n int) *Scenario {
	sc := &Scenario{
		Name: "test", Seed: 1, Duration: 1000, TickInterval: 1, TTL: 60,
		Router: RouterEpidemic, BufferSize: 1000, InterfaceRange: 10, Bandwidth: 100,
		Groups: []GroupConfig{{Name: "n", Count: n, Waypoints: []Coord{{}}}},
	}
	sc.ApplyDefaults()
	sc.Router = routerScripted
	return sc
}

// newTestSim builds a simulator on sc that records its feed.
func newTestSim(t *testing.T, sc *Scenario, positions PositionSource) (*Simulator, *trace.Recorder) {
	t.Helper()
	rec := trace.NewRecorder()
	s, err := NewSimulator(sc, positions, rec)
	require.NoError(t, err)
	return s, rec
}

func scripted(s *Simulator, id NodeID) *scriptedEngine {
	return s.Node(id).Engine().(*scriptedEngine)
}

// runUntil dispatches events up to and including time t.
func runUntil(t *testing.T, s *Simulator, until float64) {
	t.Helper()
	for s.Pending() > 0 && s.Peek().Timestamp() <= until {
		_, err := s.Advance()
		require.NoError(t, err)
	}
}

func runAll(t *testing.T, s *Simulator) {
	t.Helper()
	require.NoError(t, s.Run(context.Background()))
}

func inject(t *testing.T, s *Simulator, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, s.Schedule(ev), fmt.Sprintf("%s at %g", ev.Kind(), ev.Timestamp()))
	}
}

func reasons(recs []trace.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Reason)
	}
	return out
}

func runErr(s *Simulator) error {
	return s.Run(context.Background())
}
