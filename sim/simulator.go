// sim/simulator.go
package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// NoPeer fills the peer field of outward records that involve a single node.
const NoPeer NodeID = trace.NoNode

// Sink receives the outward event feed, in simulation order.
type Sink interface {
	Emit(rec trace.Record)
}

// Simulator is the core object that holds simulation time, the node set,
// connectivity state and the event loop.
type Simulator struct {
	Clock   float64
	Horizon float64

	queue *EventQueue
	nodes []*Node
	world *World
	sinks []Sink
	rng   *PartitionedRNG

	tickInterval    float64
	ttl             float64
	tombstones      bool
	deleteDelivered bool
	processed       int
}

// NewSimulator builds nodes, engines and routers for sc and schedules the
// first tick. sc must have defaults applied and be valid; the engine for
// sc.Router must be registered (import sim/decision).
func NewSimulator(sc *Scenario, positions PositionSource, sinks ...Sink) (*Simulator, error) {
	if positions == nil {
		panic("NewSimulator: positions must not be nil")
	}
	factory, err := lookupEngine(sc.Router)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		Horizon:         sc.Duration,
		queue:           NewEventQueue(),
		sinks:           sinks,
		rng:             NewPartitionedRNG(NewSimulationKey(sc.Seed)),
		tickInterval:    sc.TickInterval,
		ttl:             sc.TTLSeconds(),
		tombstones:      sc.Tombstones,
		deleteDelivered: sc.DeleteDelivered == nil || *sc.DeleteDelivered,
	}
	id := NodeID(0)
	for _, g := range sc.Groups {
		for k := 0; k < g.Count; k++ {
			n := NewNode(id, fmt.Sprintf("%s%d", g.Name, k), g.Category, g.BufferSize, sc.EvictionPolicy, g.InterfaceRange, g.Bandwidth)
			s.nodes = append(s.nodes, n)
			id++
		}
	}
	for _, n := range s.nodes {
		engine, err := factory(n, sc.ProtocolParams, s.rng.ForSubsystem(SubsystemEngine(n.id)))
		if err != nil {
			return nil, fmt.Errorf("engine for node %d: %w", n.id, err)
		}
		n.engine = engine
		n.router = newMessageRouter(s, n, engine)
	}
	s.world = NewWorld(s.nodes, positions, sc.Workers)
	s.queue.Schedule(NewTickEvent(0))
	logrus.Infof("simulator: %d nodes, router %s, horizon %.0fs", len(s.nodes), sc.Router, s.Horizon)
	return s, nil
}

// Schedule pushes an event into the queue. Events in the past are rejected
// with ErrCausalityViolation.
func (s *Simulator) Schedule(ev Event) error {
	if ev.Timestamp() < s.Clock {
		return fmt.Errorf("%s at %g before clock %g: %w", ev.Kind(), ev.Timestamp(), s.Clock, ErrCausalityViolation)
	}
	s.queue.Schedule(ev)
	return nil
}

// ScheduleAll schedules events in order, stopping at the first error.
func (s *Simulator) ScheduleAll(events []Event) error {
	for _, ev := range events {
		if err := s.Schedule(ev); err != nil {
			return err
		}
	}
	return nil
}

// mustSchedule is used for follow-up events the kernel derives from now.
func (s *Simulator) mustSchedule(ev Event) {
	if err := s.Schedule(ev); err != nil {
		panic(err)
	}
}

func (s *Simulator) emit(rec trace.Record) {
	for _, sink := range s.sinks {
		sink.Emit(rec)
	}
}

// Run drains the queue until it is empty, the next event lies beyond the
// horizon, ctx is cancelled, or a handler fails.
func (s *Simulator) Run(ctx context.Context) error {
	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.queue.Peek().Timestamp() > s.Horizon {
			break
		}
		if _, err := s.Advance(); err != nil {
			return err
		}
	}
	logrus.Infof("[t=%.3f] simulation ended after %d events", s.Clock, s.processed)
	return nil
}

// Advance pops the earliest event, moves the clock to it and dispatches it.
// Returns nil, nil when the queue is empty.
func (s *Simulator) Advance() (Event, error) {
	ev := s.queue.PopNext()
	if ev == nil {
		return nil, nil
	}
	if ev.Timestamp() < s.Clock {
		return ev, fmt.Errorf("drained %s at %g before clock %g: %w", ev.Kind(), ev.Timestamp(), s.Clock, ErrCausalityViolation)
	}
	s.Clock = ev.Timestamp()
	s.processed++
	logrus.Debugf("[t=%.3f] executing %s", s.Clock, ev.Kind())
	return ev, s.dispatch(ev)
}

func (s *Simulator) dispatch(ev Event) error {
	switch e := ev.(type) {
	case *TickEvent:
		return s.onTick(e)
	case *ConnectionUpEvent:
		return s.onConnectionUp(e)
	case *ConnectionDownEvent:
		return s.onConnectionDown(e)
	case *MessageCreateEvent:
		return s.onMessageCreate(e)
	case *TransferStartEvent:
		return s.nodes[e.Transfer.From].router.startTransfer(e.Transfer, e.time)
	case *TransferCompleteEvent:
		return s.nodes[e.Transfer.From].router.completeTransfer(e.Transfer, e.time)
	default:
		panic(fmt.Sprintf("dispatch: unhandled event type %T", ev))
	}
}

func (s *Simulator) onTick(e *TickEvent) error {
	transitions, err := s.world.Update(e.time)
	if err != nil {
		return err
	}
	if err := s.ScheduleAll(transitions); err != nil {
		return err
	}
	for _, n := range s.nodes {
		if err := n.router.Update(e.time); err != nil {
			return err
		}
	}
	if next := e.time + s.tickInterval; next <= s.Horizon {
		s.mustSchedule(NewTickEvent(next))
	}
	return nil
}

func (s *Simulator) checkPair(a, b NodeID) error {
	if a == b || !s.validNode(a) || !s.validNode(b) {
		return fmt.Errorf("%w: no connection between nodes %d and %d", ErrInvalidConfig, a, b)
	}
	return nil
}

func (s *Simulator) validNode(id NodeID) bool {
	return id >= 0 && int(id) < len(s.nodes)
}

func (s *Simulator) onConnectionUp(e *ConnectionUpEvent) error {
	if err := s.checkPair(e.A, e.B); err != nil {
		return err
	}
	if _, ok := s.world.connect(e.A, e.B, e.time, e.Source); !ok {
		return nil
	}
	a, b := s.nodes[e.A], s.nodes[e.B]
	s.emit(trace.Record{Time: e.time, Kind: trace.ConnectionUp, Node: int(a.id), Peer: int(b.id), Reason: string(e.Source)})
	if err := a.engine.OnContact(b, e.time); err != nil {
		return fmt.Errorf("node %d contact with %d: %w", a.id, b.id, err)
	}
	if err := b.engine.OnContact(a, e.time); err != nil {
		return fmt.Errorf("node %d contact with %d: %w", b.id, a.id, err)
	}
	a.router.contactUp(b, e.time)
	b.router.contactUp(a, e.time)
	return nil
}

func (s *Simulator) onConnectionDown(e *ConnectionDownEvent) error {
	if err := s.checkPair(e.A, e.B); err != nil {
		return err
	}
	if _, ok := s.world.disconnect(e.A, e.B, e.time, e.Source); !ok {
		return nil
	}
	a, b := s.nodes[e.A], s.nodes[e.B]
	s.emit(trace.Record{Time: e.time, Kind: trace.ConnectionDown, Node: int(a.id), Peer: int(b.id), Reason: string(e.Source)})
	a.router.contactDown(b.id, e.time)
	b.router.contactDown(a.id, e.time)
	if err := a.engine.OnContactEnd(b, e.time); err != nil {
		return fmt.Errorf("node %d contact end with %d: %w", a.id, b.id, err)
	}
	if err := b.engine.OnContactEnd(a, e.time); err != nil {
		return fmt.Errorf("node %d contact end with %d: %w", b.id, a.id, err)
	}
	return nil
}

func (s *Simulator) onMessageCreate(e *MessageCreateEvent) error {
	if !s.validNode(e.From) || !s.validNode(e.To) {
		return fmt.Errorf("%w: message %s between unknown nodes %d -> %d", ErrInvalidConfig, e.ID, e.From, e.To)
	}
	if e.From == e.To {
		logrus.Warnf("[%.3f] message %s addressed to its own source %d, ignored", e.time, e.ID, e.From)
		return nil
	}
	msg := NewMessage(e.ID, e.From, e.To, e.Size, e.time, s.ttl)
	return s.nodes[e.From].router.CreateMessage(msg, e.time)
}

// Now returns the current simulation time.
func (s *Simulator) Now() float64 { return s.Clock }

// Processed returns the number of events dispatched so far.
func (s *Simulator) Processed() int { return s.processed }

// Pending returns the number of queued events.
func (s *Simulator) Pending() int { return s.queue.Len() }

// Peek returns the next event without dispatching it.
func (s *Simulator) Peek() Event { return s.queue.Peek() }

// Nodes returns every node, indexed by NodeID.
func (s *Simulator) Nodes() []*Node { return s.nodes }

// Node returns the node with the given id. Panics on an unknown id.
func (s *Simulator) Node(id NodeID) *Node { return s.nodes[id] }

// World returns the connectivity state.
func (s *Simulator) World() *World { return s.world }

// RNG returns the run's partitioned random source.
func (s *Simulator) RNG() *PartitionedRNG { return s.rng }
