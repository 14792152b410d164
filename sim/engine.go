package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// Action is the outcome of a forwarding decision.
type Action int

const (
	// Skip keeps the message away from the peer.
	Skip Action = iota
	// Forward hands the peer a full copy; the sender's copy is unaffected.
	Forward
	// ForwardAndSplit hands the peer Copies of the sender's spray count.
	// The sender keeps the remainder and drops its copy when none remain.
	ForwardAndSplit
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Forward:
		return "forward"
	case ForwardAndSplit:
		return "forwardAndSplit"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Decision encapsulates a forwarding decision for one message and one peer.
type Decision struct {
	Action Action
	Copies int // only meaningful for ForwardAndSplit
	Reason string
}

// SkipDecision, ForwardDecision and SplitDecision build the three decision shapes.
func SkipDecision(reason string) Decision    { return Decision{Action: Skip, Reason: reason} }
func ForwardDecision(reason string) Decision { return Decision{Action: Forward, Reason: reason} }
func SplitDecision(copies int, reason string) Decision {
	return Decision{Action: ForwardAndSplit, Copies: copies, Reason: reason}
}

// Peer is the view a decision engine gets of a node, either its own node or
// the node on the other end of a contact.
type Peer interface {
	ID() NodeID
	// Engine returns the node's decision engine. Engines type-assert it to
	// their own concrete type to exchange relationship state.
	Engine() DecisionEngine
	// Has reports whether the node currently buffers message id.
	Has(id string) bool
	FreeBuffer() int64
	Position() Coord
	// Speed is the node's most recently observed speed in m/s, 0 if unknown.
	Speed() float64
}

// DecisionEngine is the per-node, protocol-specific half of routing. The
// MessageRouter consults it at each step of the transfer protocol and never
// branches on which engine it is talking to.
type DecisionEngine interface {
	Name() RouterKind
	// OnNewMessage initializes routing metadata for a message created at this node.
	OnNewMessage(msg *Message) error
	// OnContact exchanges relationship state with peer when a connection comes up.
	OnContact(peer Peer, now float64) error
	// OnContactEnd closes the contact with peer.
	OnContactEnd(peer Peer, now float64) error
	// ShouldForward decides whether peer should receive msg.
	ShouldForward(msg *Message, peer Peer, now float64) Decision
	// OnReceived records a relay copy admitted from a neighbor.
	OnReceived(msg *Message, from Peer, now float64)
	// ShouldDeleteSent reports whether the sender drops its copy after
	// successfully handing msg to peer.
	ShouldDeleteSent(msg *Message, peer Peer) bool
	// OnTick runs periodic bookkeeping such as aging and rank refresh.
	OnTick(now float64) error
}

// Orderer is implemented by engines that rank queued messages for a peer.
// Higher priority transfers first; ties fall back to the default order.
type Orderer interface {
	Priority(msg *Message, peer Peer, now float64) float64
}

// EngineFactory builds the decision engine of node self. rng is the node's
// own deterministic stream.
type EngineFactory func(self Peer, params ProtocolParams, rng *rand.Rand) (DecisionEngine, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[RouterKind]EngineFactory)
)

// RegisterDecisionEngine makes an engine available by name. Registering the
// same name twice or an unknown name panics.
func RegisterDecisionEngine(kind RouterKind, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if !ValidRouters[kind] {
		panic(fmt.Sprintf("RegisterDecisionEngine: unknown router %q", kind))
	}
	if _, dup := engines[kind]; dup {
		panic(fmt.Sprintf("RegisterDecisionEngine: %q registered twice", kind))
	}
	engines[kind] = factory
}

// RegisteredEngines lists the registered engine names, sorted.
func RegisteredEngines() []RouterKind {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	out := make([]RouterKind, 0, len(engines))
	for k := range engines {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lookupEngine(kind RouterKind) (EngineFactory, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	f, ok := engines[kind]
	if !ok {
		return nil, fmt.Errorf("%w: router %q has no registered engine (is sim/decision imported?)", ErrInvalidConfig, kind)
	}
	return f, nil
}
