package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// Transfer is one in-flight copy of a message over one direction of a
// connection. At most one transfer per (sender, peer) direction is active.
type Transfer struct {
	From, To NodeID
	Message  *Message // the sender's resident copy
	Decision Decision
	Started  float64

	started   bool
	cancelled bool
	reserved  int // spray copies taken from the sender while in flight
}

// Reserved returns the spray copies held by the transfer while in flight.
func (t *Transfer) Reserved() int { return t.reserved }

// MessageRouter runs the transfer protocol for one node. It is the same for
// every protocol; all protocol-specific choices are delegated to the node's
// DecisionEngine.
type MessageRouter struct {
	sim    *Simulator
	node   *Node
	engine DecisionEngine

	queues     map[NodeID][]string  // peer → queued message ids
	active     map[NodeID]*Transfer // peer → outgoing transfer
	delivered  map[string]bool      // ids delivered to this node
	tombstones map[string]bool      // ids known to be delivered somewhere
	duplicates int
}

func newMessageRouter(s *Simulator, n *Node, engine DecisionEngine) *MessageRouter {
	return &MessageRouter{
		sim:        s,
		node:       n,
		engine:     engine,
		queues:     make(map[NodeID][]string),
		active:     make(map[NodeID]*Transfer),
		delivered:  make(map[string]bool),
		tombstones: make(map[string]bool),
	}
}

// Delivered reports whether message id has been delivered to this node.
func (r *MessageRouter) Delivered(id string) bool { return r.delivered[id] }

// Duplicates counts deliveries of messages this node had already received.
func (r *MessageRouter) Duplicates() int { return r.duplicates }

// Active returns the outgoing transfer towards peer, or nil.
func (r *MessageRouter) Active(peer NodeID) *Transfer { return r.active[peer] }

// Queued returns the ids waiting for a transfer slot towards peer.
func (r *MessageRouter) Queued(peer NodeID) []string {
	return append([]string(nil), r.queues[peer]...)
}

func (r *MessageRouter) emit(now float64, kind trace.Kind, peer NodeID, m *Message, reason string) {
	rec := trace.Record{Time: now, Kind: kind, Node: int(r.node.id), Peer: int(peer)}
	if m != nil {
		rec.MessageID = m.ID
		rec.Copies = m.Meta.Copies
		rec.Hops = m.HopCount()
	}
	rec.Reason = reason
	r.sim.emit(rec)
}

// CreateMessage originates msg at this node and offers it to every
// connected peer.
func (r *MessageRouter) CreateMessage(msg *Message, now float64) error {
	if r.node.buffer.Has(msg.ID) || r.delivered[msg.ID] {
		logrus.Warnf("[%.3f] node %d: message %s already known, creation ignored", now, r.node.id, msg.ID)
		return nil
	}
	if err := r.engine.OnNewMessage(msg); err != nil {
		return fmt.Errorf("node %d: new message %s: %w", r.node.id, msg.ID, err)
	}
	r.emit(now, trace.MessageCreated, NoPeer, msg, "")
	evicted, err := r.node.buffer.Admit(msg, now)
	r.reportEvicted(evicted, now)
	if err != nil {
		logrus.Debugf("[%.3f] node %d: %v", now, r.node.id, err)
		_ = msg.Transition(StateDropped)
		r.emit(now, trace.MessageDropped, NoPeer, msg, string(ReasonOverflow))
		return nil
	}
	if err := msg.Transition(StateHeld); err != nil {
		return err
	}
	for _, peer := range r.sim.world.Neighbors(r.node.id) {
		r.offer(msg, peer, now)
		r.pump(peer, now)
	}
	return nil
}

func (r *MessageRouter) reportEvicted(evicted []*Message, now float64) {
	for _, m := range evicted {
		r.retire(m, ReasonEvicted, now)
	}
}

// removeMessage drops the resident copy of id for reason.
func (r *MessageRouter) removeMessage(id string, reason DropReason, now float64) {
	m := r.node.buffer.Remove(id)
	if m == nil {
		return
	}
	r.retire(m, reason, now)
}

// retire finishes a copy that already left the buffer: in-flight transfers of
// it are cancelled, its state is closed and the outward event emitted.
func (r *MessageRouter) retire(m *Message, reason DropReason, now float64) {
	var idle []NodeID
	for _, peer := range r.sim.world.Neighbors(r.node.id) {
		if t := r.active[peer]; t != nil && t.Message.ID == m.ID {
			r.cancel(peer, now, reason)
			idle = append(idle, peer)
		}
	}
	state := StateDropped
	switch reason {
	case ReasonExpired:
		state = StateExpired
	case ReasonEvicted:
		state = StateEvicted
	case ReasonDelivered:
		state = StateDelivered
	}
	if err := m.Transition(state); err != nil {
		logrus.Warnf("[%.3f] node %d: %v", now, r.node.id, err)
	}
	if reason == ReasonExpired {
		r.emit(now, trace.MessageExpired, NoPeer, m, "")
	} else {
		r.emit(now, trace.MessageDropped, NoPeer, m, string(reason))
	}
	for _, peer := range idle {
		r.pump(peer, now)
	}
}

// cancel voids the outgoing transfer towards peer. Reserved spray copies
// return to the sender.
func (r *MessageRouter) cancel(peer NodeID, now float64, reason DropReason) {
	t := r.active[peer]
	if t == nil {
		return
	}
	t.cancelled = true
	delete(r.active, peer)
	t.Message.Meta.Copies += t.reserved
	t.reserved = 0
	if t.started {
		r.emit(now, trace.TransferAborted, peer, t.Message, string(reason))
	}
}

// contactUp runs the inventory exchange with a newly connected peer and
// queues what the engine wants to send. Both engines have already run
// OnContact.
func (r *MessageRouter) contactUp(peer *Node, now float64) {
	if r.sim.tombstones {
		for id := range peer.router.tombstones {
			r.tombstones[id] = true
		}
		for _, id := range r.node.buffer.IDs() {
			if r.tombstones[id] {
				r.removeMessage(id, ReasonTombstone, now)
			}
		}
	}
	for _, m := range r.node.buffer.Messages() {
		r.offer(m, peer.id, now)
	}
	r.pump(peer.id, now)
}

// contactDown aborts the transfer towards peer and forgets its queue.
func (r *MessageRouter) contactDown(peer NodeID, now float64) {
	r.cancel(peer, now, ReasonLinkDown)
	delete(r.queues, peer)
}

// offer queues m for peer if the peer lacks it and the engine agrees.
func (r *MessageRouter) offer(m *Message, peerID NodeID, now float64) {
	peer := r.sim.nodes[peerID]
	if !r.wanted(m, peer, now) {
		return
	}
	if r.engine.ShouldForward(m, peer, now).Action == Skip {
		return
	}
	for _, id := range r.queues[peerID] {
		if id == m.ID {
			return
		}
	}
	r.queues[peerID] = append(r.queues[peerID], m.ID)
}

// wanted reports whether peer could take m at all, independent of the engine.
func (r *MessageRouter) wanted(m *Message, peer *Node, now float64) bool {
	if m.Expired(now) || peer.Has(m.ID) || peer.router.delivered[m.ID] {
		return false
	}
	if r.sim.tombstones && peer.router.tombstones[m.ID] {
		return false
	}
	return r.node.buffer.Get(m.ID) == m
}

// pump starts the next queued transfer towards peer if the direction is idle.
func (r *MessageRouter) pump(peerID NodeID, now float64) {
	if r.active[peerID] != nil || !r.sim.world.IsUp(r.node.id, peerID) {
		return
	}
	peer := r.sim.nodes[peerID]
	queue := r.queues[peerID]
	best := -1
	var bestMsg *Message
	kept := queue[:0]
	for _, id := range queue {
		m := r.node.buffer.Get(id)
		if m == nil || !r.wanted(m, peer, now) {
			continue
		}
		kept = append(kept, id)
		if bestMsg == nil || r.before(m, bestMsg, peer, now) {
			best, bestMsg = len(kept)-1, m
		}
	}
	if bestMsg == nil {
		delete(r.queues, peerID)
		return
	}
	r.queues[peerID] = append(kept[:best], kept[best+1:]...)
	t := &Transfer{From: r.node.id, To: peerID, Message: bestMsg}
	r.active[peerID] = t
	r.sim.mustSchedule(&TransferStartEvent{time: now, Transfer: t})
}

// before orders queued messages for peer: messages addressed to the peer
// first, then engine priority, then nearest deadline, oldest, lowest id.
func (r *MessageRouter) before(a, b *Message, peer *Node, now float64) bool {
	da, db := a.Destination == peer.id, b.Destination == peer.id
	if da != db {
		return da
	}
	if o, ok := r.engine.(Orderer); ok {
		pa, pb := o.Priority(a, peer, now), o.Priority(b, peer, now)
		if pa != pb {
			return pa > pb
		}
	}
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	if a.Created != b.Created {
		return a.Created < b.Created
	}
	return a.ID < b.ID
}

// startTransfer re-checks the queued decision and, if it still holds,
// puts the copy on the wire.
func (r *MessageRouter) startTransfer(t *Transfer, now float64) error {
	if t.cancelled || r.active[t.To] != t {
		return nil
	}
	peer := r.sim.nodes[t.To]
	m := t.Message
	if m.Meta.Copies < 0 {
		return fmt.Errorf("node %d: %s holds %d copies: %w", r.node.id, m.ID, m.Meta.Copies, ErrProtocolState)
	}
	d := SkipDecision("stale")
	if r.wanted(m, peer, now) {
		d = r.engine.ShouldForward(m, peer, now)
	}
	if d.Action == Skip {
		delete(r.active, t.To)
		r.pump(t.To, now)
		return nil
	}
	if d.Action == ForwardAndSplit {
		if d.Copies < 1 || d.Copies > m.Meta.Copies {
			return fmt.Errorf("node %d: split %d of %d copies of %s to %d: %w",
				r.node.id, d.Copies, m.Meta.Copies, m.ID, t.To, ErrProtocolState)
		}
		m.Meta.Copies -= d.Copies
		t.reserved = d.Copies
	}
	t.Decision, t.Started, t.started = d, now, true
	conn := r.sim.world.Connection(r.node.id, t.To)
	logrus.WithFields(logrus.Fields{
		"time": now, "from": t.From, "to": t.To, "msg": m.ID, "action": d.Action, "reason": d.Reason,
	}).Debug("transfer started")
	r.emit(now, trace.TransferStarted, t.To, m, "")
	r.sim.mustSchedule(&TransferCompleteEvent{time: now + conn.TransferTime(m.Size), Transfer: t})
	return nil
}

// receiveOutcome is the receiver's verdict on a completed transfer.
type receiveOutcome int

const (
	outcomeAccepted receiveOutcome = iota
	outcomeDelivered
	outcomeRejected
)

// completeTransfer lands the copy at the peer and settles the sender side.
func (r *MessageRouter) completeTransfer(t *Transfer, now float64) error {
	if t.cancelled || r.active[t.To] != t {
		return nil
	}
	delete(r.active, t.To)
	peer := r.sim.nodes[t.To]
	m := t.Message

	rc := m.Replicate()
	rc.Hops = append(rc.Hops, peer.id)
	rc.ReceivedAt = now
	if t.Decision.Action == ForwardAndSplit {
		rc.Meta.Copies = t.reserved
	}
	r.emit(now, trace.TransferCompleted, t.To, rc, "")

	outcome, err := peer.router.receive(rc, r.node, now)
	if err != nil {
		return err
	}
	switch outcome {
	case outcomeRejected:
		m.Meta.Copies += t.reserved
	case outcomeDelivered:
		if r.sim.deleteDelivered {
			r.removeMessage(m.ID, ReasonDelivered, now)
		}
	case outcomeAccepted:
		if m.Meta.Copies < 0 {
			return fmt.Errorf("node %d: %s left with %d copies: %w", r.node.id, m.ID, m.Meta.Copies, ErrProtocolState)
		}
		spent := t.Decision.Action == ForwardAndSplit && m.Meta.Copies == 0
		if spent || r.engine.ShouldDeleteSent(m, peer) {
			r.removeMessage(m.ID, ReasonForwarded, now)
		}
	}
	t.reserved = 0
	r.pump(t.To, now)
	return nil
}

// receive handles a copy arriving from sender.
func (r *MessageRouter) receive(m *Message, sender *Node, now float64) (receiveOutcome, error) {
	if m.Destination == r.node.id {
		if r.delivered[m.ID] {
			r.duplicates++
			logrus.Debugf("[%.3f] node %d: duplicate delivery of %s from %d", now, r.node.id, m.ID, sender.id)
			return outcomeDelivered, nil
		}
		r.delivered[m.ID] = true
		if r.sim.tombstones {
			r.tombstones[m.ID] = true
		}
		if err := m.Transition(StateDelivered); err != nil {
			return outcomeRejected, err
		}
		rec := trace.Record{
			Time: now, Kind: trace.MessageDelivered, Node: int(r.node.id), Peer: int(sender.id),
			MessageID: m.ID, Copies: m.Meta.Copies, Hops: m.HopCount(), Created: m.Created,
		}
		r.sim.emit(rec)
		return outcomeDelivered, nil
	}

	var reason DropReason
	switch {
	case r.sim.tombstones && r.tombstones[m.ID]:
		reason = ReasonTombstone
	case r.node.buffer.Has(m.ID):
		reason = ReasonDuplicate
	case m.Expired(now):
		reason = ReasonStale
	}
	if reason != "" {
		_ = m.Transition(StateDropped)
		r.emit(now, trace.MessageDropped, sender.id, m, string(reason))
		return outcomeRejected, nil
	}

	evicted, err := r.node.buffer.Admit(m, now)
	r.reportEvicted(evicted, now)
	if err != nil {
		logrus.Debugf("[%.3f] node %d: %v", now, r.node.id, err)
		_ = m.Transition(StateDropped)
		r.emit(now, trace.MessageDropped, sender.id, m, string(ReasonOverflow))
		return outcomeRejected, nil
	}
	if err := m.Transition(StateHeld); err != nil {
		return outcomeRejected, err
	}
	r.engine.OnReceived(m, sender, now)
	for _, peer := range r.sim.world.Neighbors(r.node.id) {
		if peer == sender.id {
			continue
		}
		r.offer(m, peer, now)
		r.pump(peer, now)
	}
	return outcomeAccepted, nil
}

// Update expires messages whose TTL ran out, then lets the engine run its
// periodic bookkeeping.
func (r *MessageRouter) Update(now float64) error {
	for _, m := range r.node.buffer.Expired(now) {
		r.removeMessage(m.ID, ReasonExpired, now)
	}
	if err := r.engine.OnTick(now); err != nil {
		return fmt.Errorf("node %d: tick: %w", r.node.id, err)
	}
	return nil
}
