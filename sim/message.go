// Defines the Message struct that models a single DTN bundle in the simulation.
// Tracks identity, size, TTL deadline, hop history and per-protocol routing metadata.

package sim

import (
	"fmt"
)

// MessageState represents the lifecycle state of one copy of a message.
type MessageState string

const (
	StateCreated   MessageState = "created"   // constructed, not yet resident in a buffer
	StateHeld      MessageState = "held"      // resident in a node's buffer
	StateDelivered MessageState = "delivered" // reached its destination (terminal)
	StateExpired   MessageState = "expired"   // TTL reached zero (terminal)
	StateEvicted   MessageState = "evicted"   // removed under buffer pressure (terminal)
	StateDropped   MessageState = "dropped"   // rejected or purged for another reason (terminal)
)

// validTransitions lists the legal state changes of a message copy.
// Copies in flight stay in StateCreated until the receiver admits them.
var validTransitions = map[MessageState]map[MessageState]bool{
	StateCreated: {StateHeld: true, StateDelivered: true, StateDropped: true},
	StateHeld:    {StateDelivered: true, StateExpired: true, StateEvicted: true, StateDropped: true},
}

// MessageMeta holds per-protocol routing metadata carried with a copy.
type MessageMeta struct {
	Copies         int     // remaining spray copies held by this copy's owner
	Predictability float64 // holder's delivery predictability for Destination when the copy was received
	Utility        float64 // holder's freshness score for Destination when the copy was created or received, in [0,1]
}

// Message is one copy of a DTN message. Identity (ID, Source, Destination, Size,
// Created, Deadline) is shared by all copies; Hops, Meta, ReceivedAt and State
// belong to the copy.
type Message struct {
	ID          string
	Source      NodeID
	Destination NodeID
	Size        int64   // bytes
	Created     float64 // simulation seconds
	Deadline    float64 // Created + TTL; the copy expires once the clock reaches it

	Hops       []NodeID // nodes visited, starting with Source
	Meta       MessageMeta
	ReceivedAt float64 // time this copy entered its current holder
	State      MessageState
}

// NewMessage creates a message at its source with the given TTL in seconds.
func NewMessage(id string, source, destination NodeID, size int64, created, ttl float64) *Message {
	return &Message{
		ID:          id,
		Source:      source,
		Destination: destination,
		Size:        size,
		Created:     created,
		Deadline:    created + ttl,
		Hops:        []NodeID{source},
		ReceivedAt:  created,
		State:       StateCreated,
	}
}

// RemainingTTL returns the seconds left before the message expires. It never
// increases as now advances.
func (m *Message) RemainingTTL(now float64) float64 {
	return m.Deadline - now
}

// Expired reports whether the remaining TTL is zero or negative.
func (m *Message) Expired(now float64) bool {
	return m.RemainingTTL(now) <= 0
}

// HasVisited reports whether id appears in the hop history.
func (m *Message) HasVisited(id NodeID) bool {
	for _, h := range m.Hops {
		if h == id {
			return true
		}
	}
	return false
}

// HopCount is the number of relays the copy went through.
func (m *Message) HopCount() int {
	return len(m.Hops) - 1
}

// Replicate returns a logical copy of m with independent hop history and
// metadata, ready to be handed to another node.
func (m *Message) Replicate() *Message {
	c := *m
	c.Hops = append(make([]NodeID, 0, len(m.Hops)+1), m.Hops...)
	c.State = StateCreated
	return &c
}

// Transition moves the copy to state to, rejecting illegal transitions
// such as leaving a terminal state.
func (m *Message) Transition(to MessageState) error {
	if !validTransitions[m.State][to] {
		return fmt.Errorf("message %s: illegal transition %s -> %s", m.ID, m.State, to)
	}
	m.State = to
	return nil
}

// This method returns a human-readable string representation of a Message.
func (m Message) String() string {
	return fmt.Sprintf("Message: (ID: %s, %d->%d, Size: %d, State: %s, Deadline: %.1f)",
		m.ID, m.Source, m.Destination, m.Size, m.State, m.Deadline)
}
