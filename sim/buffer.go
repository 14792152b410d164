package sim

import (
	"fmt"
)

// EvictionPolicy selects the victim when a buffer has to make room.
type EvictionPolicy string

const (
	// EvictShortestTTL evicts the message with the least remaining TTL,
	// oldest-created first on ties.
	EvictShortestTTL EvictionPolicy = "ttl"
	// EvictFIFO evicts the message that entered the buffer first.
	EvictFIFO EvictionPolicy = "fifo"
)

// ValidEvictionPolicies is the set of recognized eviction policy names.
var ValidEvictionPolicies = map[EvictionPolicy]bool{"": true, EvictShortestTTL: true, EvictFIFO: true}

// DropReason says why a message copy left a buffer.
type DropReason string

const (
	ReasonDelivered DropReason = "delivered" // destination got it; sender purges its copy
	ReasonExpired   DropReason = "expired"
	ReasonEvicted   DropReason = "evicted"
	ReasonOverflow  DropReason = "overflow"  // could not be admitted even after eviction
	ReasonForwarded DropReason = "forwarded" // ownership handed to the peer
	ReasonTombstone DropReason = "tombstone" // known to be delivered elsewhere
	ReasonDuplicate DropReason = "duplicate" // receiver already held the copy
	ReasonStale     DropReason = "stale"     // arrived with no TTL left
	ReasonLinkDown  DropReason = "linkDown"  // transfer aborted by connection loss
)

// Buffer is the bounded per-node message store. The sum of resident message
// sizes never exceeds Capacity.
type Buffer struct {
	capacity int64
	used     int64
	policy   EvictionPolicy
	order    []string // insertion order, for deterministic iteration
	messages map[string]*Message
}

// NewBuffer creates an empty buffer. Panics if capacity is not positive.
func NewBuffer(capacity int64, policy EvictionPolicy) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewBuffer: capacity must be > 0, got %d", capacity))
	}
	if policy == "" {
		policy = EvictShortestTTL
	}
	return &Buffer{
		capacity: capacity,
		policy:   policy,
		messages: make(map[string]*Message),
	}
}

// Admit inserts msg, evicting resident messages per the eviction policy when
// space is short. Evicted messages are returned so the caller can report them.
// A message larger than the whole buffer is rejected with ErrBufferOverflow and
// nothing is evicted.
func (b *Buffer) Admit(msg *Message, now float64) ([]*Message, error) {
	if _, ok := b.messages[msg.ID]; ok {
		return nil, fmt.Errorf("buffer: message %s already resident", msg.ID)
	}
	if msg.Size > b.capacity {
		return nil, fmt.Errorf("admit %s (%d bytes, capacity %d): %w", msg.ID, msg.Size, b.capacity, ErrBufferOverflow)
	}
	var evicted []*Message
	for b.Free() < msg.Size {
		victim := b.victim()
		if victim == nil {
			return evicted, fmt.Errorf("admit %s: %w", msg.ID, ErrBufferOverflow)
		}
		evicted = append(evicted, b.Remove(victim.ID))
	}
	b.messages[msg.ID] = msg
	b.order = append(b.order, msg.ID)
	b.used += msg.Size
	return evicted, nil
}

// victim picks the next message to evict, or nil if the buffer is empty.
func (b *Buffer) victim() *Message {
	if len(b.order) == 0 {
		return nil
	}
	if b.policy == EvictFIFO {
		return b.messages[b.order[0]]
	}
	var best *Message
	for _, id := range b.order {
		m := b.messages[id]
		if best == nil || evictsBefore(m, best) {
			best = m
		}
	}
	return best
}

// evictsBefore orders by deadline, then creation time, then id.
func evictsBefore(a, c *Message) bool {
	if a.Deadline != c.Deadline {
		return a.Deadline < c.Deadline
	}
	if a.Created != c.Created {
		return a.Created < c.Created
	}
	return a.ID < c.ID
}

// Remove deletes the message with the given id and returns it, or nil if absent.
func (b *Buffer) Remove(id string) *Message {
	m, ok := b.messages[id]
	if !ok {
		return nil
	}
	delete(b.messages, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.used -= m.Size
	return m
}

// Has reports whether a copy of id is resident.
func (b *Buffer) Has(id string) bool {
	_, ok := b.messages[id]
	return ok
}

// Get returns the resident copy of id, or nil.
func (b *Buffer) Get(id string) *Message {
	return b.messages[id]
}

// Messages returns resident messages in insertion order.
func (b *Buffer) Messages() []*Message {
	out := make([]*Message, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.messages[id])
	}
	return out
}

// IDs returns resident message ids in insertion order.
func (b *Buffer) IDs() []string {
	return append([]string(nil), b.order...)
}

// Expired returns resident messages whose TTL has run out at now.
func (b *Buffer) Expired(now float64) []*Message {
	var out []*Message
	for _, id := range b.order {
		if m := b.messages[id]; m.Expired(now) {
			out = append(out, m)
		}
	}
	return out
}

func (b *Buffer) Len() int        { return len(b.order) }
func (b *Buffer) Used() int64     { return b.used }
func (b *Buffer) Capacity() int64 { return b.capacity }
func (b *Buffer) Free() int64     { return b.capacity - b.used }
