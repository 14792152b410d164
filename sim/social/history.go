// Package social keeps the relationship state used by the social-aware
// decision engines: who met whom and for how long, local communities,
// windowed centrality and PeopleRank over a friendship graph.
package social

import (
	"sort"

	"github.com/dtnsim/dtnsim/sim"
)

// Interval is one closed contact.
type Interval struct {
	Start, End float64
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// History is one node's record of its contacts with every peer.
type History struct {
	open       map[sim.NodeID]float64
	closed     map[sim.NodeID][]Interval
	total      map[sim.NodeID]float64
	encounters map[sim.NodeID]int
	lastSeen   map[sim.NodeID]float64
}

// NewHistory creates an empty contact history.
func NewHistory() *History {
	return &History{
		open:       make(map[sim.NodeID]float64),
		closed:     make(map[sim.NodeID][]Interval),
		total:      make(map[sim.NodeID]float64),
		encounters: make(map[sim.NodeID]int),
		lastSeen:   make(map[sim.NodeID]float64),
	}
}

// Begin opens a contact with peer. A contact that is already open is left alone.
func (h *History) Begin(peer sim.NodeID, now float64) {
	if _, ok := h.open[peer]; ok {
		return
	}
	h.open[peer] = now
	h.encounters[peer]++
	h.lastSeen[peer] = now
}

// End closes the open contact with peer and returns it. ok is false if no
// contact was open.
func (h *History) End(peer sim.NodeID, now float64) (iv Interval, ok bool) {
	start, ok := h.open[peer]
	if !ok {
		return Interval{}, false
	}
	delete(h.open, peer)
	iv = Interval{Start: start, End: now}
	if now > start {
		h.closed[peer] = append(h.closed[peer], iv)
		h.total[peer] += iv.Duration()
	}
	h.lastSeen[peer] = now
	return iv, true
}

// InContact reports whether a contact with peer is open.
func (h *History) InContact(peer sim.NodeID) bool {
	_, ok := h.open[peer]
	return ok
}

// LastSeen returns the last time peer was in contact, which is now while a
// contact is open. ok is false if the peer was never met.
func (h *History) LastSeen(peer sim.NodeID, now float64) (float64, bool) {
	if _, open := h.open[peer]; open {
		return now, true
	}
	t, ok := h.lastSeen[peer]
	return t, ok
}

// Encounters returns how many contacts with peer have begun.
func (h *History) Encounters(peer sim.NodeID) int { return h.encounters[peer] }

// TotalDuration returns the cumulative contact time with peer, counting an
// open contact up to now.
func (h *History) TotalDuration(peer sim.NodeID, now float64) float64 {
	d := h.total[peer]
	if start, ok := h.open[peer]; ok && now > start {
		d += now - start
	}
	return d
}

// Intervals returns the closed contacts with peer, oldest first.
func (h *History) Intervals(peer sim.NodeID) []Interval {
	return h.closed[peer]
}

// Peers returns every peer ever met, ascending.
func (h *History) Peers() []sim.NodeID {
	out := make([]sim.NodeID, 0, len(h.encounters))
	for p := range h.encounters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
