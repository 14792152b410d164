package social

import (
	"sort"

	"github.com/dtnsim/dtnsim/sim"
)

// Community is a node's view of its familiar set and local community.
// A peer becomes familiar once the cumulative contact time with it exceeds
// the familiar threshold; familiar peers belong to the local community.
// A met peer also joins the local community when at least lambda of its
// familiar set already belongs to ours.
type Community struct {
	self      sim.NodeID
	threshold float64
	lambda    float64
	familiar  map[sim.NodeID]bool
	local     map[sim.NodeID]bool
}

// NewCommunity creates a community containing only self.
func NewCommunity(self sim.NodeID, familiarThreshold, lambda float64) *Community {
	return &Community{
		self:      self,
		threshold: familiarThreshold,
		lambda:    lambda,
		familiar:  make(map[sim.NodeID]bool),
		local:     map[sim.NodeID]bool{self: true},
	}
}

// Meet applies the community admission rule for peer, whose familiar set is
// given by other.
func (c *Community) Meet(peer sim.NodeID, other *Community) {
	if c.local[peer] || len(other.familiar) == 0 {
		return
	}
	shared := 0
	for f := range other.familiar {
		if c.local[f] {
			shared++
		}
	}
	if float64(shared)/float64(len(other.familiar)) >= c.lambda {
		c.local[peer] = true
	}
}

// Observe promotes peer to the familiar set once totalDuration exceeds the threshold.
func (c *Community) Observe(peer sim.NodeID, totalDuration float64) {
	if totalDuration > c.threshold {
		c.familiar[peer] = true
		c.local[peer] = true
	}
}

// Contains reports whether id belongs to the local community.
func (c *Community) Contains(id sim.NodeID) bool { return c.local[id] }

// IsFamiliar reports whether id is in the familiar set.
func (c *Community) IsFamiliar(id sim.NodeID) bool { return c.familiar[id] }

// Members returns the local community, ascending.
func (c *Community) Members() []sim.NodeID { return sortedKeys(c.local) }

// Familiar returns the familiar set, ascending.
func (c *Community) Familiar() []sim.NodeID { return sortedKeys(c.familiar) }

func sortedKeys(m map[sim.NodeID]bool) []sim.NodeID {
	out := make([]sim.NodeID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
