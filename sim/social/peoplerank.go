package social

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/dtnsim/dtnsim/sim"
)

// FriendGraph is a node's observed friendship graph: its own friend list plus
// the lists learned from peers, each stamped with the time it was produced.
type FriendGraph struct {
	adj   map[sim.NodeID][]sim.NodeID
	stamp map[sim.NodeID]float64
}

// NewFriendGraph creates an empty graph.
func NewFriendGraph() *FriendGraph {
	return &FriendGraph{
		adj:   make(map[sim.NodeID][]sim.NodeID),
		stamp: make(map[sim.NodeID]float64),
	}
}

// SetFriends replaces the friend list of node, stamped at.
func (g *FriendGraph) SetFriends(node sim.NodeID, friends []sim.NodeID, at float64) {
	list := append([]sim.NodeID(nil), friends...)
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	g.adj[node] = list
	g.stamp[node] = at
}

// Friends returns the friend list of node, ascending.
func (g *FriendGraph) Friends(node sim.NodeID) []sim.NodeID { return g.adj[node] }

// Merge adopts every list in other that is newer than ours. The list of
// self is never overwritten.
func (g *FriendGraph) Merge(other *FriendGraph, self sim.NodeID) {
	for node, list := range other.adj {
		if node == self {
			continue
		}
		if at, ok := g.stamp[node]; ok && at >= other.stamp[node] {
			continue
		}
		g.adj[node] = list
		g.stamp[node] = other.stamp[node]
	}
}

// Within returns the subgraph induced by members: every member is a node,
// and friendships leaving the set are dropped.
func (g *FriendGraph) Within(members []sim.NodeID) *FriendGraph {
	in := make(map[sim.NodeID]bool, len(members))
	for _, m := range members {
		in[m] = true
	}
	sub := NewFriendGraph()
	for _, m := range members {
		var list []sim.NodeID
		for _, f := range g.adj[m] {
			if in[f] {
				list = append(list, f)
			}
		}
		sub.adj[m] = list
		sub.stamp[m] = g.stamp[m]
	}
	return sub
}

// Nodes returns every node that has a list or appears in one, ascending.
func (g *FriendGraph) Nodes() []sim.NodeID {
	set := make(map[sim.NodeID]bool)
	for node, list := range g.adj {
		set[node] = true
		for _, f := range list {
			set[f] = true
		}
	}
	return sortedKeys(set)
}

// Rank computes PeopleRank over the undirected closure of the graph:
//
//	PeR(i) = (1-d)/N + d * Σ_{j ∈ F(i)} PeR(j) / |F(j)|
//
// by power iteration from the uniform vector, until the L1 change drops
// below tol or maxIter rounds ran. Every rank lies in [0,1]; a value
// outside that range is reported as ErrProtocolState.
func (g *FriendGraph) Rank(damping, tol float64, maxIter int) (map[sim.NodeID]float64, error) {
	nodes := g.Nodes()
	n := len(nodes)
	out := make(map[sim.NodeID]float64, n)
	if n == 0 {
		return out, nil
	}
	index := make(map[sim.NodeID]int, n)
	for i, id := range nodes {
		index[id] = i
	}
	neighbors := make([]map[int]bool, n)
	for i := range neighbors {
		neighbors[i] = make(map[int]bool)
	}
	for node, list := range g.adj {
		a := index[node]
		for _, f := range list {
			if b := index[f]; a != b {
				neighbors[a][b] = true
				neighbors[b][a] = true
			}
		}
	}
	adj := make([][]int, n)
	for i, set := range neighbors {
		for j := range set {
			adj[i] = append(adj[i], j)
		}
		sort.Ints(adj[i])
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	base := (1 - damping) / float64(n)
	for iter := 0; iter < maxIter; iter++ {
		for i := range next {
			sigma := 0.0
			for _, j := range adj[i] {
				sigma += rank[j] / float64(len(adj[j]))
			}
			next[i] = base + damping*sigma
		}
		delta := floats.Distance(rank, next, 1)
		rank, next = next, rank
		if delta < tol {
			break
		}
	}
	if lo, hi := floats.Min(rank), floats.Max(rank); lo < 0 || hi > 1 || math.IsNaN(lo) || math.IsNaN(hi) {
		return nil, fmt.Errorf("peoplerank out of [0,1]: min %g max %g: %w", lo, hi, sim.ErrProtocolState)
	}
	for i, id := range nodes {
		out[id] = rank[i]
	}
	return out, nil
}

// RankTracker maintains one node's friend list, observed graph and cached
// PeopleRank values.
type RankTracker struct {
	self   sim.NodeID
	params sim.PeopleRankParams
	graph  *FriendGraph
	ranks  map[sim.NodeID]float64
	last   float64

	local     float64 // own rank within the community subgraph
	lastLocal float64
}

// NewRankTracker creates a tracker for node self.
func NewRankTracker(self sim.NodeID, params sim.PeopleRankParams) *RankTracker {
	return &RankTracker{
		self:   self,
		params: params,
		graph:  NewFriendGraph(),
		ranks:  make(map[sim.NodeID]float64),
		last:   math.Inf(-1),

		lastLocal: math.Inf(-1),
	}
}

// IsFriend applies the friendship rule to the contact history with peer.
func (t *RankTracker) IsFriend(h *History, peer sim.NodeID, now float64) bool {
	if t.params.Mode == sim.FriendByFrequency {
		return float64(h.Encounters(peer)) >= t.params.FriendThreshold
	}
	return h.TotalDuration(peer, now) >= t.params.FriendThreshold
}

// Observe rebuilds the node's own friend list from h.
func (t *RankTracker) Observe(h *History, now float64) {
	var friends []sim.NodeID
	for _, p := range h.Peers() {
		if t.IsFriend(h, p, now) {
			friends = append(friends, p)
		}
	}
	t.graph.SetFriends(t.self, friends, now)
}

// Exchange adopts the newer friend lists known to peer.
func (t *RankTracker) Exchange(peer *RankTracker) {
	t.graph.Merge(peer.graph, t.self)
}

// Refresh recomputes ranks if computeInterval has passed since the last run.
func (t *RankTracker) Refresh(now float64) error {
	if now-t.last < t.params.ComputeInterval {
		return nil
	}
	ranks, err := t.graph.Rank(t.params.Damping, t.params.Tolerance, t.params.MaxIterations)
	if err != nil {
		return fmt.Errorf("node %d: %w", t.self, err)
	}
	t.ranks, t.last = ranks, now
	return nil
}

// RefreshLocal recomputes the node's own rank over the friendship subgraph
// induced by members, if computeInterval has passed since the last run.
func (t *RankTracker) RefreshLocal(members []sim.NodeID, now float64) error {
	if now-t.lastLocal < t.params.ComputeInterval {
		return nil
	}
	ranks, err := t.graph.Within(members).Rank(t.params.Damping, t.params.Tolerance, t.params.MaxIterations)
	if err != nil {
		return fmt.Errorf("node %d local rank: %w", t.self, err)
	}
	t.local, t.lastLocal = ranks[t.self], now
	return nil
}

// Local returns the node's cached rank within its community.
func (t *RankTracker) Local() float64 { return t.local }

// Rank returns the cached rank of id in this node's view, 0 if unknown.
func (t *RankTracker) Rank(id sim.NodeID) float64 { return t.ranks[id] }

// Self returns the node's own cached rank.
func (t *RankTracker) Self() float64 { return t.ranks[t.self] }

// Graph exposes the observed friendship graph.
func (t *RankTracker) Graph() *FriendGraph { return t.graph }
