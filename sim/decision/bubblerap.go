package decision

import (
	"github.com/dtnsim/dtnsim/sim"
	"github.com/dtnsim/dtnsim/sim/social"
)

// BubbleRap bubbles messages up the global centrality ranking until they
// reach the destination's community, then up the local ranking inside it.
type BubbleRap struct {
	base
	params    sim.BubbleRapParams
	community *social.Community
	window    *social.WindowCentrality
	rank      *social.RankTracker // set when centrality is peoplerank
}

// NewBubbleRap creates the BubbleRap engine of node self.
func NewBubbleRap(self sim.Peer, p sim.BubbleRapParams, pr sim.PeopleRankParams) *BubbleRap {
	b := &BubbleRap{
		base:      newBase(self),
		params:    p,
		community: social.NewCommunity(self.ID(), p.FamiliarThreshold, p.Lambda),
	}
	if p.Centrality == sim.CentralityPeopleRank {
		b.rank = social.NewRankTracker(self.ID(), pr)
	} else {
		b.window = social.NewWindowCentrality(p.TimeWindow, p.Epochs, p.ComputeInterval)
	}
	return b
}

func (b *BubbleRap) Name() sim.RouterKind { return sim.RouterBubbleRap }

// Community returns the node's local community view.
func (b *BubbleRap) Community() *social.Community { return b.community }

// GlobalCentrality returns the node's cached popularity over all peers.
func (b *BubbleRap) GlobalCentrality() float64 {
	if b.rank != nil {
		return b.rank.Self()
	}
	return b.window.Global()
}

// LocalCentrality returns the node's cached popularity within its community.
// Under peoplerank centrality it is the rank over the friendships among
// community members only.
func (b *BubbleRap) LocalCentrality() float64 {
	if b.rank != nil {
		return b.rank.Local()
	}
	return b.window.Local()
}

func (b *BubbleRap) OnContact(peer sim.Peer, now float64) error {
	other, err := peerEngine[*BubbleRap](peer)
	if err != nil {
		return err
	}
	if err := b.base.OnContact(peer, now); err != nil {
		return err
	}
	b.community.Meet(peer.ID(), other.community)
	if b.rank != nil && other.rank != nil {
		b.rank.Observe(b.history, now)
		b.rank.Exchange(other.rank)
	}
	return nil
}

func (b *BubbleRap) OnContactEnd(peer sim.Peer, now float64) error {
	if err := b.base.OnContactEnd(peer, now); err != nil {
		return err
	}
	b.community.Observe(peer.ID(), b.history.TotalDuration(peer.ID(), now))
	return nil
}

func (b *BubbleRap) OnTick(now float64) error {
	if b.rank != nil {
		b.rank.Observe(b.history, now)
		if err := b.rank.Refresh(now); err != nil {
			return err
		}
		return b.rank.RefreshLocal(b.community.Members(), now)
	}
	b.window.Refresh(b.history, b.community, now)
	return nil
}

func (b *BubbleRap) ShouldForward(msg *sim.Message, peer sim.Peer, now float64) sim.Decision {
	dest := msg.Destination
	if dest == peer.ID() {
		return sim.ForwardDecision("destination")
	}
	other, ok := mustPeerEngine[*BubbleRap](peer)
	if !ok {
		return sim.SkipDecision("foreign engine")
	}
	peerIn, selfIn := other.community.Contains(dest), b.community.Contains(dest)
	switch {
	case peerIn && !selfIn:
		return sim.ForwardDecision("into destination community")
	case selfIn && !peerIn:
		return sim.SkipDecision("already in destination community")
	case peerIn:
		if other.LocalCentrality() > b.LocalCentrality() {
			return sim.ForwardDecision("higher local centrality")
		}
		return sim.SkipDecision("local centrality not higher")
	}
	if other.GlobalCentrality() > b.GlobalCentrality() {
		return sim.ForwardDecision("higher global centrality")
	}
	return sim.SkipDecision("global centrality not higher")
}

// ShouldDeleteSent drops the copy once it entered the destination community
// from outside.
func (b *BubbleRap) ShouldDeleteSent(msg *sim.Message, peer sim.Peer) bool {
	other, ok := mustPeerEngine[*BubbleRap](peer)
	if !ok {
		return false
	}
	return other.community.Contains(msg.Destination) && !b.community.Contains(msg.Destination)
}
