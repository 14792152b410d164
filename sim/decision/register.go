package decision

import (
	"math/rand"

	"github.com/dtnsim/dtnsim/sim"
)

func init() {
	sim.RegisterDecisionEngine(sim.RouterEpidemic, func(self sim.Peer, _ sim.ProtocolParams, _ *rand.Rand) (sim.DecisionEngine, error) {
		return NewEpidemic(self), nil
	})
	sim.RegisterDecisionEngine(sim.RouterSprayAndWait, func(self sim.Peer, p sim.ProtocolParams, _ *rand.Rand) (sim.DecisionEngine, error) {
		return NewSprayAndWait(self, p.SprayAndWait), nil
	})
	sim.RegisterDecisionEngine(sim.RouterSprayAndFocus, func(self sim.Peer, p sim.ProtocolParams, _ *rand.Rand) (sim.DecisionEngine, error) {
		return NewSprayAndFocus(self, p.SprayAndFocus), nil
	})
	sim.RegisterDecisionEngine(sim.RouterProphet, func(self sim.Peer, p sim.ProtocolParams, _ *rand.Rand) (sim.DecisionEngine, error) {
		return NewProphet(self, p.Prophet), nil
	})
	sim.RegisterDecisionEngine(sim.RouterPeopleRank, func(self sim.Peer, p sim.ProtocolParams, rng *rand.Rand) (sim.DecisionEngine, error) {
		return NewPeopleRank(self, p.PeopleRank, rng), nil
	})
	sim.RegisterDecisionEngine(sim.RouterBubbleRap, func(self sim.Peer, p sim.ProtocolParams, _ *rand.Rand) (sim.DecisionEngine, error) {
		return NewBubbleRap(self, p.BubbleRap, p.PeopleRank), nil
	})
}
