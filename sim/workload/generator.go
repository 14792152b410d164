// Package workload produces the message traffic of a run: synthetic
// generators driven by the scenario and external event traces.
package workload

import (
	"fmt"
	"math/rand"

	"github.com/dtnsim/dtnsim/sim"
)

// Generate produces the MessageCreate events of every workload entry in sc,
// in time order per entry. Sources and destinations are drawn uniformly from
// the configured groups; a message is never addressed to its own source.
// Message ids are the entry prefix followed by a run-wide sequence number.
func Generate(sc *sim.Scenario, rng *rand.Rand) ([]sim.Event, error) {
	groups := sc.GroupNodes()
	all := make([]sim.NodeID, 0, sc.NodeCount())
	for id := 0; id < sc.NodeCount(); id++ {
		all = append(all, sim.NodeID(id))
	}
	pick := func(names []string) []sim.NodeID {
		if len(names) == 0 {
			return all
		}
		var out []sim.NodeID
		for _, n := range names {
			out = append(out, groups[n]...)
		}
		return out
	}

	var events []sim.Event
	seq := 0
	for i, w := range sc.Workload {
		sources, dests := pick(w.Sources), pick(w.Destinations)
		if len(sources) == 0 || len(dests) == 0 || (len(dests) == 1 && len(sources) == 1 && sources[0] == dests[0]) {
			return nil, fmt.Errorf("workload[%d]: %w: no distinct source/destination pair", i, sim.ErrInvalidConfig)
		}
		sampler := NewArrivalSampler(w.Process, w.Interval, w.Rate, w.CV)
		for t, end := w.Start, w.Until(sc.Duration); t <= end; t += sampler.SampleIAT(rng) {
			src := sources[rng.Intn(len(sources))]
			candidates := without(dests, src)
			if len(candidates) == 0 {
				continue
			}
			dst := candidates[rng.Intn(len(candidates))]
			size := w.SizeMin
			if w.SizeMax > w.SizeMin {
				size += rng.Int63n(w.SizeMax - w.SizeMin + 1)
			}
			seq++
			events = append(events, sim.NewMessageCreateEvent(t, fmt.Sprintf("%s%d", w.Prefix, seq), src, dst, size))
		}
	}
	return events, nil
}

func without(ids []sim.NodeID, drop sim.NodeID) []sim.NodeID {
	out := make([]sim.NodeID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
