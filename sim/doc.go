// Package sim provides the core discrete-event simulation kernel for dtnsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - message.go: Message copies, TTL and the lifecycle state machine
//   - event.go: the sealed set of events that drive the simulation
//   - simulator.go: the event loop and dispatch
//   - router.go: the protocol-agnostic transfer protocol
//
// # Architecture
//
// The sim package defines the kernel and the DecisionEngine contract;
// implementations and collaborators live in sub-packages:
//   - sim/decision/: Epidemic, Spray and Wait, Spray and Focus, PRoPHET, PeopleRank, BubbleRap
//   - sim/social/: contact history, community detection, centrality and rank
//   - sim/movement/: position sources consumed by the world
//   - sim/workload/: message generators and external event traces
//   - sim/trace/: the outward event feed
//   - sim/observe/: Prometheus and MQTT consumers of the feed
//
// Decision engines register themselves via init() in sim/decision
// (RegisterDecisionEngine); NewSimulator resolves the configured one.
//
// # Key Interfaces
//
//   - DecisionEngine: per-node forwarding choices and relationship state
//   - Orderer: optional queue ordering for an engine
//   - Peer: the view an engine gets of itself and of the node it meets
//   - PositionSource: node positions over time
//   - Sink: consumer of trace.Record events
package sim
