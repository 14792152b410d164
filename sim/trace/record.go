// Package trace carries the outward event feed of a simulation run:
// the record type, an in-memory recorder, a msgpack stream writer and a
// run summary. This package has no dependencies on sim/ so that consumers
// of the feed never pull in the kernel.
package trace

// Kind names an outward event.
type Kind string

const (
	MessageCreated    Kind = "messageCreated"
	TransferStarted   Kind = "transferStarted"
	TransferCompleted Kind = "transferCompleted"
	TransferAborted   Kind = "transferAborted"
	MessageDelivered  Kind = "messageDelivered"
	MessageDropped    Kind = "messageDropped"
	MessageExpired    Kind = "messageExpired"
	ConnectionUp      Kind = "connectionUp"
	ConnectionDown    Kind = "connectionDown"
)

// Kinds lists every outward event kind in a stable order.
var Kinds = []Kind{
	MessageCreated, TransferStarted, TransferCompleted, TransferAborted,
	MessageDelivered, MessageDropped, MessageExpired, ConnectionUp, ConnectionDown,
}

// NoNode marks an unused Node or Peer field.
const NoNode = -1

// Record is one outward event. Node is where the event happened; Peer is the
// other end of the contact or transfer, when there is one.
type Record struct {
	Time      float64 `msgpack:"t" yaml:"time"`
	Kind      Kind    `msgpack:"k" yaml:"kind"`
	Node      int     `msgpack:"n" yaml:"node"`
	Peer      int     `msgpack:"p" yaml:"peer"`
	MessageID string  `msgpack:"m,omitempty" yaml:"message,omitempty"`
	Reason    string  `msgpack:"r,omitempty" yaml:"reason,omitempty"`
	Copies    int     `msgpack:"c,omitempty" yaml:"copies,omitempty"`
	Hops      int     `msgpack:"h,omitempty" yaml:"hops,omitempty"`
	Created   float64 `msgpack:"ct,omitempty" yaml:"created,omitempty"` // set on messageDelivered, for latency
}
