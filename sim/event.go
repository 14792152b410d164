package sim

import "fmt"

// EventKind enumerates the closed set of simulation events.
type EventKind int

const (
	KindTick EventKind = iota
	KindConnectionUp
	KindConnectionDown
	KindMessageCreate
	KindTransferStart
	KindTransferComplete
)

func (k EventKind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindConnectionUp:
		return "connectionUp"
	case KindConnectionDown:
		return "connectionDown"
	case KindMessageCreate:
		return "messageCreate"
	case KindTransferStart:
		return "transferStart"
	case KindTransferComplete:
		return "transferComplete"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event defines the interface for all simulation events.
// The set is sealed: only the event types in this file implement it, and
// Simulator.dispatch switches over them exhaustively.
type Event interface {
	Timestamp() float64
	Kind() EventKind
	sealed()
}

// TickEvent drives the periodic world update: position queries, connectivity
// detection, TTL expiry and engine bookkeeping.
type TickEvent struct {
	time float64
}

// NewTickEvent creates a tick at time t.
func NewTickEvent(t float64) *TickEvent { return &TickEvent{time: t} }

func (e *TickEvent) Timestamp() float64 { return e.time }
func (e *TickEvent) Kind() EventKind    { return KindTick }
func (*TickEvent) sealed()              {}

// ContactSource says what raised a connection transition.
type ContactSource string

const (
	SourceRange ContactSource = "range" // detected from node positions
	SourceTrace ContactSource = "trace" // injected from an external contact trace
)

// ConnectionUpEvent brings the link between A and B up.
type ConnectionUpEvent struct {
	time   float64
	A, B   NodeID
	Source ContactSource
}

// NewConnectionUpEvent creates a connection-up transition for the pair at time t.
func NewConnectionUpEvent(t float64, a, b NodeID, source ContactSource) *ConnectionUpEvent {
	return &ConnectionUpEvent{time: t, A: a, B: b, Source: source}
}

func (e *ConnectionUpEvent) Timestamp() float64 { return e.time }
func (e *ConnectionUpEvent) Kind() EventKind    { return KindConnectionUp }
func (*ConnectionUpEvent) sealed()              {}

// ConnectionDownEvent tears the link between A and B down.
type ConnectionDownEvent struct {
	time   float64
	A, B   NodeID
	Source ContactSource
}

// NewConnectionDownEvent creates a connection-down transition for the pair at time t.
func NewConnectionDownEvent(t float64, a, b NodeID, source ContactSource) *ConnectionDownEvent {
	return &ConnectionDownEvent{time: t, A: a, B: b, Source: source}
}

func (e *ConnectionDownEvent) Timestamp() float64 { return e.time }
func (e *ConnectionDownEvent) Kind() EventKind    { return KindConnectionDown }
func (*ConnectionDownEvent) sealed()              {}

// MessageCreateEvent is produced by the message generator collaborator.
type MessageCreateEvent struct {
	time     float64
	ID       string
	From, To NodeID
	Size     int64
}

// NewMessageCreateEvent creates a message-creation event at time t.
func NewMessageCreateEvent(t float64, id string, from, to NodeID, size int64) *MessageCreateEvent {
	return &MessageCreateEvent{time: t, ID: id, From: from, To: to, Size: size}
}

func (e *MessageCreateEvent) Timestamp() float64 { return e.time }
func (e *MessageCreateEvent) Kind() EventKind    { return KindMessageCreate }
func (*MessageCreateEvent) sealed()              {}

// TransferStartEvent begins moving a queued message over a connection.
type TransferStartEvent struct {
	time     float64
	Transfer *Transfer
}

func (e *TransferStartEvent) Timestamp() float64 { return e.time }
func (e *TransferStartEvent) Kind() EventKind    { return KindTransferStart }
func (*TransferStartEvent) sealed()              {}

// TransferCompleteEvent fires size/bandwidth seconds after the matching start.
// It is void if the transfer was cancelled in between.
type TransferCompleteEvent struct {
	time     float64
	Transfer *Transfer
}

func (e *TransferCompleteEvent) Timestamp() float64 { return e.time }
func (e *TransferCompleteEvent) Kind() EventKind    { return KindTransferComplete }
func (*TransferCompleteEvent) sealed()              {}
