package sim

import "fmt"

// pairKey is the unordered node pair of a connection, stored with A < B.
type pairKey struct {
	A, B NodeID
}

func makePair(a, b NodeID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{A: a, B: b}
}

// Connection is the link state of one unordered node pair.
type Connection struct {
	A, B        NodeID // A < B
	Up          bool
	Bandwidth   float64 // bytes per second, the slower endpoint's rate
	Established float64 // time of the most recent up transition
	Source      ContactSource
}

// Other returns the endpoint that is not id.
func (c *Connection) Other(id NodeID) NodeID {
	if c.A == id {
		return c.B
	}
	return c.A
}

// TransferTime returns the seconds needed to move size bytes over the link.
func (c *Connection) TransferTime(size int64) float64 {
	return float64(size) / c.Bandwidth
}

func (c *Connection) String() string {
	state := "down"
	if c.Up {
		state = "up"
	}
	return fmt.Sprintf("Connection(%d<->%d, %s, %.0f B/s, %s)", c.A, c.B, state, c.Bandwidth, c.Source)
}
