package sim

import "fmt"

// Node is one DTN host: a buffer, a router, and the interface settings the
// world uses to decide who it can reach.
type Node struct {
	id       NodeID
	name     string
	category NodeCategory
	rangeM   float64
	bw       float64

	buffer *Buffer
	router *MessageRouter
	engine DecisionEngine

	pos     Coord
	posTime float64
	hasPos  bool
	speed   float64
}

// NewNode creates a node. Panics if the interface settings are not positive.
func NewNode(id NodeID, name string, category NodeCategory, bufferSize int64, policy EvictionPolicy, interfaceRange, bandwidth float64) *Node {
	if interfaceRange <= 0 || bandwidth <= 0 {
		panic(fmt.Sprintf("NewNode(%s): interfaceRange and bandwidth must be > 0, got %g, %g", name, interfaceRange, bandwidth))
	}
	return &Node{
		id:       id,
		name:     name,
		category: category,
		rangeM:   interfaceRange,
		bw:       bandwidth,
		buffer:   NewBuffer(bufferSize, policy),
	}
}

func (n *Node) ID() NodeID              { return n.id }
func (n *Node) Name() string            { return n.name }
func (n *Node) Category() NodeCategory  { return n.category }
func (n *Node) InterfaceRange() float64 { return n.rangeM }
func (n *Node) Bandwidth() float64      { return n.bw }
func (n *Node) Buffer() *Buffer         { return n.buffer }
func (n *Node) Router() *MessageRouter  { return n.router }
func (n *Node) Engine() DecisionEngine  { return n.engine }
func (n *Node) Has(id string) bool      { return n.buffer.Has(id) }
func (n *Node) FreeBuffer() int64       { return n.buffer.Free() }
func (n *Node) Position() Coord         { return n.pos }
func (n *Node) Speed() float64          { return n.speed }

// setPosition records the node position observed at time t and refreshes
// the speed estimate from the previous observation.
func (n *Node) setPosition(c Coord, t float64) {
	if n.hasPos && t > n.posTime {
		n.speed = n.pos.Distance(c) / (t - n.posTime)
	}
	n.pos, n.posTime, n.hasPos = c, t, true
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%d %s)", n.id, n.name)
}
