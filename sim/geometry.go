package sim

import (
	"fmt"
	"math"
)

// NodeID identifies a node within a single run. IDs are dense, starting at 0,
// in scenario group order.
type NodeID int

// Coord is a position on the simulation plane, in meters.
type Coord struct {
	X float64 `yaml:"x" toml:"x"`
	Y float64 `yaml:"y" toml:"y"`
}

// Distance returns the euclidean distance between two coordinates.
func (c Coord) Distance(o Coord) float64 {
	return math.Hypot(c.X-o.X, c.Y-o.Y)
}

func (c Coord) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", c.X, c.Y)
}

// PositionSource is the movement-model collaborator. The world queries it once
// per tick for every node, possibly from several goroutines at once, so
// implementations must be safe for concurrent use.
type PositionSource interface {
	PositionAt(id NodeID, t float64) (Coord, error)
}
