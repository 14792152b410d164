// Package movement provides the position sources the world queries once per
// tick. Every source here is immutable after construction and therefore safe
// for concurrent use.
package movement

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/dtnsim/dtnsim/sim"
)

// Static keeps every node at a fixed coordinate.
type Static map[sim.NodeID]sim.Coord

// PositionAt implements sim.PositionSource.
func (s Static) PositionAt(id sim.NodeID, _ float64) (sim.Coord, error) {
	c, ok := s[id]
	if !ok {
		return sim.Coord{}, fmt.Errorf("movement: unknown node %d", id)
	}
	return c, nil
}

// Path is a piecewise-linear route traversed at constant speed, starting at
// the first point at time 0. With Loop set the route closes back to its
// first point and repeats; otherwise the node parks at the last point.
type Path struct {
	Points []sim.Coord
	Speed  float64 // m/s; 0 parks the node at Points[0]
	Loop   bool

	cum []float64 // cumulative length at each point
}

// NewPath precomputes segment lengths. Panics if points is empty.
func NewPath(points []sim.Coord, speed float64, loop bool) *Path {
	if len(points) == 0 {
		panic("NewPath: at least one point is required")
	}
	pts := append([]sim.Coord(nil), points...)
	if loop && len(pts) > 1 {
		pts = append(pts, pts[0])
	}
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + pts[i-1].Distance(pts[i])
	}
	return &Path{Points: pts, Speed: speed, Loop: loop, cum: cum}
}

// Length returns the total route length.
func (p *Path) Length() float64 { return p.cum[len(p.cum)-1] }

// At returns the position at time t.
func (p *Path) At(t float64) sim.Coord {
	total := p.Length()
	if p.Speed == 0 || total == 0 || t <= 0 {
		return p.Points[0]
	}
	d := p.Speed * t
	if p.Loop {
		d = math.Mod(d, total)
	} else if d >= total {
		return p.Points[len(p.Points)-1]
	}
	i := 1
	for i < len(p.cum)-1 && p.cum[i] < d {
		i++
	}
	seg := p.cum[i] - p.cum[i-1]
	if seg == 0 {
		return p.Points[i]
	}
	f := (d - p.cum[i-1]) / seg
	a, b := p.Points[i-1], p.Points[i]
	return sim.Coord{X: a.X + f*(b.X-a.X), Y: a.Y + f*(b.Y-a.Y)}
}

// Waypoints moves each node along its own path.
type Waypoints map[sim.NodeID]*Path

// PositionAt implements sim.PositionSource.
func (w Waypoints) PositionAt(id sim.NodeID, t float64) (sim.Coord, error) {
	p, ok := w[id]
	if !ok {
		return sim.Coord{}, fmt.Errorf("movement: unknown node %d", id)
	}
	return p.At(t), nil
}

// RandomWaypoint returns a path that starts at a uniform point of the
// width x height field and keeps heading to fresh uniform points at speed,
// long enough to cover horizon seconds.
func RandomWaypoint(area sim.Coord, speed, horizon float64, rng *rand.Rand) *Path {
	point := func() sim.Coord {
		return sim.Coord{X: rng.Float64() * area.X, Y: rng.Float64() * area.Y}
	}
	pts := []sim.Coord{point()}
	need := speed * horizon
	for length := 0.0; length < need; {
		next := point()
		length += pts[len(pts)-1].Distance(next)
		pts = append(pts, next)
	}
	return NewPath(pts, speed, false)
}

// FromScenario builds the position source described by the scenario groups.
// Node k of a group follows the group waypoints shifted by k*Offset; groups
// without waypoints use RandomWaypoint drawn from rng in node order.
func FromScenario(sc *sim.Scenario, rng *rand.Rand) sim.PositionSource {
	w := make(Waypoints, sc.NodeCount())
	id := sim.NodeID(0)
	for _, g := range sc.Groups {
		for k := 0; k < g.Count; k++ {
			if len(g.Waypoints) == 0 {
				w[id] = RandomWaypoint(g.Area, g.Speed, sc.Duration, rng)
				id++
				continue
			}
			shift := sim.Coord{X: float64(k) * g.Offset.X, Y: float64(k) * g.Offset.Y}
			pts := make([]sim.Coord, len(g.Waypoints))
			for i, c := range g.Waypoints {
				pts[i] = sim.Coord{X: c.X + shift.X, Y: c.Y + shift.Y}
			}
			w[id] = NewPath(pts, g.Speed, g.Loop)
			id++
		}
	}
	return w
}
