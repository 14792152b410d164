package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// World owns connection state for every node pair and turns node positions
// into connectivity transitions.
type World struct {
	nodes     []*Node
	positions PositionSource
	workers   int
	conns     map[pairKey]*Connection
	upCount   int
	coords    []Coord // scratch, one slot per node
}

// NewWorld creates a world over nodes, which must be indexed by NodeID.
// Panics if workers < 1.
func NewWorld(nodes []*Node, positions PositionSource, workers int) *World {
	if workers < 1 {
		panic(fmt.Sprintf("NewWorld: workers must be >= 1, got %d", workers))
	}
	return &World{
		nodes:     nodes,
		positions: positions,
		workers:   workers,
		conns:     make(map[pairKey]*Connection),
		coords:    make([]Coord, len(nodes)),
	}
}

// Update queries every node position at now and returns the connectivity
// transitions implied by them, in (A, B) order. Position queries fan out over
// the worker pool; pair evaluation is serial so the result is deterministic.
// Transitions are not applied here: the simulator schedules the returned
// events and applies them on dispatch.
func (w *World) Update(now float64) ([]Event, error) {
	var g errgroup.Group
	g.SetLimit(w.workers)
	for i, n := range w.nodes {
		i, id := i, n.id
		g.Go(func() error {
			c, err := w.positions.PositionAt(id, now)
			if err != nil {
				return fmt.Errorf("position of node %d at %g: %w", id, now, err)
			}
			w.coords[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, n := range w.nodes {
		n.setPosition(w.coords[i], now)
	}

	var events []Event
	for i := 0; i < len(w.nodes); i++ {
		for j := i + 1; j < len(w.nodes); j++ {
			a, b := w.nodes[i], w.nodes[j]
			reach := a.rangeM
			if b.rangeM < reach {
				reach = b.rangeM
			}
			inRange := w.coords[i].Distance(w.coords[j]) <= reach
			conn := w.conns[makePair(a.id, b.id)]
			up := conn != nil && conn.Up
			switch {
			case inRange && !up:
				events = append(events, NewConnectionUpEvent(now, a.id, b.id, SourceRange))
			case !inRange && up && conn.Source == SourceRange:
				events = append(events, NewConnectionDownEvent(now, a.id, b.id, SourceRange))
			}
		}
	}
	return events, nil
}

// connect marks the pair up. Returns false if it already was.
func (w *World) connect(a, b NodeID, now float64, source ContactSource) (*Connection, bool) {
	key := makePair(a, b)
	conn, ok := w.conns[key]
	if !ok {
		conn = &Connection{A: key.A, B: key.B}
		w.conns[key] = conn
	}
	if conn.Up {
		logrus.Warnf("[%.3f] duplicate connection up %d<->%d (%s), ignored", now, key.A, key.B, source)
		return conn, false
	}
	bw := w.nodes[a].bw
	if w.nodes[b].bw < bw {
		bw = w.nodes[b].bw
	}
	conn.Up, conn.Bandwidth, conn.Established, conn.Source = true, bw, now, source
	w.upCount++
	return conn, true
}

// disconnect marks the pair down. Returns false if it already was.
func (w *World) disconnect(a, b NodeID, now float64, source ContactSource) (*Connection, bool) {
	conn, ok := w.conns[makePair(a, b)]
	if !ok || !conn.Up {
		logrus.Warnf("[%.3f] duplicate connection down %d<->%d (%s), ignored", now, a, b, source)
		return conn, false
	}
	conn.Up = false
	w.upCount--
	return conn, true
}

// Connection returns the connection state of the pair, or nil if the pair
// was never connected.
func (w *World) Connection(a, b NodeID) *Connection {
	return w.conns[makePair(a, b)]
}

// IsUp reports whether the pair is currently connected.
func (w *World) IsUp(a, b NodeID) bool {
	c := w.conns[makePair(a, b)]
	return c != nil && c.Up
}

// Neighbors returns the nodes currently connected to id, ascending.
func (w *World) Neighbors(id NodeID) []NodeID {
	var out []NodeID
	for k, c := range w.conns {
		if !c.Up {
			continue
		}
		if k.A == id {
			out = append(out, k.B)
		} else if k.B == id {
			out = append(out, k.A)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UpCount returns the number of connections currently up.
func (w *World) UpCount() int { return w.upCount }
