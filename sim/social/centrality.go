package social

import "math"

// WindowCentrality estimates popularity as the average, over the last Epochs
// windows of TimeWindow seconds, of the number of distinct peers a node had
// a contact with that ended in the window. Values are recomputed at most
// once per computeInterval and cached in between.
type WindowCentrality struct {
	window   float64
	epochs   int
	interval float64

	last   float64
	global float64
	local  float64
}

// NewWindowCentrality creates a centrality estimator. Panics on
// non-positive parameters.
func NewWindowCentrality(window float64, epochs int, computeInterval float64) *WindowCentrality {
	if window <= 0 || epochs < 1 || computeInterval <= 0 {
		panic("NewWindowCentrality: window, epochs and computeInterval must be positive")
	}
	return &WindowCentrality{window: window, epochs: epochs, interval: computeInterval, last: math.Inf(-1)}
}

// Refresh recomputes both centralities from h if computeInterval has passed
// since the last computation. The local value only counts members of c.
func (w *WindowCentrality) Refresh(h *History, c *Community, now float64) {
	if now-w.last < w.interval {
		return
	}
	w.global = w.compute(h, nil, now)
	w.local = w.compute(h, c, now)
	w.last = now
}

func (w *WindowCentrality) compute(h *History, c *Community, now float64) float64 {
	counts := make([]int, w.epochs)
	for _, peer := range h.Peers() {
		if c != nil && !c.Contains(peer) {
			continue
		}
		seen := make([]bool, w.epochs)
		for _, iv := range h.Intervals(peer) {
			epoch := int(math.Floor((now - iv.End) / w.window))
			if epoch < 0 || epoch >= w.epochs || seen[epoch] {
				continue
			}
			seen[epoch] = true
			counts[epoch]++
		}
	}
	sum := 0
	for _, n := range counts {
		sum += n
	}
	return float64(sum) / float64(w.epochs)
}

// Global returns the cached global centrality.
func (w *WindowCentrality) Global() float64 { return w.global }

// Local returns the cached local centrality.
func (w *WindowCentrality) Local() float64 { return w.local }
