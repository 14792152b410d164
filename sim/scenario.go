package sim

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RouterKind names a decision engine variant.
type RouterKind string

const (
	RouterEpidemic      RouterKind = "epidemic"
	RouterSprayAndWait  RouterKind = "spray-and-wait"
	RouterSprayAndFocus RouterKind = "spray-and-focus"
	RouterProphet       RouterKind = "prophet"
	RouterPeopleRank    RouterKind = "peoplerank"
	RouterBubbleRap     RouterKind = "bubblerap"
)

// ValidRouters is the set of recognized router names.
// Shared by Validate() and the engine registry.
var ValidRouters = map[RouterKind]bool{
	RouterEpidemic: true, RouterSprayAndWait: true, RouterSprayAndFocus: true,
	RouterProphet: true, RouterPeopleRank: true, RouterBubbleRap: true,
}

// NodeCategory is descriptive metadata attached to every node of a group.
type NodeCategory string

const (
	CategoryOrdinary NodeCategory = "ordinary"
	CategoryOracle   NodeCategory = "oracle"
)

// ValidCategories is the set of recognized node categories.
var ValidCategories = map[NodeCategory]bool{"": true, CategoryOrdinary: true, CategoryOracle: true}

// ValidArrivalProcesses is the set of recognized workload arrival processes.
var ValidArrivalProcesses = map[string]bool{"periodic": true, "poisson": true, "gamma": true}

// Scenario is the immutable description of one simulation run, loadable
// from a YAML or TOML file. Zero values mean "use the default"; call
// ApplyDefaults before Validate.
type Scenario struct {
	Name            string           `yaml:"name" toml:"name"`
	Seed            int64            `yaml:"seed" toml:"seed"`
	Duration        float64          `yaml:"duration" toml:"duration"`             // seconds
	TickInterval    float64          `yaml:"tickInterval" toml:"tickInterval"`     // seconds
	BufferSize      int64            `yaml:"bufferSize" toml:"bufferSize"`         // bytes
	TTL             float64          `yaml:"ttl" toml:"ttl"`                       // minutes
	Router          RouterKind       `yaml:"router" toml:"router"`
	InterfaceRange  float64          `yaml:"interfaceRange" toml:"interfaceRange"` // meters
	Bandwidth       float64          `yaml:"bandwidth" toml:"bandwidth"`           // bytes per second
	Workers         int              `yaml:"workers" toml:"workers"`
	Tombstones      bool             `yaml:"tombstones" toml:"tombstones"`
	DeleteDelivered *bool            `yaml:"deleteDelivered" toml:"deleteDelivered"`
	EvictionPolicy  EvictionPolicy   `yaml:"evictionPolicy" toml:"evictionPolicy"`
	ProtocolParams  ProtocolParams   `yaml:"protocolParams" toml:"protocolParams"`
	Groups          []GroupConfig    `yaml:"groups" toml:"groups"`
	Workload        []WorkloadConfig `yaml:"workload" toml:"workload"`
	EventsFile      string           `yaml:"eventsFile" toml:"eventsFile"`
}

// GroupConfig describes a set of nodes sharing interface and movement settings.
// Node k of the group follows Waypoints shifted by k*Offset. A group without
// waypoints roams Area with the random-waypoint model instead.
type GroupConfig struct {
	Name           string       `yaml:"name" toml:"name"`
	Count          int          `yaml:"count" toml:"count"`
	Category       NodeCategory `yaml:"category" toml:"category"`
	BufferSize     int64        `yaml:"bufferSize" toml:"bufferSize"`         // 0 inherits the scenario value
	InterfaceRange float64      `yaml:"interfaceRange" toml:"interfaceRange"` // 0 inherits the scenario value
	Bandwidth      float64      `yaml:"bandwidth" toml:"bandwidth"`           // 0 inherits the scenario value
	Speed          float64      `yaml:"speed" toml:"speed"`                   // m/s along Waypoints; 0 means static
	Waypoints      []Coord      `yaml:"waypoints" toml:"waypoints"`
	Offset         Coord        `yaml:"offset" toml:"offset"`
	Loop           bool         `yaml:"loop" toml:"loop"`
	Area           Coord        `yaml:"area" toml:"area"` // width (X) and height (Y) of the random-waypoint field
}

// WorkloadConfig describes one message generator.
type WorkloadConfig struct {
	Process      string   `yaml:"process" toml:"process"`   // periodic | poisson | gamma
	Interval     float64  `yaml:"interval" toml:"interval"` // seconds between messages (periodic)
	Rate         float64  `yaml:"rate" toml:"rate"`         // messages per second (poisson, gamma)
	CV           float64  `yaml:"cv" toml:"cv"`             // coefficient of variation (gamma)
	SizeMin      int64    `yaml:"sizeMin" toml:"sizeMin"`
	SizeMax      int64    `yaml:"sizeMax" toml:"sizeMax"`
	Sources      []string `yaml:"sources" toml:"sources"`           // group names; empty means every node
	Destinations []string `yaml:"destinations" toml:"destinations"` // group names; empty means every node
	Start        float64  `yaml:"start" toml:"start"`
	End          float64  `yaml:"end" toml:"end"` // 0 means the scenario duration
	Prefix       string   `yaml:"prefix" toml:"prefix"`
}

// Until returns the last time a message may be generated: End, or the
// scenario duration when End is unset.
func (w *WorkloadConfig) Until(duration float64) float64 {
	if w.End == 0 {
		return duration
	}
	return w.End
}

// ProtocolParams carries the tunables of every decision engine.
// Only the block matching Scenario.Router is consulted.
type ProtocolParams struct {
	SprayAndWait  SprayParams         `yaml:"sprayAndWait" toml:"sprayAndWait"`
	SprayAndFocus SprayAndFocusParams `yaml:"sprayAndFocus" toml:"sprayAndFocus"`
	Prophet       ProphetParams       `yaml:"prophet" toml:"prophet"`
	PeopleRank    PeopleRankParams    `yaml:"peopleRank" toml:"peopleRank"`
	BubbleRap     BubbleRapParams     `yaml:"bubbleRap" toml:"bubbleRap"`
}

// SprayParams configures Spray and Wait.
type SprayParams struct {
	Copies int   `yaml:"copies" toml:"copies"`
	Binary *bool `yaml:"binary" toml:"binary"`
}

// SprayAndFocusParams configures Spray and Focus.
type SprayAndFocusParams struct {
	Copies          int     `yaml:"copies" toml:"copies"`
	TimerThreshold  float64 `yaml:"timerThreshold" toml:"timerThreshold"`   // seconds of freshness the peer must gain
	DefaultTimediff float64 `yaml:"defaultTimediff" toml:"defaultTimediff"` // seconds, used when the peer speed is unknown
}

// ProphetParams configures PRoPHET delivery predictability.
type ProphetParams struct {
	PInit             float64 `yaml:"pInit" toml:"pInit"`
	Beta              float64 `yaml:"beta" toml:"beta"`
	Gamma             float64 `yaml:"gamma" toml:"gamma"`
	SecondsInTimeUnit float64 `yaml:"secondsInTimeUnit" toml:"secondsInTimeUnit"`
	UsePrevPred       bool    `yaml:"usePrevPred" toml:"usePrevPred"`
}

// Friendship modes for PeopleRank.
const (
	FriendByDuration  = "duration"
	FriendByFrequency = "frequency"
)

// PeopleRankParams configures PeopleRank.
type PeopleRankParams struct {
	Damping         float64 `yaml:"damping" toml:"damping"`
	FriendThreshold float64 `yaml:"friendThreshold" toml:"friendThreshold"` // seconds (duration) or encounters (frequency)
	Mode            string  `yaml:"mode" toml:"mode"`
	Probabilistic   bool    `yaml:"probabilistic" toml:"probabilistic"`
	Tolerance       float64 `yaml:"tolerance" toml:"tolerance"`
	MaxIterations   int     `yaml:"maxIterations" toml:"maxIterations"`
	ComputeInterval float64 `yaml:"computeInterval" toml:"computeInterval"`
}

// Centrality measures for BubbleRap.
const (
	CentralityWindow     = "window"
	CentralityPeopleRank = "peoplerank"
)

// BubbleRapParams configures BubbleRap.
type BubbleRapParams struct {
	FamiliarThreshold float64 `yaml:"familiarThreshold" toml:"familiarThreshold"` // seconds of cumulative contact
	Lambda            float64 `yaml:"lambda" toml:"lambda"`
	TimeWindow        float64 `yaml:"timeWindow" toml:"timeWindow"`
	Epochs            int     `yaml:"epochs" toml:"epochs"`
	ComputeInterval   float64 `yaml:"computeInterval" toml:"computeInterval"`
	Centrality        string  `yaml:"centrality" toml:"centrality"`
}

// LoadScenario reads a scenario file. Files ending in .toml are parsed as
// TOML; everything else as YAML. Unknown keys are rejected in both formats.
// Defaults are applied and the result validated before returning.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), &sc)
		if err != nil {
			return nil, fmt.Errorf("parsing scenario: %w: %v", ErrInvalidConfig, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing scenario: %w: unknown keys %v", ErrInvalidConfig, undecoded)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("parsing scenario: %w: %v", ErrInvalidConfig, err)
		}
	}
	if sc.EventsFile != "" && !filepath.IsAbs(sc.EventsFile) {
		sc.EventsFile = filepath.Join(filepath.Dir(path), sc.EventsFile)
	}
	sc.ApplyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ApplyDefaults fills unset fields. Group-level interface settings inherit
// the scenario-level values.
func (sc *Scenario) ApplyDefaults() {
	if sc.TickInterval == 0 {
		sc.TickInterval = 1
	}
	if sc.Workers == 0 {
		sc.Workers = 4
	}
	if sc.EvictionPolicy == "" {
		sc.EvictionPolicy = EvictShortestTTL
	}
	if sc.DeleteDelivered == nil {
		t := true
		sc.DeleteDelivered = &t
	}
	for i := range sc.Groups {
		g := &sc.Groups[i]
		if g.BufferSize == 0 {
			g.BufferSize = sc.BufferSize
		}
		if g.InterfaceRange == 0 {
			g.InterfaceRange = sc.InterfaceRange
		}
		if g.Bandwidth == 0 {
			g.Bandwidth = sc.Bandwidth
		}
		if g.Category == "" {
			g.Category = CategoryOrdinary
		}
	}
	for i := range sc.Workload {
		w := &sc.Workload[i]
		if w.Prefix == "" {
			w.Prefix = "M"
		}
		if w.SizeMax == 0 {
			w.SizeMax = w.SizeMin
		}
	}
	sc.ProtocolParams.applyDefaults()
}

func (p *ProtocolParams) applyDefaults() {
	if p.SprayAndWait.Copies == 0 {
		p.SprayAndWait.Copies = 6
	}
	if p.SprayAndWait.Binary == nil {
		t := true
		p.SprayAndWait.Binary = &t
	}
	if p.SprayAndFocus.Copies == 0 {
		p.SprayAndFocus.Copies = 6
	}
	if p.SprayAndFocus.DefaultTimediff == 0 {
		p.SprayAndFocus.DefaultTimediff = 300
	}
	pr := &p.Prophet
	if pr.PInit == 0 {
		pr.PInit = 0.75
	}
	if pr.Beta == 0 {
		pr.Beta = 0.25
	}
	if pr.Gamma == 0 {
		pr.Gamma = 0.98
	}
	if pr.SecondsInTimeUnit == 0 {
		pr.SecondsInTimeUnit = 30
	}
	pe := &p.PeopleRank
	if pe.Damping == 0 {
		pe.Damping = 0.85
	}
	if pe.FriendThreshold == 0 {
		pe.FriendThreshold = 700
	}
	if pe.Mode == "" {
		pe.Mode = FriendByDuration
	}
	if pe.Tolerance == 0 {
		pe.Tolerance = 1e-6
	}
	if pe.MaxIterations == 0 {
		pe.MaxIterations = 100
	}
	if pe.ComputeInterval == 0 {
		pe.ComputeInterval = 60
	}
	br := &p.BubbleRap
	if br.FamiliarThreshold == 0 {
		br.FamiliarThreshold = 700
	}
	if br.Lambda == 0 {
		br.Lambda = 0.6
	}
	if br.TimeWindow == 0 {
		br.TimeWindow = 21600
	}
	if br.Epochs == 0 {
		br.Epochs = 5
	}
	if br.ComputeInterval == 0 {
		br.ComputeInterval = 600
	}
	if br.Centrality == "" {
		br.Centrality = CentralityWindow
	}
}

// TTLSeconds converts the configured TTL from minutes to seconds.
func (sc *Scenario) TTLSeconds() float64 { return sc.TTL * 60 }

// NodeCount returns the total number of nodes over all groups.
func (sc *Scenario) NodeCount() int {
	n := 0
	for _, g := range sc.Groups {
		n += g.Count
	}
	return n
}

// GroupNodes returns the node ids belonging to each named group, in node-id order.
func (sc *Scenario) GroupNodes() map[string][]NodeID {
	out := make(map[string][]NodeID, len(sc.Groups))
	next := NodeID(0)
	for _, g := range sc.Groups {
		for k := 0; k < g.Count; k++ {
			out[g.Name] = append(out[g.Name], next)
			next++
		}
	}
	return out
}

// Validate checks names and parameter ranges. Every failure wraps ErrInvalidConfig.
func (sc *Scenario) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if !ValidRouters[sc.Router] {
		return invalid("unknown router %q", sc.Router)
	}
	if !ValidEvictionPolicies[sc.EvictionPolicy] {
		return invalid("unknown eviction policy %q", sc.EvictionPolicy)
	}
	if sc.Duration <= 0 {
		return invalid("duration must be > 0, got %g", sc.Duration)
	}
	if sc.TickInterval <= 0 {
		return invalid("tickInterval must be > 0, got %g", sc.TickInterval)
	}
	if sc.TTL <= 0 {
		return invalid("ttl must be > 0, got %g", sc.TTL)
	}
	if sc.Workers < 1 {
		return invalid("workers must be >= 1, got %d", sc.Workers)
	}
	if len(sc.Groups) == 0 {
		return invalid("at least one group is required")
	}
	names := make(map[string]bool, len(sc.Groups))
	for _, g := range sc.Groups {
		if g.Name == "" {
			return invalid("group name must not be empty")
		}
		if names[g.Name] {
			return invalid("duplicate group %q", g.Name)
		}
		names[g.Name] = true
		if g.Count < 1 {
			return invalid("group %q: count must be >= 1, got %d", g.Name, g.Count)
		}
		if !ValidCategories[g.Category] {
			return invalid("group %q: unknown category %q", g.Name, g.Category)
		}
		if g.BufferSize <= 0 {
			return invalid("group %q: bufferSize must be > 0, got %d", g.Name, g.BufferSize)
		}
		if g.InterfaceRange <= 0 {
			return invalid("group %q: interfaceRange must be > 0, got %g", g.Name, g.InterfaceRange)
		}
		if g.Bandwidth <= 0 {
			return invalid("group %q: bandwidth must be > 0, got %g", g.Name, g.Bandwidth)
		}
		if g.Speed < 0 {
			return invalid("group %q: speed must be >= 0, got %g", g.Name, g.Speed)
		}
		if len(g.Waypoints) == 0 && (g.Area.X <= 0 || g.Area.Y <= 0) {
			return invalid("group %q: waypoints or a positive area is required", g.Name)
		}
	}
	for i, w := range sc.Workload {
		if !ValidArrivalProcesses[w.Process] {
			return invalid("workload[%d]: unknown process %q", i, w.Process)
		}
		if w.Process == "periodic" && w.Interval <= 0 {
			return invalid("workload[%d]: interval must be > 0, got %g", i, w.Interval)
		}
		if w.Process != "periodic" && w.Rate <= 0 {
			return invalid("workload[%d]: rate must be > 0, got %g", i, w.Rate)
		}
		if w.SizeMin <= 0 || w.SizeMax < w.SizeMin {
			return invalid("workload[%d]: need 0 < sizeMin <= sizeMax, got %d..%d", i, w.SizeMin, w.SizeMax)
		}
		if end := w.Until(sc.Duration); w.Start < 0 || end < w.Start {
			return invalid("workload[%d]: need 0 <= start <= end, got %g..%g", i, w.Start, end)
		}
		for _, ref := range append(append([]string(nil), w.Sources...), w.Destinations...) {
			if !names[ref] {
				return invalid("workload[%d]: unknown group %q", i, ref)
			}
		}
	}
	return sc.ProtocolParams.validate()
}

func (p *ProtocolParams) validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if p.SprayAndWait.Copies < 1 {
		return invalid("sprayAndWait.copies must be >= 1, got %d", p.SprayAndWait.Copies)
	}
	if p.SprayAndFocus.Copies < 1 {
		return invalid("sprayAndFocus.copies must be >= 1, got %d", p.SprayAndFocus.Copies)
	}
	if p.SprayAndFocus.TimerThreshold < 0 || p.SprayAndFocus.DefaultTimediff < 0 {
		return invalid("sprayAndFocus timers must be >= 0")
	}
	pr := p.Prophet
	for _, f := range []struct {
		name string
		v    float64
	}{{"pInit", pr.PInit}, {"beta", pr.Beta}, {"gamma", pr.Gamma}} {
		if f.v < 0 || f.v > 1 {
			return invalid("prophet.%s must be in [0,1], got %g", f.name, f.v)
		}
	}
	if pr.SecondsInTimeUnit <= 0 {
		return invalid("prophet.secondsInTimeUnit must be > 0, got %g", pr.SecondsInTimeUnit)
	}
	pe := p.PeopleRank
	if pe.Damping <= 0 || pe.Damping >= 1 {
		return invalid("peopleRank.damping must be in (0,1), got %g", pe.Damping)
	}
	if pe.Mode != FriendByDuration && pe.Mode != FriendByFrequency {
		return invalid("peopleRank.mode must be %q or %q, got %q", FriendByDuration, FriendByFrequency, pe.Mode)
	}
	if pe.FriendThreshold <= 0 || pe.Tolerance <= 0 || pe.MaxIterations < 1 || pe.ComputeInterval <= 0 {
		return invalid("peopleRank thresholds, tolerance, maxIterations and computeInterval must be positive")
	}
	br := p.BubbleRap
	if br.Lambda <= 0 || br.Lambda > 1 {
		return invalid("bubbleRap.lambda must be in (0,1], got %g", br.Lambda)
	}
	if br.FamiliarThreshold <= 0 || br.TimeWindow <= 0 || br.Epochs < 1 || br.ComputeInterval <= 0 {
		return invalid("bubbleRap familiarThreshold, timeWindow, epochs and computeInterval must be positive")
	}
	if br.Centrality != CentralityWindow && br.Centrality != CentralityPeopleRank {
		return invalid("bubbleRap.centrality must be %q or %q, got %q", CentralityWindow, CentralityPeopleRank, br.Centrality)
	}
	return nil
}
