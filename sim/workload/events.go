package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dtnsim/dtnsim/sim"
)

// External event actions.
const (
	actionCreate     = "C"
	actionConnection = "CONN"
)

var hostIDPattern = regexp.MustCompile(`^\D*(\d+)$`)

// ReadEvents parses an external events trace, one event per line:
//
//	<time> C <msgId> <from> <to> <size> [<responseSize>]
//	<time> CONN <hostA> <hostB> up|down [<interface>]
//
// Host ids are plain node numbers or a name ending in the number (n7).
// Blank lines and lines starting with # are skipped. Relay, abort and drop
// actions describe outcomes the simulator computes itself; they are logged
// and ignored.
func ReadEvents(r io.Reader) ([]sim.Event, error) {
	var events []sim.Event
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := parseEvent(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("events line %d %q: %w", lineNo, line, err)
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return events, nil
}

// ReadEventsFile opens path and parses it with ReadEvents.
func ReadEventsFile(path string) ([]sim.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening events file: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}

// LoadEvents reads the scenario's events file, if any, and checks every
// event against the scenario's node set so that a bad trace is rejected
// before the clock starts.
func LoadEvents(sc *sim.Scenario) ([]sim.Event, error) {
	if sc.EventsFile == "" {
		return nil, nil
	}
	events, err := ReadEventsFile(sc.EventsFile)
	if err != nil {
		return nil, err
	}
	if err := CheckEvents(events, sc.NodeCount()); err != nil {
		return nil, fmt.Errorf("%s: %w", sc.EventsFile, err)
	}
	return events, nil
}

// CheckEvents verifies that external events only name nodes below n and
// that connection events join two distinct nodes.
func CheckEvents(events []sim.Event, n int) error {
	known := func(id sim.NodeID) bool { return id >= 0 && int(id) < n }
	for i, ev := range events {
		var a, b sim.NodeID
		pair := true
		switch e := ev.(type) {
		case *sim.ConnectionUpEvent:
			a, b = e.A, e.B
		case *sim.ConnectionDownEvent:
			a, b = e.A, e.B
		case *sim.MessageCreateEvent:
			a, b, pair = e.From, e.To, false
		default:
			continue
		}
		if !known(a) || !known(b) {
			return fmt.Errorf("%w: event %d (%s at %g) names node %d or %d, scenario has %d nodes",
				sim.ErrInvalidConfig, i, ev.Kind(), ev.Timestamp(), a, b, n)
		}
		if pair && a == b {
			return fmt.Errorf("%w: event %d (%s at %g) connects node %d to itself",
				sim.ErrInvalidConfig, i, ev.Kind(), ev.Timestamp(), a)
		}
	}
	return nil
}

func parseEvent(fields []string) (sim.Event, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: need at least time and action", sim.ErrInvalidConfig)
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad time: %v", sim.ErrInvalidConfig, err)
	}
	switch action := fields[1]; action {
	case actionCreate:
		if len(fields) < 6 {
			return nil, fmt.Errorf("%w: C needs <msgId> <from> <to> <size>", sim.ErrInvalidConfig)
		}
		from, err := hostAddress(fields[3])
		if err != nil {
			return nil, err
		}
		to, err := hostAddress(fields[4])
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("%w: bad size %q", sim.ErrInvalidConfig, fields[5])
		}
		return sim.NewMessageCreateEvent(t, fields[2], from, to, size), nil
	case actionConnection:
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: CONN needs <hostA> <hostB> up|down", sim.ErrInvalidConfig)
		}
		a, err := hostAddress(fields[2])
		if err != nil {
			return nil, err
		}
		b, err := hostAddress(fields[3])
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(fields[4]) {
		case "up":
			return sim.NewConnectionUpEvent(t, a, b, sim.SourceTrace), nil
		case "down":
			return sim.NewConnectionDownEvent(t, a, b, sim.SourceTrace), nil
		}
		return nil, fmt.Errorf("%w: unknown up/down value %q", sim.ErrInvalidConfig, fields[4])
	case "S", "DE", "A", "DR", "R":
		logrus.Debugf("events: ignoring %s action at %g", action, t)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", sim.ErrInvalidConfig, action)
	}
}

func hostAddress(id string) (sim.NodeID, error) {
	m := hostIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, fmt.Errorf("%w: invalid host id %q", sim.ErrInvalidConfig, id)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid host id %q", sim.ErrInvalidConfig, id)
	}
	return sim.NodeID(n), nil
}
