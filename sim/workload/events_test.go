package workload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim"
)

func TestReadEvents_ParsesCreateAndConnections(t *testing.T) {
	// GIVEN a trace with comments, relay actions and host name prefixes
	input := `# contact trace
0 CONN n0 n1 up

12.5 C M1 0 1 500 100
13 S M1 0 1
20 CONN 0 p1 down wlan0
21 DR M1 0
`
	// WHEN it is read
	events, err := ReadEvents(strings.NewReader(input))
	require.NoError(t, err)

	// THEN only the C and CONN lines produce events
	require.Len(t, events, 3)

	up, ok := events[0].(*sim.ConnectionUpEvent)
	require.True(t, ok)
	assert.Equal(t, 0.0, up.Timestamp())
	assert.Equal(t, sim.NodeID(0), up.A)
	assert.Equal(t, sim.NodeID(1), up.B)
	assert.Equal(t, sim.SourceTrace, up.Source)

	mc, ok := events[1].(*sim.MessageCreateEvent)
	require.True(t, ok)
	assert.Equal(t, 12.5, mc.Timestamp())
	assert.Equal(t, "M1", mc.ID)
	assert.Equal(t, sim.NodeID(0), mc.From)
	assert.Equal(t, sim.NodeID(1), mc.To)
	assert.Equal(t, int64(500), mc.Size)

	down, ok := events[2].(*sim.ConnectionDownEvent)
	require.True(t, ok)
	assert.Equal(t, sim.NodeID(1), down.B)
	assert.Equal(t, sim.SourceTrace, down.Source)
}

func TestReadEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"bad time", "x C M1 0 1 10", "line 1"},
		{"short create", "0 C M1 0 1", "line 1"},
		{"bad size", "\n0 C M1 0 1 -5", "line 2"},
		{"bad host", "0 CONN a b up", "line 1"},
		{"bad state", "0 CONN 0 1 sideways", "line 1"},
		{"unknown action", "0 ZZ", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEvents(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, sim.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestHostAddress(t *testing.T) {
	tests := []struct {
		in   string
		want sim.NodeID
		ok   bool
	}{
		{"7", 7, true},
		{"n12", 12, true},
		{"car003", 3, true},
		{"n1x", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := hostAddress(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadEventsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("5 CONN 2 3 up\n"), 0o644))

	events, err := ReadEventsFile(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 5.0, events[0].Timestamp())

	_, err = ReadEventsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestCheckEvents(t *testing.T) {
	tests := []struct {
		name    string
		event   sim.Event
		wantErr bool
	}{
		{name: "known pair", event: sim.NewConnectionUpEvent(1, 0, 2, sim.SourceTrace)},
		{name: "known message", event: sim.NewMessageCreateEvent(1, "M1", 2, 0, 10)},
		{name: "unknown host up", event: sim.NewConnectionUpEvent(1, 0, 3, sim.SourceTrace), wantErr: true},
		{name: "unknown host down", event: sim.NewConnectionDownEvent(1, 7, 1, sim.SourceTrace), wantErr: true},
		{name: "self connection", event: sim.NewConnectionUpEvent(1, 1, 1, sim.SourceTrace), wantErr: true},
		{name: "message from unknown node", event: sim.NewMessageCreateEvent(1, "M1", 5, 0, 10), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a scenario with three nodes
			// WHEN the event is checked
			err := CheckEvents([]sim.Event{tt.event}, 3)

			// THEN only events naming real, distinct nodes pass
			if tt.wantErr {
				assert.ErrorIs(t, err, sim.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadEvents_RejectsUnknownHostsBeforeRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("5 CONN 0 1 up\n9 CONN 1 n4 up\n"), 0o644))
	sc := &sim.Scenario{EventsFile: path, Groups: []sim.GroupConfig{{Name: "n", Count: 2}}}

	_, err := LoadEvents(sc)

	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "node 1 or 4")

	events, err := LoadEvents(&sim.Scenario{Groups: sc.Groups})
	require.NoError(t, err)
	assert.Empty(t, events, "no events file means no external events")
}
