package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_NewAndTTL(t *testing.T) {
	m := NewMessage("M1", 3, 7, 100, 10, 60)

	assert.Equal(t, 70.0, m.Deadline)
	assert.Equal(t, []NodeID{3}, m.Hops)
	assert.Equal(t, 0, m.HopCount())
	assert.Equal(t, StateCreated, m.State)
	assert.Equal(t, 30.0, m.RemainingTTL(40))
	assert.False(t, m.Expired(69.999))
	assert.True(t, m.Expired(70))
	assert.True(t, m.HasVisited(3))
	assert.False(t, m.HasVisited(7))
}

func TestMessage_ReplicateIsIndependent(t *testing.T) {
	// GIVEN a held copy with spray metadata
	m := NewMessage("M1", 0, 5, 100, 0, 60)
	require.NoError(t, m.Transition(StateHeld))
	m.Meta.Copies = 4

	// WHEN it is replicated and the replica moves on
	c := m.Replicate()
	c.Hops = append(c.Hops, 2)
	c.Meta.Copies = 1

	// THEN the original is untouched and the replica starts a fresh lifecycle
	assert.Equal(t, []NodeID{0}, m.Hops)
	assert.Equal(t, 4, m.Meta.Copies)
	assert.Equal(t, StateHeld, m.State)
	assert.Equal(t, StateCreated, c.State)
	assert.Equal(t, 1, c.HopCount())
	assert.Equal(t, m.Deadline, c.Deadline)
}

func TestMessage_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []MessageState
		valid bool
	}{
		{"held then delivered", []MessageState{StateHeld, StateDelivered}, true},
		{"held then expired", []MessageState{StateHeld, StateExpired}, true},
		{"held then evicted", []MessageState{StateHeld, StateEvicted}, true},
		{"in flight dropped", []MessageState{StateDropped}, true},
		{"in flight delivered", []MessageState{StateDelivered}, true},
		{"expire before held", []MessageState{StateExpired}, false},
		{"leave terminal", []MessageState{StateHeld, StateDelivered, StateHeld}, false},
		{"held twice", []MessageState{StateHeld, StateHeld}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMessage("M", 0, 1, 1, 0, 10)
			var err error
			for _, s := range tt.path {
				if err = m.Transition(s); err != nil {
					break
				}
			}
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
