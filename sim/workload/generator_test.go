package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnsim/dtnsim/sim"
)

func testScenario() *sim.Scenario {
	sc := &sim.Scenario{
		Name: "gen", Seed: 1, Duration: 600, TTL: 60, Router: sim.RouterEpidemic,
		BufferSize: 1000, InterfaceRange: 10, Bandwidth: 100,
		Groups: []sim.GroupConfig{
			{Name: "cars", Count: 3, Waypoints: []sim.Coord{{X: 0, Y: 0}}},
			{Name: "hubs", Count: 2, Waypoints: []sim.Coord{{X: 50, Y: 0}}},
		},
		Workload: []sim.WorkloadConfig{
			{Process: "periodic", Interval: 60, SizeMin: 10, SizeMax: 20, Sources: []string{"cars"}, Destinations: []string{"hubs"}},
		},
	}
	sc.ApplyDefaults()
	return sc
}

func TestGenerate_PeriodicRespectsGroupsAndWindow(t *testing.T) {
	// GIVEN a periodic workload from cars to hubs over 600s
	sc := testScenario()

	// WHEN messages are generated
	events, err := Generate(sc, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	// THEN one message per minute from t=0 to t=600 inclusive
	require.Len(t, events, 11)
	hubs := sc.GroupNodes()["hubs"]
	cars := sc.GroupNodes()["cars"]
	for i, ev := range events {
		mc, ok := ev.(*sim.MessageCreateEvent)
		require.True(t, ok)
		assert.Equal(t, float64(i)*60, mc.Timestamp())
		assert.Contains(t, cars, mc.From)
		assert.Contains(t, hubs, mc.To)
		assert.GreaterOrEqual(t, mc.Size, int64(10))
		assert.LessOrEqual(t, mc.Size, int64(20))
	}
	assert.Equal(t, "M1", events[0].(*sim.MessageCreateEvent).ID)
	assert.Equal(t, "M11", events[10].(*sim.MessageCreateEvent).ID)
}

func TestGenerate_NeverAddressesSelf(t *testing.T) {
	// GIVEN sources and destinations drawn from the same group
	sc := testScenario()
	sc.Workload[0].Sources = nil
	sc.Workload[0].Destinations = nil
	sc.Workload[0].Interval = 1

	events, err := Generate(sc, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	// THEN no message has from == to
	for _, ev := range events {
		mc := ev.(*sim.MessageCreateEvent)
		assert.NotEqual(t, mc.From, mc.To)
	}
}

func TestGenerate_SameSeedSameTraffic(t *testing.T) {
	sc := testScenario()
	sc.Workload[0].Process = "poisson"
	sc.Workload[0].Rate = 0.05

	a, err := Generate(sc, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	b, err := Generate(sc, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_SingleNodeGroupToItself_Errors(t *testing.T) {
	sc := &sim.Scenario{
		Duration: 100,
		Groups:   []sim.GroupConfig{{Name: "solo", Count: 1}},
		Workload: []sim.WorkloadConfig{{Process: "periodic", Interval: 10, SizeMin: 1, SizeMax: 1, End: 100}},
	}
	_, err := Generate(sc, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}
