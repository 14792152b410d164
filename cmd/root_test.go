package cmd

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	sim "github.com/dtnsim/dtnsim/sim"
	"github.com/dtnsim/dtnsim/sim/trace"
	"github.com/dtnsim/dtnsim/sim/workload"
)

const pairScenario = `
name: pair
seed: 3
duration: 30
ttl: 60
router: epidemic
bufferSize: 10000
interfaceRange: 50
bandwidth: 1000
groups:
  - name: a
    count: 1
    waypoints: [{x: 0, y: 0}]
  - name: b
    count: 1
    waypoints: [{x: 10, y: 0}]
workload:
  - process: periodic
    interval: 10
    end: 20
    sizeMin: 100
    sources: [a]
    destinations: [b]
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_AppliesOnlyChangedFlags(t *testing.T) {
	// GIVEN a scenario with seed 3 and router epidemic
	configPath = writeScenario(t, pairScenario)
	t.Cleanup(func() {
		configPath = ""
		seed, routerName = 42, ""
		runCmd.Flags().Lookup("seed").Changed = false
		runCmd.Flags().Lookup("router").Changed = false
	})

	// WHEN no flag is set
	sc, err := loadScenario(runCmd)
	require.NoError(t, err)

	// THEN the file values hold, despite the flag defaults
	assert.Equal(t, int64(3), sc.Seed)
	assert.Equal(t, sim.RouterEpidemic, sc.Router)

	// WHEN --seed and --router are set
	require.NoError(t, runCmd.Flags().Set("seed", "99"))
	require.NoError(t, runCmd.Flags().Set("router", "prophet"))
	sc, err = loadScenario(runCmd)
	require.NoError(t, err)

	// THEN they override the file
	assert.Equal(t, int64(99), sc.Seed)
	assert.Equal(t, sim.RouterProphet, sc.Router)

	// WHEN the router override is unknown
	require.NoError(t, runCmd.Flags().Set("router", "flooding"))
	_, err = loadScenario(runCmd)

	// THEN the scenario is rejected
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestLoadScenario_DurationFlagExtendsWorkload(t *testing.T) {
	// GIVEN a 30s scenario whose workload runs until the end of the scenario
	configPath = writeScenario(t, strings.Replace(pairScenario, "    end: 20\n", "", 1))
	t.Cleanup(func() {
		configPath = ""
		duration = 0
		runCmd.Flags().Lookup("duration").Changed = false
	})

	// WHEN --duration stretches the run to 100s
	require.NoError(t, runCmd.Flags().Set("duration", "100"))
	sc, err := loadScenario(runCmd)
	require.NoError(t, err)
	messages, err := workload.Generate(sc, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// THEN messages keep coming every 10s up to the new horizon
	assert.Equal(t, 100.0, sc.Duration)
	require.Len(t, messages, 11)
	assert.Equal(t, 100.0, messages[10].Timestamp())
}

func TestRunScenario_RejectsEventsForUnknownNodes(t *testing.T) {
	// GIVEN an events file that connects node 0 to a node the scenario lacks
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.txt"), []byte("1 CONN 0 1 up\n20 CONN n0 n5 up\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pairScenario+"eventsFile: contacts.txt\n"), 0o644))
	sc, err := sim.LoadScenario(path)
	require.NoError(t, err)
	out := filepath.Join(dir, "events.msgpack")

	// WHEN the scenario runs
	_, err = runScenario(context.Background(), sc, runOptions{RunID: "test", EventsOut: out})

	// THEN it is rejected as configuration before any event is processed
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := trace.ReadAll(f)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadScenario_RequiresConfig(t *testing.T) {
	configPath = ""
	_, err := loadScenario(validateCmd)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestRunScenario_DeliversAndWritesFeed(t *testing.T) {
	// GIVEN two static nodes in range and three messages from a to b
	sc, err := sim.LoadScenario(writeScenario(t, pairScenario))
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "events.msgpack")

	// WHEN the scenario runs with a feed file
	summary, err := runScenario(context.Background(), sc, runOptions{RunID: "test", EventsOut: out})
	require.NoError(t, err)

	// THEN every message is delivered over one contact
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 3, summary.Delivered)
	assert.Equal(t, 1.0, summary.DeliveryRatio)
	assert.Equal(t, 1, summary.Contacts)
	assert.Equal(t, 1.0, summary.MeanHops)

	// AND the feed file decodes to the same deliveries
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := trace.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, 3, trace.Summarize(records).Delivered)
}

func TestRunScenario_CancelledContext(t *testing.T) {
	sc, err := sim.LoadScenario(writeScenario(t, pairScenario))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = runScenario(ctx, sc, runOptions{RunID: "test"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummary_YAML(t *testing.T) {
	sc := &sim.Scenario{Name: "pair", Router: sim.RouterEpidemic, Seed: 3, Duration: 30}
	summary := &trace.Summary{Created: 2, Delivered: 1, DeliveryRatio: 0.5, Drops: map[string]int{"expired": 1}}

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, sc, summary))

	var got runReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "pair", got.Scenario)
	assert.Equal(t, sim.RouterEpidemic, got.Router)
	assert.Equal(t, 0.5, got.Summary.DeliveryRatio)
	assert.Equal(t, 1, got.Summary.Drops["expired"])
}
