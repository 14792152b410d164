// Package testutil provides shared test infrastructure for the simulator:
// the golden dataset of expected run summaries and float assertion helpers
// used across the sim/ test packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// GoldenDataset represents the structure of testdata/golden.yaml.
type GoldenDataset struct {
	Cases []GoldenCase `yaml:"cases"`
}

// GoldenCase pairs a scenario file under testdata/scenarios/ with the
// summary a run of it must produce.
type GoldenCase struct {
	Name     string        `yaml:"name"`
	Scenario string        `yaml:"scenario"`
	Summary  trace.Summary `yaml:"summary"`
}

// testdataDir resolves the repo-root testdata directory relative to this
// source file: sim/internal/testutil/ → testdata/.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata")
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(testdataDir(t), "golden.yaml"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}
	var dataset GoldenDataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// ScenarioPath returns the path of a scenario file under testdata/scenarios/.
func ScenarioPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testdataDir(t), "scenarios", name)
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSummaryEqual checks every field of a run summary: counts exactly,
// ratios and latencies within relTol.
func AssertSummaryEqual(t *testing.T, want, got *trace.Summary, relTol float64) {
	t.Helper()
	for _, c := range []struct {
		name      string
		want, got int
	}{
		{"created", want.Created, got.Created},
		{"delivered", want.Delivered, got.Delivered},
		{"relayed", want.Relayed, got.Relayed},
		{"aborted", want.Aborted, got.Aborted},
		{"expired", want.Expired, got.Expired},
		{"contacts", want.Contacts, got.Contacts},
	} {
		if c.want != c.got {
			t.Errorf("%s: got %d, want %d", c.name, c.got, c.want)
		}
	}
	AssertFloat64Equal(t, "deliveryRatio", want.DeliveryRatio, got.DeliveryRatio, relTol)
	AssertFloat64Equal(t, "overhead", want.Overhead, got.Overhead, relTol)
	AssertFloat64Equal(t, "meanLatency", want.MeanLatency, got.MeanLatency, relTol)
	AssertFloat64Equal(t, "maxLatency", want.MaxLatency, got.MaxLatency, relTol)
	AssertFloat64Equal(t, "latencyP50", want.LatencyP50, got.LatencyP50, relTol)
	AssertFloat64Equal(t, "latencyP90", want.LatencyP90, got.LatencyP90, relTol)
	AssertFloat64Equal(t, "latencyP99", want.LatencyP99, got.LatencyP99, relTol)
	AssertFloat64Equal(t, "meanHops", want.MeanHops, got.MeanHops, relTol)
	if len(want.Drops) != len(got.Drops) {
		t.Errorf("drops: got %v, want %v", got.Drops, want.Drops)
		return
	}
	for reason, n := range want.Drops {
		if got.Drops[reason] != n {
			t.Errorf("drops[%s]: got %d, want %d", reason, got.Drops[reason], n)
		}
	}
}
