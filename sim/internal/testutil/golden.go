// Package testutil provides shared test infrastructure for the marketplace
// simulator. It holds the golden scenario types and assertion helpers used
// across sim/ and sim/workload/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_scenarios.json.
type GoldenDataset struct {
	Tests []GoldenScenario `json:"tests"`
}

// GoldenScenario is one catalog + consumer population with expected results.
type GoldenScenario struct {
	Name      string           `json:"name"`
	MaxTime   int64            `json:"max_time"`
	TieBreak  string           `json:"tie_break"`
	Instances []GoldenInstance `json:"instances"`
	Consumers GoldenConsumers  `json:"consumers"`
	Expected  GoldenExpected   `json:"expected"`
}

// GoldenInstance mirrors one catalog entry.
type GoldenInstance struct {
	Name                  string  `json:"name"`
	Capacity              float64 `json:"capacity"`
	UnitDuration          int64   `json:"unit_duration"`
	UnitBaseCost          float64 `json:"unit_base_cost"`
	LeaseLength           int64   `json:"lease_length"`
	LeaseDownPayment      float64 `json:"lease_down_payment"`
	LeaseUnitCostFraction float64 `json:"lease_unit_cost_fraction"`
}

// GoldenConsumers holds the parallel consumer spec sequences.
type GoldenConsumers struct {
	Work      []float64 `json:"work"`
	StartTime []int64   `json:"start_time"`
}

// GoldenExpected is the expected outcome of a scenario.
type GoldenExpected struct {
	Income    float64                  `json:"income"`
	EndTime   int64                    `json:"end_time"`
	Consumers []GoldenConsumerExpected `json:"consumers"`
	Instances []GoldenInstanceExpected `json:"instances"`
}

// GoldenConsumerExpected is the expected record of one consumer.
type GoldenConsumerExpected struct {
	Name       string  `json:"name"`
	TotalSpent float64 `json:"total_spent"`
	FinishTime int64   `json:"finish_time"`
	IdleTime   int64   `json:"idle_time"`
	Purchases  int     `json:"purchases"`
	Finished   bool    `json:"finished"`
}

// GoldenInstanceExpected is the expected statistics of one instance.
type GoldenInstanceExpected struct {
	Name        string  `json:"name"`
	Invocations int     `json:"invocations"`
	Income      float64 `json:"income"`
	WorkDone    float64 `json:"work_done"`
	TimeBilled  int64   `json:"time_billed"`
	UnusedTime  int64   `json:"unused_time"`
}

// LoadGoldenDataset loads the golden scenarios from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_scenarios.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
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
