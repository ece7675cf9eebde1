// Package testutil provides shared test infrastructure for the scheduler.
// It holds the golden scenario dataset types and assertion helpers used by
// the engine's end-to-end tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one fully specified run: policy, resources, workload and
// the metrics it must produce.
type GoldenTestCase struct {
	Name         string        `json:"name"`
	Policy       string        `json:"policy"`
	CPUs         int           `json:"cpus"`
	IOs          int           `json:"ios"`
	TimeSlice    int64         `json:"time_slice"`
	TimeQuantums []int64       `json:"time_quantums"`
	Jobs         []GoldenJob   `json:"jobs"`
	Metrics      GoldenMetrics `json:"metrics"`
}

// GoldenJob mirrors a workload job without depending on the sim packages.
type GoldenJob struct {
	ID       int           `json:"id"`
	Arrival  int64         `json:"arrival"`
	Priority *int          `json:"priority,omitempty"`
	Bursts   []GoldenBurst `json:"bursts"`
}

// GoldenBurst is one CPU or IO burst.
type GoldenBurst struct {
	Type     string `json:"type"`
	Duration int64  `json:"duration"`
}

// GoldenMetrics represents the expected metrics from a golden test case.
type GoldenMetrics struct {
	// Exact match metrics (integers)
	CompletedJobs int   `json:"completed_jobs"`
	ElapsedTicks  int64 `json:"elapsed_ticks"`

	// Derived averages and utilizations (percent)
	AvgTurnaround  float64 `json:"avg_turnaround_time"`
	AvgWaiting     float64 `json:"avg_waiting_time"`
	CPUUtilization float64 `json:"cpu_utilization"`
	IOUtilization  float64 `json:"io_utilization"`

	// Completion tick per job ID
	Completions map[string]int64 `json:"completions"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
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
