// Package trace provides decision-trace recording for scheduling analysis.
// This package has no dependencies on sim/ and stores pure data types.
//
// Every record's Clock is the tick boundary at which the event takes effect.
// Admissions and dispatches happen at the start of tick t and carry t.
// Preemptions, completions and stalls after a finished burst happen at the
// end of tick t and carry t+1, so they sort before the next tick's dispatches.
package trace

// Resource names the slot kind a dispatch targeted.
type Resource string

const (
	ResourceCPU Resource = "CPU"
	ResourceIO  Resource = "IO"
)

// ArrivalRecord captures a job being admitted into the simulation.
type ArrivalRecord struct {
	JobID    int
	Clock    int64
	Priority int
	Stalled  bool // first burst was not available at admission
}

// DispatchRecord captures a job being placed on a CPU or IO slot.
type DispatchRecord struct {
	JobID     int
	Clock     int64
	Resource  Resource
	Slot      int
	Quantum   int64 // 0 = runs until the burst completes
	Remaining int64
	Level     int
}

// PreemptionRecord captures a quantum expiry that sent a job back to the ready queue.
type PreemptionRecord struct {
	JobID     int
	Clock     int64
	Slot      int
	Remaining int64
	FromLevel int
	ToLevel   int
}

// CompletionRecord captures a job leaving the system.
type CompletionRecord struct {
	JobID      int
	Clock      int64 // completion time
	Turnaround int64
	Waiting    int64
}

// StallRecord captures a failed or empty next-burst fetch.
type StallRecord struct {
	JobID  int
	Clock  int64
	Reason string
}
