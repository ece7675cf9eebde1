package trace

import "fmt"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalArrivals  int
	CPUDispatches  int
	IODispatches   int
	Preemptions    int
	Completions    int
	Stalls         int
	MeanTurnaround float64
	MaxTurnaround  int64
	MeanWaiting    float64
	// SlotDistribution maps "CPU0", "IO1", ... to the number of dispatches onto that slot.
	SlotDistribution map[string]int
	// PreemptionsPerJob maps a job ID to how often it was preempted.
	PreemptionsPerJob map[int]int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SlotDistribution:  make(map[string]int),
		PreemptionsPerJob: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalArrivals = len(st.Arrivals)
	summary.Stalls = len(st.Stalls)

	for _, d := range st.Dispatches {
		switch d.Resource {
		case ResourceCPU:
			summary.CPUDispatches++
		case ResourceIO:
			summary.IODispatches++
		}
		summary.SlotDistribution[fmt.Sprintf("%s%d", d.Resource, d.Slot)]++
	}

	summary.Preemptions = len(st.Preemptions)
	for _, p := range st.Preemptions {
		summary.PreemptionsPerJob[p.JobID]++
	}

	if len(st.Completions) > 0 {
		var totalTA, totalW int64
		for _, c := range st.Completions {
			totalTA += c.Turnaround
			totalW += c.Waiting
			if c.Turnaround > summary.MaxTurnaround {
				summary.MaxTurnaround = c.Turnaround
			}
		}
		summary.Completions = len(st.Completions)
		summary.MeanTurnaround = float64(totalTA) / float64(len(st.Completions))
		summary.MeanWaiting = float64(totalW) / float64(len(st.Completions))
	}

	return summary
}
