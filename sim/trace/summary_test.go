package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)

	assert.Equal(t, 0, summary.TotalArrivals)
	assert.Empty(t, summary.SlotDistribution)
	assert.Empty(t, summary.PreemptionsPerJob)
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.CPUDispatches != 0 || summary.IODispatches != 0 {
		t.Error("expected 0 dispatches")
	}
	if summary.MeanTurnaround != 0 || summary.MaxTurnaround != 0 {
		t.Error("expected 0 turnaround values")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with dispatches on two CPUs and one IO device
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordArrival(ArrivalRecord{JobID: 1})
	st.RecordArrival(ArrivalRecord{JobID: 2})
	st.RecordDispatch(DispatchRecord{JobID: 1, Resource: ResourceCPU, Slot: 0})
	st.RecordDispatch(DispatchRecord{JobID: 2, Resource: ResourceCPU, Slot: 1})
	st.RecordDispatch(DispatchRecord{JobID: 1, Resource: ResourceIO, Slot: 0})
	st.RecordDispatch(DispatchRecord{JobID: 1, Resource: ResourceCPU, Slot: 0})
	st.RecordPreemption(PreemptionRecord{JobID: 2})
	st.RecordPreemption(PreemptionRecord{JobID: 2})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	assert.Equal(t, 2, summary.TotalArrivals)
	assert.Equal(t, 3, summary.CPUDispatches)
	assert.Equal(t, 1, summary.IODispatches)
	assert.Equal(t, map[string]int{"CPU0": 2, "CPU1": 1, "IO0": 1}, summary.SlotDistribution)
	assert.Equal(t, 2, summary.Preemptions)
	assert.Equal(t, 2, summary.PreemptionsPerJob[2])
}

func TestSummarize_Completions_CorrectMeanAndMax(t *testing.T) {
	// GIVEN completions with known turnaround and waiting
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	st.RecordCompletion(CompletionRecord{JobID: 1, Turnaround: 4, Waiting: 0})
	st.RecordCompletion(CompletionRecord{JobID: 2, Turnaround: 7, Waiting: 4})
	st.RecordCompletion(CompletionRecord{JobID: 3, Turnaround: 9, Waiting: 7})

	// WHEN summarized
	summary := Summarize(st)

	// THEN mean and max are computed over completions
	assert.Equal(t, 3, summary.Completions)
	assert.InDelta(t, 20.0/3.0, summary.MeanTurnaround, 1e-9)
	assert.Equal(t, int64(9), summary.MaxTurnaround)
	assert.InDelta(t, 11.0/3.0, summary.MeanWaiting, 1e-9)
}
