package sim

import (
	"context"
	"testing"

	"github.com/inference-sim/cpusched/sim/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_FCFS_SingleCPU_CompletesInArrivalOrder(t *testing.T) {
	// GIVEN three CPU-only jobs arriving together with bursts 4, 3, 2
	src := newScriptSource(job(1, 0, cpu(4)), job(2, 0, cpu(3)), job(3, 0, cpu(2)))

	// WHEN run under FCFS on one CPU and no IO devices
	_, res := runSim(t, NewConfig(PolicyFCFS, 1, 0), src)

	// THEN jobs finish back to back
	m := res.Metrics
	for _, tc := range []struct {
		id                              JobID
		completion, turnaround, waiting int64
	}{
		{1, 4, 4, 0},
		{2, 7, 7, 4},
		{3, 9, 9, 7},
	} {
		c, ta, w := record(t, m, tc.id)
		assert.Equal(t, tc.completion, c, "job %d completion", tc.id)
		assert.Equal(t, tc.turnaround, ta, "job %d turnaround", tc.id)
		assert.Equal(t, tc.waiting, w, "job %d waiting", tc.id)
	}
	avgTA, avgW, util := m.Calculate()
	assert.InDelta(t, 20.0/3, avgTA, 1e-9)
	assert.InDelta(t, 11.0/3, avgW, 1e-9)
	assert.InDelta(t, 100.0, util, 1e-9)
	assert.Equal(t, []JobID{1, 2, 3}, res.Terminated)
	assert.Equal(t, int64(9), res.EndClock)
}

func TestSimulator_RoundRobin_SingleJob_PreemptedAndRedispatched(t *testing.T) {
	// GIVEN one job with a 5-tick CPU burst and a 2-tick slice
	src := newScriptSource(job(1, 0, cpu(5)))
	cfg := NewConfig(PolicyRoundRobin, 1, 0)
	cfg.TimeSlice = 2
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN the run completes
	_, res := runSim(t, cfg, src, WithTrace(st))

	// THEN it ran 2+2+1 ticks with no queueing delay
	c, ta, w := record(t, res.Metrics, 1)
	assert.Equal(t, int64(5), c)
	assert.Equal(t, int64(5), ta)
	assert.Equal(t, int64(0), w)
	_, _, util := res.Metrics.Calculate()
	assert.InDelta(t, 100.0, util, 1e-9)

	require.Len(t, st.Dispatches, 3)
	var quantums []int64
	for _, d := range st.Dispatches {
		quantums = append(quantums, d.Quantum)
	}
	assert.Equal(t, []int64{2, 2, 1}, quantums)
	assert.Len(t, st.Preemptions, 2)
}

func TestSimulator_Priority_NonPreemptive(t *testing.T) {
	// GIVEN A (priority 5, burst 3) at tick 0 and B (priority 1, burst 2) at tick 1
	src := newScriptSource(
		jobWithPriority(1, 0, 5, cpu(3)),
		jobWithPriority(2, 1, 1, cpu(2)),
	)

	// WHEN run under priority scheduling
	_, res := runSim(t, NewConfig(PolicyPriority, 1, 0), src)

	// THEN the running job is not displaced by the more urgent arrival
	c, ta, w := record(t, res.Metrics, 1)
	assert.Equal(t, []int64{3, 3, 0}, []int64{c, ta, w}, "job A")
	c, ta, w = record(t, res.Metrics, 2)
	assert.Equal(t, []int64{5, 4, 2}, []int64{c, ta, w}, "job B")
}

func TestSimulator_Priority_MostUrgentReadyJobDispatchedFirst(t *testing.T) {
	// GIVEN three jobs arriving together with priorities 5, 7 and 2
	src := newScriptSource(
		jobWithPriority(1, 0, 5, cpu(2)),
		jobWithPriority(2, 0, 7, cpu(1)),
		jobWithPriority(3, 0, 2, cpu(1)),
	)

	// WHEN the run completes
	_, res := runSim(t, NewConfig(PolicyPriority, 1, 0), src)

	// THEN dispatch followed priority, not arrival order
	assert.Equal(t, []JobID{3, 1, 2}, res.Terminated)
}

func TestSimulator_Priority_MissingPriorityUsesDefault(t *testing.T) {
	// GIVEN a job without a priority next to one with priority 11
	src := newScriptSource(
		jobWithPriority(1, 0, 11, cpu(1)),
		job(2, 0, cpu(1)),
	)
	cfg := NewConfig(PolicyPriority, 1, 0)

	// WHEN run
	s, res := runSim(t, cfg, src)

	// THEN the unprioritized job gets DefaultPriority (10) and goes first
	assert.Equal(t, []JobID{2, 1}, res.Terminated)
	j, ok := s.Job(2)
	require.True(t, ok)
	assert.Equal(t, DefaultPriority, j.Priority)
}

func TestSimulator_MLFQ_DemotesAfterQuantum(t *testing.T) {
	// GIVEN one 5-tick CPU burst and quantums [2, 4]
	src := newScriptSource(job(1, 0, cpu(5)))
	cfg := NewConfig(PolicyMLFQ, 1, 0)
	cfg.MLFQ.Quantums = []int64{2, 4}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN the run completes
	s, res := runSim(t, cfg, src, WithTrace(st))

	// THEN it ran two ticks at level 0, then three at level 1
	c, _, _ := record(t, res.Metrics, 1)
	assert.Equal(t, int64(5), c)
	require.Len(t, st.Dispatches, 2)
	assert.Equal(t, 0, st.Dispatches[0].Level)
	assert.Equal(t, int64(2), st.Dispatches[0].Quantum)
	assert.Equal(t, 1, st.Dispatches[1].Level)
	assert.Equal(t, int64(4), st.Dispatches[1].Quantum)
	require.Len(t, st.Preemptions, 1)
	assert.Equal(t, 0, st.Preemptions[0].FromLevel)
	assert.Equal(t, 1, st.Preemptions[0].ToLevel)

	// AND the preemption is stamped at the boundary where the job is redispatched
	assert.Equal(t, int64(2), st.Preemptions[0].Clock)
	assert.Equal(t, st.Preemptions[0].Clock, st.Dispatches[1].Clock)
	require.Len(t, st.Completions, 1)
	assert.Equal(t, c, st.Completions[0].Clock)

	j, _ := s.Job(1)
	assert.Equal(t, 1, j.Level)
}

func TestSimulator_MLFQ_NewCPUBurstResetsLevel(t *testing.T) {
	// GIVEN a job demoted during its first CPU burst, then an IO burst and a second CPU burst
	src := newScriptSource(job(1, 0, cpu(3), ioB(1), cpu(1)))
	cfg := NewConfig(PolicyMLFQ, 1, 1)
	cfg.MLFQ.Quantums = []int64{1, 4}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN the run completes
	runSim(t, cfg, src, WithTrace(st))

	// THEN the last CPU dispatch is back at level 0
	var cpuLevels []int
	for _, d := range st.Dispatches {
		if d.Resource == trace.ResourceCPU {
			cpuLevels = append(cpuLevels, d.Level)
		}
	}
	assert.Equal(t, []int{0, 1, 0}, cpuLevels)
}

func TestSimulator_MLFQ_LevelNeverDecreasesWithoutAging(t *testing.T) {
	// GIVEN several single-burst jobs competing on one CPU
	src := newScriptSource(
		job(1, 0, cpu(7)), job(2, 0, cpu(5)), job(3, 1, cpu(9)), job(4, 3, cpu(2)),
	)
	cfg := NewConfig(PolicyMLFQ, 1, 0)
	cfg.MLFQ.Quantums = []int64{1, 2, 4}
	rec := &snapshotRecorder{}

	// WHEN the run completes
	runSim(t, cfg, src, WithVisualizer(rec))

	// THEN each job's level only moves down the hierarchy
	last := make(map[JobID]int)
	for _, snap := range rec.snaps {
		var seen []JobView
		for _, level := range snap.Ready {
			seen = append(seen, level...)
		}
		for _, slot := range snap.CPUs {
			if slot.Busy {
				seen = append(seen, slot.Job)
			}
		}
		for _, v := range seen {
			if v.Level < last[v.ID] {
				t.Errorf("tick %d: job %d went from level %d to %d", snap.Clock, v.ID, last[v.ID], v.Level)
			}
			last[v.ID] = v.Level
		}
	}
	assert.Equal(t, 2, last[3], "the longest job sinks to the last level")
}

func TestSimulator_MLFQ_AgingPromotesStarvedJob(t *testing.T) {
	// GIVEN a long job demoted to level 1 while short jobs keep arriving at level 0
	src := newScriptSource(
		job(1, 0, cpu(6)),
		job(2, 1, cpu(1)), job(3, 2, cpu(1)), job(4, 3, cpu(1)), job(5, 4, cpu(1)),
	)
	cfg := NewConfig(PolicyMLFQ, 1, 0)
	cfg.MLFQ.Quantums = []int64{1, 8}
	cfg.MLFQ.AgingThreshold = 2
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN the run completes
	runSim(t, cfg, src, WithTrace(st))

	// THEN job 1 is dispatched again from level 0 before the newcomers are all served
	var levels []int
	for _, d := range st.Dispatches {
		if d.JobID == 1 {
			levels = append(levels, d.Level)
		}
	}
	require.GreaterOrEqual(t, len(levels), 2)
	assert.Equal(t, 0, levels[1], "aged job is dispatched at level 0")
}

func TestSimulator_MultiBurstJob(t *testing.T) {
	// GIVEN a job with bursts CPU:2, IO:3, CPU:1
	src := newScriptSource(job(1, 0, cpu(2), ioB(3), cpu(1)))

	// WHEN run under FCFS with one CPU and one IO device
	_, res := runSim(t, NewConfig(PolicyFCFS, 1, 1), src)

	// THEN waiting counts everything except CPU service
	rec := res.Metrics.Jobs[1]
	c, ta, w := record(t, res.Metrics, 1)
	assert.Equal(t, int64(6), c)
	assert.Equal(t, int64(6), ta)
	assert.Equal(t, int64(3), w)
	assert.Equal(t, int64(3), rec.ServiceTime)
	assert.Equal(t, int64(6), rec.TotalBurstTime)

	_, _, util := res.Metrics.Calculate()
	assert.InDelta(t, 50.0, util, 1e-9)
	assert.InDelta(t, 50.0, res.Metrics.IOUtilization(), 1e-9)
}

func TestSimulator_NoJobs_TerminatesWithZeroMetrics(t *testing.T) {
	// GIVEN a source that never produces a job
	src := newScriptSource()

	// WHEN run
	_, res := runSim(t, NewConfig(PolicyFCFS, 1, 1), src)

	// THEN the run stops after one tick and every average is zero
	ta, w, util := res.Metrics.Calculate()
	assert.Equal(t, []float64{0, 0, 0}, []float64{ta, w, util})
	assert.Empty(t, res.Terminated)
	assert.Equal(t, int64(1), res.EndClock)
}

func TestSimulator_MultipleCPUs_RunInParallel(t *testing.T) {
	// GIVEN three jobs and two CPUs
	src := newScriptSource(job(1, 0, cpu(3)), job(2, 0, cpu(3)), job(3, 0, cpu(2)))
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN run under FCFS
	_, res := runSim(t, NewConfig(PolicyFCFS, 2, 0), src, WithTrace(st))

	// THEN slots fill in ascending index order and job 3 waits for the first free CPU
	c1, _, _ := record(t, res.Metrics, 1)
	c2, _, _ := record(t, res.Metrics, 2)
	c3, _, w3 := record(t, res.Metrics, 3)
	assert.Equal(t, []int64{3, 3, 5}, []int64{c1, c2, c3})
	assert.Equal(t, int64(3), w3)
	assert.Equal(t, 0, st.Dispatches[0].Slot)
	assert.Equal(t, 1, st.Dispatches[1].Slot)

	_, _, util := res.Metrics.Calculate()
	assert.InDelta(t, 80.0, util, 1e-9, "8 busy slot-ticks over 5 ticks x 2 CPUs")
}

func TestSimulator_IOQueue_ServedInOrder(t *testing.T) {
	// GIVEN two jobs whose IO bursts contend for one device
	src := newScriptSource(job(1, 0, cpu(1), ioB(2), cpu(1)), job(2, 0, cpu(1), ioB(2), cpu(1)))

	// WHEN run
	_, res := runSim(t, NewConfig(PolicyFCFS, 1, 1), src)

	// THEN the second job's IO waits for the first
	c1, _, _ := record(t, res.Metrics, 1)
	c2, _, _ := record(t, res.Metrics, 2)
	assert.Equal(t, int64(4), c1)
	assert.Equal(t, int64(6), c2)
}

func TestSimulator_RoundRobin_ConsecutiveRunBoundedBySlice(t *testing.T) {
	// GIVEN several jobs with long bursts and a 3-tick slice on two CPUs
	src := newScriptSource(
		job(1, 0, cpu(10)), job(2, 0, cpu(4), ioB(2), cpu(7)), job(3, 2, cpu(8)), job(4, 5, cpu(1)),
	)
	cfg := NewConfig(PolicyRoundRobin, 2, 1)
	cfg.TimeSlice = 3
	rec := &snapshotRecorder{}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN the run completes
	runSim(t, cfg, src, WithVisualizer(rec), WithTrace(st))

	// THEN no grant exceeds the slice
	for _, d := range st.Dispatches {
		if d.Resource == trace.ResourceCPU && (d.Quantum < 1 || d.Quantum > cfg.TimeSlice) {
			t.Errorf("job %d dispatched at tick %d with quantum %d", d.JobID, d.Clock, d.Quantum)
		}
	}

	// AND every run observed in the snapshots lasts exactly min(remaining burst at dispatch, slice)
	type run struct {
		job   JobID
		ticks int64
		bound int64
	}
	running := make(map[int]run)
	checkEnded := func(clock int64, slot int, r run) {
		if length := r.ticks + 1; length != r.bound {
			t.Errorf("tick %d: job %d ran %d consecutive ticks on CPU %d, want %d", clock, r.job, length, slot, r.bound)
		}
	}
	observed := 0
	for _, snap := range rec.snaps {
		for _, slot := range snap.CPUs {
			prev, hadRun := running[slot.Index]
			continues := slot.Busy && hadRun && slot.Job.ID == prev.job && slot.RunTicks == prev.ticks+1
			if hadRun && !continues {
				checkEnded(snap.Clock, slot.Index, prev)
				delete(running, slot.Index)
			}
			if !slot.Busy {
				continue
			}
			if !continues && slot.RunTicks != 1 {
				t.Errorf("tick %d: CPU %d shows job %d at run tick %d without an earlier tick", snap.Clock, slot.Index, slot.Job.ID, slot.RunTicks)
			}
			bound := min(slot.Job.Remaining+slot.RunTicks, cfg.TimeSlice)
			if slot.RunTicks >= bound {
				t.Errorf("tick %d: job %d still on CPU %d after %d ticks, bound %d", snap.Clock, slot.Job.ID, slot.Index, slot.RunTicks, bound)
			}
			running[slot.Index] = run{job: slot.Job.ID, ticks: slot.RunTicks, bound: bound}
			observed++
		}
	}
	assert.Empty(t, running, "every run ends before the final snapshot")
	assert.Positive(t, observed)
}

func TestSimulator_Snapshot_PartitionsEveryAdmittedJob(t *testing.T) {
	// GIVEN a mixed workload
	src := newScriptSource(
		job(1, 0, cpu(3), ioB(2), cpu(1)), job(2, 1, cpu(1), ioB(4), cpu(2)),
		job(3, 2, cpu(2)), job(4, 2, cpu(1), ioB(1), cpu(1), ioB(1), cpu(1)),
	)
	rec := &snapshotRecorder{}

	// WHEN run with a snapshot observer
	_, res := runSim(t, NewConfig(PolicyFCFS, 1, 1), src, WithVisualizer(rec))

	// THEN each snapshot places every admitted job in exactly one container
	require.NotEmpty(t, rec.snaps)
	for _, snap := range rec.snaps {
		seen := make(map[JobID]int)
		for _, level := range snap.Ready {
			for _, v := range level {
				seen[v.ID]++
			}
		}
		for _, v := range snap.Waiting {
			seen[v.ID]++
		}
		for _, slots := range [][]SlotView{snap.CPUs, snap.IOs} {
			for _, s := range slots {
				if s.Busy {
					seen[s.Job.ID]++
				}
			}
		}
		for _, id := range append(append([]JobID{}, snap.Stalled...), snap.Terminated...) {
			seen[id]++
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("tick %d: job %d appears %d times", snap.Clock, id, n)
			}
		}
	}
	last := rec.snaps[len(rec.snaps)-1]
	assert.Len(t, last.Terminated, 4)
	assert.Equal(t, 4, res.Metrics.CompletedJobs)
}

func TestSimulator_Deterministic(t *testing.T) {
	build := func() *scriptSource {
		return newScriptSource(
			jobWithPriority(1, 0, 3, cpu(3), ioB(2), cpu(2)),
			jobWithPriority(2, 0, 1, cpu(5)),
			jobWithPriority(3, 2, 2, cpu(1), ioB(3), cpu(4)),
			jobWithPriority(4, 4, 1, cpu(2)),
		)
	}
	cfg := NewConfig(PolicyMLFQ, 2, 1)
	cfg.MLFQ.Quantums = []int64{1, 2, 4}
	cfg.MLFQ.AgingThreshold = 3

	_, first := runSim(t, cfg, build())
	_, second := runSim(t, cfg, build())

	assert.Equal(t, first.Terminated, second.Terminated)
	assert.Equal(t, first.Metrics.Output(PolicyMLFQ), second.Metrics.Output(PolicyMLFQ))
}

func TestSimulator_WaitingNeverNegative_AllPolicies(t *testing.T) {
	for _, name := range []string{PolicyFCFS, PolicyRoundRobin, PolicyPriority, PolicyMLFQ} {
		t.Run(name, func(t *testing.T) {
			src := newScriptSource(
				jobWithPriority(1, 0, 4, cpu(4), ioB(3), cpu(2)),
				jobWithPriority(2, 1, 2, cpu(2), ioB(1), cpu(3), ioB(2), cpu(1)),
				jobWithPriority(3, 1, 9, cpu(6)),
				jobWithPriority(4, 7, 1, cpu(1)),
			)
			cfg := NewConfig(name, 2, 1)
			cfg.TimeSlice = 2
			cfg.MLFQ.Quantums = []int64{1, 3}

			_, res := runSim(t, cfg, src)

			require.Equal(t, 4, res.Metrics.CompletedJobs)
			for _, r := range res.Metrics.Records() {
				w, ok := r.Waiting()
				require.True(t, ok)
				assert.GreaterOrEqual(t, w, int64(0), "job %d", r.ID)
			}
		})
	}
}

func TestSimulator_Step_DoesNotAdvanceClock(t *testing.T) {
	s, err := NewSimulator(NewConfig(PolicyFCFS, 1, 0), newScriptSource(job(1, 0, cpu(2))))
	require.NoError(t, err)

	done, err := s.Step(context.Background())

	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, int64(0), s.Clock)
	j, ok := s.Job(1)
	require.True(t, ok)
	assert.Equal(t, LocCPU, j.Where)
	assert.Equal(t, int64(1), j.Remaining)
}

func TestNewSimulator_RejectsBadInput(t *testing.T) {
	_, err := NewSimulator(NewConfig("SJF", 1, 0), newScriptSource())
	assert.ErrorIs(t, err, ErrUnknownPolicy)

	_, err = NewSimulator(NewConfig(PolicyFCFS, 1, 0), nil)
	assert.Error(t, err)
}
