// sim/simulator.go
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/inference-sim/cpusched/sim/trace"
	"github.com/sirupsen/logrus"
)

// stalledJob is a job whose next burst could not be fetched yet.
type stalledJob struct {
	id JobID
	// decided is true once BurstsLeft said the job continues; only NextBurst is retried.
	decided bool
	// fresh marks a job that has not received its first burst yet.
	fresh bool
}

// Simulator is the core object that holds simulation time, the job arena and the tick loop.
// It exclusively owns every queue and slot; the DispatchPolicy only makes decisions.
type Simulator struct {
	Clock  int64
	Config Config
	Policy DispatchPolicy
	// Ready holds CPU-bound jobs awaiting dispatch, ordered by the policy.
	Ready ReadyQueue
	// Waiting holds IO-bound jobs awaiting an IO device.
	Waiting   *JobQueue
	Resources *ResourcePool
	Metrics   *Metrics
	Trace     *trace.SimulationTrace

	source     JobSource
	visualizer Visualizer
	sessionID  string

	jobs       map[JobID]*Job
	stalled    []stalledJob
	terminated []JobID
	admitted   int
}

// Option customizes a Simulator at construction.
type Option func(*Simulator)

// WithVisualizer attaches a snapshot observer.
func WithVisualizer(v Visualizer) Option {
	return func(s *Simulator) {
		if v != nil {
			s.visualizer = v
		}
	}
}

// WithTrace attaches a decision trace.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(s *Simulator) { s.Trace = st }
}

// NewSimulator validates cfg and builds an idle Simulator reading from src.
func NewSimulator(cfg Config, src JobSource, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("simulator needs a job source")
	}
	policy := NewPolicy(cfg)
	s := &Simulator{
		Config:     cfg,
		Policy:     policy,
		Ready:      policy.NewReadyQueue(),
		Waiting:    &JobQueue{},
		Resources:  NewResourcePool(cfg.Resources.CPUs, cfg.Resources.IOs),
		Metrics:    NewMetrics(cfg.Resources.CPUs, cfg.Resources.IOs),
		source:     src,
		visualizer: NoopVisualizer{},
		jobs:       make(map[JobID]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result is what a completed run hands back to the caller.
type Result struct {
	SessionID  string
	StartClock int64
	// EndClock is the tick after the last simulated one.
	EndClock   int64
	Terminated []JobID // in termination order
	Metrics    *Metrics
	Trace      *trace.SimulationTrace
}

// Run drives the tick loop for sessionID starting at startClock until every job
// the source knows about has terminated.
//
// Data-source failures never abort the run. Invariant violations, the tick limit
// and ctx cancellation do, as a *RunError carrying the tick that did not complete.
func (sim *Simulator) Run(ctx context.Context, sessionID string, startClock int64) (*Result, error) {
	sim.sessionID = sessionID
	sim.Clock = startClock
	logrus.Infof("[tick %07d] Simulation started: policy=%s cpus=%d ios=%d session=%s",
		sim.Clock, sim.Policy.Name(), len(sim.Resources.CPUs), len(sim.Resources.IOs), sessionID)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &RunError{Clock: sim.Clock, Err: err}
		}
		if sim.Clock-startClock >= sim.Config.MaxTicks {
			return nil, &RunError{Clock: sim.Clock, Err: fmt.Errorf("%w (%d ticks)", ErrTickLimit, sim.Config.MaxTicks)}
		}
		done, err := sim.Step(ctx)
		if err != nil {
			return nil, &RunError{Clock: sim.Clock, Err: err}
		}
		sim.Clock++
		if done {
			break
		}
	}

	logrus.Infof("[tick %07d] Simulation ended: %d jobs terminated", sim.Clock, len(sim.terminated))
	terminated := make([]JobID, len(sim.terminated))
	copy(terminated, sim.terminated)
	return &Result{
		SessionID:  sessionID,
		StartClock: startClock,
		EndClock:   sim.Clock,
		Terminated: terminated,
		Metrics:    sim.Metrics,
		Trace:      sim.Trace,
	}, nil
}

// Step executes one tick at sim.Clock without advancing the clock.
// It reports whether the stop condition holds after the tick.
func (sim *Simulator) Step(ctx context.Context) (bool, error) {
	if err := sim.admit(ctx); err != nil {
		return false, err
	}
	sim.Policy.Age(sim.Ready, sim.job, sim.Clock)
	if err := sim.assign(); err != nil {
		return false, err
	}
	if err := sim.advance(); err != nil {
		return false, err
	}
	if err := sim.complete(ctx); err != nil {
		return false, err
	}
	if err := sim.checkPartition(); err != nil {
		return false, err
	}
	sim.visualizer.Show(sim.Snapshot())
	return sim.finished(ctx), nil
}

// job resolves an ID against the arena.
func (sim *Simulator) job(id JobID) *Job {
	return sim.jobs[id]
}

// move transfers ownership of a job between containers. The job must currently
// be in from; anything else means two containers think they hold it.
func (sim *Simulator) move(id JobID, from, to Location) error {
	job := sim.jobs[id]
	if job == nil {
		return invariantf(sim.Clock, id, "job not in arena")
	}
	if job.Where != from {
		return invariantf(sim.Clock, id, "expected job in %q, found in %q (moving to %q)", from, job.Where, to)
	}
	job.Where = to
	return nil
}

func (sim *Simulator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, sim.Config.FetchTimeout)
}

// === Phase 1: admission ===

func (sim *Simulator) admit(ctx context.Context) error {
	if err := sim.retryStalled(ctx); err != nil {
		return err
	}

	fctx, cancel := sim.fetchContext(ctx)
	arrivals, err := sim.source.Jobs(fctx, sim.sessionID, sim.Clock)
	cancel()
	if err != nil {
		logrus.Warnf("[tick %07d] Fetching arrivals failed, no arrivals this tick: %v", sim.Clock, err)
		return nil
	}

	for _, a := range arrivals {
		if _, seen := sim.jobs[a.ID]; seen {
			logrus.Warnf("[tick %07d] Source reported job %d twice, ignoring", sim.Clock, a.ID)
			continue
		}
		priority := sim.Config.DefaultPriority
		if a.Priority != nil {
			priority = *a.Priority
		}
		job := NewJob(a.ID, sim.Clock, priority, Burst{})
		sim.jobs[a.ID] = job
		sim.admitted++
		sim.Metrics.Jobs[a.ID] = &JobRecord{ID: a.ID, ArrivalTime: sim.Clock}

		burst := sim.fetchBurst(ctx, a.ID)
		if sim.Trace.Enabled() {
			sim.Trace.RecordArrival(trace.ArrivalRecord{JobID: int(a.ID), Clock: sim.Clock, Priority: priority, Stalled: burst == nil})
		}
		if burst == nil {
			if err := sim.stall(job, LocNone, true, true, sim.Clock); err != nil {
				return err
			}
			continue
		}
		logrus.Infof("[tick %07d] Job %d arrived (priority %d, first burst %s)", sim.Clock, a.ID, priority, burst)
		if err := sim.route(job, LocNone, *burst, sim.Clock, true); err != nil {
			return err
		}
	}
	return nil
}

// retryStalled repeats the fetches that failed on earlier ticks, oldest first.
func (sim *Simulator) retryStalled(ctx context.Context) error {
	if len(sim.stalled) == 0 {
		return nil
	}
	pending := sim.stalled
	sim.stalled = nil
	for i, entry := range pending {
		job := sim.jobs[entry.id]
		if !entry.decided {
			fctx, cancel := sim.fetchContext(ctx)
			left, err := sim.source.BurstsLeft(fctx, sim.sessionID, entry.id)
			cancel()
			if err != nil {
				logrus.Warnf("[tick %07d] Job %d still stalled: bursts left: %v", sim.Clock, entry.id, err)
				sim.stalled = append(sim.stalled, entry)
				continue
			}
			if left <= 1 {
				if err := sim.terminate(job, LocStalled, sim.Clock); err != nil {
					sim.stalled = append(sim.stalled, pending[i+1:]...)
					return err
				}
				continue
			}
			entry.decided = true
		}
		burst := sim.fetchBurst(ctx, entry.id)
		if burst == nil {
			sim.stalled = append(sim.stalled, entry)
			continue
		}
		logrus.Infof("[tick %07d] Job %d resumed with burst %s", sim.Clock, entry.id, burst)
		if err := sim.route(job, LocStalled, *burst, sim.Clock, entry.fresh); err != nil {
			sim.stalled = append(sim.stalled, pending[i+1:]...)
			return err
		}
	}
	return nil
}

// fetchBurst asks the source for the job's next burst. It returns nil when the
// source fails, times out, has nothing yet, or sends a malformed burst.
func (sim *Simulator) fetchBurst(ctx context.Context, id JobID) *Burst {
	fctx, cancel := sim.fetchContext(ctx)
	defer cancel()
	burst, err := sim.source.NextBurst(fctx, sim.sessionID, id)
	switch {
	case err != nil:
		logrus.Warnf("[tick %07d] Fetching next burst of job %d failed: %v", sim.Clock, id, err)
		return nil
	case burst == nil:
		logrus.Debugf("[tick %07d] Next burst of job %d not ready", sim.Clock, id)
		return nil
	}
	if err := burst.Validate(); err != nil {
		logrus.Warnf("[tick %07d] Malformed burst for job %d: %v", sim.Clock, id, err)
		return nil
	}
	b := *burst
	return &b
}

// stall parks a job until its fetch can be retried. clock stamps the trace record.
func (sim *Simulator) stall(job *Job, from Location, decided, fresh bool, clock int64) error {
	if err := sim.move(job.ID, from, LocStalled); err != nil {
		return err
	}
	sim.stalled = append(sim.stalled, stalledJob{id: job.ID, decided: decided, fresh: fresh})
	if sim.Trace.Enabled() {
		reason := "next burst unavailable"
		if !decided {
			reason = "bursts left unavailable"
		}
		sim.Trace.RecordStall(trace.StallRecord{JobID: int(job.ID), Clock: clock, Reason: reason})
	}
	return nil
}

// route installs a new burst on the job and hands it to the ready or waiting queue.
// fresh selects the policy's admission rule instead of its post-burst requeue rule.
func (sim *Simulator) route(job *Job, from Location, b Burst, clock int64, fresh bool) error {
	job.StartBurst(b)
	sim.Metrics.Jobs[job.ID].TotalBurstTime += b.Duration

	if b.Type == BurstIO {
		if err := sim.move(job.ID, from, LocWaiting); err != nil {
			return err
		}
		sim.Waiting.Enqueue(job.ID, clock)
		return nil
	}

	if err := sim.move(job.ID, from, LocReady); err != nil {
		return err
	}
	if fresh {
		sim.Policy.EnqueueNewJob(sim.Ready, job, clock)
	} else {
		sim.Policy.OnBurstComplete(sim.Ready, job, clock)
	}
	return nil
}

// === Phase 2: assignment ===

func (sim *Simulator) assign() error {
	for i := range sim.Resources.CPUs {
		slot := &sim.Resources.CPUs[i]
		if slot.Occupied {
			continue
		}
		id, quantum, ok := sim.Policy.SelectForCPU(sim.Ready, sim.job, sim.Clock)
		if !ok {
			break
		}
		if err := sim.move(id, LocReady, LocCPU); err != nil {
			return err
		}
		slot.assign(id, quantum)
		job := sim.jobs[id]
		logrus.Debugf("[tick %07d] CPU %d <- job %d (remaining %d, quantum %d)", sim.Clock, i, id, job.Remaining, quantum)
		if sim.Trace.Enabled() {
			sim.Trace.RecordDispatch(trace.DispatchRecord{
				JobID: int(id), Clock: sim.Clock, Resource: trace.ResourceCPU, Slot: i,
				Quantum: quantum, Remaining: job.Remaining, Level: job.Level,
			})
		}
	}

	for i := range sim.Resources.IOs {
		slot := &sim.Resources.IOs[i]
		if slot.Occupied {
			continue
		}
		id, ok := sim.Policy.SelectForIO(sim.Waiting, sim.job)
		if !ok {
			break
		}
		if err := sim.move(id, LocWaiting, LocIO); err != nil {
			return err
		}
		slot.assign(id, 0)
		job := sim.jobs[id]
		logrus.Debugf("[tick %07d] IO %d <- job %d (remaining %d)", sim.Clock, i, id, job.Remaining)
		if sim.Trace.Enabled() {
			sim.Trace.RecordDispatch(trace.DispatchRecord{
				JobID: int(id), Clock: sim.Clock, Resource: trace.ResourceIO, Slot: i,
				Remaining: job.Remaining, Level: job.Level,
			})
		}
	}
	return nil
}

// === Phase 3: execution ===

func (sim *Simulator) advance() error {
	for i := range sim.Resources.CPUs {
		slot := &sim.Resources.CPUs[i]
		if !slot.Occupied {
			continue
		}
		job := sim.jobs[slot.Job]
		job.Remaining--
		job.CPUTime++
		sim.Metrics.Jobs[job.ID].ServiceTime++
		slot.tick()
		if job.Remaining < 0 {
			return invariantf(sim.Clock, job.ID, "negative remaining time %d on CPU %d", job.Remaining, i)
		}
	}
	for i := range sim.Resources.IOs {
		slot := &sim.Resources.IOs[i]
		if !slot.Occupied {
			continue
		}
		job := sim.jobs[slot.Job]
		job.Remaining--
		slot.tick()
		if job.Remaining < 0 {
			return invariantf(sim.Clock, job.ID, "negative remaining time %d on IO %d", job.Remaining, i)
		}
	}
	sim.Metrics.RecordTick(sim.Resources.BusyCPUs(), sim.Resources.BusyIOs())
	return nil
}

// === Phase 4: completion handling ===

func (sim *Simulator) complete(ctx context.Context) error {
	// Everything that finishes during tick t is done at the end of t.
	end := sim.Clock + 1

	for i := range sim.Resources.CPUs {
		slot := &sim.Resources.CPUs[i]
		if !slot.Occupied {
			continue
		}
		job := sim.jobs[slot.Job]
		switch {
		case job.Remaining == 0:
			slot.release()
			if err := sim.finishBurst(ctx, job, LocCPU, end); err != nil {
				return err
			}
		case slot.QuantumExpired():
			from := job.Level
			slot.release()
			if err := sim.move(job.ID, LocCPU, LocReady); err != nil {
				return err
			}
			sim.Policy.OnQuantumExpired(sim.Ready, job, end)
			logrus.Debugf("[tick %07d] Job %d preempted on CPU %d (remaining %d, level %d -> %d)",
				sim.Clock, job.ID, i, job.Remaining, from, job.Level)
			if sim.Trace.Enabled() {
				sim.Trace.RecordPreemption(trace.PreemptionRecord{
					JobID: int(job.ID), Clock: end, Slot: i,
					Remaining: job.Remaining, FromLevel: from, ToLevel: job.Level,
				})
			}
		}
	}

	for i := range sim.Resources.IOs {
		slot := &sim.Resources.IOs[i]
		if !slot.Occupied {
			continue
		}
		job := sim.jobs[slot.Job]
		if job.Remaining == 0 {
			slot.release()
			if err := sim.finishBurst(ctx, job, LocIO, end); err != nil {
				return err
			}
		}
	}
	return nil
}

// finishBurst decides whether the job continues with another burst or terminates.
func (sim *Simulator) finishBurst(ctx context.Context, job *Job, from Location, end int64) error {
	fctx, cancel := sim.fetchContext(ctx)
	left, err := sim.source.BurstsLeft(fctx, sim.sessionID, job.ID)
	cancel()
	if err != nil {
		logrus.Warnf("[tick %07d] Bursts left for job %d unavailable, stalling: %v", sim.Clock, job.ID, err)
		return sim.stall(job, from, false, false, end)
	}
	if left <= 1 {
		return sim.terminate(job, from, end)
	}

	burst := sim.fetchBurst(ctx, job.ID)
	if burst == nil {
		return sim.stall(job, from, true, false, end)
	}
	logrus.Debugf("[tick %07d] Job %d finished %s, next %s", sim.Clock, job.ID, job.Burst, burst)
	return sim.route(job, from, *burst, end, false)
}

// terminate retires a job and records its statistics.
func (sim *Simulator) terminate(job *Job, from Location, completion int64) error {
	rec := sim.Metrics.Jobs[job.ID]
	if rec.CompletionTime != nil {
		return invariantf(sim.Clock, job.ID, "completion time already set to %d", *rec.CompletionTime)
	}
	if err := sim.move(job.ID, from, LocTerminated); err != nil {
		return err
	}
	rec.CompletionTime = &completion
	turnaround, _ := rec.Turnaround()
	waiting, _ := rec.Waiting()
	if turnaround < 0 {
		return invariantf(sim.Clock, job.ID, "negative turnaround %d", turnaround)
	}
	if waiting < 0 {
		return invariantf(sim.Clock, job.ID, "negative waiting time %d (turnaround %d, service %d)", waiting, turnaround, rec.ServiceTime)
	}

	sim.Metrics.AddJobStats(turnaround, waiting)
	sim.terminated = append(sim.terminated, job.ID)
	logrus.Infof("[tick %07d] Job %d terminated at %d (turnaround %d, waiting %d)", sim.Clock, job.ID, completion, turnaround, waiting)
	if sim.Trace.Enabled() {
		sim.Trace.RecordCompletion(trace.CompletionRecord{JobID: int(job.ID), Clock: completion, Turnaround: turnaround, Waiting: waiting})
	}
	return nil
}

// === Invariants and termination ===

// checkPartition verifies that every admitted job sits in exactly one container.
func (sim *Simulator) checkPartition() error {
	held := sim.Ready.Len() + sim.Waiting.Len() +
		sim.Resources.BusyCPUs() + sim.Resources.BusyIOs() +
		len(sim.stalled) + len(sim.terminated)
	if held != sim.admitted {
		return invariantf(sim.Clock, 0, "containers hold %d jobs, %d admitted", held, sim.admitted)
	}
	return nil
}

// finished reports the stop condition: nothing queued, running or stalled, and
// the source agrees every job has terminated.
func (sim *Simulator) finished(ctx context.Context) bool {
	if sim.Ready.Len() > 0 || sim.Waiting.Len() > 0 || len(sim.stalled) > 0 || !sim.Resources.Idle() {
		return false
	}
	fctx, cancel := sim.fetchContext(ctx)
	defer cancel()
	left, err := sim.source.JobsLeft(fctx, sim.sessionID)
	if err != nil {
		logrus.Warnf("[tick %07d] Jobs left unavailable, continuing: %v", sim.Clock, err)
		return false
	}
	return left == len(sim.terminated)
}

// === Snapshot ===

func (sim *Simulator) view(id JobID) JobView {
	job := sim.jobs[id]
	if job == nil {
		return JobView{ID: id}
	}
	return JobView{ID: id, Burst: job.Burst, Remaining: job.Remaining, Priority: job.Priority, Level: job.Level}
}

func (sim *Simulator) views(ids []JobID) []JobView {
	out := make([]JobView, len(ids))
	for i, id := range ids {
		out[i] = sim.view(id)
	}
	return out
}

func (sim *Simulator) slotViews(slots []Slot) []SlotView {
	out := make([]SlotView, len(slots))
	for i, s := range slots {
		out[i] = SlotView{Index: s.Index, Busy: s.Occupied, QuantumLeft: s.QuantumLeft, RunTicks: s.RunTicks}
		if s.Occupied {
			out[i].Job = sim.view(s.Job)
		}
	}
	return out
}

// Snapshot copies the observable state at the current tick.
func (sim *Simulator) Snapshot() Snapshot {
	levels := sim.Ready.Levels()
	ready := make([][]JobView, len(levels))
	for i, ids := range levels {
		ready[i] = sim.views(ids)
	}
	stalled := make([]JobID, len(sim.stalled))
	for i, e := range sim.stalled {
		stalled[i] = e.id
	}
	terminated := make([]JobID, len(sim.terminated))
	copy(terminated, sim.terminated)

	return Snapshot{
		Clock:         sim.Clock,
		Policy:        sim.Policy.Name(),
		Ready:         ready,
		Waiting:       sim.views(sim.Waiting.IDs()),
		CPUs:          sim.slotViews(sim.Resources.CPUs),
		IOs:           sim.slotViews(sim.Resources.IOs),
		Stalled:       stalled,
		Terminated:    terminated,
		CompletedJobs: sim.Metrics.CompletedJobs,
		BusyCPUs:      sim.Resources.BusyCPUs(),
		BusyIOs:       sim.Resources.BusyIOs(),
	}
}

// Job returns a copy of an admitted job's state.
func (sim *Simulator) Job(id JobID) (Job, bool) {
	job, ok := sim.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
