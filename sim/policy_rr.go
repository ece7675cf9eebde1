package sim

// RoundRobinPolicy serves the ready queue in insertion order and preempts a
// job after TimeSlice consecutive ticks, sending it to the tail.
//
// The quantum granted at each dispatch is min(remaining burst, TimeSlice), so a
// job never holds a CPU for more than TimeSlice ticks in a row.
type RoundRobinPolicy struct {
	TimeSlice int64
}

func (p *RoundRobinPolicy) Name() string { return PolicyRoundRobin }

func (p *RoundRobinPolicy) NewReadyQueue() ReadyQueue { return &FIFOReadyQueue{} }

func (p *RoundRobinPolicy) EnqueueNewJob(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *RoundRobinPolicy) SelectForCPU(ready ReadyQueue, jobs JobLookup, _ int64) (JobID, int64, bool) {
	id, ok := ready.Pop()
	if !ok {
		return 0, 0, false
	}
	quantum := p.TimeSlice
	if job := jobs(id); job != nil && job.Remaining < quantum {
		quantum = job.Remaining
	}
	return id, quantum, true
}

func (p *RoundRobinPolicy) SelectForIO(waiting *JobQueue, _ JobLookup) (JobID, bool) {
	return fifoSelectForIO(waiting)
}

// OnQuantumExpired puts the job at the tail; its remaining burst time is kept
// and the quantum is recomputed at the next dispatch.
func (p *RoundRobinPolicy) OnQuantumExpired(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *RoundRobinPolicy) OnBurstComplete(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *RoundRobinPolicy) Age(ReadyQueue, JobLookup, int64) {}
