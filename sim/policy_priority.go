package sim

// PriorityPolicy is non-preemptive priority scheduling. Lower priority values
// are more urgent; ties are broken by insertion order. A job that arrives with
// no priority gets Config.DefaultPriority at admission.
//
// The IO waiting queue is served the same way: lowest priority value first,
// queue order among equals.
type PriorityPolicy struct {
	// DefaultPriority ranks a waiting job the lookup cannot resolve.
	DefaultPriority int
}

func (p *PriorityPolicy) Name() string { return PolicyPriority }

func (p *PriorityPolicy) NewReadyQueue() ReadyQueue { return NewPriorityReadyQueue() }

func (p *PriorityPolicy) EnqueueNewJob(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *PriorityPolicy) SelectForCPU(ready ReadyQueue, _ JobLookup, _ int64) (JobID, int64, bool) {
	id, ok := ready.Pop()
	return id, 0, ok
}

func (p *PriorityPolicy) SelectForIO(waiting *JobQueue, jobs JobLookup) (JobID, bool) {
	ids := waiting.IDs()
	if len(ids) == 0 {
		return 0, false
	}
	best := ids[0]
	bestPri := p.priorityOf(jobs, best)
	for _, id := range ids[1:] {
		if pri := p.priorityOf(jobs, id); pri < bestPri {
			best, bestPri = id, pri
		}
	}
	waiting.RemoveIf(func(id JobID, _ int64) bool { return id == best })
	return best, true
}

// OnQuantumExpired is unreachable (quantum is always 0); reinsert by priority.
func (p *PriorityPolicy) OnQuantumExpired(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *PriorityPolicy) OnBurstComplete(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *PriorityPolicy) Age(ReadyQueue, JobLookup, int64) {}

func (p *PriorityPolicy) priorityOf(jobs JobLookup, id JobID) int {
	if job := jobs(id); job != nil {
		return job.Priority
	}
	return p.DefaultPriority
}
