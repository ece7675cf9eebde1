package sim

// FCFSPolicy serves jobs strictly in arrival order and never preempts.
type FCFSPolicy struct{}

func (p *FCFSPolicy) Name() string { return PolicyFCFS }

func (p *FCFSPolicy) NewReadyQueue() ReadyQueue { return &FIFOReadyQueue{} }

func (p *FCFSPolicy) EnqueueNewJob(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *FCFSPolicy) SelectForCPU(ready ReadyQueue, _ JobLookup, _ int64) (JobID, int64, bool) {
	id, ok := ready.Pop()
	return id, 0, ok
}

func (p *FCFSPolicy) SelectForIO(waiting *JobQueue, _ JobLookup) (JobID, bool) {
	return fifoSelectForIO(waiting)
}

// OnQuantumExpired is unreachable for FCFS (quantum is always 0); requeue at the tail.
func (p *FCFSPolicy) OnQuantumExpired(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *FCFSPolicy) OnBurstComplete(ready ReadyQueue, job *Job, clock int64) {
	ready.Push(job, clock)
}

func (p *FCFSPolicy) Age(ReadyQueue, JobLookup, int64) {}
