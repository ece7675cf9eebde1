package sim

import "github.com/sirupsen/logrus"

// MLFQPolicy is a multi-level feedback queue. Jobs enter at level 0 and are
// dispatched from the highest non-empty level, FIFO within a level, with the
// level's fixed quantum. A job that exhausts its quantum is demoted one level
// (the last level is the floor). A job starting a fresh CPU burst goes back
// to level 0.
//
// With AgingThreshold > 0, a job that has waited at least AgingThreshold ticks
// in a level below 0 is promoted one level before assignment.
type MLFQPolicy struct {
	Quantums       []int64
	AgingThreshold int64
}

func (p *MLFQPolicy) Name() string { return PolicyMLFQ }

func (p *MLFQPolicy) NewReadyQueue() ReadyQueue { return NewMultiLevelReadyQueue(len(p.Quantums)) }

func (p *MLFQPolicy) EnqueueNewJob(ready ReadyQueue, job *Job, clock int64) {
	job.Level = 0
	ready.Push(job, clock)
}

// SelectForCPU grants the quantum of the level the job was queued in.
// ready must come from NewReadyQueue.
func (p *MLFQPolicy) SelectForCPU(ready ReadyQueue, _ JobLookup, _ int64) (JobID, int64, bool) {
	id, level, ok := ready.(*MultiLevelReadyQueue).PopLevel()
	if !ok {
		return 0, 0, false
	}
	return id, p.Quantums[level], true
}

func (p *MLFQPolicy) SelectForIO(waiting *JobQueue, _ JobLookup) (JobID, bool) {
	return fifoSelectForIO(waiting)
}

func (p *MLFQPolicy) OnQuantumExpired(ready ReadyQueue, job *Job, clock int64) {
	job.Level = min(job.Level+1, len(p.Quantums)-1)
	ready.Push(job, clock)
}

func (p *MLFQPolicy) OnBurstComplete(ready ReadyQueue, job *Job, clock int64) {
	job.Level = 0
	ready.Push(job, clock)
}

func (p *MLFQPolicy) Age(ready ReadyQueue, jobs JobLookup, clock int64) {
	if p.AgingThreshold <= 0 {
		return
	}
	mlq, ok := ready.(*MultiLevelReadyQueue)
	if !ok {
		return
	}
	// Ascending order: a job promoted into level i-1 is stamped with clock and
	// cannot be promoted again in the same pass.
	for level := 1; level < mlq.NumLevels(); level++ {
		promoted := mlq.Level(level).RemoveIf(func(_ JobID, since int64) bool {
			return clock-since >= p.AgingThreshold
		})
		for _, id := range promoted {
			job := jobs(id)
			if job == nil {
				continue
			}
			job.Level = level - 1
			mlq.Level(level-1).Enqueue(id, clock)
			logrus.Debugf("[tick %07d] Job %d aged from level %d to %d", clock, id, level, level-1)
		}
	}
}
