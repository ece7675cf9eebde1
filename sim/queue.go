// Implements the JobQueue, the FIFO container behind the waiting queue,
// the FCFS/RR ready queue and each MLFQ level.

package sim

import (
	"fmt"
	"strings"
)

type queueEntry struct {
	id    JobID
	since int64 // tick at which the job entered this queue
}

// JobQueue represents a FIFO queue of job IDs waiting for a resource slot.
type JobQueue struct {
	queue []queueEntry
}

// Enqueue adds a job to the back of the queue.
func (q *JobQueue) Enqueue(id JobID, clock int64) {
	q.queue = append(q.queue, queueEntry{id: id, since: clock})
}

// Len returns the number of jobs in the queue.
func (q *JobQueue) Len() int {
	return len(q.queue)
}

// Dequeue removes the job at the front of the queue.
func (q *JobQueue) Dequeue() (JobID, bool) {
	if len(q.queue) == 0 {
		return 0, false
	}
	head := q.queue[0]
	q.queue = q.queue[1:]
	return head.id, true
}

// IDs returns a copy of the queue contents, front first.
func (q *JobQueue) IDs() []JobID {
	ids := make([]JobID, len(q.queue))
	for i, e := range q.queue {
		ids[i] = e.id
	}
	return ids
}

// Since returns the tick at which id was enqueued. ok is false if id is not queued.
func (q *JobQueue) Since(id JobID) (int64, bool) {
	for _, e := range q.queue {
		if e.id == id {
			return e.since, true
		}
	}
	return 0, false
}

// RemoveIf deletes every entry for which fn returns true and returns the
// removed IDs in queue order. Relative order of the kept entries is preserved.
func (q *JobQueue) RemoveIf(fn func(id JobID, since int64) bool) []JobID {
	var removed []JobID
	kept := q.queue[:0]
	for _, e := range q.queue {
		if fn(e.id, e.since) {
			removed = append(removed, e.id)
			continue
		}
		kept = append(kept, e)
	}
	q.queue = kept
	return removed
}

func (q *JobQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range q.queue {
		sb.WriteString(fmt.Sprint(e.id))
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
