package sim

import (
	"container/heap"
	"fmt"
)

// ReadyQueue is the container of CPU-bound jobs awaiting dispatch.
// Each DispatchPolicy builds the variant matching its ordering rule;
// the Simulator owns the instance for the whole run.
type ReadyQueue interface {
	// Push inserts a job. Implementations read ordering keys from job
	// (priority, level) at insertion time and store only its ID.
	Push(job *Job, clock int64)
	// Pop removes the next job in dispatch order.
	Pop() (JobID, bool)
	Len() int
	// Levels returns the queued IDs in dispatch order, one slice per level.
	// Single-level queues return one slice.
	Levels() [][]JobID
}

// FIFOReadyQueue dispatches in insertion order (FCFS, RoundRobin).
type FIFOReadyQueue struct {
	q JobQueue
}

func (f *FIFOReadyQueue) Push(job *Job, clock int64) { f.q.Enqueue(job.ID, clock) }
func (f *FIFOReadyQueue) Pop() (JobID, bool)         { return f.q.Dequeue() }
func (f *FIFOReadyQueue) Len() int                   { return f.q.Len() }
func (f *FIFOReadyQueue) Levels() [][]JobID          { return [][]JobID{f.q.IDs()} }

// priorityItem is keyed by (priority, seq); seq is a global insertion counter,
// so ties on priority fall back to queue order.
type priorityItem struct {
	id       JobID
	priority int
	seq      uint64
}

type priorityItems []priorityItem

func (h priorityItems) Len() int { return len(h) }
func (h priorityItems) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityItems) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityItems) Push(x any) {
	*h = append(*h, x.(priorityItem))
}

func (h *priorityItems) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// PriorityReadyQueue is a min-heap on (priority, insertion order).
type PriorityReadyQueue struct {
	items priorityItems
	seq   uint64
}

// NewPriorityReadyQueue creates an empty priority heap.
func NewPriorityReadyQueue() *PriorityReadyQueue {
	pq := &PriorityReadyQueue{items: make(priorityItems, 0)}
	heap.Init(&pq.items)
	return pq
}

func (pq *PriorityReadyQueue) Push(job *Job, _ int64) {
	pq.seq++
	heap.Push(&pq.items, priorityItem{id: job.ID, priority: job.Priority, seq: pq.seq})
}

func (pq *PriorityReadyQueue) Pop() (JobID, bool) {
	if pq.items.Len() == 0 {
		return 0, false
	}
	return heap.Pop(&pq.items).(priorityItem).id, true
}

// MinPriority returns the smallest priority value currently queued.
func (pq *PriorityReadyQueue) MinPriority() (int, bool) {
	if pq.items.Len() == 0 {
		return 0, false
	}
	return pq.items[0].priority, true
}

func (pq *PriorityReadyQueue) Len() int { return pq.items.Len() }

// Levels returns the heap contents in dispatch order.
func (pq *PriorityReadyQueue) Levels() [][]JobID {
	sorted := make(priorityItems, len(pq.items))
	copy(sorted, pq.items)
	ids := make([]JobID, 0, len(sorted))
	h := &sorted
	for h.Len() > 0 {
		ids = append(ids, heap.Pop(h).(priorityItem).id)
	}
	return [][]JobID{ids}
}

// MultiLevelReadyQueue holds one FIFO per MLFQ level. Level 0 is dispatched first.
type MultiLevelReadyQueue struct {
	levels []JobQueue
}

// NewMultiLevelReadyQueue creates n empty levels. Panics if n < 1.
func NewMultiLevelReadyQueue(n int) *MultiLevelReadyQueue {
	if n < 1 {
		panic(fmt.Sprintf("NewMultiLevelReadyQueue: need at least one level, got %d", n))
	}
	return &MultiLevelReadyQueue{levels: make([]JobQueue, n)}
}

// Push appends the job to the tail of level job.Level.
func (m *MultiLevelReadyQueue) Push(job *Job, clock int64) {
	if job.Level < 0 || job.Level >= len(m.levels) {
		panic(fmt.Sprintf("MultiLevelReadyQueue.Push: job %d has level %d, queue has %d levels", job.ID, job.Level, len(m.levels)))
	}
	m.levels[job.Level].Enqueue(job.ID, clock)
}

// Pop takes the head of the highest-priority non-empty level.
func (m *MultiLevelReadyQueue) Pop() (JobID, bool) {
	id, _, ok := m.PopLevel()
	return id, ok
}

// PopLevel is Pop that also reports the level the job came from.
func (m *MultiLevelReadyQueue) PopLevel() (JobID, int, bool) {
	for i := range m.levels {
		if id, ok := m.levels[i].Dequeue(); ok {
			return id, i, true
		}
	}
	return 0, 0, false
}

func (m *MultiLevelReadyQueue) Len() int {
	n := 0
	for i := range m.levels {
		n += m.levels[i].Len()
	}
	return n
}

func (m *MultiLevelReadyQueue) Levels() [][]JobID {
	out := make([][]JobID, len(m.levels))
	for i := range m.levels {
		out[i] = m.levels[i].IDs()
	}
	return out
}

// NumLevels returns the number of configured levels.
func (m *MultiLevelReadyQueue) NumLevels() int { return len(m.levels) }

// Level exposes a single level for aging.
func (m *MultiLevelReadyQueue) Level(i int) *JobQueue { return &m.levels[i] }
