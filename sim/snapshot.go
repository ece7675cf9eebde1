package sim

// JobView is a read-only copy of a job's observable state.
type JobView struct {
	ID        JobID
	Burst     Burst
	Remaining int64
	Priority  int
	Level     int
}

// SlotView is a read-only copy of one CPU or IO slot.
type SlotView struct {
	Index       int
	Busy        bool
	Job         JobView
	QuantumLeft int64
	// RunTicks is how many consecutive ticks the occupant has run here.
	RunTicks int64
}

// Snapshot is the state emitted to the Visualizer once per tick.
// It shares no memory with the Simulator.
type Snapshot struct {
	Clock  int64
	Policy string
	// Ready holds the ready queue in dispatch order, one slice per level
	// (a single slice for every policy except MLFQ).
	Ready      [][]JobView
	Waiting    []JobView
	CPUs       []SlotView
	IOs        []SlotView
	Stalled    []JobID
	Terminated []JobID

	CompletedJobs int
	BusyCPUs      int
	BusyIOs       int
}

// Visualizer observes snapshots. Implementations must not block the tick loop
// and must treat the snapshot as read-only.
type Visualizer interface {
	Show(Snapshot)
}

// NoopVisualizer discards every snapshot.
type NoopVisualizer struct{}

func (NoopVisualizer) Show(Snapshot) {}

// MultiVisualizer fans a snapshot out to several visualizers in order.
type MultiVisualizer []Visualizer

func (m MultiVisualizer) Show(s Snapshot) {
	for _, v := range m {
		v.Show(s)
	}
}
