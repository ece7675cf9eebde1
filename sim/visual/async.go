package visual

import (
	"sync"
	"sync/atomic"

	"github.com/inference-sim/cpusched/sim"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the snapshot backlog an Async keeps before dropping.
const DefaultBuffer = 64

// Async forwards snapshots to another Visualizer on its own goroutine.
// Show never blocks: when the backlog is full the snapshot is dropped.
type Async struct {
	next    sim.Visualizer
	ch      chan sim.Snapshot
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the forwarding goroutine. Call Close to drain and stop it.
func NewAsync(next sim.Visualizer, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &Async{
		next: next,
		ch:   make(chan sim.Snapshot, buffer),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for s := range a.ch {
		a.next.Show(s)
	}
}

func (a *Async) Show(s sim.Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- s:
	default:
		if n := a.dropped.Add(1); n == 1 {
			logrus.Warnf("[tick %07d] Visualizer is falling behind, dropping snapshots", s.Clock)
		}
	}
}

// Close stops accepting snapshots and waits until the backlog is rendered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

// Dropped returns how many snapshots were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}
