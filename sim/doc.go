// Package sim provides the discrete-time CPU/IO scheduling engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - job.go: Job and Burst, the arena-owned process model and its locations
//   - policy.go: the DispatchPolicy strategy and the four built-in variants
//   - simulator.go: the tick loop (admit, assign, advance, complete) and its invariants
//
// # Architecture
//
// The sim package defines the engine and the interfaces it talks through;
// implementations live in sub-packages:
//   - sim/source/: JobSource implementations (in-memory workload, HTTP client and server)
//   - sim/workload/: workload files and the seeded synthetic generator
//   - sim/visual/: Visualizer implementations (terminal table, async fan-out, Prometheus)
//   - sim/trace/: decision trace recording and summaries
//
// # Key Interfaces
//
//   - JobSource: session-scoped arrivals and bursts, possibly remote and unreliable
//   - DispatchPolicy: ready-queue ordering, CPU/IO selection, preemption and requeueing
//   - ReadyQueue: FIFO, priority heap or multi-level container chosen by the policy
//   - Visualizer: per-tick read-only Snapshot observer
//
// Jobs live in a single map keyed by JobID. Queues and slots hold IDs only, and
// every transfer goes through one ownership check, so a job is always in exactly
// one container.
package sim
