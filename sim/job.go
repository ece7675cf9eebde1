// Defines the Job and Burst types that model a single simulated process.
// A job is a finite sequence of CPU and IO bursts handed out one at a time by the JobSource.

package sim

import (
	"fmt"
	"strings"
)

// JobID identifies a job for its whole lifetime. IDs come from the JobSource.
type JobID int

// BurstType is the kind of service a burst demands.
type BurstType string

const (
	BurstCPU BurstType = "CPU"
	BurstIO  BurstType = "IO"
)

// ParseBurstType accepts "CPU"/"IO" in any case.
func ParseBurstType(s string) (BurstType, error) {
	switch BurstType(strings.ToUpper(strings.TrimSpace(s))) {
	case BurstCPU:
		return BurstCPU, nil
	case BurstIO:
		return BurstIO, nil
	default:
		return "", fmt.Errorf("unknown burst type %q", s)
	}
}

// Burst is one contiguous unit of demand for either a CPU or an IO device.
type Burst struct {
	Type     BurstType `json:"burst_type" yaml:"type"`
	Duration int64     `json:"duration" yaml:"duration"`
}

// Validate rejects malformed bursts coming from a JobSource.
func (b Burst) Validate() error {
	if b.Type != BurstCPU && b.Type != BurstIO {
		return fmt.Errorf("unknown burst type %q", b.Type)
	}
	if b.Duration <= 0 {
		return fmt.Errorf("burst duration must be positive, got %d", b.Duration)
	}
	return nil
}

func (b Burst) String() string {
	return fmt.Sprintf("%s:%d", b.Type, b.Duration)
}

// Location names the container that currently owns a job.
// At any instant a job is in exactly one location.
type Location string

const (
	LocNone       Location = ""
	LocReady      Location = "ready"
	LocWaiting    Location = "waiting"
	LocCPU        Location = "cpu"
	LocIO         Location = "io"
	LocStalled    Location = "stalled"
	LocTerminated Location = "terminated"
)

// Job models a single process's lifecycle in the simulation.
// Jobs are stored in the Simulator's arena; queues and slots refer to them by ID.
type Job struct {
	ID          JobID
	ArrivalTime int64 // tick at which the JobSource reported the job

	Burst     Burst // current burst descriptor
	Remaining int64 // ticks left on the current burst

	CPUTime  int64 // cumulative CPU ticks received
	Priority int   // lower value = more urgent (Priority policy)
	Level    int   // MLFQ queue level, 0 = top

	Where Location
}

// NewJob creates a job that has just arrived with its first burst.
func NewJob(id JobID, arrival int64, priority int, first Burst) *Job {
	return &Job{
		ID:          id,
		ArrivalTime: arrival,
		Burst:       first,
		Remaining:   first.Duration,
		Priority:    priority,
	}
}

// StartBurst replaces the current burst descriptor with the next one.
func (j *Job) StartBurst(b Burst) {
	j.Burst = b
	j.Remaining = b.Duration
}

func (j Job) String() string {
	return fmt.Sprintf("Job(ID: %d, Burst: %s, Remaining: %d, Priority: %d, Level: %d, Where: %s)",
		j.ID, j.Burst, j.Remaining, j.Priority, j.Level, j.Where)
}

// JobLookup resolves an ID to the arena-owned job. Returns nil for unknown IDs.
type JobLookup func(JobID) *Job

// JobRecord is the metrics bookkeeping kept for every admitted job.
type JobRecord struct {
	ID             JobID  `json:"job_id"`
	ArrivalTime    int64  `json:"arrival_time"`
	TotalBurstTime int64  `json:"total_burst_time"` // sum of every burst duration seen
	ServiceTime    int64  `json:"service_time"`     // CPU ticks actually received
	CompletionTime *int64 `json:"completion_time"`  // nil until terminated
}

// Turnaround returns completion - arrival. ok is false while the job is still running.
func (r *JobRecord) Turnaround() (int64, bool) {
	if r.CompletionTime == nil {
		return 0, false
	}
	return *r.CompletionTime - r.ArrivalTime, true
}

// Waiting returns turnaround - CPU service time.
func (r *JobRecord) Waiting() (int64, bool) {
	ta, ok := r.Turnaround()
	if !ok {
		return 0, false
	}
	return ta - r.ServiceTime, true
}
