// Package source provides sim.JobSource implementations: an in-process
// source over a workload file, a REST client for a remote job server, and
// an HTTP handler serving the former as the latter.
package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/inference-sim/cpusched/sim"
	"github.com/inference-sim/cpusched/sim/workload"
	"github.com/sirupsen/logrus"
)

// Memory serves jobs from a workload spec. Each session has its own cursors,
// so several simulations can replay the same workload concurrently.
type Memory struct {
	mu       sync.Mutex
	spec     *workload.Spec
	sessions map[string]*memorySession
	nextID   int
}

type memorySession struct {
	arrivals []workload.JobSpec // sorted by (arrival, id)
	reported int                // arrivals[:reported] were already returned by Jobs
	jobs     map[sim.JobID]*memoryJob
}

type memoryJob struct {
	bursts    []sim.Burst
	handedOut int
}

// NewMemory validates spec and wraps it as a JobSource.
func NewMemory(spec *workload.Spec) (*Memory, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil workload spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}
	return &Memory{spec: spec, sessions: make(map[string]*memorySession)}, nil
}

// NewMemoryFromJobs is NewMemory over an explicit job list.
func NewMemoryFromJobs(jobs []workload.JobSpec, timeSlice int64) (*Memory, error) {
	return NewMemory(&workload.Spec{TimeSlice: timeSlice, Jobs: jobs})
}

// InitSession resolves the workload into a fresh session. For generated
// workloads a non-nil seed replaces the spec's seed.
func (m *Memory) InitSession(_ context.Context, seed *int64) (sim.Session, error) {
	spec := *m.spec
	if seed != nil {
		spec.Seed = *seed
	}
	jobs, err := spec.Resolve()
	if err != nil {
		return sim.Session{}, err
	}

	s := &memorySession{arrivals: jobs, jobs: make(map[sim.JobID]*memoryJob, len(jobs))}
	for _, j := range jobs {
		bursts := make([]sim.Burst, len(j.Bursts))
		copy(bursts, j.Bursts)
		s.jobs[sim.JobID(j.ID)] = &memoryJob{bursts: bursts}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("session-%d", m.nextID)
	m.sessions[id] = s
	logrus.Debugf("Memory source: %s created with %d jobs (seed %d)", id, len(jobs), spec.Seed)
	return sim.Session{ID: id, StartClock: 0, TimeSlice: spec.TimeSlice}, nil
}

func (m *Memory) session(id string) (*memorySession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// Jobs returns every not yet reported job whose arrival is at or before clock.
func (m *Memory) Jobs(_ context.Context, sessionID string, clock int64) ([]sim.JobArrival, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	var out []sim.JobArrival
	for s.reported < len(s.arrivals) && s.arrivals[s.reported].Arrival <= clock {
		j := s.arrivals[s.reported]
		a := sim.JobArrival{ID: sim.JobID(j.ID)}
		if j.Priority != nil {
			p := *j.Priority
			a.Priority = &p
		}
		out = append(out, a)
		s.reported++
	}
	return out, nil
}

// NextBurst hands out the job's next burst, or nil once every burst is out.
func (m *Memory) NextBurst(_ context.Context, sessionID string, id sim.JobID) (*sim.Burst, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.job(sessionID, id)
	if err != nil {
		return nil, err
	}
	if j.handedOut >= len(j.bursts) {
		return nil, nil
	}
	b := j.bursts[j.handedOut]
	j.handedOut++
	return &b, nil
}

// BurstsLeft counts the bursts not yet handed out plus the current one.
func (m *Memory) BurstsLeft(_ context.Context, sessionID string, id sim.JobID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.job(sessionID, id)
	if err != nil {
		return 0, err
	}
	return len(j.bursts) - j.handedOut + 1, nil
}

// JobsLeft returns the number of jobs in the session's workload.
func (m *Memory) JobsLeft(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.session(sessionID)
	if err != nil {
		return 0, err
	}
	return len(s.arrivals), nil
}

func (m *Memory) job(sessionID string, id sim.JobID) (*memoryJob, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("session %q has no job %d", sessionID, id)
	}
	return j, nil
}

// CloseSession forgets a session.
func (m *Memory) CloseSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
