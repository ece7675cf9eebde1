package sim

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("source unavailable")

// burstHold makes NextBurst report "not ready" on the next times calls made
// once after bursts have been handed out.
type burstHold struct{ after, times int }

type scriptedJob struct {
	id       JobID
	arrival  int64
	priority *int
	bursts   []Burst
}

// scriptSource is an in-memory JobSource with fault injection for engine tests.
// Job and burst semantics match source.Memory.
type scriptSource struct {
	jobs      []scriptedJob
	handedOut map[JobID]int
	reported  int

	// fault injection, keyed by call count or clock
	failJobsAt       map[int64]bool
	failNextBurst    map[JobID]int // number of NextBurst calls that error
	holds            map[JobID]*burstHold
	failBurstsLeft   map[JobID]int
	failJobsLeft     int
	jobsLeftOverride *int

	calls struct{ jobs, nextBurst, burstsLeft, jobsLeft int }
}

func newScriptSource(jobs ...scriptedJob) *scriptSource {
	sorted := make([]scriptedJob, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, k int) bool { return sorted[i].arrival < sorted[k].arrival })
	return &scriptSource{
		jobs:           sorted,
		handedOut:      make(map[JobID]int),
		failJobsAt:     make(map[int64]bool),
		failNextBurst:  make(map[JobID]int),
		holds:          make(map[JobID]*burstHold),
		failBurstsLeft: make(map[JobID]int),
	}
}

func job(id JobID, arrival int64, bursts ...Burst) scriptedJob {
	return scriptedJob{id: id, arrival: arrival, bursts: bursts}
}

func jobWithPriority(id JobID, arrival int64, priority int, bursts ...Burst) scriptedJob {
	return scriptedJob{id: id, arrival: arrival, priority: &priority, bursts: bursts}
}

func cpu(d int64) Burst { return Burst{Type: BurstCPU, Duration: d} }
func ioB(d int64) Burst { return Burst{Type: BurstIO, Duration: d} }

func (s *scriptSource) find(id JobID) (scriptedJob, bool) {
	for _, j := range s.jobs {
		if j.id == id {
			return j, true
		}
	}
	return scriptedJob{}, false
}

func (s *scriptSource) InitSession(context.Context, *int64) (Session, error) {
	return Session{ID: "test"}, nil
}

func (s *scriptSource) Jobs(_ context.Context, _ string, clock int64) ([]JobArrival, error) {
	s.calls.jobs++
	if s.failJobsAt[clock] {
		return nil, errFlaky
	}
	var out []JobArrival
	for s.reported < len(s.jobs) && s.jobs[s.reported].arrival <= clock {
		j := s.jobs[s.reported]
		out = append(out, JobArrival{ID: j.id, Priority: j.priority})
		s.reported++
	}
	return out, nil
}

func (s *scriptSource) NextBurst(_ context.Context, _ string, id JobID) (*Burst, error) {
	s.calls.nextBurst++
	if s.failNextBurst[id] > 0 {
		s.failNextBurst[id]--
		return nil, errFlaky
	}
	j, ok := s.find(id)
	if !ok {
		return nil, errors.New("unknown job")
	}
	n := s.handedOut[id]
	if h := s.holds[id]; h != nil && h.after == n && h.times > 0 {
		h.times--
		return nil, nil
	}
	if n >= len(j.bursts) {
		return nil, nil
	}
	s.handedOut[id] = n + 1
	b := j.bursts[n]
	return &b, nil
}

func (s *scriptSource) BurstsLeft(_ context.Context, _ string, id JobID) (int, error) {
	s.calls.burstsLeft++
	if s.failBurstsLeft[id] > 0 {
		s.failBurstsLeft[id]--
		return 0, errFlaky
	}
	j, ok := s.find(id)
	if !ok {
		return 0, errors.New("unknown job")
	}
	return len(j.bursts) - s.handedOut[id] + 1, nil
}

func (s *scriptSource) JobsLeft(context.Context, string) (int, error) {
	s.calls.jobsLeft++
	if s.failJobsLeft > 0 {
		s.failJobsLeft--
		return 0, errFlaky
	}
	if s.jobsLeftOverride != nil {
		return *s.jobsLeftOverride, nil
	}
	return len(s.jobs), nil
}

// snapshotRecorder keeps every snapshot for property checks.
type snapshotRecorder struct {
	snaps []Snapshot
}

func (r *snapshotRecorder) Show(s Snapshot) { r.snaps = append(r.snaps, s) }

// runSim builds a simulator for cfg over src and runs it to completion.
func runSim(t *testing.T, cfg Config, src JobSource, opts ...Option) (*Simulator, *Result) {
	t.Helper()
	s, err := NewSimulator(cfg, src, opts...)
	require.NoError(t, err)
	res, err := s.Run(context.Background(), "test", 0)
	require.NoError(t, err)
	return s, res
}

// record returns the finished job record, failing the test if it is missing.
func record(t *testing.T, m *Metrics, id JobID) (completion, turnaround, waiting int64) {
	t.Helper()
	rec, ok := m.Jobs[id]
	require.True(t, ok, "no record for job %d", id)
	require.NotNil(t, rec.CompletionTime, "job %d did not complete", id)
	ta, _ := rec.Turnaround()
	w, _ := rec.Waiting()
	return *rec.CompletionTime, ta, w
}
