package sim

import "context"

// Session is the one-time setup returned by JobSource.InitSession.
type Session struct {
	ID         string `json:"session_id"`
	StartClock int64  `json:"start_clock"`
	TimeSlice  int64  `json:"time_slice"`
}

// JobArrival is a job made visible by the source at a given tick.
// Priority is nil when the source does not assign one.
type JobArrival struct {
	ID       JobID `json:"job_id"`
	Priority *int  `json:"priority,omitempty"`
}

// JobSource is the external, session-scoped provider of arrivals and bursts.
// Every call may block; the Simulator bounds each one with Config.FetchTimeout.
type JobSource interface {
	// InitSession sets up a session. A non-nil seed makes arrivals and bursts reproducible.
	InitSession(ctx context.Context, seed *int64) (Session, error)
	// Jobs returns the jobs newly visible at clock. May be empty.
	Jobs(ctx context.Context, sessionID string, clock int64) ([]JobArrival, error)
	// NextBurst hands out the job's next burst. A nil burst with a nil error
	// means "not yet ready", never "job finished".
	NextBurst(ctx context.Context, sessionID string, id JobID) (*Burst, error)
	// BurstsLeft counts the job's remaining bursts including the one just finished.
	BurstsLeft(ctx context.Context, sessionID string, id JobID) (int, error)
	// JobsLeft is the number of jobs the session expects the engine to retire.
	// The run ends when it equals the number of terminated jobs.
	JobsLeft(ctx context.Context, sessionID string) (int, error)
}
