package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks an internal modeling bug. Runs that hit it are aborted.
	ErrInvariant = errors.New("scheduler invariant violated")

	// ErrTickLimit is returned when a run exceeds Config.MaxTicks.
	ErrTickLimit = errors.New("tick limit exceeded")

	// ErrUnknownPolicy is returned for an unrecognized policy name.
	ErrUnknownPolicy = errors.New("unknown scheduling policy")
)

// InvariantError describes which invariant broke, and where.
type InvariantError struct {
	Clock  int64
	Job    JobID
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v at tick %d (job %d): %s", ErrInvariant, e.Clock, e.Job, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

func invariantf(clock int64, job JobID, format string, args ...any) error {
	return &InvariantError{Clock: clock, Job: job, Detail: fmt.Sprintf(format, args...)}
}

// RunError wraps a fatal run error with the last clock value at which the
// simulation state was consistent.
type RunError struct {
	Clock int64
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("simulation aborted at tick %d: %v", e.Clock, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
