package sim

import (
	"fmt"
	"time"
)

const (
	// DefaultPriority is the baseline priority for jobs the source sends without one.
	DefaultPriority = 10

	// DefaultMaxTicks bounds a run when the source and the engine disagree about jobs left.
	DefaultMaxTicks = 1_000_000

	// DefaultFetchTimeout bounds every JobSource call.
	DefaultFetchTimeout = 2 * time.Second
)

// ResourceConfig groups the size of the resource pool.
type ResourceConfig struct {
	CPUs int // number of CPU slots (must be > 0)
	IOs  int // number of IO device slots (>= 0)
}

// MLFQConfig groups multi-level feedback queue parameters.
type MLFQConfig struct {
	Quantums       []int64 // per-level quantum, level 0 first
	AgingThreshold int64   // ticks a job may wait in a lower level before promotion; 0 disables
}

// Config is the immutable configuration of one simulation run.
// Built once at startup and passed by value into the Simulator and policies.
type Config struct {
	Policy          string
	Resources       ResourceConfig
	TimeSlice       int64 // RoundRobin quantum
	MLFQ            MLFQConfig
	DefaultPriority int
	MaxTicks        int64
	FetchTimeout    time.Duration
}

// NewConfig returns a Config with defaults for everything but policy and resources.
func NewConfig(policy string, cpus, ios int) Config {
	return Config{
		Policy:          policy,
		Resources:       ResourceConfig{CPUs: cpus, IOs: ios},
		DefaultPriority: DefaultPriority,
		MaxTicks:        DefaultMaxTicks,
		FetchTimeout:    DefaultFetchTimeout,
	}
}

// Validate checks the configuration before any simulation starts.
func (c Config) Validate() error {
	if !IsValidPolicy(c.Policy) {
		return fmt.Errorf("%w %q; valid: %s", ErrUnknownPolicy, c.Policy, ValidPolicyNames())
	}
	if c.Resources.CPUs <= 0 {
		return fmt.Errorf("cpus must be positive, got %d", c.Resources.CPUs)
	}
	if c.Resources.IOs < 0 {
		return fmt.Errorf("ios must be non-negative, got %d", c.Resources.IOs)
	}
	if c.MaxTicks <= 0 {
		return fmt.Errorf("max_ticks must be positive, got %d", c.MaxTicks)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %v", c.FetchTimeout)
	}
	switch canonicalPolicy(c.Policy) {
	case PolicyRoundRobin:
		if c.TimeSlice <= 0 {
			return fmt.Errorf("RoundRobin requires a positive time_slice, got %d", c.TimeSlice)
		}
	case PolicyMLFQ:
		if len(c.MLFQ.Quantums) == 0 {
			return fmt.Errorf("MLFQScheduler requires at least one time quantum")
		}
		for i, q := range c.MLFQ.Quantums {
			if q <= 0 {
				return fmt.Errorf("mlfq time_quantums[%d] must be positive, got %d", i, q)
			}
		}
		if c.MLFQ.AgingThreshold < 0 {
			return fmt.Errorf("mlfq aging_threshold must be non-negative, got %d", c.MLFQ.AgingThreshold)
		}
	}
	return nil
}
