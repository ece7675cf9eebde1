package workload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/inference-sim/cpusched/sim"
	"gopkg.in/yaml.v3"
)

// Spec is the top-level workload file. Exactly one of Jobs or Generator is set.
// Loaded from YAML via LoadSpec(path).
type Spec struct {
	Version   string         `yaml:"version,omitempty"`
	Seed      int64          `yaml:"seed"`
	TimeSlice int64          `yaml:"time_slice,omitempty"` // handed out by InitSession
	Jobs      []JobSpec      `yaml:"jobs,omitempty"`
	Generator *GeneratorSpec `yaml:"generator,omitempty"`
}

// JobSpec is one job: when it becomes visible and the bursts it will demand, in order.
type JobSpec struct {
	ID       int         `yaml:"id"`
	Arrival  int64       `yaml:"arrival"`
	Priority *int        `yaml:"priority,omitempty"`
	Bursts   []sim.Burst `yaml:"bursts"`
}

// TotalCPU sums the job's CPU burst durations.
func (j JobSpec) TotalCPU() int64 {
	var total int64
	for _, b := range j.Bursts {
		if b.Type == sim.BurstCPU {
			total += b.Duration
		}
	}
	return total
}

// GeneratorSpec describes a synthetic workload expanded with a seeded RNG.
// Each job alternates CPU and IO bursts, starting and ending with CPU.
type GeneratorSpec struct {
	NumJobs     int         `yaml:"num_jobs"`
	StartTick   int64       `yaml:"start_tick,omitempty"`
	Arrival     ArrivalSpec `yaml:"arrival"`
	CPUBursts   IntRange    `yaml:"cpu_bursts"` // CPU bursts per job
	CPUDuration DistSpec    `yaml:"cpu_duration"`
	IODuration  DistSpec    `yaml:"io_duration"`
	Priority    *IntRange   `yaml:"priority,omitempty"` // nil = jobs carry no priority
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// ArrivalSpec configures the inter-arrival process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	Rate    float64  `yaml:"rate"` // jobs per tick
	CV      *float64 `yaml:"cv,omitempty"`
}

// DistSpec parameterizes a burst duration distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

var validArrivalProcesses = map[string]bool{
	"constant": true,
	"poisson":  true,
	"gamma":    true,
	"weibull":  true,
}

// LoadSpec reads and strictly parses a workload file. Unknown keys are errors.
// Burst types are normalized to upper case.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec is LoadSpec on an in-memory document.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	for i := range spec.Jobs {
		for k := range spec.Jobs[i].Bursts {
			bt, err := sim.ParseBurstType(string(spec.Jobs[i].Bursts[k].Type))
			if err != nil {
				return nil, fmt.Errorf("job[%d] burst[%d]: %w", i, k, err)
			}
			spec.Jobs[i].Bursts[k].Type = bt
		}
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *Spec) Validate() error {
	if s.TimeSlice < 0 {
		return fmt.Errorf("time_slice must be non-negative, got %d", s.TimeSlice)
	}
	switch {
	case len(s.Jobs) > 0 && s.Generator != nil:
		return fmt.Errorf("jobs and generator are mutually exclusive")
	case s.Generator != nil:
		return s.Generator.Validate()
	}
	seen := make(map[int]bool, len(s.Jobs))
	for i, j := range s.Jobs {
		if err := validateJob(j, i); err != nil {
			return err
		}
		if seen[j.ID] {
			return fmt.Errorf("job[%d]: duplicate id %d", i, j.ID)
		}
		seen[j.ID] = true
	}
	return nil
}

func validateJob(j JobSpec, idx int) error {
	prefix := fmt.Sprintf("job[%d] (id %d)", idx, j.ID)
	if j.Arrival < 0 {
		return fmt.Errorf("%s: arrival must be non-negative, got %d", prefix, j.Arrival)
	}
	if len(j.Bursts) == 0 {
		return fmt.Errorf("%s: at least one burst required", prefix)
	}
	for k, b := range j.Bursts {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s burst[%d]: %w", prefix, k, err)
		}
	}
	return nil
}

// Validate checks the generator parameters and that both duration distributions build.
func (g *GeneratorSpec) Validate() error {
	if g.NumJobs <= 0 {
		return fmt.Errorf("generator: num_jobs must be positive, got %d", g.NumJobs)
	}
	if g.StartTick < 0 {
		return fmt.Errorf("generator: start_tick must be non-negative, got %d", g.StartTick)
	}
	if !validArrivalProcesses[g.Arrival.Process] {
		return fmt.Errorf("generator: unknown arrival process %q; valid: constant, poisson, gamma, weibull", g.Arrival.Process)
	}
	if g.Arrival.Rate <= 0 {
		return fmt.Errorf("generator: arrival rate must be positive, got %f", g.Arrival.Rate)
	}
	if g.CPUBursts.Min < 1 || g.CPUBursts.Max < g.CPUBursts.Min {
		return fmt.Errorf("generator: cpu_bursts needs 1 <= min <= max, got [%d, %d]", g.CPUBursts.Min, g.CPUBursts.Max)
	}
	if g.Priority != nil && g.Priority.Max < g.Priority.Min {
		return fmt.Errorf("generator: priority needs min <= max, got [%d, %d]", g.Priority.Min, g.Priority.Max)
	}
	if _, err := NewDurationSampler(g.CPUDuration); err != nil {
		return fmt.Errorf("generator: cpu_duration: %w", err)
	}
	if g.CPUBursts.Max > 1 {
		if _, err := NewDurationSampler(g.IODuration); err != nil {
			return fmt.Errorf("generator: io_duration: %w", err)
		}
	}
	return nil
}

// Resolve returns the explicit job list, expanding the generator with the
// spec's seed when needed. Jobs are sorted by (arrival, id).
func (s *Spec) Resolve() ([]JobSpec, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}
	var jobs []JobSpec
	if s.Generator != nil {
		generated, err := Generate(s.Generator, s.Seed)
		if err != nil {
			return nil, err
		}
		jobs = generated
	} else {
		jobs = make([]JobSpec, len(s.Jobs))
		copy(jobs, s.Jobs)
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].Arrival != jobs[k].Arrival {
			return jobs[i].Arrival < jobs[k].Arrival
		}
		return jobs[i].ID < jobs[k].ID
	})
	return jobs, nil
}

// Write encodes the spec as YAML.
func (s *Spec) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding workload spec: %w", err)
	}
	return enc.Close()
}
