package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/cpusched/sim"
	"github.com/inference-sim/cpusched/sim/source"
	"github.com/inference-sim/cpusched/sim/workload"
)

// RunConfig is the --config file of `cpusched run`.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	TimeSlice       int64         `yaml:"time_slice"` // 0 = take it from the session
	DefaultPriority *int          `yaml:"default_priority"`
	MaxTicks        int64         `yaml:"max_ticks"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	MLFQ            MLFQSection   `yaml:"mlfq"`
	Source          SourceSection `yaml:"source"`
}

// MLFQSection holds the multi-level feedback queue parameters.
type MLFQSection struct {
	TimeQuantums   []int64 `yaml:"time_quantums"`
	AgingThreshold int64   `yaml:"aging_threshold"`
}

// SourceSection selects the job source. Exactly one of BaseURL or Workload is set.
type SourceSection struct {
	BaseURL  string         `yaml:"base_url"`
	ClientID string         `yaml:"client_id"`
	Timeout  time.Duration  `yaml:"timeout"`
	Session  map[string]any `yaml:"session"` // forwarded as the POST /init body
	Workload string         `yaml:"workload"`
}

// flatRunConfig is the single-level JSON config read by the classroom job
// server clients: connection keys and MLFQ settings at the top level, with the
// whole document posted to /init.
type flatRunConfig struct {
	BaseURL        string  `yaml:"base_url"`
	ClientID       string  `yaml:"client_id"`
	TimeQuantums   []int64 `yaml:"TimeQuantums"`
	AgingThreshold int64   `yaml:"AgingThreshold"`
}

// LoadRunConfig parses a run configuration file. YAML is a JSON superset, so
// JSON configs load as well. Unknown keys are errors, except in the flat
// job-server shape (top-level base_url) where extra keys form the session body.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	var rc RunConfig
	if _, flat := top["base_url"]; flat {
		if rc, err = parseFlatRunConfig(data, top); err != nil {
			return nil, fmt.Errorf("parsing run config %s: %w", path, err)
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&rc); err != nil {
			return nil, fmt.Errorf("parsing run config %s: %w", path, err)
		}
	}
	if err := rc.validate(); err != nil {
		return nil, fmt.Errorf("run config %s: %w", path, err)
	}
	if rc.Source.Workload != "" && !filepath.IsAbs(rc.Source.Workload) {
		rc.Source.Workload = filepath.Join(filepath.Dir(path), rc.Source.Workload)
	}
	return &rc, nil
}

func parseFlatRunConfig(data []byte, top map[string]any) (RunConfig, error) {
	var flat flatRunConfig
	if err := yaml.Unmarshal(data, &flat); err != nil {
		return RunConfig{}, err
	}
	if _, nested := top["source"]; nested {
		return RunConfig{}, fmt.Errorf("base_url must not be combined with a source section")
	}
	return RunConfig{
		MLFQ: MLFQSection{
			TimeQuantums:   flat.TimeQuantums,
			AgingThreshold: flat.AgingThreshold,
		},
		Source: SourceSection{
			BaseURL:  flat.BaseURL,
			ClientID: flat.ClientID,
			Session:  top,
		},
	}, nil
}

func (rc *RunConfig) validate() error {
	switch {
	case rc.Source.BaseURL == "" && rc.Source.Workload == "":
		return fmt.Errorf("source needs base_url or workload")
	case rc.Source.BaseURL != "" && rc.Source.Workload != "":
		return fmt.Errorf("source base_url and workload are mutually exclusive")
	case rc.TimeSlice < 0:
		return fmt.Errorf("time_slice must be non-negative, got %d", rc.TimeSlice)
	case rc.MaxTicks < 0:
		return fmt.Errorf("max_ticks must be non-negative, got %d", rc.MaxTicks)
	case rc.FetchTimeout < 0 || rc.Source.Timeout < 0:
		return fmt.Errorf("timeouts must be non-negative")
	}
	return nil
}

// NewSource builds the JobSource the config points at.
func (rc *RunConfig) NewSource() (sim.JobSource, error) {
	if rc.Source.BaseURL != "" {
		return source.NewHTTPClient(rc.Source.BaseURL, rc.Source.ClientID, rc.Source.Timeout, rc.Source.Session), nil
	}
	spec, err := workload.LoadSpec(rc.Source.Workload)
	if err != nil {
		return nil, err
	}
	return source.NewMemory(spec)
}

// SimConfig combines the file, the command-line flags and the session into
// the immutable engine configuration. Unset values keep sim defaults.
func (rc *RunConfig) SimConfig(policy string, cpus, ios int, session sim.Session) sim.Config {
	cfg := sim.NewConfig(policy, cpus, ios)
	cfg.TimeSlice = rc.TimeSlice
	if cfg.TimeSlice == 0 {
		cfg.TimeSlice = session.TimeSlice
	}
	if rc.DefaultPriority != nil {
		cfg.DefaultPriority = *rc.DefaultPriority
	}
	if rc.MaxTicks > 0 {
		cfg.MaxTicks = rc.MaxTicks
	}
	if rc.FetchTimeout > 0 {
		cfg.FetchTimeout = rc.FetchTimeout
	}
	cfg.MLFQ = sim.MLFQConfig{
		Quantums:       append([]int64(nil), rc.MLFQ.TimeQuantums...),
		AgingThreshold: rc.MLFQ.AgingThreshold,
	}
	return cfg
}
