package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	got := NewConfig(PolicyFCFS, 2, 1)
	want := Config{
		Policy:          PolicyFCFS,
		Resources:       ResourceConfig{CPUs: 2, IOs: 1},
		DefaultPriority: DefaultPriority,
		MaxTicks:        DefaultMaxTicks,
		FetchTimeout:    DefaultFetchTimeout,
	}
	assert.Equal(t, want, got)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"fcfs ok", func(c *Config) {}, false},
		{"no io devices ok", func(c *Config) { c.Resources.IOs = 0 }, false},
		{"unknown policy", func(c *Config) { c.Policy = "Lottery" }, true},
		{"zero cpus", func(c *Config) { c.Resources.CPUs = 0 }, true},
		{"negative ios", func(c *Config) { c.Resources.IOs = -1 }, true},
		{"zero max ticks", func(c *Config) { c.MaxTicks = 0 }, true},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, true},
		{"rr without slice", func(c *Config) { c.Policy = PolicyRoundRobin }, true},
		{"rr with slice", func(c *Config) { c.Policy = "rr"; c.TimeSlice = 2 }, false},
		{"mlfq without quantums", func(c *Config) { c.Policy = PolicyMLFQ }, true},
		{"mlfq zero quantum", func(c *Config) { c.Policy = PolicyMLFQ; c.MLFQ.Quantums = []int64{2, 0} }, true},
		{"mlfq negative aging", func(c *Config) {
			c.Policy = PolicyMLFQ
			c.MLFQ.Quantums = []int64{2}
			c.MLFQ.AgingThreshold = -1
		}, true},
		{"mlfq ok", func(c *Config) { c.Policy = PolicyMLFQ; c.MLFQ.Quantums = []int64{2, 4, 8} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(PolicyFCFS, 1, 1)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_UnknownPolicyWrapsSentinel(t *testing.T) {
	err := NewConfig("Lottery", 1, 1).Validate()
	assert.True(t, errors.Is(err, ErrUnknownPolicy))
}
