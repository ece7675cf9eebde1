package workload

import (
	"fmt"

	"github.com/inference-sim/cpusched/sim"
)

// Generate expands a generator into explicit jobs.
// Deterministic given the same generator and seed: arrivals, bursts and
// priorities each draw from their own RNG subsystem.
func Generate(g *GeneratorSpec, seed int64) ([]JobSpec, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	cpuSampler, err := NewDurationSampler(g.CPUDuration)
	if err != nil {
		return nil, fmt.Errorf("cpu_duration: %w", err)
	}
	var ioSampler DurationSampler
	if g.CPUBursts.Max > 1 {
		if ioSampler, err = NewDurationSampler(g.IODuration); err != nil {
			return nil, fmt.Errorf("io_duration: %w", err)
		}
	}
	arrivalSampler := NewArrivalSampler(g.Arrival)

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	arrivalRNG := rng.ForSubsystem(sim.SubsystemArrivals)
	burstRNG := rng.ForSubsystem(sim.SubsystemBursts)
	priorityRNG := rng.ForSubsystem(sim.SubsystemPriority)

	jobs := make([]JobSpec, 0, g.NumJobs)
	clock := g.StartTick
	for i := 0; i < g.NumJobs; i++ {
		if i > 0 {
			clock += arrivalSampler.SampleGap(arrivalRNG)
		}

		cpuBursts := g.CPUBursts.Min
		if g.CPUBursts.Max > g.CPUBursts.Min {
			cpuBursts += burstRNG.Intn(g.CPUBursts.Max - g.CPUBursts.Min + 1)
		}
		bursts := make([]sim.Burst, 0, 2*cpuBursts-1)
		for k := 0; k < cpuBursts; k++ {
			if k > 0 {
				bursts = append(bursts, sim.Burst{Type: sim.BurstIO, Duration: ioSampler.Sample(burstRNG)})
			}
			bursts = append(bursts, sim.Burst{Type: sim.BurstCPU, Duration: cpuSampler.Sample(burstRNG)})
		}

		job := JobSpec{ID: i + 1, Arrival: clock, Bursts: bursts}
		if g.Priority != nil {
			p := g.Priority.Min
			if g.Priority.Max > g.Priority.Min {
				p += priorityRNG.Intn(g.Priority.Max - g.Priority.Min + 1)
			}
			job.Priority = &p
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
