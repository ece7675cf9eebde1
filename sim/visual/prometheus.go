package visual

import (
	"net/http"
	"strconv"

	"github.com/inference-sim/cpusched/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus exports the latest snapshot as gauges and counters.
type Prometheus struct {
	registry *prometheus.Registry

	clock     *prometheus.GaugeVec
	ready     *prometheus.GaugeVec
	waiting   *prometheus.GaugeVec
	stalled   *prometheus.GaugeVec
	busy      *prometheus.GaugeVec // occupancy after completion handling
	completed *prometheus.CounterVec
	lastCount map[string]int
}

// NewPrometheus creates the collectors on a private registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		clock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpusched_clock_tick",
			Help: "Current simulation tick.",
		}, []string{"policy"}),
		ready: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpusched_ready_jobs",
			Help: "Jobs in the ready queue, per level.",
		}, []string{"policy", "level"}),
		waiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpusched_waiting_jobs",
			Help: "Jobs waiting for an IO device.",
		}, []string{"policy"}),
		stalled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpusched_stalled_jobs",
			Help: "Jobs whose next burst could not be fetched yet.",
		}, []string{"policy"}),
		busy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpusched_busy_slots",
			Help: "Occupied CPU or IO slots.",
		}, []string{"policy", "resource"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cpusched_completed_jobs_total",
			Help: "Jobs moved to the terminated set.",
		}, []string{"policy"}),
		lastCount: make(map[string]int),
	}
	p.registry.MustRegister(p.clock, p.ready, p.waiting, p.stalled, p.busy, p.completed)
	return p
}

func (p *Prometheus) Show(s sim.Snapshot) {
	p.clock.WithLabelValues(s.Policy).Set(float64(s.Clock))
	for level, jobs := range s.Ready {
		p.ready.WithLabelValues(s.Policy, strconv.Itoa(level)).Set(float64(len(jobs)))
	}
	p.waiting.WithLabelValues(s.Policy).Set(float64(len(s.Waiting)))
	p.stalled.WithLabelValues(s.Policy).Set(float64(len(s.Stalled)))
	p.busy.WithLabelValues(s.Policy, "cpu").Set(float64(s.BusyCPUs))
	p.busy.WithLabelValues(s.Policy, "io").Set(float64(s.BusyIOs))
	if delta := s.CompletedJobs - p.lastCount[s.Policy]; delta > 0 {
		p.completed.WithLabelValues(s.Policy).Add(float64(delta))
	}
	p.lastCount[s.Policy] = s.CompletedJobs
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
