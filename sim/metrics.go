// Tracks simulation-wide and per-job performance metrics: turnaround, waiting,
// CPU and IO utilization.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
)

// Metrics aggregates statistics about the simulation for final reporting.
// The Simulator pushes busy-slot counts every tick with RecordTick; utilization
// is derived only from those counters.
type Metrics struct {
	CPUCount int
	IOCount  int

	TotalTurnaround int64 // sum of (completion - arrival)
	TotalWaiting    int64 // sum of (turnaround - CPU service)
	CompletedJobs   int

	ElapsedTicks int64
	CPUBusyTicks int64 // sum over ticks of busy CPU slots
	IOBusyTicks  int64 // sum over ticks of busy IO slots

	Jobs map[JobID]*JobRecord
}

// NewMetrics creates an empty collector for a pool of cpus CPUs and ios IO devices.
func NewMetrics(cpus, ios int) *Metrics {
	return &Metrics{
		CPUCount: cpus,
		IOCount:  ios,
		Jobs:     make(map[JobID]*JobRecord),
	}
}

// AddJobStats accumulates one completed job.
func (m *Metrics) AddJobStats(turnaround, waiting int64) {
	m.TotalTurnaround += turnaround
	m.TotalWaiting += waiting
	m.CompletedJobs++
}

// RecordTick accounts one elapsed tick and the slots that were busy during it.
func (m *Metrics) RecordTick(busyCPUs, busyIOs int) {
	m.ElapsedTicks++
	m.CPUBusyTicks += int64(busyCPUs)
	m.IOBusyTicks += int64(busyIOs)
}

// Calculate returns average turnaround, average waiting and CPU utilization (percent).
// Every value is 0 when its denominator is 0.
func (m *Metrics) Calculate() (avgTurnaround, avgWaiting, cpuUtilization float64) {
	if m.CompletedJobs > 0 {
		avgTurnaround = float64(m.TotalTurnaround) / float64(m.CompletedJobs)
		avgWaiting = float64(m.TotalWaiting) / float64(m.CompletedJobs)
	}
	cpuUtilization = utilization(m.CPUBusyTicks, m.ElapsedTicks, m.CPUCount)
	return avgTurnaround, avgWaiting, cpuUtilization
}

// IOUtilization returns the IO device utilization in percent.
func (m *Metrics) IOUtilization() float64 {
	return utilization(m.IOBusyTicks, m.ElapsedTicks, m.IOCount)
}

// Throughput returns completed jobs per elapsed tick.
func (m *Metrics) Throughput() float64 {
	if m.ElapsedTicks == 0 {
		return 0
	}
	return float64(m.CompletedJobs) / float64(m.ElapsedTicks)
}

func utilization(busy, elapsed int64, slots int) float64 {
	if elapsed == 0 || slots == 0 {
		return 0
	}
	return float64(busy) / (float64(elapsed) * float64(slots)) * 100
}

// Records returns the job records sorted by job ID.
func (m *Metrics) Records() []*JobRecord {
	ids := make([]JobID, 0, len(m.Jobs))
	for id := range m.Jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*JobRecord, len(ids))
	for i, id := range ids {
		out[i] = m.Jobs[id]
	}
	return out
}

// JobOutput is one row of the per-job report.
type JobOutput struct {
	ID             JobID `json:"job_id"`
	ArrivalTime    int64 `json:"arrival_time"`
	CompletionTime int64 `json:"completion_time"`
	TotalBurstTime int64 `json:"total_burst_time"`
	ServiceTime    int64 `json:"service_time"`
	Turnaround     int64 `json:"turnaround_time"`
	Waiting        int64 `json:"waiting_time"`
}

// MetricsOutput is the machine-readable simulation report.
type MetricsOutput struct {
	Policy          string       `json:"policy"`
	CPUs            int          `json:"cpus"`
	IOs             int          `json:"ios"`
	CompletedJobs   int          `json:"completed_jobs"`
	ElapsedTicks    int64        `json:"elapsed_ticks"`
	AvgTurnaround   float64      `json:"avg_turnaround_time"`
	AvgWaiting      float64      `json:"avg_waiting_time"`
	CPUUtilization  float64      `json:"cpu_utilization"`
	IOUtilization   float64      `json:"io_utilization"`
	Throughput      float64      `json:"throughput"`
	TurnaroundStats Distribution `json:"turnaround_distribution"`
	WaitingStats    Distribution `json:"waiting_distribution"`
	Jobs            []JobOutput  `json:"jobs"`
}

// Output builds the report. Jobs that never completed are left out.
func (m *Metrics) Output(policy string) MetricsOutput {
	avgTA, avgW, cpuUtil := m.Calculate()
	out := MetricsOutput{
		Policy:         policy,
		CPUs:           m.CPUCount,
		IOs:            m.IOCount,
		CompletedJobs:  m.CompletedJobs,
		ElapsedTicks:   m.ElapsedTicks,
		AvgTurnaround:  avgTA,
		AvgWaiting:     avgW,
		CPUUtilization: cpuUtil,
		IOUtilization:  m.IOUtilization(),
		Throughput:     m.Throughput(),
		Jobs:           make([]JobOutput, 0, len(m.Jobs)),
	}
	var turnarounds, waits []int64
	for _, rec := range m.Records() {
		ta, ok := rec.Turnaround()
		if !ok {
			continue
		}
		w, _ := rec.Waiting()
		turnarounds = append(turnarounds, ta)
		waits = append(waits, w)
		out.Jobs = append(out.Jobs, JobOutput{
			ID:             rec.ID,
			ArrivalTime:    rec.ArrivalTime,
			CompletionTime: *rec.CompletionTime,
			TotalBurstTime: rec.TotalBurstTime,
			ServiceTime:    rec.ServiceTime,
			Turnaround:     ta,
			Waiting:        w,
		})
	}
	out.TurnaroundStats = NewTickDistribution(turnarounds)
	out.WaitingStats = NewTickDistribution(waits)
	return out
}

// JSON renders the report as indented JSON.
func (m *Metrics) JSON(policy string) ([]byte, error) {
	return json.MarshalIndent(m.Output(policy), "", "  ")
}

// Print writes the per-job table followed by the aggregate summary.
func (m *Metrics) Print(w io.Writer, policy string) {
	out := m.Output(policy)

	fmt.Fprintf(w, "=== Simulation Metrics (%s, %d CPUs, %d IO devices) ===\n", policy, out.CPUs, out.IOs)

	jobs := tablewriter.NewWriter(w)
	jobs.SetHeader([]string{"Job", "Arrival", "Completion", "Service", "Turnaround", "Waiting"})
	for _, j := range out.Jobs {
		jobs.Append([]string{
			fmt.Sprint(j.ID),
			fmt.Sprint(j.ArrivalTime),
			fmt.Sprint(j.CompletionTime),
			fmt.Sprint(j.ServiceTime),
			fmt.Sprint(j.Turnaround),
			fmt.Sprint(j.Waiting),
		})
	}
	jobs.SetFooter([]string{"", "", "", "Average",
		fmt.Sprintf("%.2f", out.AvgTurnaround),
		fmt.Sprintf("%.2f", out.AvgWaiting)})
	jobs.Render()

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.SetAlignment(tablewriter.ALIGN_LEFT)
	summary.AppendBulk([][]string{
		{"Completed Jobs", fmt.Sprint(out.CompletedJobs)},
		{"Elapsed Ticks", fmt.Sprint(out.ElapsedTicks)},
		{"Average Turnaround Time", fmt.Sprintf("%.2f", out.AvgTurnaround)},
		{"Average Waiting Time", fmt.Sprintf("%.2f", out.AvgWaiting)},
		{"Turnaround p50 / p95 / p99", fmt.Sprintf("%.2f / %.2f / %.2f", out.TurnaroundStats.P50, out.TurnaroundStats.P95, out.TurnaroundStats.P99)},
		{"Waiting p50 / p95 / p99", fmt.Sprintf("%.2f / %.2f / %.2f", out.WaitingStats.P50, out.WaitingStats.P95, out.WaitingStats.P99)},
		{"CPU Utilization", fmt.Sprintf("%.2f%%", out.CPUUtilization)},
		{"IO Utilization", fmt.Sprintf("%.2f%%", out.IOUtilization)},
		{"Throughput", fmt.Sprintf("%.4f jobs/tick", out.Throughput)},
	})
	summary.Render()
}
