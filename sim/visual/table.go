// Package visual holds sim.Visualizer implementations: a per-tick table
// printer, a non-blocking async wrapper and a Prometheus exporter.
package visual

import (
	"fmt"
	"io"
	"strings"

	"github.com/inference-sim/cpusched/sim"
	"github.com/olekukonko/tablewriter"
)

const clearScreen = "\033[H\033[2J"

// Table prints every snapshot as a queue/resource table.
type Table struct {
	w io.Writer
	// Live redraws in place instead of appending one table per tick.
	Live bool
}

// NewTable creates a table printer writing to w.
func NewTable(w io.Writer, live bool) *Table {
	return &Table{w: w, Live: live}
}

func (t *Table) Show(s sim.Snapshot) {
	if t.Live {
		fmt.Fprint(t.w, clearScreen)
	}
	fmt.Fprintf(t.w, "Tick %d  [%s]  busy CPUs %d/%d  busy IOs %d/%d  completed %d\n",
		s.Clock, s.Policy, s.BusyCPUs, len(s.CPUs), s.BusyIOs, len(s.IOs), s.CompletedJobs)

	table := tablewriter.NewWriter(t.w)
	table.SetHeader([]string{"Container", "Jobs"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk(Rows(s))
	table.Render()
}

// Rows flattens a snapshot into (container, contents) rows, in display order.
func Rows(s sim.Snapshot) [][]string {
	var rows [][]string
	if len(s.Ready) == 1 {
		rows = append(rows, []string{"Ready", formatJobs(s.Ready[0])})
	} else {
		for level, jobs := range s.Ready {
			rows = append(rows, []string{fmt.Sprintf("Ready L%d", level), formatJobs(jobs)})
		}
	}
	rows = append(rows, []string{"Waiting", formatJobs(s.Waiting)})
	for _, slot := range s.CPUs {
		rows = append(rows, []string{fmt.Sprintf("CPU %d", slot.Index), formatSlot(slot)})
	}
	for _, slot := range s.IOs {
		rows = append(rows, []string{fmt.Sprintf("IO %d", slot.Index), formatSlot(slot)})
	}
	if len(s.Stalled) > 0 {
		rows = append(rows, []string{"Stalled", formatIDs(s.Stalled)})
	}
	rows = append(rows, []string{"Terminated", formatIDs(s.Terminated)})
	return rows
}

func formatJobs(jobs []sim.JobView) string {
	if len(jobs) == 0 {
		return "-"
	}
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		parts[i] = fmt.Sprintf("J%d(%d)", j.ID, j.Remaining)
	}
	return strings.Join(parts, " ")
}

func formatSlot(slot sim.SlotView) string {
	if !slot.Busy {
		return "idle"
	}
	out := fmt.Sprintf("J%d %s, %d left", slot.Job.ID, slot.Job.Burst.Type, slot.Job.Remaining)
	if slot.QuantumLeft > 0 {
		out += fmt.Sprintf(", quantum %d", slot.QuantumLeft)
	}
	return out
}

func formatIDs(ids []sim.JobID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("J%d", id)
	}
	return strings.Join(parts, " ")
}
