package sim

import (
	"fmt"
	"sort"
	"strings"
)

// DispatchPolicy decides queue ordering, slot assignment, preemption and
// requeueing. A policy is a pure strategy: the Simulator owns every queue and
// slot and passes them in. Policies may only change the policy fields of a
// job (Priority, Level).
type DispatchPolicy interface {
	Name() string
	// NewReadyQueue builds the ready-queue variant matching the ordering rule.
	NewReadyQueue() ReadyQueue
	// EnqueueNewJob applies the admission rule to a freshly arrived CPU-bound job.
	EnqueueNewJob(ready ReadyQueue, job *Job, clock int64)
	// SelectForCPU picks the next job for an idle CPU and the quantum it may
	// run for (0 = until the burst completes).
	SelectForCPU(ready ReadyQueue, jobs JobLookup, clock int64) (id JobID, quantum int64, ok bool)
	// SelectForIO picks the next job for an idle IO device.
	SelectForIO(waiting *JobQueue, jobs JobLookup) (JobID, bool)
	// OnQuantumExpired requeues a job preempted with burst time left.
	OnQuantumExpired(ready ReadyQueue, job *Job, clock int64)
	// OnBurstComplete requeues a job whose next burst is a CPU burst.
	OnBurstComplete(ready ReadyQueue, job *Job, clock int64)
	// Age runs once per tick before assignment.
	Age(ready ReadyQueue, jobs JobLookup, clock int64)
}

// Canonical policy names, as accepted on the command line.
const (
	PolicyFCFS       = "FCFS"
	PolicyRoundRobin = "RoundRobin"
	PolicyPriority   = "PriorityScheduling"
	PolicyMLFQ       = "MLFQScheduler"
)

var policyAliases = map[string]string{
	"fcfs":               PolicyFCFS,
	"roundrobin":         PolicyRoundRobin,
	"rr":                 PolicyRoundRobin,
	"priorityscheduling": PolicyPriority,
	"priority":           PolicyPriority,
	"mlfqscheduler":      PolicyMLFQ,
	"mlfq":               PolicyMLFQ,
}

func canonicalPolicy(name string) string {
	return policyAliases[strings.ToLower(strings.TrimSpace(name))]
}

// IsValidPolicy reports whether name (or one of its aliases) is a known policy.
func IsValidPolicy(name string) bool {
	return canonicalPolicy(name) != ""
}

// ValidPolicyNames lists the canonical names, sorted.
func ValidPolicyNames() string {
	names := []string{PolicyFCFS, PolicyRoundRobin, PolicyPriority, PolicyMLFQ}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// NewPolicy creates the DispatchPolicy named by cfg.Policy.
// cfg must have passed Validate. Panics on unrecognized names.
func NewPolicy(cfg Config) DispatchPolicy {
	switch canonicalPolicy(cfg.Policy) {
	case PolicyFCFS:
		return &FCFSPolicy{}
	case PolicyRoundRobin:
		return &RoundRobinPolicy{TimeSlice: cfg.TimeSlice}
	case PolicyPriority:
		return &PriorityPolicy{DefaultPriority: cfg.DefaultPriority}
	case PolicyMLFQ:
		quantums := make([]int64, len(cfg.MLFQ.Quantums))
		copy(quantums, cfg.MLFQ.Quantums)
		return &MLFQPolicy{Quantums: quantums, AgingThreshold: cfg.MLFQ.AgingThreshold}
	default:
		panic(fmt.Sprintf("unknown scheduling policy %q", cfg.Policy))
	}
}

// fifoSelectForIO is the IO device selection shared by every policy: queue head.
func fifoSelectForIO(waiting *JobQueue) (JobID, bool) {
	return waiting.Dequeue()
}
