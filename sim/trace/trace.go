package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every admission, dispatch, preemption and completion.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a scheduling run.
type SimulationTrace struct {
	Config      TraceConfig
	Arrivals    []ArrivalRecord
	Dispatches  []DispatchRecord
	Preemptions []PreemptionRecord
	Completions []CompletionRecord
	Stalls      []StallRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Arrivals:    make([]ArrivalRecord, 0),
		Dispatches:  make([]DispatchRecord, 0),
		Preemptions: make([]PreemptionRecord, 0),
		Completions: make([]CompletionRecord, 0),
		Stalls:      make([]StallRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on nil.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordArrival appends an admission record.
func (st *SimulationTrace) RecordArrival(record ArrivalRecord) {
	st.Arrivals = append(st.Arrivals, record)
}

// RecordDispatch appends a slot assignment record.
func (st *SimulationTrace) RecordDispatch(record DispatchRecord) {
	st.Dispatches = append(st.Dispatches, record)
}

// RecordPreemption appends a quantum-expiry record.
func (st *SimulationTrace) RecordPreemption(record PreemptionRecord) {
	st.Preemptions = append(st.Preemptions, record)
}

// RecordCompletion appends a job termination record.
func (st *SimulationTrace) RecordCompletion(record CompletionRecord) {
	st.Completions = append(st.Completions, record)
}

// RecordStall appends a stalled-fetch record.
func (st *SimulationTrace) RecordStall(record StallRecord) {
	st.Stalls = append(st.Stalls, record)
}
