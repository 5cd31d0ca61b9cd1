package trace

// TraceLevel controls the verbosity of transition tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransitions captures every unit, request and notice transition.
	TraceLevelTransitions TraceLevel = "transitions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelTransitions: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords bounds memory; 0 means unbounded. Records past the bound are counted but dropped.
	MaxRecords int
}

// SimulationTrace collects transition records during an experiment.
type SimulationTrace struct {
	Config      TraceConfig
	Transitions []TransitionRecord
	Stops       []StopRecord
	Dropped     int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Transitions: make([]TransitionRecord, 0),
		Stops:       make([]StopRecord, 0),
	}
}

// Enabled reports whether transitions are being recorded. Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelTransitions
}

// RecordTransition appends a transition record. No-op on a nil or disabled trace.
func (st *SimulationTrace) RecordTransition(record TransitionRecord) {
	if !st.Enabled() {
		return
	}
	if st.Config.MaxRecords > 0 && len(st.Transitions) >= st.Config.MaxRecords {
		st.Dropped++
		return
	}
	st.Transitions = append(st.Transitions, record)
}

// RecordStop appends a replication stop record. No-op on a nil or disabled trace.
func (st *SimulationTrace) RecordStop(record StopRecord) {
	if !st.Enabled() {
		return
	}
	st.Stops = append(st.Stops, record)
}
