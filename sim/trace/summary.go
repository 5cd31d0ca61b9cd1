package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalTransitions int
	Dropped          int
	// ByMachine counts transitions per machine kind.
	ByMachine map[string]int
	// ByTarget counts transitions per "machine:to-state" key.
	ByTarget map[string]int
	// UniqueElements is the number of distinct elements that transitioned.
	UniqueElements int
	// StopReasons counts replication stops per reason.
	StopReasons map[string]int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ByMachine:   make(map[string]int),
		ByTarget:    make(map[string]int),
		StopReasons: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalTransitions = len(st.Transitions)
	summary.Dropped = st.Dropped
	elements := make(map[string]struct{})
	for _, r := range st.Transitions {
		summary.ByMachine[r.Machine]++
		summary.ByTarget[r.Machine+":"+r.To]++
		elements[r.Element] = struct{}{}
	}
	summary.UniqueElements = len(elements)

	for _, s := range st.Stops {
		summary.StopReasons[s.Reason]++
	}
	return summary
}
