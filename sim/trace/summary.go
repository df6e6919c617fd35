package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRequests    int            `json:"total_requests"`
	AcceptedCount    int            `json:"accepted"`
	RejectedCount    int            `json:"rejected"`
	UniqueKeys       int            `json:"unique_keys"`
	PoolDistribution map[string]int `json:"pool_distribution"` // pool name → resources allocated from it
	RejectedByKey    map[string]int `json:"rejected_by_key"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PoolDistribution: make(map[string]int),
		RejectedByKey:    make(map[string]int),
	}
	if st == nil {
		return summary
	}

	keys := make(map[string]struct{})
	summary.TotalRequests = len(st.Allocations)
	for _, a := range st.Allocations {
		keys[a.Key] = struct{}{}
		if a.Accepted {
			summary.AcceptedCount++
			summary.PoolDistribution[a.Pool]++
		} else {
			summary.RejectedCount++
			summary.RejectedByKey[a.Key]++
		}
	}
	summary.UniqueKeys = len(keys)

	return summary
}
