package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inference-sim/alloc-sim/sim"
	"github.com/inference-sim/alloc-sim/sim/trace"
)

// Results is the JSON document written by --results-path.
type Results struct {
	Summary     sim.Summary              `json:"summary"`
	Series      sim.TimeSeries           `json:"series"`
	Allocations []trace.AllocationRecord `json:"allocations,omitempty"`
}

func collectResults(s *sim.Simulation) Results {
	res := Results{Summary: s.Summary(), Series: s.Series()}
	if res.Series == nil {
		res.Series = sim.TimeSeries{}
	}
	if tr := s.Trace(); tr != nil {
		res.Allocations = tr.Allocations
	}
	return res
}

func writeResults(path string, s *sim.Simulation) error {
	data, err := json.MarshalIndent(collectResults(s), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
