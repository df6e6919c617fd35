// Derives the model-wide allocation metrics after each round.

package sim

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds the model-wide scalars derived from the consumer population.
//
// Efficiency is cumulative over the whole run: held and unfulfilled counters
// never reset, so it is the allocation success rate since simulation start,
// not a per-round rate.
type Metrics struct {
	TotalUnfulfilled int     `json:"total_unfulfilled"`
	TotalHeld        int     `json:"total_held"`
	Efficiency       float64 `json:"efficiency"`
}

// MetricsAggregator computes Metrics from consumer state. It only reads.
type MetricsAggregator struct{}

// Compute sums held and unfulfilled counts across consumers.
// Efficiency is held/(held+unfulfilled), or 0 when nothing was ever requested.
func (MetricsAggregator) Compute(consumers []*Consumer) Metrics {
	var m Metrics
	for _, c := range consumers {
		m.TotalHeld += c.HeldCount()
		m.TotalUnfulfilled += c.Unfulfilled()
	}
	if total := m.TotalHeld + m.TotalUnfulfilled; total > 0 {
		m.Efficiency = float64(m.TotalHeld) / float64(total)
	}
	return m
}

// RoundMetrics is one entry of the TimeSeries.
type RoundMetrics struct {
	Round            int     `json:"round" db:"round"`
	TotalUnfulfilled int     `json:"total_unfulfilled" db:"total_unfulfilled"`
	Efficiency       float64 `json:"efficiency" db:"efficiency"`
}

// TimeSeries is the ordered per-round record, one entry per completed round.
type TimeSeries []RoundMetrics

// Last returns the most recent entry, or the zero value for an empty series.
func (ts TimeSeries) Last() RoundMetrics {
	if len(ts) == 0 {
		return RoundMetrics{}
	}
	return ts[len(ts)-1]
}

// SeriesSummary describes a TimeSeries as a whole.
type SeriesSummary struct {
	Rounds                 int     `json:"rounds"`
	FinalUnfulfilled       int     `json:"final_unfulfilled"`
	FinalEfficiency        float64 `json:"final_efficiency"`
	MeanEfficiency         float64 `json:"mean_efficiency"`
	EfficiencyStdDev       float64 `json:"efficiency_stddev"`
	MaxUnfulfilledPerRound int     `json:"max_unfulfilled_per_round"`
}

// SummarizeSeries computes run-level statistics over the recorded rounds.
// Safe for an empty series.
func SummarizeSeries(ts TimeSeries) SeriesSummary {
	s := SeriesSummary{Rounds: len(ts)}
	if len(ts) == 0 {
		return s
	}
	last := ts.Last()
	s.FinalUnfulfilled = last.TotalUnfulfilled
	s.FinalEfficiency = last.Efficiency

	eff := make([]float64, len(ts))
	prev := 0
	for i, rm := range ts {
		eff[i] = rm.Efficiency
		if d := rm.TotalUnfulfilled - prev; d > s.MaxUnfulfilledPerRound {
			s.MaxUnfulfilledPerRound = d
		}
		prev = rm.TotalUnfulfilled
	}
	if len(eff) > 1 {
		s.MeanEfficiency, s.EfficiencyStdDev = stat.MeanStdDev(eff, nil)
	} else {
		s.MeanEfficiency = eff[0]
	}
	return s
}

// Print writes a human-readable summary of a run.
func (s SeriesSummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Rounds                  : %d\n", s.Rounds)
	fmt.Fprintf(w, "Unfulfilled Requests    : %d\n", s.FinalUnfulfilled)
	fmt.Fprintf(w, "Allocation Efficiency   : %.2f%%\n", s.FinalEfficiency*100)
	if s.Rounds > 0 {
		fmt.Fprintf(w, "Mean Round Efficiency   : %.2f%%\n", s.MeanEfficiency*100)
		fmt.Fprintf(w, "Efficiency Std Dev      : %.4f\n", s.EfficiencyStdDev)
		fmt.Fprintf(w, "Peak Rejections / Round : %d\n", s.MaxUnfulfilledPerRound)
	}
}
