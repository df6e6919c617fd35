package sim

import (
	"fmt"
	"io"

	"github.com/inference-sim/alloc-sim/sim/trace"
)

// ResourceView is a value copy of a Resource.
type ResourceView struct {
	ID     ResourceID `json:"id"`
	Title  string     `json:"title"`
	Author string     `json:"author"`
}

// PoolView is a value copy of a ResourcePool's available set.
type PoolView struct {
	Name      string         `json:"name"`
	Available []ResourceView `json:"available"`
}

// ConsumerView is a value copy of a Consumer's state.
type ConsumerView struct {
	ID          ConsumerID     `json:"id"`
	Name        string         `json:"name"`
	Held        []ResourceView `json:"held"`
	Unfulfilled int            `json:"unfulfilled"`
}

// Snapshot is a read-only view of the simulation for renderers. It shares no
// memory with the live simulation, so callers may keep or modify it freely.
type Snapshot struct {
	Round     int            `json:"round"`
	Pools     []PoolView     `json:"pools"`
	Consumers []ConsumerView `json:"consumers"`
}

func viewOf(r *Resource) ResourceView {
	return ResourceView{ID: r.ID, Title: r.Title, Author: r.Author}
}

func viewsOf(rs []*Resource) []ResourceView {
	out := make([]ResourceView, len(rs))
	for i, r := range rs {
		out[i] = viewOf(r)
	}
	return out
}

// Snapshot returns a deep copy of the current pools and consumers, in
// registration order.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Round:     s.Round(),
		Pools:     make([]PoolView, 0, len(s.pools)),
		Consumers: make([]ConsumerView, 0, len(s.consumers)),
	}
	for _, p := range s.pools {
		snap.Pools = append(snap.Pools, PoolView{Name: p.Name, Available: viewsOf(p.Available())})
	}
	for _, c := range s.consumers {
		snap.Consumers = append(snap.Consumers, ConsumerView{
			ID:          c.ID,
			Name:        c.Name,
			Held:        viewsOf(c.held),
			Unfulfilled: c.unfulfilled,
		})
	}
	return snap
}

// CheckInvariants verifies conservation and single ownership:
// every resource present at Initialize is either available in exactly one
// pool or held by exactly one consumer.
func (s *Simulation) CheckInvariants() error {
	owner := make(map[ResourceID]string, s.initialResources)
	claim := func(id ResourceID, who string) error {
		if prev, dup := owner[id]; dup {
			return fmt.Errorf("resource %d owned by both %s and %s", id, prev, who)
		}
		owner[id] = who
		return nil
	}
	for _, p := range s.pools {
		for _, r := range p.Available() {
			if err := claim(r.ID, "pool "+p.Name); err != nil {
				return err
			}
		}
	}
	for _, c := range s.consumers {
		for _, r := range c.held {
			if r.pool != nil {
				return fmt.Errorf("resource %d held by %s still references pool %q", r.ID, c.Name, r.pool.Name)
			}
			if err := claim(r.ID, "consumer "+c.Name); err != nil {
				return err
			}
		}
	}
	if len(owner) != s.initialResources {
		return fmt.Errorf("conservation violated: %d resources accounted for, %d created", len(owner), s.initialResources)
	}
	return nil
}

// Summary is the end-of-run report.
type Summary struct {
	Seed               int64               `json:"seed"`
	TotalConsumers     int                 `json:"total_consumers"`
	AvailableResources int                 `json:"available_resources"`
	Series             SeriesSummary       `json:"series"`
	Trace              *trace.TraceSummary `json:"trace,omitempty"`
}

// Summary builds the end-of-run report for the rounds executed so far.
func (s *Simulation) Summary() Summary {
	sum := Summary{
		Seed:           int64(s.RNG.Key()),
		TotalConsumers: len(s.consumers),
		Series:         SummarizeSeries(s.Series()),
	}
	if s.catalog != nil {
		sum.AvailableResources = s.catalog.AvailableCount()
	}
	if s.trace != nil {
		sum.Trace = trace.Summarize(s.trace)
	}
	return sum
}

// Print writes the human-readable end-of-run report.
func (sum Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Summary ===")
	fmt.Fprintf(w, "Seed                    : %d\n", sum.Seed)
	fmt.Fprintf(w, "Total Consumers         : %d\n", sum.TotalConsumers)
	fmt.Fprintf(w, "Available Resources     : %d\n", sum.AvailableResources)
	sum.Series.Print(w)
	if sum.Trace != nil {
		fmt.Fprintln(w, "=== Allocation Trace ===")
		fmt.Fprintf(w, "Requests                : %d\n", sum.Trace.TotalRequests)
		fmt.Fprintf(w, "Accepted / Rejected     : %d / %d\n", sum.Trace.AcceptedCount, sum.Trace.RejectedCount)
		fmt.Fprintf(w, "Distinct Keys Requested : %d\n", sum.Trace.UniqueKeys)
	}
}
