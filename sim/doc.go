// Package sim provides the round-based coordination core of the allocation simulator.
//
// # Reading Guide
//
// Start with these files to understand one simulation round:
//   - resource.go: Resource records and the ResourcePool that holds available ones
//   - consumer.go: Consumer agents that emit at most one request per round
//   - coordinator.go: the FIFO request queue and first-match allocation
//   - scheduler.go: the phase machine (Idle → Request → Resolution → Metrics)
//   - simulator.go: the Simulation context that owns all of the above
//
// # Round Structure
//
// Every round runs in strict phases. During RequestPhase each consumer reads
// one snapshot of pool availability taken at phase start and may submit a
// request. Nothing is mutated until ResolutionPhase, where the Coordinator
// drains its queue in submission order. MetricsPhase then derives the two
// model-wide scalars (total unfulfilled requests and cumulative allocation
// efficiency) and appends them to the time series.
//
// # Determinism
//
// All randomness flows from a PartitionedRNG keyed by the run seed. The
// activation shuffle and each consumer's choice draw from isolated streams, so
// the same seed and configuration always produce the same TimeSeries.
//
// Decision records live in sim/trace, which has no dependency on this package.
package sim
