package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible run. The same key and the same
// Config always yield the same TimeSeries.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemActivation names the stream behind the per-round activation
// shuffle. It is seeded with the master seed itself.
const SubsystemActivation = "activation"

// SubsystemConsumer names the stream consumer id draws its choices from.
func SubsystemConsumer(id ConsumerID) string {
	return fmt.Sprintf("consumer_%d", id)
}

// PartitionedRNG hands out one isolated, lazily created *rand.Rand per named
// stream, so adding draws to one stream never shifts another.
//
// Stream seeds:
//
//	activation   -> master seed
//	anything else -> master seed XOR fnv1a64(name)
//
// Not safe for concurrent use. Resolve every stream a parallel phase needs
// before fanning out.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use. Repeated
// calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	rng, ok := p.streams[name]
	if !ok {
		rng = rand.New(rand.NewSource(p.seedFor(name)))
		p.streams[name] = rng
	}
	return rng
}

// ForConsumer is shorthand for ForSubsystem(SubsystemConsumer(id)).
func (p *PartitionedRNG) ForConsumer(id ConsumerID) *rand.Rand {
	return p.ForSubsystem(SubsystemConsumer(id))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemActivation {
		return int64(p.key)
	}
	return int64(p.key) ^ fnv1a64(name)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
