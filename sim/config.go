package sim

import (
	"github.com/inference-sim/alloc-sim/sim/trace"
)

// Config groups everything needed to build and drive a Simulation.
type Config struct {
	PoolCount     int    `yaml:"pools"`     // number of resource pools (≥ 0)
	ResourceCount int    `yaml:"resources"` // resources distributed round-robin over pools (≥ 0)
	ConsumerCount int    `yaml:"consumers"` // number of consumers (≥ 0)
	Seed          *int64 `yaml:"seed"`      // nil = derive from wall clock (logged for replay)

	Activation string            `yaml:"activation"` // "random" (default) or "sequential"
	Parallel   bool              `yaml:"parallel"`   // compute consumer decisions concurrently
	Trace      trace.TraceConfig `yaml:"trace"`
}

// DefaultConfig returns the stock scenario: 3 pools, 15
// resources and 7 consumers.
func DefaultConfig() Config {
	return Config{
		PoolCount:     3,
		ResourceCount: 15,
		ConsumerCount: 7,
		Activation:    "random",
	}
}

// Validate checks counts and policy names. Every failure is a *SetupError.
func (c Config) Validate() error {
	if c.PoolCount < 0 {
		return newSetupError("pool_count", ErrNegativeCount, "got %d", c.PoolCount)
	}
	if c.ResourceCount < 0 {
		return newSetupError("resource_count", ErrNegativeCount, "got %d", c.ResourceCount)
	}
	if c.ConsumerCount < 0 {
		return newSetupError("consumer_count", ErrNegativeCount, "got %d", c.ConsumerCount)
	}
	if c.PoolCount == 0 && c.ResourceCount > 0 {
		return newSetupError("pool_count", ErrNoPools, "%d resources", c.ResourceCount)
	}
	if !IsValidActivation(c.Activation) {
		return newSetupError("activation", ErrUnknownActivation, "%q; valid: random, sequential", c.Activation)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return newSetupError("trace.level", ErrUnknownTraceLevel, "%q; valid: none, allocations", c.Trace.Level)
	}
	return nil
}
