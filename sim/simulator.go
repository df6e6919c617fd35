// sim/simulator.go
package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/alloc-sim/sim/trace"
)

// Simulation is the explicitly constructed context that owns the pools,
// consumers, coordinator and scheduler of one run. There is no package-level
// state; callers hold the Simulation and pass it where needed.
type Simulation struct {
	Config Config
	RNG    *PartitionedRNG

	pools     []*ResourcePool
	consumers []*Consumer
	catalog   *Catalog
	coord     *Coordinator
	sched     *StepScheduler
	trace     *trace.SimulationTrace

	initialResources int
	initialized      bool
}

// NewSimulation validates cfg and resolves the seed. The returned Simulation
// holds no agents until Initialize is called.
func NewSimulation(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == nil {
		seed := time.Now().UnixNano()
		cfg.Seed = &seed
		logrus.Infof("No seed provided, using %d", seed)
	}
	return &Simulation{
		Config: cfg,
		RNG:    NewPartitionedRNG(NewSimulationKey(*cfg.Seed)),
	}, nil
}

// NewFromConfig builds the default roster for cfg and initializes a Simulation with it.
func NewFromConfig(cfg Config) (*Simulation, error) {
	s, err := NewSimulation(cfg)
	if err != nil {
		return nil, err
	}
	pools, consumers, err := BuildRoster(s.Config)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(pools, consumers); err != nil {
		return nil, err
	}
	return s, nil
}

// BuildRoster creates the starting distribution described by cfg: pools
// "Library N", resources "Book N" by "Author N" dealt round-robin across the
// pools, and consumers "User N". Ids start at 1.
func BuildRoster(cfg Config) ([]*ResourcePool, []*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pools := make([]*ResourcePool, cfg.PoolCount)
	for i := range pools {
		pools[i] = NewResourcePool(fmt.Sprintf("Library %d", i+1))
	}
	for i := 0; i < cfg.ResourceCount; i++ {
		r := NewResource(ResourceID(i+1), fmt.Sprintf("Book %d", i+1), fmt.Sprintf("Author %d", i+1))
		pools[i%len(pools)].Add(r)
	}
	consumers := make([]*Consumer, cfg.ConsumerCount)
	for i := range consumers {
		consumers[i] = NewConsumer(ConsumerID(i+1), fmt.Sprintf("User %d", i+1), nil)
	}
	return pools, consumers, nil
}

// Initialize bulk-loads the starting resource distribution and consumer
// roster. It must be called exactly once before any round runs.
//
// Consumers without a random source get their own stream from the
// simulation's PartitionedRNG. With Config.Parallel set, injected sources
// must be distinct per consumer.
func (s *Simulation) Initialize(pools []*ResourcePool, consumers []*Consumer) error {
	if s.initialized {
		return newSetupError("", ErrAlreadyInitialized, "")
	}

	seen := make(map[ConsumerID]bool, len(consumers))
	for _, c := range consumers {
		if c == nil {
			return newSetupError("consumers", fmt.Errorf("nil consumer"), "")
		}
		if seen[c.ID] {
			return newSetupError("consumers", ErrDuplicateConsumer, "id %d", c.ID)
		}
		seen[c.ID] = true
	}
	if s.Config.Parallel {
		if err := checkDistinctRandSources(consumers); err != nil {
			return err
		}
	}

	catalog := NewCatalog()
	if err := catalog.AddPools(pools...); err != nil {
		return err
	}

	heldTotal := 0
	for _, c := range consumers {
		heldTotal += len(c.held)
	}

	for _, c := range consumers {
		if c.rng == nil {
			c.rng = s.RNG.ForConsumer(c.ID)
		}
	}

	s.pools = append([]*ResourcePool(nil), pools...)
	s.consumers = append([]*Consumer(nil), consumers...)
	s.catalog = catalog
	s.coord = NewCoordinator(catalog)
	if s.Config.Trace.Enabled() {
		s.trace = trace.NewSimulationTrace(s.Config.Trace)
		s.coord.Trace = s.trace
	}
	s.sched = NewStepScheduler(catalog, s.coord, s.consumers, NewActivation(s.Config.Activation), s.RNG.ForSubsystem(SubsystemActivation))
	s.sched.Parallel = s.Config.Parallel
	s.initialResources = catalog.AvailableCount() + heldTotal
	s.initialized = true

	logrus.Infof("Initialized simulation: seed=%d pools=%d resources=%d consumers=%d activation=%s",
		s.RNG.Key(), len(s.pools), s.initialResources, len(s.consumers), s.Config.Activation)
	return nil
}

// checkDistinctRandSources rejects consumers sharing one *rand.Rand. Parallel
// decisions draw from every consumer's source concurrently.
func checkDistinctRandSources(consumers []*Consumer) error {
	owner := make(map[*rand.Rand]ConsumerID, len(consumers))
	for _, c := range consumers {
		if c.rng == nil {
			continue
		}
		if prev, dup := owner[c.rng]; dup {
			return newSetupError("consumers", ErrSharedRandSource, "consumers %d and %d", prev, c.ID)
		}
		owner[c.rng] = c.ID
	}
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (s *Simulation) Initialized() bool {
	return s.initialized
}

// Step executes one round.
func (s *Simulation) Step() RoundMetrics {
	s.mustBeInitialized("Simulation.Step")
	return s.sched.Step()
}

// Run executes numRounds rounds and returns the full time series recorded so far.
func (s *Simulation) Run(numRounds int) TimeSeries {
	s.mustBeInitialized("Simulation.Run")
	return s.sched.Run(numRounds)
}

// Round returns the number of completed rounds.
func (s *Simulation) Round() int {
	if !s.initialized {
		return 0
	}
	return s.sched.Round()
}

// Series returns a copy of the recorded time series.
func (s *Simulation) Series() TimeSeries {
	if !s.initialized {
		return nil
	}
	return s.sched.Series()
}

// LastResponses returns the responses produced by the most recent round.
func (s *Simulation) LastResponses() []Response {
	if !s.initialized {
		return nil
	}
	return s.sched.LastResponses()
}

// Metrics computes the current model-wide metrics.
func (s *Simulation) Metrics() Metrics {
	return MetricsAggregator{}.Compute(s.consumers)
}

// Trace returns the allocation trace, or nil when tracing is disabled.
func (s *Simulation) Trace() *trace.SimulationTrace {
	return s.trace
}

// InitialResourceCount returns the number of resources present at Initialize.
func (s *Simulation) InitialResourceCount() int {
	return s.initialResources
}

func (s *Simulation) mustBeInitialized(op string) {
	if !s.initialized {
		protocolPanic(op, "Initialize must be called before any round executes")
	}
}
