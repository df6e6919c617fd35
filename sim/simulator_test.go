package sim

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/alloc-sim/sim/trace"
)

func TestBuildRoster_RoundRobinDistribution(t *testing.T) {
	// GIVEN 3 pools and 7 resources
	pools, consumers, err := BuildRoster(Config{PoolCount: 3, ResourceCount: 7, ConsumerCount: 2})
	require.NoError(t, err)

	// THEN resource i lands in pool i % 3
	require.Len(t, pools, 3)
	titles := func(p *ResourcePool) []string {
		var out []string
		for _, r := range p.Available() {
			out = append(out, r.Title)
		}
		return out
	}
	assert.Equal(t, "Library 1", pools[0].Name)
	assert.Equal(t, []string{"Book 1", "Book 4", "Book 7"}, titles(pools[0]))
	assert.Equal(t, []string{"Book 2", "Book 5"}, titles(pools[1]))
	assert.Equal(t, []string{"Book 3", "Book 6"}, titles(pools[2]))
	assert.Equal(t, "Author 4", pools[0].Available()[1].Author)

	require.Len(t, consumers, 2)
	assert.Equal(t, "User 2", consumers[1].Name)
	assert.Equal(t, ConsumerID(2), consumers[1].ID)
}

func TestNewFromConfig_SetupErrors(t *testing.T) {
	_, err := NewFromConfig(Config{PoolCount: 0, ResourceCount: 5})
	assert.True(t, errors.Is(err, ErrNoPools))

	_, err = NewFromConfig(Config{ConsumerCount: -1})
	assert.True(t, errors.Is(err, ErrNegativeCount))
}

func TestSimulation_Initialize_DuplicateConsumer_SetupError(t *testing.T) {
	s, err := NewSimulation(seededConfig(1, 0, 0, 1))
	require.NoError(t, err)

	dup := []*Consumer{NewConsumer(1, "a", nil), NewConsumer(1, "b", nil)}
	err = s.Initialize(nil, dup)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.True(t, errors.Is(err, ErrDuplicateConsumer))
	assert.False(t, s.Initialized())
}

func TestSimulation_Initialize_DuplicateResourceAcrossPools_SetupError(t *testing.T) {
	s, err := NewSimulation(seededConfig(2, 0, 0, 1))
	require.NoError(t, err)

	err = s.Initialize([]*ResourcePool{
		newPoolWith("Library 1", 1, "A"),
		newPoolWith("Library 2", 1, "B"),
	}, newTestConsumers(1))

	assert.True(t, errors.Is(err, ErrDuplicateResource))
}

func TestSimulation_Initialize_Twice_SetupError(t *testing.T) {
	s, err := NewFromConfig(seededConfig(1, 2, 1, 1))
	require.NoError(t, err)

	err = s.Initialize(nil, nil)
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))
}

func TestSimulation_Run_BeforeInitialize_Panics(t *testing.T) {
	s, err := NewSimulation(seededConfig(1, 1, 1, 1))
	require.NoError(t, err)

	requireProtocolPanic(t, "Simulation.Run", func() { s.Run(1) })
	requireProtocolPanic(t, "Simulation.Step", func() { s.Step() })
}

func TestNewSimulation_NilSeed_IsResolved(t *testing.T) {
	s, err := NewSimulation(Config{})
	require.NoError(t, err)
	require.NotNil(t, s.Config.Seed)
	assert.Equal(t, SimulationKey(*s.Config.Seed), s.RNG.Key())
}

func TestSimulation_Conservation_AndMonotonicity(t *testing.T) {
	// GIVEN a contended population: more consumers than resources
	s, err := NewFromConfig(seededConfig(3, 15, 20, 2024))
	require.NoError(t, err)
	require.Equal(t, 15, s.InitialResourceCount())

	prevHeld := map[ConsumerID]int{}
	prevUnfulfilled := map[ConsumerID]int{}
	for round := 0; round < 12; round++ {
		s.Step()

		// THEN conservation and single ownership hold after every round
		require.NoError(t, s.CheckInvariants(), "round %d", round+1)

		snap := s.Snapshot()
		total := 0
		for _, p := range snap.Pools {
			total += len(p.Available)
		}
		for _, c := range snap.Consumers {
			total += len(c.Held)

			// AND per-consumer counters never decrease
			assert.GreaterOrEqual(t, len(c.Held), prevHeld[c.ID])
			assert.GreaterOrEqual(t, c.Unfulfilled, prevUnfulfilled[c.ID])
			prevHeld[c.ID] = len(c.Held)
			prevUnfulfilled[c.ID] = c.Unfulfilled
		}
		assert.Equal(t, 15, total, "round %d", round+1)
	}
}

func TestSimulation_NoDoubleAllocation(t *testing.T) {
	s, err := NewFromConfig(seededConfig(4, 40, 25, 9))
	require.NoError(t, err)
	s.Run(10)

	owners := map[ResourceID]string{}
	snap := s.Snapshot()
	for _, c := range snap.Consumers {
		for _, r := range c.Held {
			prev, dup := owners[r.ID]
			require.False(t, dup, "resource %d held by %s and %s", r.ID, prev, c.Name)
			owners[r.ID] = c.Name
		}
	}
	for _, p := range snap.Pools {
		for _, r := range p.Available {
			_, held := owners[r.ID]
			require.False(t, held, "resource %d both available in %s and held", r.ID, p.Name)
		}
	}
}

func TestSimulation_Determinism_SameSeedSameSeries(t *testing.T) {
	run := func(parallel bool) TimeSeries {
		cfg := seededConfig(3, 30, 12, 42)
		cfg.Parallel = parallel
		s, err := NewFromConfig(cfg)
		require.NoError(t, err)
		return s.Run(15)
	}

	first := run(false)
	assert.Equal(t, first, run(false))
	assert.Equal(t, first, run(true), "parallel decisions must not change the series")
}

func TestSimulation_Determinism_DifferentSeedsDiffer(t *testing.T) {
	runSnapshot := func(seed int64) Snapshot {
		s, err := NewFromConfig(seededConfig(3, 30, 12, seed))
		require.NoError(t, err)
		s.Run(5)
		return s.Snapshot()
	}
	assert.NotEqual(t, runSnapshot(1), runSnapshot(2))
}

func TestSimulation_EfficiencyBounds(t *testing.T) {
	s, err := NewFromConfig(seededConfig(2, 10, 8, 11))
	require.NoError(t, err)

	for _, rm := range s.Run(20) {
		assert.GreaterOrEqual(t, rm.Efficiency, 0.0)
		assert.LessOrEqual(t, rm.Efficiency, 1.0)
	}
}

func TestSimulation_NoResources_NoRequests(t *testing.T) {
	// GIVEN zero resources and one consumer
	s, err := NewFromConfig(seededConfig(1, 0, 1, 3))
	require.NoError(t, err)

	// WHEN several rounds run
	ts := s.Run(4)

	// THEN the consumer never submits and metrics stay {0, 0.0}
	require.Len(t, ts, 4)
	for i, rm := range ts {
		assert.Equal(t, RoundMetrics{Round: i + 1, TotalUnfulfilled: 0, Efficiency: 0.0}, rm)
	}
	assert.Empty(t, s.LastResponses())
}

func TestSimulation_NoPoolsNoConsumers_RunsEmptyRounds(t *testing.T) {
	s, err := NewFromConfig(seededConfig(0, 0, 0, 3))
	require.NoError(t, err)
	assert.Len(t, s.Run(3), 3)
}

func TestSimulation_Snapshot_IsDetached(t *testing.T) {
	s, err := NewFromConfig(seededConfig(1, 3, 1, 5))
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Pools[0].Available[0].Title = "mutated"
	snap.Pools[0].Available = nil

	fresh := s.Snapshot()
	assert.Len(t, fresh.Pools[0].Available, 3)
	assert.Equal(t, "Book 1", fresh.Pools[0].Available[0].Title)
	require.NoError(t, s.CheckInvariants())
}

func TestSimulation_InjectedConsumerRandomSourceIsKept(t *testing.T) {
	// GIVEN two sims with different seeds whose only consumer has the same injected source
	run := func(seed int64) []Response {
		s, err := NewSimulation(seededConfig(1, 0, 0, seed))
		require.NoError(t, err)
		user := NewConsumer(1, "User 1", NewPartitionedRNG(NewSimulationKey(100)).ForSubsystem("fixed"))
		require.NoError(t, s.Initialize([]*ResourcePool{newPoolWith("Library 1", 1, manyTitles(30)...)}, []*Consumer{user}))
		s.Step()
		return s.LastResponses()
	}

	// THEN the consumer's choice does not depend on the simulation seed
	a, b := run(1), run(2)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].TargetKey, b[0].TargetKey)
}

func TestSimulation_Summary_WithTrace(t *testing.T) {
	cfg := seededConfig(2, 6, 4, 8)
	cfg.Trace = trace.TraceConfig{Level: trace.TraceLevelAllocations}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)
	ts := s.Run(5)

	sum := s.Summary()
	assert.Equal(t, int64(8), sum.Seed)
	assert.Equal(t, 4, sum.TotalConsumers)
	assert.Equal(t, ts.Last().Efficiency, sum.Series.FinalEfficiency)
	require.NotNil(t, sum.Trace)

	m := s.Metrics()
	assert.Equal(t, m.TotalHeld, sum.Trace.AcceptedCount)
	assert.Equal(t, m.TotalUnfulfilled, sum.Trace.RejectedCount)
	assert.Equal(t, 6-m.TotalHeld, sum.AvailableResources)

	var buf bytes.Buffer
	sum.Print(&buf)
	assert.Contains(t, buf.String(), "Total Consumers         : 4")
	assert.Contains(t, buf.String(), "=== Allocation Trace ===")
}

func TestSimulation_Summary_TraceDisabled(t *testing.T) {
	s, err := NewFromConfig(seededConfig(1, 2, 1, 8))
	require.NoError(t, err)
	s.Run(1)
	assert.Nil(t, s.Trace())
	assert.Nil(t, s.Summary().Trace)
}

func TestSimulation_Initialize_RetryAfterSetupError_Succeeds(t *testing.T) {
	// GIVEN a first Initialize that fails on a duplicate id in the second pool
	s, err := NewSimulation(seededConfig(2, 0, 0, 1))
	require.NoError(t, err)
	good := newPoolWith("Library 1", 1, "A")
	err = s.Initialize([]*ResourcePool{good, newPoolWith("Library 2", 1, "B")}, newTestConsumers(1))
	require.True(t, errors.Is(err, ErrDuplicateResource))

	// WHEN the caller fixes the second pool and retries with the same first pool
	err = s.Initialize([]*ResourcePool{good, newPoolWith("Library 2", 2, "B")}, newTestConsumers(1))

	// THEN setup succeeds and both pools are offered
	require.NoError(t, err)
	assert.Equal(t, 2, s.InitialResourceCount())
	require.NoError(t, s.CheckInvariants())
}

func TestSimulation_Initialize_ParallelSharedRandSource_SetupError(t *testing.T) {
	cfg := seededConfig(1, 0, 0, 1)
	cfg.Parallel = true
	s, err := NewSimulation(cfg)
	require.NoError(t, err)

	shared := rand.New(rand.NewSource(3))
	users := []*Consumer{NewConsumer(1, "User 1", shared), NewConsumer(2, "User 2", shared)}
	err = s.Initialize([]*ResourcePool{newPoolWith("Library 1", 1, "A", "B")}, users)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.True(t, errors.Is(err, ErrSharedRandSource))
	assert.False(t, s.Initialized())
}

func TestSimulation_Initialize_SequentialSharedRandSource_Allowed(t *testing.T) {
	s, err := NewSimulation(seededConfig(1, 0, 0, 1))
	require.NoError(t, err)

	shared := rand.New(rand.NewSource(3))
	users := []*Consumer{NewConsumer(1, "User 1", shared), NewConsumer(2, "User 2", shared)}
	require.NoError(t, s.Initialize([]*ResourcePool{newPoolWith("Library 1", 1, "A", "B")}, users))
}

func TestSimulation_TwoConsumersPickSameKey_FirstInActivationOrderWins(t *testing.T) {
	// GIVEN one pool {A, B}, sequential activation, and two consumers whose
	// sources are seeded identically so they choose the same key
	cfg := seededConfig(1, 0, 0, 1)
	cfg.Activation = "sequential"
	s, err := NewSimulation(cfg)
	require.NoError(t, err)
	pool := newPoolWith("Library 1", 1, "A", "B")
	users := []*Consumer{
		NewConsumer(1, "User 1", rand.New(rand.NewSource(6))),
		NewConsumer(2, "User 2", rand.New(rand.NewSource(6))),
	}
	require.NoError(t, s.Initialize([]*ResourcePool{pool}, users))

	// WHEN one round runs
	rm := s.Step()

	// THEN both requested the same key; User 1 got it and User 2 was rejected
	resp := s.LastResponses()
	require.Len(t, resp, 2)
	key := resp[0].TargetKey
	assert.Equal(t, key, resp[1].TargetKey)
	assert.Equal(t, ConsumerID(1), resp[0].Requester.ID)
	assert.True(t, resp[0].Accepted())
	assert.False(t, resp[1].Accepted())

	require.Equal(t, 1, users[0].HeldCount())
	assert.Equal(t, key, users[0].Held()[0].Title)
	assert.Equal(t, 0, users[1].HeldCount())
	assert.Equal(t, 1, users[1].Unfulfilled())
	assert.Equal(t, 1, pool.Len())
	_, stillThere := pool.FindByKey(key)
	assert.False(t, stillThere)
	assert.Equal(t, 1, rm.TotalUnfulfilled)
	assert.InDelta(t, 0.5, rm.Efficiency, 1e-12)
	require.NoError(t, s.CheckInvariants())
}
