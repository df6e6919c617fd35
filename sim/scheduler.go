package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
)

// ActivationPolicy reorders the consumer activation list before each round.
// Implementations reorder the slice in-place and must not change its length.
type ActivationPolicy interface {
	Order(consumers []*Consumer, rng *rand.Rand)
}

// RandomActivation shuffles the activation order every round so no consumer
// is systematically favored by list position.
type RandomActivation struct{}

func (RandomActivation) Order(consumers []*Consumer, rng *rand.Rand) {
	rng.Shuffle(len(consumers), func(i, j int) {
		consumers[i], consumers[j] = consumers[j], consumers[i]
	})
}

// SequentialActivation keeps registration order (no-op).
type SequentialActivation struct{}

func (SequentialActivation) Order(_ []*Consumer, _ *rand.Rand) {
	// No-op: registration order preserved
}

// ValidActivations is the set of recognized activation policy names.
var ValidActivations = map[string]bool{"": true, "random": true, "sequential": true}

// IsValidActivation reports whether name is a recognized activation policy.
func IsValidActivation(name string) bool {
	return ValidActivations[name]
}

// NewActivation creates an ActivationPolicy by name.
// Valid names: "random" (default), "sequential".
// Empty string defaults to RandomActivation.
// Panics on unrecognized names.
func NewActivation(name string) ActivationPolicy {
	switch name {
	case "", "random":
		return RandomActivation{}
	case "sequential":
		return SequentialActivation{}
	default:
		panic(fmt.Sprintf("unknown activation policy %q", name))
	}
}

// Phase is the StepScheduler's position within a round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequest
	PhaseResolution
	PhaseMetrics
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequest:
		return "request"
	case PhaseResolution:
		return "resolution"
	case PhaseMetrics:
		return "metrics"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// StepScheduler drives rounds through Idle → Request → Resolution → Metrics → Idle.
//
// Every consumer is activated exactly once per round against one availability
// snapshot taken at the start of RequestPhase; the Coordinator resolves the
// queue exactly once afterwards. Nothing mutates pools or consumers before
// every request of the round has been submitted.
type StepScheduler struct {
	catalog    *Catalog
	coord      *Coordinator
	consumers  []*Consumer // registration order, read by the aggregator
	order      []*Consumer // activation order, reordered each round
	activation ActivationPolicy
	rng        *rand.Rand
	aggregator MetricsAggregator

	// Parallel computes consumer decisions concurrently. Submissions are still
	// made one at a time in activation order, so the queue is unchanged.
	Parallel bool

	phase  Phase
	round  int
	series TimeSeries
	last   []Response
}

// NewStepScheduler wires a scheduler over the given components. rng drives
// the activation policy.
func NewStepScheduler(catalog *Catalog, coord *Coordinator, consumers []*Consumer, activation ActivationPolicy, rng *rand.Rand) *StepScheduler {
	if activation == nil {
		activation = RandomActivation{}
	}
	return &StepScheduler{
		catalog:    catalog,
		coord:      coord,
		consumers:  consumers,
		order:      append([]*Consumer(nil), consumers...),
		activation: activation,
		rng:        rng,
	}
}

// Phase returns the current phase; always PhaseIdle between rounds.
func (s *StepScheduler) Phase() Phase {
	return s.phase
}

// Round returns the number of completed rounds.
func (s *StepScheduler) Round() int {
	return s.round
}

// Series returns a copy of the recorded time series.
func (s *StepScheduler) Series() TimeSeries {
	return append(TimeSeries(nil), s.series...)
}

// LastResponses returns the responses produced by the most recent round.
func (s *StepScheduler) LastResponses() []Response {
	return append([]Response(nil), s.last...)
}

// Step executes one full round and returns its metrics record.
func (s *StepScheduler) Step() RoundMetrics {
	if s.phase != PhaseIdle {
		protocolPanic("StepScheduler.Step", "round started while in %s phase", s.phase)
	}
	round := s.round + 1

	s.phase = PhaseRequest
	s.activation.Order(s.order, s.rng)
	s.coord.OpenRound(round)
	snapshot := s.catalog.Available()
	submitted := s.requestPhase(snapshot)

	s.phase = PhaseResolution
	s.last = s.coord.ResolveAll()

	s.phase = PhaseMetrics
	m := s.aggregator.Compute(s.consumers)
	rm := RoundMetrics{Round: round, TotalUnfulfilled: m.TotalUnfulfilled, Efficiency: m.Efficiency}
	s.series = append(s.series, rm)

	s.round = round
	s.phase = PhaseIdle

	accepted := 0
	for _, r := range s.last {
		if r.Accepted() {
			accepted++
		}
	}
	logrus.Infof("[round %04d] requests=%d accepted=%d available=%d unfulfilled=%d efficiency=%.4f",
		round, submitted, accepted, s.catalog.AvailableCount(), m.TotalUnfulfilled, m.Efficiency)
	return rm
}

// Run executes numRounds rounds synchronously and returns the full series.
func (s *StepScheduler) Run(numRounds int) TimeSeries {
	for i := 0; i < numRounds; i++ {
		s.Step()
	}
	return s.Series()
}

func (s *StepScheduler) requestPhase(snapshot []*Resource) int {
	if !s.Parallel {
		submitted := 0
		for _, c := range s.order {
			if c.DecideAndRequest(snapshot, s.coord) {
				submitted++
			}
		}
		return submitted
	}

	type decision struct {
		key string
		ok  bool
	}
	decisions := iter.Map(s.order, func(c **Consumer) decision {
		key, ok := (*c).Decide(snapshot)
		return decision{key: key, ok: ok}
	})
	submitted := 0
	for i, d := range decisions {
		if d.ok {
			s.coord.Submit(s.order[i], d.key)
			submitted++
		}
	}
	return submitted
}
