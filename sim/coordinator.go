package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/alloc-sim/sim/trace"
)

// Coordinator serializes a round's requests into one FIFO queue and resolves
// each exactly once against the Catalog. It is the only writer of pool
// contents and of consumer Held/Unfulfilled state.
//
// Per round the call sequence is OpenRound, any number of Submit, then exactly
// one ResolveAll. Anything else is a ProtocolError.
type Coordinator struct {
	catalog *Catalog
	queue   RequestQueue
	round   int
	open    bool

	// Trace, when non-nil, receives one record per resolved request.
	Trace *trace.SimulationTrace
}

// NewCoordinator creates a Coordinator allocating from catalog.
func NewCoordinator(catalog *Catalog) *Coordinator {
	if catalog == nil {
		panic("NewCoordinator: catalog must not be nil")
	}
	return &Coordinator{catalog: catalog}
}

// OpenRound starts accepting submissions for the given round.
func (co *Coordinator) OpenRound(round int) {
	if co.open {
		protocolPanic("Coordinator.OpenRound", "round %d opened before round %d was resolved", round, co.round)
	}
	co.round = round
	co.open = true
}

// Accepting reports whether a round is open for submissions.
func (co *Coordinator) Accepting() bool {
	return co.open
}

// Submit appends a request to the round's queue. No state changes until ResolveAll.
func (co *Coordinator) Submit(requester *Consumer, targetKey string) {
	if !co.open {
		protocolPanic("Coordinator.Submit", "no round open for submissions")
	}
	if requester == nil {
		protocolPanic("Coordinator.Submit", "requester must not be nil")
	}
	co.queue.Enqueue(Request{Requester: requester, TargetKey: targetKey, Round: co.round})
	logrus.Debugf("[round %04d] received request from %s for %s", co.round, requester.Name, targetKey)
}

// Pending returns the number of requests waiting for resolution.
func (co *Coordinator) Pending() int {
	return co.queue.Len()
}

// ResolveAll drains the queue in submission order and returns one Response
// per request, in the same order. The first available resource whose key
// matches wins, scanning pools in registration order and resources in
// insertion order. A miss is a normal outcome that increments the
// requester's unfulfilled counter. Closes the round.
func (co *Coordinator) ResolveAll() []Response {
	if !co.open {
		protocolPanic("Coordinator.ResolveAll", "no open round to resolve (already resolved?)")
	}
	logrus.Debugf("[round %04d] resolving %s", co.round, &co.queue)
	requests := co.queue.Drain()
	responses := make([]Response, 0, len(requests))
	for _, req := range requests {
		resp := co.resolve(req)
		responses = append(responses, resp)
		logrus.Debugf("[round %04d] %s", co.round, resp)
		if co.Trace != nil {
			co.Trace.RecordAllocation(allocationRecord(resp))
		}
	}
	co.open = false
	return responses
}

func (co *Coordinator) resolve(req Request) Response {
	resp := Response{Requester: req.Requester, TargetKey: req.TargetKey, Round: req.Round}

	r, ok := co.catalog.FindByKey(req.TargetKey)
	if !ok {
		req.Requester.unfulfilled++
		resp.Outcome = OutcomeRejected
		return resp
	}

	pool := r.pool
	pool.Remove(r)
	req.Requester.held = append(req.Requester.held, r)
	resp.Outcome = OutcomeAccepted
	resp.Resource = r
	resp.Pool = pool.Name
	return resp
}

func allocationRecord(resp Response) trace.AllocationRecord {
	rec := trace.AllocationRecord{
		Round:      resp.Round,
		ConsumerID: int64(resp.Requester.ID),
		Consumer:   resp.Requester.Name,
		Key:        resp.TargetKey,
		Accepted:   resp.Accepted(),
		Pool:       resp.Pool,
	}
	if resp.Resource != nil {
		rec.ResourceID = int64(resp.Resource.ID)
	}
	return rec
}
