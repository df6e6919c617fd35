// Implements the RequestQueue, which holds all requests submitted during one round.

package sim

import (
	"fmt"
	"strings"
)

// RequestQueue is a FIFO queue of requests awaiting resolution.
// It is drained completely once per round.
type RequestQueue struct {
	queue []Request
}

// Enqueue adds a request to the back of the queue.
func (rq *RequestQueue) Enqueue(r Request) {
	rq.queue = append(rq.queue, r)
}

// String lists pending requests as "requester:key" in resolution order,
// e.g. "2 pending (User 3:Book 1, User 1:Book 1)".
func (rq *RequestQueue) String() string {
	parts := make([]string, len(rq.queue))
	for i, req := range rq.queue {
		parts[i] = req.Requester.Name + ":" + req.TargetKey
	}
	return fmt.Sprintf("%d pending (%s)", len(rq.queue), strings.Join(parts, ", "))
}

// Len returns the number of requests in the queue.
func (rq *RequestQueue) Len() int {
	return len(rq.queue)
}

// Drain returns all queued requests in submission order and empties the queue.
func (rq *RequestQueue) Drain() []Request {
	items := rq.queue
	rq.queue = nil
	return items
}
