// Defines the transient Request and Response values exchanged with the Coordinator.
// Neither outlives the round in which it was created.

package sim

import (
	"fmt"
)

// Request is a consumer's ask for any available resource with the given key.
type Request struct {
	Requester *Consumer
	TargetKey string
	Round     int // round in which the request was submitted
}

// Outcome is the result of resolving a Request.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// Response reports how a Request was resolved. Resource is set only when
// Outcome is OutcomeAccepted.
type Response struct {
	Requester *Consumer
	TargetKey string
	Round     int
	Outcome   Outcome
	Resource  *Resource
	Pool      string // name of the pool the resource was taken from
}

// Accepted reports whether the request was fulfilled.
func (r Response) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

func (req Request) String() string {
	return fmt.Sprintf("Request: (Requester: %s, Key: %s, Round: %d)", req.Requester.Name, req.TargetKey, req.Round)
}

func (r Response) String() string {
	if r.Accepted() {
		return fmt.Sprintf("inform %s: success: %s from %s", r.Requester.Name, r.TargetKey, r.Pool)
	}
	return fmt.Sprintf("inform %s: failure: %s", r.Requester.Name, r.TargetKey)
}
