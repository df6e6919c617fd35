package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ConsumerID uniquely identifies a Consumer.
type ConsumerID int64

// Consumer is an agent that acquires resources. Its state is written only by
// the Coordinator: Held grows on acceptance, Unfulfilled grows on rejection.
type Consumer struct {
	ID   ConsumerID
	Name string

	held        []*Resource // acquisition order
	unfulfilled int
	rng         *rand.Rand
}

// NewConsumer creates a consumer that draws its choices from rng.
// A nil rng must be replaced via SetRand before the consumer decides. In
// parallel mode every consumer needs its own rng.
func NewConsumer(id ConsumerID, name string, rng *rand.Rand) *Consumer {
	return &Consumer{ID: id, Name: name, rng: rng}
}

// SetRand injects the random source used by Decide.
func (c *Consumer) SetRand(rng *rand.Rand) {
	c.rng = rng
}

// Held returns the acquired resources in acquisition order (fresh slice).
func (c *Consumer) Held() []*Resource {
	return append([]*Resource(nil), c.held...)
}

// HeldCount returns the number of acquired resources.
func (c *Consumer) HeldCount() int {
	return len(c.held)
}

// Unfulfilled returns the number of requests that were rejected so far.
func (c *Consumer) Unfulfilled() int {
	return c.unfulfilled
}

// Decide picks one resource uniformly at random from the availability
// snapshot and returns its key. Returns false when the snapshot is empty;
// that is an observable event, not an error.
func (c *Consumer) Decide(snapshot []*Resource) (string, bool) {
	if len(snapshot) == 0 {
		logrus.Debugf("%s could not find any available resources to request", c.Name)
		return "", false
	}
	if c.rng == nil {
		panic(fmt.Sprintf("Consumer.Decide: %s has no random source", c.Name))
	}
	choice := snapshot[c.rng.Intn(len(snapshot))]
	return choice.Key(), true
}

// DecideAndRequest runs Decide against snapshot and submits the chosen key to
// the coordinator. Reports whether a request was submitted.
func (c *Consumer) DecideAndRequest(snapshot []*Resource, coord *Coordinator) bool {
	key, ok := c.Decide(snapshot)
	if !ok {
		return false
	}
	coord.Submit(c, key)
	return true
}

func (c *Consumer) String() string {
	return fmt.Sprintf("Consumer: (ID: %d, Name: %s, Held: %d, Unfulfilled: %d)", c.ID, c.Name, len(c.held), c.unfulfilled)
}
