package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// newPoolWith builds a detached pool holding one resource per title, with ids
// starting at firstID.
func newPoolWith(name string, firstID ResourceID, titles ...string) *ResourcePool {
	p := NewResourcePool(name)
	for i, title := range titles {
		p.Add(NewResource(firstID+ResourceID(i), title, "Author"))
	}
	return p
}

// newTestConsumers creates n consumers named "User 1".."User n" with no random source.
func newTestConsumers(n int) []*Consumer {
	out := make([]*Consumer, n)
	for i := range out {
		out[i] = NewConsumer(ConsumerID(i+1), fmt.Sprintf("User %d", i+1), nil)
	}
	return out
}

// newCoordinatorOver registers pools in order and returns a ready Coordinator.
func newCoordinatorOver(t *testing.T, pools ...*ResourcePool) *Coordinator {
	t.Helper()
	catalog := NewCatalog()
	for _, p := range pools {
		require.NoError(t, catalog.AddPool(p))
	}
	return NewCoordinator(catalog)
}

// seededConfig returns a Config with an explicit seed.
func seededConfig(pools, resources, consumers int, seed int64) Config {
	return Config{
		PoolCount:     pools,
		ResourceCount: resources,
		ConsumerCount: consumers,
		Seed:          &seed,
		Activation:    "random",
	}
}

// requireProtocolPanic asserts that fn panics with a *ProtocolError for op.
func requireProtocolPanic(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic from %s", op)
		perr, ok := r.(*ProtocolError)
		require.True(t, ok, "expected *ProtocolError, got %T: %v", r, r)
		require.Equal(t, op, perr.Op)
	}()
	fn()
}
