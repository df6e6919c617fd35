package sim

import (
	"fmt"
	"sort"
)

// Catalog is the ordered set of ResourcePools a Coordinator allocates from.
//
// It maintains a key index whose per-key slices are ordered by pool
// registration order, then insertion order within the pool. The head of each
// slice is therefore exactly the resource a linear scan over all pools would
// find first, at O(1) cost per lookup.
type Catalog struct {
	pools []*ResourcePool
	ids   map[ResourceID]*Resource
	byKey map[string][]*Resource
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		ids:   make(map[ResourceID]*Resource),
		byKey: make(map[string][]*Resource),
	}
}

// AddPool registers p after all previously registered pools and indexes its
// current contents. Returns a SetupError if p is already attached somewhere
// or offers a resource id that another registered pool already offers.
func (c *Catalog) AddPool(p *ResourcePool) error {
	return c.AddPools(p)
}

// AddPools registers pools in order. Either every pool is attached or, on a
// SetupError, none is, so the same pools may be offered again.
func (c *Catalog) AddPools(pools ...*ResourcePool) error {
	offeredBy := make(map[ResourceID]string)
	seen := make(map[*ResourcePool]bool, len(pools))
	for _, p := range pools {
		if p == nil {
			return newSetupError("pools", fmt.Errorf("nil pool"), "")
		}
		if p.catalog != nil || seen[p] {
			return newSetupError("pools", fmt.Errorf("pool %q registered twice", p.Name), "")
		}
		seen[p] = true
		for _, r := range p.Available() {
			if prev, dup := c.ids[r.ID]; dup {
				return newSetupError("pools", ErrDuplicateResource, "id %d offered by pool %q and pool %q", r.ID, prev.pool.Name, p.Name)
			}
			if prev, dup := offeredBy[r.ID]; dup {
				return newSetupError("pools", ErrDuplicateResource, "id %d offered by pool %q and pool %q", r.ID, prev, p.Name)
			}
			offeredBy[r.ID] = p.Name
		}
	}

	for _, p := range pools {
		p.catalog = c
		p.order = len(c.pools)
		c.pools = append(c.pools, p)
		for _, r := range p.Available() {
			c.index(r)
		}
	}
	return nil
}

// FindByKey returns the first available resource matching key, scanning
// pools in registration order and resources in insertion order.
func (c *Catalog) FindByKey(key string) (*Resource, bool) {
	keyed := c.byKey[key]
	if len(keyed) == 0 {
		return nil, false
	}
	return keyed[0], true
}

// Pools returns the registered pools in registration order.
func (c *Catalog) Pools() []*ResourcePool {
	return append([]*ResourcePool(nil), c.pools...)
}

// Available returns the union of all available resources, pool by pool.
func (c *Catalog) Available() []*Resource {
	out := make([]*Resource, 0, len(c.ids))
	for _, p := range c.pools {
		out = append(out, p.Available()...)
	}
	return out
}

// AvailableCount returns the number of resources still offered by any pool.
func (c *Catalog) AvailableCount() int {
	return len(c.ids)
}

func (c *Catalog) contains(id ResourceID) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *Catalog) index(r *Resource) {
	c.ids[r.ID] = r
	keyed := c.byKey[r.Key()]
	pos := sort.Search(len(keyed), func(i int) bool {
		return lessCatalogOrder(r, keyed[i])
	})
	keyed = append(keyed, nil)
	copy(keyed[pos+1:], keyed[pos:])
	keyed[pos] = r
	c.byKey[r.Key()] = keyed
}

func (c *Catalog) unindex(r *Resource) {
	delete(c.ids, r.ID)
	keyed := c.byKey[r.Key()]
	for i, cand := range keyed {
		if cand == r {
			keyed = append(keyed[:i], keyed[i+1:]...)
			break
		}
	}
	if len(keyed) == 0 {
		delete(c.byKey, r.Key())
	} else {
		c.byKey[r.Key()] = keyed
	}
}

// lessCatalogOrder orders by pool registration, then insertion within the pool.
func lessCatalogOrder(a, b *Resource) bool {
	if a.pool.order != b.pool.order {
		return a.pool.order < b.pool.order
	}
	return a.seq < b.seq
}
