// Defines the Resource record and the ResourcePool that holds available resources.
// Resources are created at setup and only ever leave a pool through allocation.

package sim

import (
	"container/list"
	"fmt"
)

// ResourceID uniquely identifies a Resource across the whole simulation.
type ResourceID int64

// Resource is a passive, uniquely-identified record. Title is the matching
// key consumers request by; several resources may share a title.
type Resource struct {
	ID     ResourceID
	Title  string
	Author string

	pool *ResourcePool // owning pool while available; nil once allocated
	seq  uint64        // insertion order within the owning pool
}

// NewResource creates an unpooled resource.
func NewResource(id ResourceID, title, author string) *Resource {
	return &Resource{ID: id, Title: title, Author: author}
}

// Key returns the attribute requests are matched against.
func (r *Resource) Key() string {
	return r.Title
}

// Pool returns the pool currently offering this resource, or nil if it has been allocated.
func (r *Resource) Pool() *ResourcePool {
	return r.pool
}

func (r Resource) String() string {
	return fmt.Sprintf("'%s' by %s (#%d)", r.Title, r.Author, r.ID)
}

// ResourcePool owns an ordered collection of available resources.
// Iteration and lookup respect insertion order.
type ResourcePool struct {
	Name string

	order   int // registration index within a Catalog; -1 when detached
	catalog *Catalog
	nextSeq uint64

	available *list.List // *Resource in insertion order
	elems     map[ResourceID]*list.Element
	byKey     map[string][]*Resource // per-key insertion order
}

// NewResourcePool creates an empty, detached pool.
func NewResourcePool(name string) *ResourcePool {
	return &ResourcePool{
		Name:      name,
		order:     -1,
		available: list.New(),
		elems:     make(map[ResourceID]*list.Element),
		byKey:     make(map[string][]*Resource),
	}
}

// Add inserts r into the available set.
// Panics if r already belongs to a pool or if its id is already present in
// this pool or in any pool of the same Catalog.
func (p *ResourcePool) Add(r *Resource) {
	if r == nil {
		panic("ResourcePool.Add: resource must not be nil")
	}
	if r.pool != nil {
		panic(fmt.Sprintf("ResourcePool.Add: resource %d already offered by pool %q", r.ID, r.pool.Name))
	}
	if _, dup := p.elems[r.ID]; dup {
		panic(fmt.Sprintf("ResourcePool.Add: duplicate resource id %d in pool %q", r.ID, p.Name))
	}
	if p.catalog != nil && p.catalog.contains(r.ID) {
		panic(fmt.Sprintf("ResourcePool.Add: duplicate resource id %d across pools", r.ID))
	}

	r.pool = p
	r.seq = p.nextSeq
	p.nextSeq++
	p.elems[r.ID] = p.available.PushBack(r)
	p.byKey[r.Key()] = append(p.byKey[r.Key()], r)

	if p.catalog != nil {
		p.catalog.index(r)
	}
}

// Remove takes r out of the available set.
// Panics if r is not currently available in this pool.
func (p *ResourcePool) Remove(r *Resource) {
	el, ok := p.elems[r.ID]
	if !ok || r.pool != p {
		protocolPanic("ResourcePool.Remove", "resource %d not available in pool %q", r.ID, p.Name)
	}
	p.available.Remove(el)
	delete(p.elems, r.ID)

	keyed := p.byKey[r.Key()]
	for i, cand := range keyed {
		if cand == r {
			keyed = append(keyed[:i], keyed[i+1:]...)
			break
		}
	}
	if len(keyed) == 0 {
		delete(p.byKey, r.Key())
	} else {
		p.byKey[r.Key()] = keyed
	}

	if p.catalog != nil {
		p.catalog.unindex(r)
	}
	r.pool = nil
}

// FindByKey returns the first available resource, in insertion order, whose
// key equals key.
func (p *ResourcePool) FindByKey(key string) (*Resource, bool) {
	keyed := p.byKey[key]
	if len(keyed) == 0 {
		return nil, false
	}
	return keyed[0], true
}

// Contains reports whether the resource with the given id is available here.
func (p *ResourcePool) Contains(id ResourceID) bool {
	_, ok := p.elems[id]
	return ok
}

// Len returns the number of available resources.
func (p *ResourcePool) Len() int {
	return p.available.Len()
}

// Available returns the available resources in insertion order.
// The slice is a fresh copy; the resources themselves are shared.
func (p *ResourcePool) Available() []*Resource {
	out := make([]*Resource, 0, p.available.Len())
	for el := p.available.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Resource))
	}
	return out
}
