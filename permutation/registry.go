package permutation

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Registry holds the published Index per hash name.
//
// Readers load an immutable map snapshot without locking. Publishing
// copies the map, swaps it in atomically, and never mutates a map a reader
// may hold.
type Registry struct {
	mu      sync.Mutex // serializes writers
	indexes atomic.Pointer[map[string]*Index]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	m := make(map[string]*Index)
	r.indexes.Store(&m)
	return r
}

// Publish makes ix the current index for name.
func (r *Registry) Publish(name string, ix *Index) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := maps.Clone(*r.indexes.Load())
	next[name] = ix
	r.indexes.Store(&next)
}

// Remove drops the index for name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.indexes.Load()
	if _, ok := cur[name]; !ok {
		return
	}
	next := maps.Clone(cur)
	delete(next, name)
	r.indexes.Store(&next)
}

// Get returns the current index for name.
func (r *Registry) Get(name string) (*Index, bool) {
	ix, ok := (*r.indexes.Load())[name]
	return ix, ok
}

// Names returns the sorted names with a published index.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(*r.indexes.Load()))
}

// Neighbours looks up key in the index published for name.
func (r *Registry) Neighbours(name, key string) ([]string, error) {
	ix, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotBuilt, name)
	}
	return ix.Neighbours(key)
}
