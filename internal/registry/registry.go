package registry

import (
	"sync"
)

// Registry lets cooperating controllers expose capabilities to each other by name.
// Values are usually functions or interface implementations; Lookup callers
// assert the type they expect.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

func New() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Publish stores fn under name, replacing any previous value.
func (r *Registry) Publish(name string, fn any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = fn
}

func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, found := r.entries[name]
	return fn, found
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// Flag returns the boolean getter published under name. Missing or mistyped
// entries report false.
func (r *Registry) Flag(name string) bool {
	fn, found := r.Lookup(name)
	if !found {
		return false
	}

	getter, ok := fn.(func() bool)
	if !ok {
		return false
	}

	return getter()
}

// LookupAs returns the entry under name when it has type T.
func LookupAs[T any](r *Registry, name string) (T, bool) {
	var zero T

	fn, found := r.Lookup(name)
	if !found {
		return zero, false
	}

	v, ok := fn.(T)
	if !ok {
		return zero, false
	}

	return v, true
}
