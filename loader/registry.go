package loader

import (
	"sort"
	"sync"
)

// Registry holds unit container overrides keyed by fully qualified unit
// name. Loaders consult their registry before falling back to resource
// resolution, so installing a container here substitutes it for the
// on-disk definition in every loader that shares the registry.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	units map[string][]byte
}

// DefaultRegistry is shared by all loaders that are not given their own
// registry.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: map[string][]byte{}}
}

// Install sets container as the definition for the named unit,
// replacing any previous override. Loader instances that already
// resolved the name keep the instance they have; the new container is
// seen by not-yet-resolved lookups and by loaders created afterward.
func (r *Registry) Install(name string, container []byte) {
	buf := make([]byte, len(container))
	copy(buf, container)
	r.mu.Lock()
	r.units[name] = buf
	r.mu.Unlock()
}

// Lookup returns a copy of the container installed for the named unit.
func (r *Registry) Lookup(name string) ([]byte, bool) {
	r.mu.RLock()
	buf, ok := r.units[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// Remove deletes the override for the named unit and reports whether
// one was installed. Future lookups fall back to resource resolution.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[name]; !ok {
		return false
	}
	delete(r.units, name)
	return true
}

// Clear removes every installed override.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.units = map[string][]byte{}
	r.mu.Unlock()
}

// Names returns the names of all installed overrides in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of installed overrides.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}
