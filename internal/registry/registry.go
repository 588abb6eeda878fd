// Package registry holds the flat map from dispatch key to compiled
// algorithm entry point that the scheduler consults on every task
// (spec.md §3, §8). Keys follow the "name_<OP_KEY>...<backend>" (or,
// with no operators, "name_<TYPE_CODE><backend>") grammar assembled by
// the algorithms package; the registry itself is agnostic to that grammar
// and just does exact-string lookup.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"splax/internal/status"
)

// Algo is anything the scheduler can hand a DispatchContext to run. The
// algorithms package supplies the concrete implementations (vxm, mxv,
// m_reduce, v_eadd); kernelcache.Kernel values are not Algo themselves —
// an Algo wraps one or more compiled kernels plus the host-side fallback
// logic around them.
type Algo interface {
	// Key is the exact dispatch key this algorithm was registered under.
	Key() string
}

// Registry is the flat map described by spec.md §3: "A registry maps a
// key to an algorithm; has(K) holds iff find(K) is non-null." It is safe
// for concurrent registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Algo
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Algo)}
}

// Add registers algo under key. Re-registering an existing key is an
// error: the registry is populated once at engine startup and silent
// overwrites would hide a packaging mistake.
func (r *Registry) Add(key string, algo Algo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return status.New(status.InvalidState, key, "duplicate registry key %q", key)
	}
	r.entries[key] = algo
	return nil
}

// Has reports whether key is registered. Has(K) always agrees with
// Find(K) != nil (spec.md §8 literal scenario 1).
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Find returns the algorithm registered under key, or nil if none is.
// Lookup is a single map read: O(1), no key parsing or fallback search —
// the scheduler is responsible for trying successive fallback keys
// (spec.md §5).
func (r *Registry) Find(key string) Algo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[key]
}

// Keys returns every registered dispatch key, sorted, for diagnostics
// and tests.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MustAdd panics on a duplicate key, for init-time wiring code where a
// collision is a programming error, not a runtime condition to recover
// from.
func (r *Registry) MustAdd(key string, algo Algo) {
	if err := r.Add(key, algo); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
}
