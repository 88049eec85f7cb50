// Package heapwalk implements the Heap Visitor (spec §4.3, component
// C3): it walks GC-tagged blocks across every live thread's heap plus
// abandoned heaps, rather than the doubly-linked generation list the
// original design replaces (spec §9).
package heapwalk

import (
	"sync"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/threadstate"
)

// Registry binds each registered mutator Thread to its allocator
// ThreadLocalData, and owns the shared Arena abandoned segments move
// into when a thread exits. This linkage is deliberately kept outside
// both threadstate (C1) and allocator (the external contract) — it is
// purely a wiring concern of the visitor that consumes both.
type Registry struct {
	Threads *threadstate.List
	Arena   *allocator.Arena

	mu   sync.Mutex
	tlds map[uint64]*allocator.ThreadLocalData
}

// NewRegistry constructs a Registry over the given thread list and
// allocator arena.
func NewRegistry(threads *threadstate.List, arena *allocator.Arena) *Registry {
	return &Registry{Threads: threads, Arena: arena, tlds: make(map[uint64]*allocator.ThreadLocalData)}
}

// Attach registers a new mutator thread and gives it fresh allocator
// heaps.
func (r *Registry) Attach() (*threadstate.Thread, *allocator.ThreadLocalData) {
	t := r.Threads.Register()
	tld := allocator.NewThreadLocalData(t.ID)
	r.mu.Lock()
	r.tlds[t.ID] = tld
	r.mu.Unlock()
	return t, tld
}

// TLD returns the allocator handle for a registered thread, or nil.
func (r *Registry) TLD(threadID uint64) *allocator.ThreadLocalData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tlds[threadID]
}

// Detach hands t's allocator state to the abandoned pool and removes
// it from the registry — the Go-native equivalent of a mutator thread
// terminating (spec §6 thread_abandon(tld)).
func (r *Registry) Detach(t *threadstate.Thread) {
	r.mu.Lock()
	tld := r.tlds[t.ID]
	delete(r.tlds, t.ID)
	r.mu.Unlock()
	if tld != nil {
		r.Arena.ThreadAbandon(tld)
	}
	r.Threads.Unregister(t)
}
