// Package deferredq implements the per-thread deferred-work queues
// (spec §4.5, component C5): work a mutator could not apply locally
// because it would have required cross-thread ownership transfer,
// queued instead and merged under STW once every writer is quiescent.
package deferredq

import (
	"sync"

	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// Kind distinguishes deferred work item types. Spec.md names decref as
// the primary case; Kind leaves room for the model to grow without
// widening every call site.
type Kind int

const (
	// KindDecref records a cross-thread decref that must be applied to
	// Obj's owner-thread (local) refcount once drained under STW.
	KindDecref Kind = iota
)

// Item is one deferred unit of work.
type Item struct {
	Obj   objmodel.Object
	Kind  Kind
	Delta int64 // refcount delta to apply (negative for a decref)
}

// Queue is one thread's deferred-work queue. Conceptually
// single-writer (the owning thread enqueues while Attached) /
// multi-reader (only the collector, and only while that thread is
// quiescent under STW) — which is exactly the condition under which a
// plain mutex-guarded slice behaves identically to a lock-free SPSC
// ring buffer: the only contention window is "writer pushes while
// collector drains," and STW removes that window entirely. See
// DESIGN.md for why no pack library's lock-free queue fits the
// "drain-under-an-external-barrier" shape better than this.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// Push enqueues a deferred item. Called by the owning thread only.
func (q *Queue) Push(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Drain removes and returns every queued item. Called by the collector
// only, and only while the owning thread is quiescent under STW.
func (q *Queue) Drain() []Item {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

// Len reports the current queue length, for diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
