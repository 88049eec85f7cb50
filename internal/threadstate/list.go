package threadstate

import (
	"sync"
	"sync/atomic"
)

// List is the process-wide thread registry (spec §5 "Thread-list
// linkage is protected by a spinlock-equivalent; acquired only for
// brief structural changes"). A sync.Mutex stands in for that
// spinlock — Go gives us no cheaper primitive, and contention here is
// rare by construction (only thread create/exit touch it).
type List struct {
	mu      sync.Mutex
	threads []*Thread
	nextID  atomic.Uint64
}

// NewList constructs an empty thread registry.
func NewList() *List { return &List{} }

// Register creates and registers a new Thread, starting Detached.
func (l *List) Register() *Thread {
	id := l.nextID.Add(1)
	t := newThread(id)
	l.mu.Lock()
	l.threads = append(l.threads, t)
	l.mu.Unlock()
	return t
}

// Unregister removes t from the registry, e.g. when its goroutine is
// about to exit. Returns true if t was found and removed.
//
// If an STW is in progress and waiting on t, this resolves that wait
// exactly as a self-park would: the same race a live thread racing
// its own detach creates (spec §4.2 "Dead-thread races are resolved by
// the same countdown decrement performed when a thread unlinks itself
// during STW").
func (l *List) Unregister(t *Thread) bool {
	l.mu.Lock()
	found := false
	for i, th := range l.threads {
		if th == t {
			l.threads = append(l.threads[:i], l.threads[i+1:]...)
			found = true
			break
		}
	}
	l.mu.Unlock()
	if found {
		t.fireOnParked()
	}
	return found
}

// Snapshot returns a stable copy of the currently registered threads,
// for the STW coordinator to scan without holding the list lock for
// the whole scan (spec §4.2 step 1: "Under a secondary thread-list
// lock, snapshot the thread list").
func (l *List) Snapshot() []*Thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Thread, len(l.threads))
	copy(out, l.threads)
	return out
}

// Len returns the number of registered threads.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.threads)
}
