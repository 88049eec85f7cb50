package threadstate

import (
	"sync"

	"github.com/google/uuid"
)

// Thread is one mutator's status and park/wake machinery. Each
// registered Go goroutine that runs interpreter-level (mutator) code
// owns exactly one Thread.
type Thread struct {
	// ID is the numeric identity stored in object headers as the
	// owning-thread id (spec §3); zero is reserved for
	// merged/abandoned objects, so real thread ids start at 1.
	ID uint64
	// Token is a random UUID identity, independent of the numeric ID used
	// in hot-path refcount fields. Nothing in this module reads it.
	Token uuid.UUID

	st status

	// cantStop is the reentrancy-hostile-section guard (spec §4.1): a
	// thread must not self-park while this is nonzero, and the
	// collector must not remote-park it either.
	cantStop int32

	// evalBreaker is set by the collector to ask an Attached thread to
	// self-park at its next safe point.
	evalBreaker bool

	mu   sync.Mutex
	cond *sync.Cond

	// onParked, when set by the STW coordinator, fires exactly once
	// every time this thread transitions into GCParked (or is
	// unregistered mid-wait, which resolves the wait the same way a
	// dead thread would). nil outside an active STW.
	onParked func(*Thread)
}

func newThread(id uint64) *Thread {
	t := &Thread{ID: id, Token: uuid.New()}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Status returns the thread's current status.
func (t *Thread) Status() Status { return t.st.load() }

// Attach transitions Detached -> Attached. If the thread is currently
// GC-parked, it parks on its own status word and retries once woken
// (spec §4.1 "Attach ... on failure because state is GC-Parked, the
// mutator parks on the status word and retries after being woken").
func (t *Thread) Attach() {
	for {
		if t.st.cas(Detached, Attached) {
			return
		}
		if t.st.load() == GCParked {
			t.waitWhile(GCParked)
			continue
		}
		// Already Attached (idempotent re-entry from the mutator's own
		// thread) — nothing to do.
		if t.st.load() == Attached {
			return
		}
	}
}

// Detach transitions Attached -> Detached at a release point (e.g.
// before a blocking syscall).
func (t *Thread) Detach() {
	t.st.cas(Attached, Detached)
}

// EnterCantStop marks the start of a reentrancy-hostile section
// (allocator internals, critical sections). Nestable.
func (t *Thread) EnterCantStop() {
	t.mu.Lock()
	t.cantStop++
	t.mu.Unlock()
}

// ExitCantStop ends a reentrancy-hostile section.
func (t *Thread) ExitCantStop() {
	t.mu.Lock()
	t.cantStop--
	t.mu.Unlock()
}

// CantStop reports whether the thread currently holds a can't-stop
// guard.
func (t *Thread) CantStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cantStop != 0
}

// TryParkRemote attempts Detached -> GC-Parked, unilaterally, from the
// collector's thread. Safe because a Detached thread is not mutating
// anything. Returns false (and does nothing) if the thread is not
// Detached or currently holds a can't-stop guard — the caller (the STW
// coordinator) must fall back to signalling via RequestSelfPark.
func (t *Thread) TryParkRemote() bool {
	if t.CantStop() {
		return false
	}
	if t.st.cas(Detached, GCParked) {
		t.fireOnParked()
		return true
	}
	return false
}

// SetOnParked installs (or, with nil, clears) the STW coordinator's
// park-notification hook. Only one coordinator may have an active STW
// at a time, so there is never contention over this field across
// coordinators — only against this thread's own transitions.
func (t *Thread) SetOnParked(f func(*Thread)) {
	t.mu.Lock()
	t.onParked = f
	t.mu.Unlock()
}

func (t *Thread) fireOnParked() {
	t.mu.Lock()
	f := t.onParked
	t.mu.Unlock()
	if f != nil {
		f(t)
	}
}

// RequestSelfPark sets the eval-breaker flag so the thread self-parks
// at its next safe point. The flag is set whatever the thread's current
// status; it takes effect at the next CheckSafepoint made while Attached.
func (t *Thread) RequestSelfPark() {
	t.mu.Lock()
	t.evalBreaker = true
	t.mu.Unlock()
}

// CheckSafepoint is called by the mutator's interpreter loop at a safe
// point. If the collector has requested a self-park and the thread
// holds no can't-stop guard, it self-parks and blocks until released,
// then re-attaches before returning.
func (t *Thread) CheckSafepoint() {
	t.mu.Lock()
	requested := t.evalBreaker
	t.mu.Unlock()
	if !requested || t.CantStop() {
		return
	}
	if t.st.cas(Attached, GCParked) {
		t.mu.Lock()
		t.evalBreaker = false
		t.mu.Unlock()
		t.fireOnParked()
		t.waitWhile(GCParked)
		t.st.cas(Detached, Attached)
	}
}

// Release transitions GC-Parked -> Detached (collector only, after the
// phase that required quiescence has completed) and wakes anything
// parked on this thread's status word.
func (t *Thread) Release() {
	if t.st.cas(GCParked, Detached) {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

func (t *Thread) waitWhile(s Status) {
	t.mu.Lock()
	for t.st.load() == s {
		t.cond.Wait()
	}
	t.mu.Unlock()
}
