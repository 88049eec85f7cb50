// Package stw implements the Stop-the-World coordinator (spec §4.2,
// component C2): a global, re-entrant pause that brings every other
// registered mutator thread to GC-Parked before the collector is
// allowed to walk the heap.
package stw

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vesperlang/cyclegc/internal/threadstate"
)

// rescanInterval is the bounded timeout spec §4.2 step 3 calls for
// ("order of 1 ms"): the coordinator wakes this often to re-scan for
// newly-detaching threads racing with parking, rather than trusting a
// single notify to always catch the last straggler.
const rescanInterval = time.Millisecond

// Coordinator serializes stop-the-world requests across the process.
type Coordinator struct {
	threads *threadstate.List

	// stwMu is the global STW mutex (spec §4.2 step 1). Only one STW
	// may be active at a time; ownerMu below layers re-entrancy on top
	// of it for nested calls from the thread that already holds it.
	stwMu sync.Mutex

	ownerMu sync.Mutex
	owner   *threadstate.Thread
	nesting int

	// live is the snapshot of non-caller threads the current STW is
	// waiting on / has parked; valid only while stwMu is held by the
	// active STW session.
	live []*threadstate.Thread

	stopped atomic.Bool
}

// New constructs a Coordinator over the given thread registry.
func New(threads *threadstate.List) *Coordinator {
	return &Coordinator{threads: threads}
}

// Stopped reports whether the world is currently stopped.
func (c *Coordinator) Stopped() bool { return c.stopped.Load() }

// StopTheWorld blocks until every thread other than caller is
// GC-Parked. Re-entrant: a thread that already holds the stop may call
// this again and it simply bumps the nesting counter (spec §4.2
// "supports re-entrant calls from the already-stopping thread").
func (c *Coordinator) StopTheWorld(caller *threadstate.Thread) {
	c.ownerMu.Lock()
	if c.owner == caller {
		c.nesting++
		c.ownerMu.Unlock()
		return
	}
	c.ownerMu.Unlock()

	c.stwMu.Lock()
	c.ownerMu.Lock()
	c.owner = caller
	c.nesting = 1
	c.ownerMu.Unlock()

	c.live = c.otherThreads(caller)
	c.parkAll(c.live)
	c.stopped.Store(true)
}

// StartTheWorld transitions every GC-Parked thread back to Detached
// and wakes them. Only the outermost call (nesting reaches zero)
// restarts threads; an inner nested call only drops the nesting count.
// StartTheWorld from a non-owner is a programmer error and is ignored
// rather than corrupting state.
func (c *Coordinator) StartTheWorld(caller *threadstate.Thread) {
	c.ownerMu.Lock()
	if c.owner != caller {
		c.ownerMu.Unlock()
		return
	}
	c.nesting--
	if c.nesting > 0 {
		c.ownerMu.Unlock()
		return
	}
	live := c.live
	c.live = nil
	c.owner = nil
	c.ownerMu.Unlock()

	c.stopped.Store(false)
	for _, t := range live {
		t.Release()
	}
	c.stwMu.Unlock()
}

func (c *Coordinator) otherThreads(caller *threadstate.Thread) []*threadstate.Thread {
	snap := c.threads.Snapshot()
	out := make([]*threadstate.Thread, 0, len(snap))
	for _, t := range snap {
		if t != caller {
			out = append(out, t)
		}
	}
	return out
}

// parkAll implements spec §4.2 steps 2-4: remote-park Detached
// threads, signal Attached threads to self-park at their next safe
// point, and wait — re-scanning on a bounded timeout — until every
// thread has reached GC-Parked.
func (c *Coordinator) parkAll(live []*threadstate.Thread) {
	if len(live) == 0 {
		return
	}

	var remaining atomic.Int64
	var mu sync.Mutex
	cond := sync.NewCond(&mu)

	notify := func(*threadstate.Thread) {
		if remaining.Add(-1) == 0 {
			mu.Lock()
			cond.Broadcast()
			mu.Unlock()
		}
	}

	remaining.Store(int64(len(live)))
	for _, t := range live {
		t.SetOnParked(notify)
	}
	defer func() {
		for _, t := range live {
			t.SetOnParked(nil)
		}
	}()

	attempt := func(t *threadstate.Thread) {
		switch t.Status() {
		case threadstate.GCParked:
			// Already parked (e.g. nested nesting never un-parked it);
			// the registered onParked hook never fired for this
			// thread's transition since it happened before we
			// installed the hook, so account for it here instead.
			notify(t)
		case threadstate.Detached:
			if !t.TryParkRemote() {
				t.RequestSelfPark()
			}
		case threadstate.Attached:
			t.RequestSelfPark()
		}
	}

	// initial pass, parking what we can remote and signalling the rest
	stillWaiting := make([]*threadstate.Thread, 0, len(live))
	for _, t := range live {
		if t.Status() == threadstate.GCParked {
			notify(t)
			continue
		}
		stillWaiting = append(stillWaiting, t)
		attempt(t)
	}

	for remaining.Load() > 0 {
		boundedSleep(rescanInterval)
		// Newly-detaching threads race with self-parking: a thread we
		// signalled while Attached may have detached instead of
		// reaching a safe point yet. Re-scan and remote-park those.
		for _, t := range stillWaiting {
			if t.Status() == threadstate.Detached {
				t.TryParkRemote()
			}
		}
	}
}
