// Package collector implements the Cycle Collector (spec §4.4,
// component C4): the gc_refs = refcount - internal_refs mark-and-scan
// that finds and reclaims reference cycles no longer reachable from
// any external root, on top of per-thread reference counting.
package collector

import (
	"sync/atomic"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/deferredq"
	"github.com/vesperlang/cyclegc/internal/gcerrors"
	"github.com/vesperlang/cyclegc/internal/heapwalk"
	"github.com/vesperlang/cyclegc/internal/objmodel"
	"github.com/vesperlang/cyclegc/internal/runtimehost"
	"github.com/vesperlang/cyclegc/internal/stw"
	"github.com/vesperlang/cyclegc/internal/threadstate"
)

// minThreshold is the floor in the threshold-update formula (spec
// §4.4.10): max(7000, live*(100+scale)/100).
const minThreshold = 7000

// Collector owns the transient GC state (spec §3's "Interpreter/GC
// state") and the four collaborators it drives through one collection:
// the thread registry/heap visitor, the STW coordinator, the deferred
// decref queues, and the panic-contained callout guard.
type Collector struct {
	reg   *heapwalk.Registry
	stwc  *stw.Coordinator
	defq  *deferredq.Manager
	keys  *objmodel.SharedKeysRegistry
	guard *runtimehost.Guard

	enabled    atomic.Bool
	collecting atomic.Bool
	threshold  atomic.Int64
	liveCount  atomic.Int64
	scale      atomic.Int64
	debug      atomic.Uint32

	book bookkeeping
}

// Config seeds the collector's initial policy (spec §6: GC_SCALE env
// var, and a starting threshold).
type Config struct {
	// ScalePercent is the percentage the threshold-update formula adds
	// on top of 100 (spec §4.4.10); GC_SCALE in the environment.
	ScalePercent int64
	// InitialThreshold is the starting raw threshold, in tracked-object
	// count. Zero means "collect on every allocation" (spec's preserved
	// quirk, §9 Open Questions) rather than "disabled".
	InitialThreshold int64
}

// New constructs a Collector wired to reg/stwc/defq/keys, guarding
// every user-code callout through guard.
func New(reg *heapwalk.Registry, stwc *stw.Coordinator, defq *deferredq.Manager, keys *objmodel.SharedKeysRegistry, guard *runtimehost.Guard, cfg Config) *Collector {
	c := &Collector{reg: reg, stwc: stwc, defq: defq, keys: keys, guard: guard}
	c.enabled.Store(true)
	c.threshold.Store(cfg.InitialThreshold)
	c.scale.Store(cfg.ScalePercent)
	return c
}

// Enable turns collection on, returning the previous flag (spec §4.6).
func (c *Collector) Enable() bool { return c.enabled.Swap(true) }

// Disable turns collection off, returning the previous flag. Disabled
// state only suppresses ReasonHeap collections; Manual and Shutdown
// still run.
func (c *Collector) Disable() bool { return c.enabled.Swap(false) }

// IsEnabled reports the current enabled flag.
func (c *Collector) IsEnabled() bool { return c.enabled.Load() }

// SetThreshold sets the raw threshold and returns the previous value.
func (c *Collector) SetThreshold(n int64) int64 { return c.threshold.Swap(n) }

// GetThreshold returns the current raw threshold.
func (c *Collector) GetThreshold() int64 { return c.threshold.Load() }

// SetDebug sets the debug bitmask and returns the previous value.
func (c *Collector) SetDebug(flags uint32) uint32 { return c.debug.Swap(flags) }

// GetDebug returns the current debug bitmask.
func (c *Collector) GetDebug() uint32 { return c.debug.Load() }

func (c *Collector) hasDebug(f DebugFlag) bool { return c.debug.Load()&uint32(f) != 0 }

// GetCount returns the live-object count plus two vestigial zeros
// (spec §4.6: "vestigial generation counters").
func (c *Collector) GetCount() (int64, int64, int64) { return c.liveCount.Load(), 0, 0 }

// GetStats returns a per-generation snapshot; this design tracks one
// real generation, so all three entries are identical copies (spec's
// preserved generation-count quirk).
func (c *Collector) GetStats() [3]Stats {
	s := c.book.snapshotStats()
	return [3]Stats{s, s, s}
}

// Garbage returns the current user-visible uncollectable-garbage list.
func (c *Collector) Garbage() []objmodel.Object { return c.book.Garbage() }

// RegisterCallback appends cb to the post-collection callback list.
func (c *Collector) RegisterCallback(cb Callback) { c.book.addCallback(cb) }

// NotifyAlloc records a fresh tracked allocation and, if enabled and
// the live count now exceeds the threshold, triggers a ReasonHeap
// collection (spec overview §2 control-flow: "a mutator allocating an
// object bumps a live-object counter; when it crosses a threshold the
// collector is invoked"). Threshold zero collects on every allocation
// rather than disabling collection, per spec §9's preserved quirk.
func (c *Collector) NotifyAlloc(caller *threadstate.Thread) (int, error) {
	n := c.liveCount.Add(1)
	if !c.enabled.Load() {
		return 0, nil
	}
	if n <= c.threshold.Load() {
		return 0, nil
	}
	return c.Collect(caller, 0, ReasonHeap)
}

// Collect runs one full collection (spec §4.4). generation is accepted
// for API compatibility only (spec §9: values 0-2, all equivalent).
// Returns collected+uncollectable, or an error.
func (c *Collector) Collect(caller *threadstate.Thread, generation int, reason Reason) (int, error) {
	if generation < 0 || generation > 2 {
		return 0, gcerrors.InvalidArgument("generation must be in [0, 2]")
	}
	if caller.CantStop() {
		return 0, nil
	}
	if reason == ReasonHeap && !c.enabled.Load() {
		return 0, nil
	}
	if !c.collecting.CompareAndSwap(false, true) {
		// Spec §4.4.1: concurrent triggers return zero rather than
		// blocking on each other or queueing.
		return 0, nil
	}
	defer c.collecting.Store(false)

	s := &session{c: c, caller: caller, reason: reason}
	return s.run()
}

// session is the per-collection scratch state (spec §3's work,
// unreachable, and wrcb_to_call queues): always exactly one is live at
// a time, guarded by Collector.collecting, so it is simpler to carry
// as a fresh value per call than as fields reused across collections.
type session struct {
	c      *Collector
	caller *threadstate.Thread
	reason Reason

	toDealloc   []objmodel.Object
	unreachable []objmodel.Object
	wrcbToCall  []*objmodel.Weakref

	longLived     int
	uncollectable int
}

func (s *session) run() (int, error) {
	s.c.stwc.StopTheWorld(s.caller)

	if err := s.phase1MergeDeferred(); err != nil {
		s.c.stwc.StartTheWorld(s.caller)
		return 0, err
	}
	if err := s.phase2RootDiscovery(); err != nil {
		s.c.stwc.StartTheWorld(s.caller)
		return 0, err
	}
	s.phase3MarkReachable()
	if err := s.phase4Partition(); err != nil {
		s.c.stwc.StartTheWorld(s.caller)
		return 0, err
	}
	s.phase5ClearWeakrefsAndSchedule()

	// Phase 6: release STW, deallocate Phase-1 casualties, run weakref
	// callbacks and finalizers with mutators free to run again.
	s.c.stwc.StartTheWorld(s.caller)
	s.phase6RunCallbacksAndFinalizers()

	// Phase 7 re-acquires STW for resurrection detection.
	s.c.stwc.StopTheWorld(s.caller)
	s.phase7Resurrection()
	s.c.stwc.StartTheWorld(s.caller)

	// Phase 8 runs with the world started again (spec §4.4.9 "Start the
	// world again" precedes it explicitly).
	collected := s.phase8BreakCycles()

	s.phase9ThresholdAndBookkeeping(collected)

	total := collected + s.uncollectable
	s.c.book.addStats(collected, s.uncollectable)
	s.runPostCollectionCallbacks(collected, s.uncollectable)
	return total, nil
}

// walkTracked visits every object still carrying FlagTracked, the
// flag-based stand-in this design uses instead of a generation list
// (spec §9) — clearing it (MaybeUntrack) removes an object from every
// later re-scan in the same collection.
func (s *session) walkTracked(fn func(obj objmodel.Object)) {
	heapwalk.WalkTracked(s.c.reg, false, func(obj objmodel.Object) int {
		if obj.GCHeader().HasFlag(objmodel.FlagTracked) {
			fn(obj)
		}
		return 0
	})
}

func (s *session) walkTrackedWithSegment(fn func(obj objmodel.Object, seg *allocator.Segment)) {
	heapwalk.WalkTrackedWithSegment(s.c.reg, func(obj objmodel.Object, seg *allocator.Segment) int {
		if obj.GCHeader().HasFlag(objmodel.FlagTracked) {
			fn(obj, seg)
		}
		return 0
	})
}
