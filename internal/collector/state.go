package collector

import (
	"sync"

	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// DebugFlag is a bit in the collector's debug bitmask (spec §6).
type DebugFlag uint32

const (
	DebugStats         DebugFlag = 1
	DebugCollectable   DebugFlag = 2
	DebugUncollectable DebugFlag = 4
	DebugSaveAll       DebugFlag = 32
	// DebugLeak is the union the public API documents as a convenience
	// alias (spec §6): Collectable|Uncollectable|SaveAll.
	DebugLeak = DebugCollectable | DebugUncollectable | DebugSaveAll
)

// Stats is one generation's running collection counters (spec §4.6
// get_stats). This design has a single real generation; GetStats
// still returns three entries for API compatibility (spec's preserved
// "generation" quirk), each a copy of the same counters.
type Stats struct {
	Collections   int64
	Collected     int64
	Uncollectable int64
}

// CallbackInfo is passed to every registered post-collection callback
// (spec §4.4.10).
type CallbackInfo struct {
	Generation    int
	Collected     int
	Uncollectable int
}

// Callback is a post-collection hook (spec §4.6 register_callback).
// Panics and errors from a callback are captured by the collector's
// Guard and reported via the unraisable hook, never propagated here.
type Callback func(info CallbackInfo)

// bookkeeping holds the mutable accounting state protected by its own
// mutex, separate from the per-collection work queues a session owns
// (spec §3 "Interpreter/GC state").
type bookkeeping struct {
	mu        sync.Mutex
	stats     Stats
	garbage   []objmodel.Object
	callbacks []Callback
}

func (b *bookkeeping) addStats(collected, uncollectable int) {
	b.mu.Lock()
	b.stats.Collections++
	b.stats.Collected += int64(collected)
	b.stats.Uncollectable += int64(uncollectable)
	b.mu.Unlock()
}

func (b *bookkeeping) snapshotStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *bookkeeping) appendGarbage(objs ...objmodel.Object) {
	b.mu.Lock()
	b.garbage = append(b.garbage, objs...)
	b.mu.Unlock()
}

// Garbage returns a snapshot of the user-visible uncollectable-garbage
// list (objects with a legacy finalizer, or every unreachable object
// when DebugSaveAll is set).
func (b *bookkeeping) Garbage() []objmodel.Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]objmodel.Object, len(b.garbage))
	copy(out, b.garbage)
	return out
}

func (b *bookkeeping) addCallback(cb Callback) {
	b.mu.Lock()
	b.callbacks = append(b.callbacks, cb)
	b.mu.Unlock()
}

func (b *bookkeeping) callbackSnapshot() []Callback {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Callback, len(b.callbacks))
	copy(out, b.callbacks)
	return out
}
