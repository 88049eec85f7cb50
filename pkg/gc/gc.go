// Package gc is the public collector API (spec §4.6, component C6):
// enable/disable, manual collection, threshold and debug-flag control,
// stats/history accessors, and the introspection surface (GetObjects,
// GetReferrers/GetReferents, freeze). It wires internal/collector,
// internal/heapwalk, internal/config and internal/telemetrygc behind
// one constructor, the way app/server/server.Server wires zeus +
// settings + observer behind Server.
package gc

import (
	"time"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/collector"
	"github.com/vesperlang/cyclegc/internal/config"
	"github.com/vesperlang/cyclegc/internal/deferredq"
	"github.com/vesperlang/cyclegc/internal/gcerrors"
	"github.com/vesperlang/cyclegc/internal/heapwalk"
	"github.com/vesperlang/cyclegc/internal/objmodel"
	"github.com/vesperlang/cyclegc/internal/runtimehost"
	"github.com/vesperlang/cyclegc/internal/stw"
	"github.com/vesperlang/cyclegc/internal/telemetrygc"
	"github.com/vesperlang/cyclegc/internal/threadstate"
)

// GC is the embeddable collector core a host runtime constructs once at
// startup (spec §6's "external interfaces" from the GC's point of
// view: the host provides threads and objects, this provides
// collection).
type GC struct {
	arena    *allocator.Arena
	threads  *threadstate.List
	reg      *heapwalk.Registry
	stwc     *stw.Coordinator
	defq     *deferredq.Manager
	keys     *objmodel.SharedKeysRegistry
	guard    *runtimehost.Guard
	coll     *collector.Collector
	recorder *telemetrygc.Recorder

	cfg config.Config
}

// New constructs a GC core from cfg, wiring every collaborator.
// unraisableHook receives panics/errors from user-code callouts
// (finalizers, weakref callbacks, tp_clear); a nil hook falls back to
// slog-based reporting (runtimehost.NewSlogUnraisableHook).
func New(cfg config.Config, unraisableHook runtimehost.UnraisableHook) (*GC, error) {
	if err := runtimehost.InitPanicLog(cfg.PanicLogDir); err != nil {
		return nil, gcerrors.OutOfMemory("failed to init panic log", err)
	}

	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := heapwalk.NewRegistry(threads, arena)
	stwc := stw.New(threads)
	defq := deferredq.NewManager()
	keys := objmodel.NewSharedKeysRegistry()
	guard := runtimehost.NewGuard(unraisableHook)

	coll := collector.New(reg, stwc, defq, keys, guard, collector.Config{
		ScalePercent:     cfg.ScalePercent,
		InitialThreshold: cfg.InitialThreshold,
	})

	return &GC{
		arena:    arena,
		threads:  threads,
		reg:      reg,
		stwc:     stwc,
		defq:     defq,
		keys:     keys,
		guard:    guard,
		coll:     coll,
		recorder: telemetrygc.NewRecorder(1000),
		cfg:      cfg,
	}, nil
}

// AttachThread registers a new mutator thread with fresh allocator
// heaps and a deferred-work queue, returning a Mutator handle bound to
// this GC.
func (g *GC) AttachThread() *Mutator {
	t, tld := g.reg.Attach()
	return &Mutator{gc: g, thread: t, tld: tld}
}

// DetachThread abandons t's allocator state to the arena and
// unregisters it from the thread list (spec §6 thread_abandon).
func (g *GC) DetachThread(m *Mutator) {
	g.reg.Detach(m.thread)
	g.defq.Forget(m.thread.ID)
}

// Enable turns collection on, returning the previous flag.
func (g *GC) Enable() bool { return g.coll.Enable() }

// Disable turns collection off, returning the previous flag. Disabled
// state suppresses only threshold-triggered collections; manual and
// shutdown collections still run (spec §4.6).
func (g *GC) Disable() bool { return g.coll.Disable() }

// IsEnabled reports whether collection is currently enabled.
func (g *GC) IsEnabled() bool { return g.coll.IsEnabled() }

// SetThreshold sets the raw collection threshold and returns the
// previous value. Zero is a deliberate, valid value: it makes
// threshold-triggered collection fire on every allocation rather than
// disabling it (spec §9 Open Questions, preserved quirk).
func (g *GC) SetThreshold(n int64) int64 { return g.coll.SetThreshold(n) }

// GetThreshold returns the current raw threshold.
func (g *GC) GetThreshold() int64 { return g.coll.GetThreshold() }

// SetDebug sets the debug bitmask (collector.DebugStats,
// DebugCollectable, DebugUncollectable, DebugSaveAll, or their union
// DebugLeak) and returns the previous value.
func (g *GC) SetDebug(flags uint32) uint32 { return g.coll.SetDebug(flags) }

// GetDebug returns the current debug bitmask.
func (g *GC) GetDebug() uint32 { return g.coll.GetDebug() }

// GetCount returns the live-object count plus two vestigial zeros,
// mirroring the preserved three-generation-counter shape (spec §4.6).
func (g *GC) GetCount() (int64, int64, int64) { return g.coll.GetCount() }

// GetStats returns the three-entry per-generation stats snapshot
// (spec's preserved quirk: one real generation, three identical
// copies).
func (g *GC) GetStats() [3]collector.Stats { return g.coll.GetStats() }

// Garbage returns the current user-visible uncollectable-garbage list
// (spec §4.6 gc.garbage).
func (g *GC) Garbage() []objmodel.Object { return g.coll.Garbage() }

// RegisterCallback appends a post-collection callback (spec §4.6
// register_callback).
func (g *GC) RegisterCallback(cb collector.Callback) { g.coll.RegisterCallback(cb) }

// Collect runs a collection for the given generation (accepted and
// range-validated for API compatibility only, per spec §9 — all three
// values collect the same single real generation) and reason, and
// records a telemetry event covering its wall-clock duration and a
// system resource snapshot.
func (g *GC) Collect(m *Mutator, generation int, reason collector.Reason) (int, error) {
	start := time.Now()
	collected, err := g.coll.Collect(m.thread, generation, reason)
	duration := time.Since(start)

	live, _, _ := g.coll.GetCount()
	g.recorder.Record(telemetrygc.Event{
		Reason:     reason.String(),
		Collected:  collected,
		DurationMs: duration.Milliseconds(),
		LiveCount:  live,
		Threshold:  g.coll.GetThreshold(),
		Resources:  telemetrygc.CaptureResources(),
	})
	return collected, err
}

// Telemetry returns the collection-event recorder backing the observe
// TUI and stats/history accessors.
func (g *GC) Telemetry() *telemetrygc.Recorder { return g.recorder }

// Close releases the side-channel panic log and the telemetry
// recorder's subscriber channels.
func (g *GC) Close() {
	g.recorder.Close()
	_ = runtimehost.ClosePanicLog()
}

// Mutator is a host-runtime-facing handle on one registered mutator
// thread: the allocation/notification entry point a host calls on
// every tracked allocation and at interpreter safe points.
type Mutator struct {
	gc     *GC
	thread *threadstate.Thread
	tld    *allocator.ThreadLocalData
}

// Thread returns the underlying thread-state handle, for callers that
// need to pass it to lower-level APIs (e.g. internal/collector tests).
func (m *Mutator) Thread() *threadstate.Thread { return m.thread }

// TLD returns the underlying per-thread allocator handle.
func (m *Mutator) TLD() *allocator.ThreadLocalData { return m.tld }

// Arena returns the shared allocator arena backing this GC, for callers
// that allocate tracked objects directly (e.g. a synthetic workload
// generator) and need to open a fresh segment.
func (m *Mutator) Arena() *allocator.Arena { return m.gc.arena }

// NotifyAlloc records a fresh tracked allocation, possibly triggering a
// threshold collection (spec overview §2).
func (m *Mutator) NotifyAlloc() (int, error) {
	collected, err := m.gc.coll.NotifyAlloc(m.thread)
	if collected > 0 || err != nil {
		live, _, _ := m.gc.coll.GetCount()
		m.gc.recorder.Record(telemetrygc.Event{
			Reason:     collector.ReasonHeap.String(),
			Collected:  collected,
			LiveCount:  live,
			Threshold:  m.gc.coll.GetThreshold(),
			Resources:  telemetrygc.CaptureResources(),
		})
	}
	return collected, err
}

// CheckSafepoint must be called by the host interpreter loop at a safe
// point; it self-parks the calling thread if the collector has
// requested a stop-the-world (spec §4.1/§4.2).
func (m *Mutator) CheckSafepoint() { m.thread.CheckSafepoint() }

// Attach/Detach transition the thread between Attached and Detached
// (spec §4.1), e.g. around a blocking syscall the host makes on the
// mutator's behalf.
func (m *Mutator) Attach() { m.thread.Attach() }
func (m *Mutator) Detach() { m.thread.Detach() }
