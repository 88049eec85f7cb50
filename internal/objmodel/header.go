// Package objmodel defines the GC object header contract: the fields
// and invariants every GC-managed object carries, independent of the
// host runtime's object layout. It is the Go-native equivalent of a
// C object header embedded at a fixed offset — here, every tracked
// object simply embeds a Header and exposes it via GCHeader().
package objmodel

import (
	"sync/atomic"
)

// Flag is a bit in the per-object gc flags byte (spec data model §3).
type Flag uint32

const (
	// FlagTracked means the object resides in a GC-tagged heap block
	// and is visible to the tracer. Untracked objects are invisible.
	FlagTracked Flag = 1 << iota
	// FlagFinalized means tp_finalize has already run for this object's
	// lifetime (set at most once, even across resurrection).
	FlagFinalized
	// FlagUnreachable is set only during a collection; cleared before
	// the collector releases STW, except on objects in the final trash
	// list where it is cleared as they are destroyed.
	FlagUnreachable
	// FlagDeferredRefcount marks an object whose refcount has a known
	// subset borrowed from a deferred counter (see DeferredBorrowed).
	FlagDeferredRefcount
)

const (
	sharedFlagMerged   int64 = 1 << 0
	sharedFlagDeferred int64 = 1 << 1
	sharedCountShift         = 2
)

// TypeDescriptor is the object type contract consumed by the collector
// (spec §3, §6). Traverse is mandatory for GC-tracked types; the rest
// are optional collaborators.
type TypeDescriptor struct {
	Name string

	// Traverse invokes visit(child, arg) for every owned child
	// reference. A non-zero return from visit aborts the traversal and
	// that return value is propagated.
	Traverse func(obj Object, visit VisitFunc, arg any) int

	// Clear drops all owned references so a cyclic trash object can be
	// safely destroyed without running arbitrary finalization logic
	// again. Optional.
	Clear func(obj Object) error

	// Finalize is the PEP-442-style finalizer. Optional, runs at most
	// once per object lifetime.
	Finalize func(obj Object) error

	// HasLegacyDel marks a pre-PEP-442 finalizer (tp_del). Presence
	// makes an unreachable object uncollectable (it is moved to the
	// garbage list instead of destroyed).
	HasLegacyDel bool

	// SupportsWeakrefs predicate from spec §4.2 object type contract.
	SupportsWeakrefs bool

	// MaybeUntrack implements the runtime's "_MaybeUntrack" policy
	// (spec §4.4.3 step 1): reports whether obj's current contents
	// contain only non-container objects and it can therefore be
	// opportunistically untracked instead of scanned this cycle. Nil
	// for types the policy never applies to.
	MaybeUntrack func(obj Object) bool

	// SharedKeys returns obj's shared dict key-block, or nil if obj is
	// not a dict with split keys (spec §3, §9). Nil for types that
	// never have split keys.
	SharedKeys func(obj Object) *KeysBlock
}

// VisitFunc is invoked once per owned child reference during traverse.
// A non-zero return aborts the traversal.
type VisitFunc func(child Object, arg any) int

// Object is implemented by every GC-managed value. GCHeader returns a
// pointer to the embedded Header so the collector can manipulate
// bookkeeping fields without knowing the concrete type.
type Object interface {
	GCHeader() *Header
}

// Freer releases the allocator slot backing an object. The allocator
// package's *Block implements it; objmodel depends only on this
// interface so the two packages don't import each other.
type Freer interface {
	Free()
}

// Header is the per-object bookkeeping block every GC-managed object
// embeds. Local refcount is owner-thread-only and therefore plain
// (non-atomic) by design — only the owning thread or the collector
// under STW may touch it. Shared refcount is atomic because
// cross-thread decrefs land there directly.
type Header struct {
	Type *TypeDescriptor

	id uint64 // stable per-object identity, assigned at construction

	// local is the owner-thread-only refcount. Never touched
	// concurrently by another thread except the collector, and only
	// while that thread is parked under STW.
	local int64

	// shared packs a signed count (shifted left by sharedCountShift)
	// with two low flag bits: Merged and Deferred. All cross-thread
	// decrefs land here via atomic add.
	shared atomic.Int64

	// owner is the owning thread id; zero means merged/abandoned.
	owner atomic.Uint64

	// flags is the gc flags byte (widened to a word for atomic access).
	flags atomic.Uint32

	// scratch is the gc scratch word (signed gc_refs), valid only
	// while a collection is in progress. At rest it is zero.
	scratch int64

	// deferredBorrowed is the known subset of refcount treated as
	// borrowed from a deferred counter (spec §9 "Deferred refcount").
	deferredBorrowed int64

	// weakrefs is the control list of live weakrefs pointing at this
	// object. Non-nil only for types with SupportsWeakrefs.
	weakrefs []*Weakref

	// slot is the allocator block backing this object, recorded at
	// allocation time so the collector can release it once the object
	// is destroyed (spec §4.4.9 "break cycles" — mirrors delete_garbage's
	// final decref-to-dealloc step). Nil for objects not backed by
	// internal/allocator (e.g. test doubles).
	slot Freer
}

var nextObjectID atomic.Uint64

// Init assigns identity and type to a freshly constructed header. Call
// once, before the object is published to other threads.
func (h *Header) Init(t *TypeDescriptor) {
	h.Type = t
	h.id = nextObjectID.Add(1)
}

// ID returns the object's stable identity, used for referrer/referent
// matching and logging.
func (h *Header) ID() uint64 { return h.id }

// --- local refcount: owner-thread-only, non-atomic ---

// IncLocal bumps the owner-thread-only refcount. Must only be called by
// the owning thread.
func (h *Header) IncLocal() { h.local++ }

// DecLocal drops the owner-thread-only refcount. Must only be called by
// the owning thread.
func (h *Header) DecLocal() { h.local-- }

// Local returns the current local refcount.
func (h *Header) Local() int64 { return h.local }

// AddLocal adjusts the owner-thread-only refcount by delta. Used by
// the collector to apply a drained deferred-decref delta once the
// owning thread is quiescent under STW (spec §4.4.2).
func (h *Header) AddLocal(delta int64) { h.local += delta }

// --- shared refcount: atomic, cross-thread decrefs land here ---

// AddShared atomically adjusts the shared count by delta and returns
// the resulting count (flags excluded).
func (h *Header) AddShared(delta int64) int64 {
	return h.shared.Add(delta<<sharedCountShift) >> sharedCountShift
}

// SharedCount returns the current shared count (flags excluded).
func (h *Header) SharedCount() int64 {
	return h.shared.Load() >> sharedCountShift
}

// IsMerged reports whether the shared refcount's Merged bit is set.
func (h *Header) IsMerged() bool {
	return h.shared.Load()&sharedFlagMerged != 0
}

// SetMerged sets the Merged bit on the shared refcount via CAS retry.
func (h *Header) SetMerged() {
	for {
		old := h.shared.Load()
		if old&sharedFlagMerged != 0 {
			return
		}
		if h.shared.CompareAndSwap(old, old|sharedFlagMerged) {
			return
		}
	}
}

// IsSharedDeferred reports whether the shared refcount's Deferred bit
// is set (distinct from FlagDeferredRefcount on flags, which marks the
// object-level property; this bit tracks the shared-counter side).
func (h *Header) IsSharedDeferred() bool {
	return h.shared.Load()&sharedFlagDeferred != 0
}

// MergeLocalIntoShared folds the owner-thread-only refcount into the
// shared counter and sets the Merged bit, used when an object's owning
// segment has been abandoned and no thread can claim its local count
// non-atomically anymore (spec §4.4.5 partition step).
func (h *Header) MergeLocalIntoShared() {
	if h.local != 0 {
		h.AddShared(h.local)
		h.local = 0
	}
	h.SetMerged()
}

// --- owning thread id ---

// Owner returns the owning thread id, or zero if merged/abandoned.
func (h *Header) Owner() uint64 { return h.owner.Load() }

// SetOwner restores/assigns the owning thread id.
func (h *Header) SetOwner(id uint64) { h.owner.Store(id) }

// --- gc flags ---

// HasFlag reports whether f is set.
func (h *Header) HasFlag(f Flag) bool {
	return h.flags.Load()&uint32(f) != 0
}

// SetFlag sets f.
func (h *Header) SetFlag(f Flag) {
	for {
		old := h.flags.Load()
		nv := old | uint32(f)
		if old == nv || h.flags.CompareAndSwap(old, nv) {
			return
		}
	}
}

// ClearFlag clears f.
func (h *Header) ClearFlag(f Flag) {
	for {
		old := h.flags.Load()
		nv := old &^ uint32(f)
		if old == nv || h.flags.CompareAndSwap(old, nv) {
			return
		}
	}
}

// --- gc scratch word: collector-only, single collecting goroutine ---

// SetScratch sets the gc scratch word.
func (h *Header) SetScratch(v int64) { h.scratch = v }

// Scratch returns the gc scratch word.
func (h *Header) Scratch() int64 { return h.scratch }

// AddScratch adjusts the gc scratch word by delta and returns the
// result.
func (h *Header) AddScratch(delta int64) int64 {
	h.scratch += delta
	return h.scratch
}

// --- deferred refcount accounting ---

// SetDeferredBorrowed records the known deferred-borrowed subset and
// sets FlagDeferredRefcount.
func (h *Header) SetDeferredBorrowed(n int64) {
	h.deferredBorrowed = n
	h.SetFlag(FlagDeferredRefcount)
}

// DeferredBorrowed returns the currently recorded deferred-borrowed
// subset.
func (h *Header) DeferredBorrowed() int64 { return h.deferredBorrowed }

// MergeDeferred folds the deferred-borrowed subset into the local
// refcount and clears FlagDeferredRefcount, so the object no longer
// depends on deferred accounting (used under Shutdown reason, spec
// §4.4.3 step 2).
func (h *Header) MergeDeferred() {
	if h.deferredBorrowed != 0 {
		h.local += h.deferredBorrowed
		h.deferredBorrowed = 0
	}
	h.ClearFlag(FlagDeferredRefcount)
}

// EffectiveRefcount returns local + shared - deferred_adjustment, the
// invariant quantity that must stay >= 0 between collections.
func (h *Header) EffectiveRefcount() int64 {
	return h.local + h.SharedCount() - h.deferredBorrowed
}

// --- allocator slot ---

// SetSlot records the allocator slot backing this object. Called once,
// at allocation time.
func (h *Header) SetSlot(f Freer) { h.slot = f }

// FreeSlot releases the allocator slot backing this object, if any.
// Idempotent: safe to call even if no slot was ever recorded.
func (h *Header) FreeSlot() {
	if h.slot != nil {
		h.slot.Free()
		h.slot = nil
	}
}

// --- weakref control list ---

// Weakrefs returns the live weakref control list.
func (h *Header) Weakrefs() []*Weakref { return h.weakrefs }

// AddWeakref appends w to this header's control list.
func (h *Header) AddWeakref(w *Weakref) {
	h.weakrefs = append(h.weakrefs, w)
}

// ClearWeakrefs detaches every weakref referencing this object without
// firing any callback, and empties the control list.
func (h *Header) ClearWeakrefs() {
	for _, w := range h.weakrefs {
		w.detach()
	}
	h.weakrefs = nil
}
