package collector

import (
	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// phase1MergeDeferred implements spec §4.4.2: drain every thread's
// deferred-work queue and apply its refcount deltas now that every
// writer is quiescent under STW. Objects whose merged refcount lands
// at zero but aren't GC-tracked are set aside rather than freed here,
// because their destructors may run arbitrary code that must not
// execute while the world is stopped.
func (s *session) phase1MergeDeferred() error {
	for _, item := range s.c.defq.DrainAll() {
		h := item.Obj.GCHeader()
		switch item.Kind {
		default: // KindDecref is the only kind today
			h.AddLocal(item.Delta)
		}
		if !h.HasFlag(objmodel.FlagTracked) && h.EffectiveRefcount() <= 0 {
			s.toDealloc = append(s.toDealloc, item.Obj)
		}
	}
	return nil
}

// phase2RootDiscovery implements spec §4.4.3.
func (s *session) phase2RootDiscovery() error {
	s.walkTracked(func(obj objmodel.Object) {
		h := obj.GCHeader()
		td := h.Type

		if td.MaybeUntrack != nil && td.MaybeUntrack(obj) {
			h.ClearFlag(objmodel.FlagTracked)
			h.ClearFlag(objmodel.FlagUnreachable)
			return
		}

		if s.reason == ReasonShutdown && h.HasFlag(objmodel.FlagDeferredRefcount) {
			h.MergeDeferred()
		}

		// A parent visited earlier in this pass may already have
		// decremented obj's scratch; only start from zero on first touch.
		if !h.HasFlag(objmodel.FlagUnreachable) {
			h.SetFlag(objmodel.FlagUnreachable)
			h.SetScratch(0)
		}
		h.SetOwner(0)
		h.AddScratch(h.EffectiveRefcount())

		if td.SharedKeys != nil {
			if kb := td.SharedKeys(obj); kb != nil {
				kb.Mark()
			}
		}

		td.Traverse(obj, func(child objmodel.Object, _ any) int {
			ch := child.GCHeader()
			if ch.HasFlag(objmodel.FlagTracked) {
				if !ch.HasFlag(objmodel.FlagUnreachable) {
					ch.SetFlag(objmodel.FlagUnreachable)
					ch.SetScratch(0)
				}
				ch.AddScratch(-1)
			}
			return 0
		}, nil)
	})
	return nil
}

// phase3MarkReachable implements spec §4.4.4: a BFS from every
// candidate with a positive scratch count (an external root) reaches
// and clears Unreachable on everything transitively alive.
func (s *session) phase3MarkReachable() {
	var work []objmodel.Object
	s.walkTracked(func(obj objmodel.Object) {
		h := obj.GCHeader()
		if h.HasFlag(objmodel.FlagUnreachable) && h.Scratch() > 0 {
			h.ClearFlag(objmodel.FlagUnreachable)
			h.SetScratch(0)
			work = append(work, obj)
		}
	})

	for len(work) > 0 {
		obj := work[len(work)-1]
		work = work[:len(work)-1]
		td := obj.GCHeader().Type
		td.Traverse(obj, func(child objmodel.Object, _ any) int {
			ch := child.GCHeader()
			if ch.HasFlag(objmodel.FlagTracked) && ch.HasFlag(objmodel.FlagUnreachable) {
				ch.ClearFlag(objmodel.FlagUnreachable)
				work = append(work, child)
			}
			return 0
		}, nil)
	}
}

// phase4Partition implements spec §4.4.5: owning-thread restoration
// and the split into long-lived / legacy-uncollectable / candidate
// trash.
func (s *session) phase4Partition() error {
	s.walkTrackedWithSegment(func(obj objmodel.Object, seg *allocator.Segment) {
		h := obj.GCHeader()

		switch {
		case h.IsMerged():
			// Already abandoned to the shared counter in a prior cycle;
			// owner id stays zero.
		case seg == nil || seg.ThreadID == 0:
			h.MergeLocalIntoShared()
		default:
			h.SetOwner(seg.ThreadID)
		}

		if !h.HasFlag(objmodel.FlagUnreachable) {
			s.longLived++
			return
		}
		if h.Type.HasLegacyDel {
			h.ClearFlag(objmodel.FlagUnreachable)
			s.c.book.appendGarbage(obj)
			s.uncollectable++
			return
		}
		s.unreachable = append(s.unreachable, obj)
	})

	for i, j := 0, len(s.unreachable)-1; i < j; i, j = i+1, j-1 {
		s.unreachable[i], s.unreachable[j] = s.unreachable[j], s.unreachable[i]
	}
	return nil
}

// phase5ClearWeakrefsAndSchedule implements spec §4.4.6. Every
// candidate is pinned by one local refcount so it survives Phase 6's
// callback/finalizer callouts (which run after STW has been released);
// weakrefs referencing it are severed here, while the world is still
// stopped, so no callback ever observes a live referent.
func (s *session) phase5ClearWeakrefsAndSchedule() {
	for _, obj := range s.unreachable {
		h := obj.GCHeader()
		h.IncLocal()

		if w, ok := obj.(*objmodel.Weakref); ok {
			w.Detach()
		}

		if !h.Type.SupportsWeakrefs {
			continue
		}
		for _, w := range h.Weakrefs() {
			if w.GCHeader().HasFlag(objmodel.FlagUnreachable) {
				// The weakref itself is trash this cycle; firing its
				// callback could resurrect other trash, so it is
				// dropped silently.
				w.Detach()
				continue
			}
			w.GCHeader().IncLocal()
			w.Detach()
			s.wrcbToCall = append(s.wrcbToCall, w)
		}
		h.ClearWeakrefs()
	}
}

// phase6RunCallbacksAndFinalizers implements spec §4.4.7. Runs with
// STW already released by the caller (session.run): the STW pause
// itself never wraps user code.
func (s *session) phase6RunCallbacksAndFinalizers() {
	s.toDealloc = nil // Phase-1 casualties; this design frees them by simply letting go of the last reference, no explicit dealloc call needed.

	for _, w := range s.wrcbToCall {
		w := w
		s.c.guard.CallVoid("weakref-callback", func() {
			if w.Callback != nil {
				w.Callback(w)
			}
		})
	}
	s.wrcbToCall = nil

	for _, obj := range s.unreachable {
		obj := obj
		h := obj.GCHeader()
		if h.Type.Finalize == nil || h.HasFlag(objmodel.FlagFinalized) {
			continue
		}
		h.SetFlag(objmodel.FlagFinalized)
		s.c.guard.Call("finalize:"+h.Type.Name, func() error {
			return h.Type.Finalize(obj)
		})
	}
}

// phase7Resurrection implements spec §4.4.8. The Phase-5 pin is undone
// here (the single real decref for that pin in this implementation —
// phase 8's narrative "drop the Phase-5 pin" describes the same
// decrement, not a second one) and used directly as the resurrection
// test value.
func (s *session) phase7Resurrection() {
	for _, obj := range s.unreachable {
		h := obj.GCHeader()
		h.DecLocal()
		h.SetScratch(h.EffectiveRefcount())
	}

	for _, obj := range s.unreachable {
		td := obj.GCHeader().Type
		td.Traverse(obj, func(child objmodel.Object, _ any) int {
			ch := child.GCHeader()
			if ch.HasFlag(objmodel.FlagTracked) && ch.HasFlag(objmodel.FlagUnreachable) {
				ch.AddScratch(-1)
			}
			return 0
		}, nil)
	}

	var resurrectedRoots []objmodel.Object
	for _, obj := range s.unreachable {
		h := obj.GCHeader()
		if h.HasFlag(objmodel.FlagUnreachable) && h.Scratch() > 0 {
			h.ClearFlag(objmodel.FlagUnreachable)
			h.SetScratch(0)
			resurrectedRoots = append(resurrectedRoots, obj)
		}
	}

	work := append([]objmodel.Object(nil), resurrectedRoots...)
	for len(work) > 0 {
		obj := work[len(work)-1]
		work = work[:len(work)-1]
		td := obj.GCHeader().Type
		td.Traverse(obj, func(child objmodel.Object, _ any) int {
			ch := child.GCHeader()
			if ch.HasFlag(objmodel.FlagTracked) && ch.HasFlag(objmodel.FlagUnreachable) {
				ch.ClearFlag(objmodel.FlagUnreachable)
				work = append(work, child)
			}
			return 0
		}, nil)
	}

	still := s.unreachable[:0]
	for _, obj := range s.unreachable {
		if obj.GCHeader().HasFlag(objmodel.FlagUnreachable) {
			still = append(still, obj)
		}
	}
	s.unreachable = still

	s.c.keys.Sweep()

	// Step 5 (clear per-thread freelists) has no counterpart in this
	// allocator simulator: blocks are freed in place, there is no
	// separate freelist to release back to the OS.
}

// phase8BreakCycles implements spec §4.4.9: whatever remains in
// unreachable after resurrection detection is genuinely dead. Starting
// the world again happens in session.run before this phase, per spec.
// Breaking the cycle (tp_clear) is not enough on its own — the block
// must also go back to its owning page, mirroring delete_garbage's
// final Py_DECREF that drives refcount to zero and triggers dealloc.
// DEBUG_SAVEALL objects are exempted: they are moved to gc.garbage
// instead of destroyed, so their slot stays allocated.
func (s *session) phase8BreakCycles() int {
	saveAll := s.c.hasDebug(DebugSaveAll)
	collected := 0

	for _, obj := range s.unreachable {
		obj := obj
		h := obj.GCHeader()

		if saveAll {
			s.c.book.appendGarbage(obj)
		} else if h.Type.Clear != nil {
			s.c.guard.Call("clear:"+h.Type.Name, func() error {
				return h.Type.Clear(obj)
			})
		}

		h.ClearFlag(objmodel.FlagUnreachable)
		h.ClearFlag(objmodel.FlagTracked)

		if !saveAll {
			h.FreeSlot()
		}
		collected++
	}
	s.unreachable = nil
	return collected
}

// phase9ThresholdAndBookkeeping implements spec §4.4.10.
func (s *session) phase9ThresholdAndBookkeeping(collected int) {
	scale := s.c.scale.Load()
	threshold := int64(s.longLived) * (100 + scale) / 100
	if threshold < minThreshold {
		threshold = minThreshold
	}
	s.c.threshold.Store(threshold)
	s.c.liveCount.Store(int64(s.longLived))

	// QSBR-advance stand-in: this design's allocator simulator has no
	// other-thread-visible deferred-free state beyond the STW fence
	// already crossed in phase 6, so there is nothing further to
	// advance. See DESIGN.md.
}

// runPostCollectionCallbacks fires every registered callback with this
// collection's counts (spec §4.4.10 "emit a post-collection callback").
func (s *session) runPostCollectionCallbacks(collected, uncollectable int) {
	info := CallbackInfo{Generation: 0, Collected: collected, Uncollectable: uncollectable}
	for _, cb := range s.c.book.callbackSnapshot() {
		cb := cb
		s.c.guard.Call("gc-callback", func() error {
			cb(info)
			return nil
		})
	}
}
