package heapwalk

import (
	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// ObjectVisitor is called once per tracked object found during a walk.
// A non-zero return aborts the remainder of the walk.
type ObjectVisitor func(obj objmodel.Object) int

// WalkTracked visits every block of the gc-tagged heap across all live
// threads plus every abandoned gc-tagged segment (spec §4.3). The
// heap-level "visited" bit prevents double-visiting a heap that could
// otherwise be reached by more than one path; in this design each live
// thread owns exactly one gc heap so the bit is mostly defensive. The
// bit is set and cleared within one call, so every call walks each live
// heap once. The abandoned walk does not use the bit.
func WalkTracked(reg *Registry, includeFree bool, fn ObjectVisitor) int {
	live := reg.Threads.Snapshot()

	visit := func(heap *allocator.Heap, area *allocator.Segment, block *allocator.Block, blockSize int, arg any) int {
		obj := block.Object()
		if obj == nil {
			return 0
		}
		return fn(obj)
	}

	touched := make([]*allocator.Heap, 0, len(live))
	for _, t := range live {
		tld := reg.TLD(t.ID)
		if tld == nil {
			continue
		}
		h := tld.Heaps[allocator.HeapTagGC]
		if !h.MarkVisited() {
			continue
		}
		touched = append(touched, h)
		if rc := allocator.VisitBlocks(h, includeFree, visit, nil); rc != 0 {
			clearVisited(touched)
			return rc
		}
	}

	rc := reg.Arena.AbandonedVisitBlocks(allocator.HeapTagGC, includeFree, visit, nil)
	clearVisited(touched)
	return rc
}

func clearVisited(heaps []*allocator.Heap) {
	for _, h := range heaps {
		h.ClearVisited()
	}
}

// SegmentVisitor is called once per tracked object found during a
// segment-aware walk, together with the segment owning its block (nil
// for none). A non-zero return aborts the remainder of the walk.
type SegmentVisitor func(obj objmodel.Object, seg *allocator.Segment) int

// WalkTrackedWithSegment is WalkTracked but also exposes the owning
// segment, needed by internal/collector's Phase 4 owning-thread
// restoration (spec §4.4.5): an object's segment tells the collector
// whether to restore its owner id or fold it into the shared counter.
func WalkTrackedWithSegment(reg *Registry, fn SegmentVisitor) int {
	live := reg.Threads.Snapshot()

	visit := func(heap *allocator.Heap, area *allocator.Segment, block *allocator.Block, blockSize int, arg any) int {
		obj := block.Object()
		if obj == nil {
			return 0
		}
		return fn(obj, area)
	}

	touched := make([]*allocator.Heap, 0, len(live))
	for _, t := range live {
		tld := reg.TLD(t.ID)
		if tld == nil {
			continue
		}
		h := tld.Heaps[allocator.HeapTagGC]
		if !h.MarkVisited() {
			continue
		}
		touched = append(touched, h)
		if rc := allocator.VisitBlocks(h, false, visit, nil); rc != 0 {
			clearVisited(touched)
			return rc
		}
	}

	rc := reg.Arena.AbandonedVisitBlocks(allocator.HeapTagGC, false, visit, nil)
	clearVisited(touched)
	return rc
}

// WalkTrackedNative is the allocator-native per-block iteration mode
// (spec §4.3 "second visit mode"), for callers that need no
// segment/block-size context. It walks only the gc heaps of live
// threads; abandoned segments are not visited.
func WalkTrackedNative(reg *Registry, fn ObjectVisitor) int {
	live := reg.Threads.Snapshot()
	for _, t := range live {
		tld := reg.TLD(t.ID)
		if tld == nil {
			continue
		}
		h := tld.Heaps[allocator.HeapTagGC]
		rc := h.ForEachBlock(func(b *allocator.Block) int {
			obj := b.Object()
			if obj == nil {
				return 0
			}
			return fn(obj)
		})
		if rc != 0 {
			return rc
		}
	}
	return 0
}
