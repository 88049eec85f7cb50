package allocator

import (
	"testing"

	"github.com/vesperlang/cyclegc/internal/objmodel"
)

type dummyObj struct {
	objmodel.Header
}

func (d *dummyObj) GCHeader() *objmodel.Header { return &d.Header }

func TestHeap_AllocAndVisit(t *testing.T) {
	arena := NewArena()
	h := NewHeap(HeapTagGC, true)
	seg := h.NewSegment(arena, 1)
	page := seg.NewPage(32)

	obj := &dummyObj{}
	page.Alloc(obj)

	var seen int
	rc := VisitBlocks(h, false, func(heap *Heap, area *Segment, block *Block, blockSize int, arg any) int {
		seen++
		if block.Object() != objmodel.Object(obj) {
			t.Errorf("expected to visit the allocated object")
		}
		return 0
	}, nil)
	if rc != 0 {
		t.Fatalf("expected VisitBlocks to return 0, got %d", rc)
	}
	if seen != 1 {
		t.Fatalf("expected exactly 1 visited block, got %d", seen)
	}
}

func TestHeap_FreeSkipsDeadBlocksInDebugWrappedHeap(t *testing.T) {
	arena := NewArena()
	h := NewHeap(HeapTagGC, true)
	seg := h.NewSegment(arena, 1)
	page := seg.NewPage(32)

	obj := &dummyObj{}
	b := page.Alloc(obj)
	page.Free(b)

	var seen int
	VisitBlocks(h, false, func(heap *Heap, area *Segment, block *Block, blockSize int, arg any) int {
		seen++
		return 0
	}, nil)
	if seen != 0 {
		t.Fatalf("expected dead block to be skipped, got %d visits", seen)
	}
}

func TestHeap_VisitedBitGatesRewalk(t *testing.T) {
	h := NewHeap(HeapTagGC, true)

	if !h.MarkVisited() {
		t.Fatal("expected first MarkVisited to succeed")
	}
	if h.MarkVisited() {
		t.Fatal("expected second MarkVisited to fail while still marked")
	}
	h.ClearVisited()
	if !h.MarkVisited() {
		t.Fatal("expected MarkVisited to succeed again after ClearVisited")
	}
}

func TestArena_ThreadAbandonMovesSegments(t *testing.T) {
	arena := NewArena()
	tld := NewThreadLocalData(7)
	gcHeap := tld.Heaps[HeapTagGC]
	gcHeap.NewSegment(arena, 7)

	if len(gcHeap.Segments()) != 1 {
		t.Fatalf("expected 1 live segment before abandon")
	}

	arena.ThreadAbandon(tld)

	if len(gcHeap.Segments()) != 0 {
		t.Fatal("expected the heap to have no segments after abandon")
	}
	pending := arena.SegmentAbandoned()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending abandoned segment, got %d", len(pending))
	}
	if pending[0].Segment.ThreadID != 0 {
		t.Fatalf("expected abandoned segment's ThreadID to be zeroed, got %d", pending[0].Segment.ThreadID)
	}
}

func TestArena_AbandonedVisitBlocksMigratesToVisited(t *testing.T) {
	arena := NewArena()
	tld := NewThreadLocalData(3)
	gcHeap := tld.Heaps[HeapTagGC]
	seg := gcHeap.NewSegment(arena, 3)
	page := seg.NewPage(16)
	page.Alloc(&dummyObj{})

	arena.ThreadAbandon(tld)

	var seen int
	arena.AbandonedVisitBlocks(HeapTagGC, false, func(heap *Heap, area *Segment, block *Block, blockSize int, arg any) int {
		seen++
		return 0
	}, nil)
	if seen != 1 {
		t.Fatalf("expected 1 visited block, got %d", seen)
	}

	if len(arena.SegmentAbandoned()) != 0 {
		t.Fatal("expected pending list to be drained after a visit")
	}
	if len(arena.SegmentAbandonedVisited()) != 1 {
		t.Fatal("expected the segment to have migrated to the visited list")
	}
}
