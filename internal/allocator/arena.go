package allocator

import (
	"sync"
	"sync/atomic"
)

// AbandonedSegment pairs a segment with the heap tag it served, once
// its owning thread has exited and handed it to the arena.
type AbandonedSegment struct {
	Tag     HeapTag
	Segment *Segment
}

// Arena is the process-wide allocator state: it owns segment identity
// assignment and the two abandoned-segment lists the allocator
// contract exposes (spec §6: segment_abandoned / segment_abandoned_
// visited). Everything else (live per-thread heaps) is owned by each
// thread's ThreadLocalData.
type Arena struct {
	nextSeg atomic.Uint64

	mu               sync.Mutex
	pendingAbandoned []*AbandonedSegment
	visitedAbandoned []*AbandonedSegment
}

// NewArena constructs an empty arena.
func NewArena() *Arena { return &Arena{} }

func (a *Arena) nextSegmentID() uint64 { return a.nextSeg.Add(1) }

// ThreadLocalData is the per-thread allocator handle: one Heap per
// HeapTag, all owned exclusively by this thread until it abandons them
// (spec §3 "Per-thread state owns: handles to its segregated
// allocator's heaps").
type ThreadLocalData struct {
	ThreadID uint64
	Heaps    map[HeapTag]*Heap
}

// NewThreadLocalData constructs a thread's allocator handle. The
// dict-keys heap is never debug-wrapped (spec §4.3); gc and other
// heaps are.
func NewThreadLocalData(threadID uint64) *ThreadLocalData {
	return &ThreadLocalData{
		ThreadID: threadID,
		Heaps: map[HeapTag]*Heap{
			HeapTagGC:       NewHeap(HeapTagGC, true),
			HeapTagDictKeys: NewHeap(HeapTagDictKeys, false),
			HeapTagOther:    NewHeap(HeapTagOther, true),
		},
	}
}

// ThreadAbandon hands a dying thread's allocator state to the
// abandoned pool (spec §6: thread_abandon(tld)). Every segment across
// every heap the thread owned is moved into the arena's pending-
// abandoned list, tagged with the heap it served, and its ThreadID is
// zeroed so the data model invariant "owning-thread id is zero if
// merged / abandoned" holds without further bookkeeping.
func (a *Arena) ThreadAbandon(tld *ThreadLocalData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for tag, h := range tld.Heaps {
		for _, seg := range h.Segments() {
			seg.ThreadID = 0
			h.removeSegment(seg)
			a.pendingAbandoned = append(a.pendingAbandoned, &AbandonedSegment{Tag: tag, Segment: seg})
		}
	}
}

// SegmentAbandoned returns a snapshot of the pending-abandoned list.
func (a *Arena) SegmentAbandoned() []*AbandonedSegment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*AbandonedSegment, len(a.pendingAbandoned))
	copy(out, a.pendingAbandoned)
	return out
}

// SegmentAbandonedVisited returns a snapshot of the already-visited
// abandoned list.
func (a *Arena) SegmentAbandonedVisited() []*AbandonedSegment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*AbandonedSegment, len(a.visitedAbandoned))
	copy(out, a.visitedAbandoned)
	return out
}

// AbandonedVisitBlocks walks every block of every abandoned segment
// tagged tag, across both the pending and already-visited lists (spec
// §6: abandoned_visit_blocks(heap_tag, ...)). Every call migrates all
// pending segments into the visited list before walking, whether or
// not the walk then runs to completion, so a later
// collection in the same process lifetime does not need to re-decide
// which list a segment lives on; a thread_abandon call appends new
// entries to pending again regardless.
func (a *Arena) AbandonedVisitBlocks(tag HeapTag, includeFree bool, fn BlockVisitor, arg any) int {
	a.mu.Lock()
	all := make([]*AbandonedSegment, 0, len(a.pendingAbandoned)+len(a.visitedAbandoned))
	all = append(all, a.pendingAbandoned...)
	all = append(all, a.visitedAbandoned...)
	moved := a.pendingAbandoned
	a.visitedAbandoned = append(a.visitedAbandoned, moved...)
	a.pendingAbandoned = nil
	a.mu.Unlock()

	for _, as := range all {
		if as.Tag != tag {
			continue
		}
		for _, page := range as.Segment.Pages {
			for _, b := range page.blocks {
				if b.Object() == nil && !includeFree {
					continue
				}
				if rc := fn(nil, as.Segment, b, page.blockSize, arg); rc != 0 {
					return rc
				}
			}
		}
	}
	return 0
}
