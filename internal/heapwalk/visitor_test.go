package heapwalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/objmodel"
	"github.com/vesperlang/cyclegc/internal/threadstate"
)

type testObj struct {
	objmodel.Header
	name string
}

func (o *testObj) GCHeader() *objmodel.Header { return &o.Header }

func allocInto(tld *allocator.ThreadLocalData, arena *allocator.Arena, threadID uint64, obj objmodel.Object) {
	heap := tld.Heaps[allocator.HeapTagGC]
	segs := heap.Segments()
	var seg *allocator.Segment
	if len(segs) == 0 {
		seg = heap.NewSegment(arena, threadID)
	} else {
		seg = segs[0]
	}
	var page *allocator.Page
	if len(seg.Pages) == 0 {
		page = seg.NewPage(32)
	} else {
		page = seg.Pages[0]
	}
	page.Alloc(obj)
}

func TestWalkTracked_VisitsLiveAndAbandoned(t *testing.T) {
	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := NewRegistry(threads, arena)

	live, liveTLD := reg.Attach()
	allocInto(liveTLD, arena, live.ID, &testObj{name: "live"})

	dying, dyingTLD := reg.Attach()
	allocInto(dyingTLD, arena, dying.ID, &testObj{name: "abandoned"})
	reg.Detach(dying)

	var names []string
	rc := WalkTracked(reg, false, func(obj objmodel.Object) int {
		names = append(names, obj.(*testObj).name)
		return 0
	})
	require.Equal(t, 0, rc)
	assert.ElementsMatch(t, []string{"live", "abandoned"}, names)
}

func TestWalkTracked_AbortsOnNonZeroReturn(t *testing.T) {
	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := NewRegistry(threads, arena)

	t1, tld1 := reg.Attach()
	allocInto(tld1, arena, t1.ID, &testObj{name: "a"})
	allocInto(tld1, arena, t1.ID, &testObj{name: "b"})

	var visited int
	rc := WalkTracked(reg, false, func(obj objmodel.Object) int {
		visited++
		return 1
	})
	assert.Equal(t, 1, rc)
	assert.Equal(t, 1, visited, "expected the walk to stop after the first non-zero return")
}

func TestWalkTrackedWithSegment_ExposesOwningSegment(t *testing.T) {
	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := NewRegistry(threads, arena)

	th, tld := reg.Attach()
	allocInto(tld, arena, th.ID, &testObj{name: "a"})

	var gotThreadID uint64
	WalkTrackedWithSegment(reg, func(obj objmodel.Object, seg *allocator.Segment) int {
		gotThreadID = seg.ThreadID
		return 0
	})
	assert.Equal(t, th.ID, gotThreadID)
}

func TestWalkTrackedWithSegment_AbandonedSegmentHasNoOwner(t *testing.T) {
	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := NewRegistry(threads, arena)

	th, tld := reg.Attach()
	allocInto(tld, arena, th.ID, &testObj{name: "a"})
	reg.Detach(th)

	var gotThreadID uint64
	WalkTrackedWithSegment(reg, func(obj objmodel.Object, seg *allocator.Segment) int {
		gotThreadID = seg.ThreadID
		return 0
	})
	assert.Equal(t, uint64(0), gotThreadID, "abandoned segments report a zeroed thread id")
}

func TestWalkTrackedNative(t *testing.T) {
	threads := threadstate.NewList()
	arena := allocator.NewArena()
	reg := NewRegistry(threads, arena)

	th, tld := reg.Attach()
	allocInto(tld, arena, th.ID, &testObj{name: "a"})
	allocInto(tld, arena, th.ID, &testObj{name: "b"})

	var count int
	rc := WalkTrackedNative(reg, func(obj objmodel.Object) int {
		count++
		return 0
	})
	assert.Equal(t, 0, rc)
	assert.Equal(t, 2, count)
}
