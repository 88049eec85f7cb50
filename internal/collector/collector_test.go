package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/deferredq"
	"github.com/vesperlang/cyclegc/internal/heapwalk"
	"github.com/vesperlang/cyclegc/internal/objmodel"
	"github.com/vesperlang/cyclegc/internal/runtimehost"
	"github.com/vesperlang/cyclegc/internal/stw"
	"github.com/vesperlang/cyclegc/internal/threadstate"
)

// node is the test harness's tracked object: a plain cyclic-graph cell
// with an overridable type descriptor per instance, so a single test
// can mix ordinary, legacy-finalizer, and PEP-442-style nodes.
type node struct {
	objmodel.Header
	name string
	Refs []*node
}

func (n *node) GCHeader() *objmodel.Header { return &n.Header }

func nodeTraverse(obj objmodel.Object, visit objmodel.VisitFunc, arg any) int {
	n := obj.(*node)
	for _, r := range n.Refs {
		if rc := visit(r, arg); rc != 0 {
			return rc
		}
	}
	return 0
}

// harness wires one Collector against a single attached thread, ready
// to allocate nodes and run collections exactly the way a real
// mutator/collector pairing would.
type harness struct {
	t        *testing.T
	arena    *allocator.Arena
	reg      *heapwalk.Registry
	stwc     *stw.Coordinator
	defq     *deferredq.Manager
	keys     *objmodel.SharedKeysRegistry
	guard    *runtimehost.Guard
	coll     *Collector
	thread   *threadstate.Thread
	tld      *allocator.ThreadLocalData
}

func newHarness(t *testing.T) *harness {
	arena := allocator.NewArena()
	threads := threadstate.NewList()
	reg := heapwalk.NewRegistry(threads, arena)
	stwc := stw.New(threads)
	defq := deferredq.NewManager()
	keys := objmodel.NewSharedKeysRegistry()
	guard := runtimehost.NewGuard(nil)
	coll := New(reg, stwc, defq, keys, guard, Config{ScalePercent: 0, InitialThreshold: 7000})

	thread, tld := reg.Attach()
	thread.Attach()

	return &harness{t: t, arena: arena, reg: reg, stwc: stwc, defq: defq, keys: keys, guard: guard, coll: coll, thread: thread, tld: tld}
}

// alloc constructs a tracked node under td and places it into the
// harness thread's GC heap so heap walks can discover it.
func (h *harness) alloc(td *objmodel.TypeDescriptor, name string) *node {
	n := &node{name: name}
	n.Init(td)
	n.SetFlag(objmodel.FlagTracked)

	heap := h.tld.Heaps[allocator.HeapTagGC]
	segs := heap.Segments()
	var seg *allocator.Segment
	if len(segs) == 0 {
		seg = heap.NewSegment(h.arena, h.tld.ThreadID)
	} else {
		seg = segs[0]
	}
	var page *allocator.Page
	if len(seg.Pages) == 0 {
		page = seg.NewPage(64)
	} else {
		page = seg.Pages[0]
	}
	page.Alloc(n)
	return n
}

// link establishes an owned reference from -> to, bumping to's
// refcount the way a mutator's store to a field would.
func link(from, to *node) {
	from.Refs = append(from.Refs, to)
	to.GCHeader().IncLocal()
}

func TestCollect_SimpleCycle(t *testing.T) {
	h := newHarness(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	a := h.alloc(td, "a")
	b := h.alloc(td, "b")
	a.IncLocal() // external root
	b.IncLocal() // external root

	link(a, b)
	link(b, a)

	a.DecLocal() // drop external roots
	b.DecLocal()

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, h.coll.Garbage())
}

func TestCollect_CycleWithFinalizer(t *testing.T) {
	h := newHarness(t)
	var finalizeCount int
	td := &objmodel.TypeDescriptor{
		Name:      "withfinalize",
		Traverse:  nodeTraverse,
		Finalize:  func(objmodel.Object) error { finalizeCount++; return nil },
	}
	plain := &objmodel.TypeDescriptor{Name: "plain", Traverse: nodeTraverse}

	a := h.alloc(td, "a")
	b := h.alloc(plain, "b")
	a.IncLocal()
	b.IncLocal()

	link(a, b)
	link(b, a)

	a.DecLocal()
	b.DecLocal()

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, finalizeCount)
	assert.Empty(t, h.coll.Garbage())
}

func TestCollect_LegacyFinalizerUncollectable(t *testing.T) {
	h := newHarness(t)
	legacy := &objmodel.TypeDescriptor{Name: "legacy", Traverse: nodeTraverse, HasLegacyDel: true}
	plain := &objmodel.TypeDescriptor{Name: "plain", Traverse: nodeTraverse}

	a := h.alloc(legacy, "a")
	b := h.alloc(plain, "b")
	a.IncLocal()
	b.IncLocal()

	link(a, b)
	link(b, a)

	a.DecLocal()
	b.DecLocal()

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // 1 collected equivalent via uncollectable accounting + legacy partner
	garbage := h.coll.Garbage()
	assert.Len(t, garbage, 2)
	assert.ElementsMatch(t, []objmodel.Object{a, b}, garbage)
}

func TestCollect_WeakrefCallback(t *testing.T) {
	h := newHarness(t)
	td := &objmodel.TypeDescriptor{Name: "referent", Traverse: nodeTraverse, SupportsWeakrefs: true}

	a := h.alloc(td, "a")
	a.IncLocal() // external root

	var calls int
	var calledWith *objmodel.Weakref
	var referentAtCallTime objmodel.Object
	w := objmodel.NewWeakref(a, func(w *objmodel.Weakref) {
		calls++
		calledWith = w
		referentAtCallTime = w.Referent
	})
	_ = w

	a.DecLocal() // drop the external root; a is now garbage

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
	assert.Same(t, w, calledWith)
	assert.Nil(t, referentAtCallTime)
}

func TestCollect_Resurrection(t *testing.T) {
	h := newHarness(t)
	var global *node
	var finalizeCount int
	td := &objmodel.TypeDescriptor{Name: "resurrects", Traverse: nodeTraverse}
	td.Finalize = func(obj objmodel.Object) error {
		finalizeCount++
		self := obj.(*node)
		global = self
		global.IncLocal() // the "module global" keeping it alive
		return nil
	}

	a := h.alloc(td, "a")
	a.IncLocal() // external root
	a.DecLocal() // drop it — a has no other references, normally garbage

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a survives via resurrection")
	assert.Equal(t, 1, finalizeCount)
	require.NotNil(t, global)

	global.DecLocal()
	global = nil

	n2, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, n2)
	assert.Equal(t, 1, finalizeCount, "finalizer must not run a second time")
}

func TestCollect_CrossThreadAbandon(t *testing.T) {
	h := newHarness(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	other, otherTLD := h.reg.Attach()
	other.Attach()

	heap := otherTLD.Heaps[allocator.HeapTagGC]
	seg := heap.NewSegment(h.arena, otherTLD.ThreadID)
	page := seg.NewPage(64)
	a := &node{name: "a"}
	a.Init(td)
	a.SetFlag(objmodel.FlagTracked)
	a.IncLocal()
	page.Alloc(a)

	a.DecLocal() // drop the only reference before the thread exits
	other.Detach()
	h.reg.Detach(other)

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollect_Idempotence(t *testing.T) {
	h := newHarness(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	a := h.alloc(td, "a")
	a.IncLocal()
	a.DecLocal()

	n1, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 0, n2)
}

func TestCollect_InvalidGeneration(t *testing.T) {
	h := newHarness(t)
	_, err := h.coll.Collect(h.thread, 3, ReasonManual)
	assert.Error(t, err)
	_, err = h.coll.Collect(h.thread, -1, ReasonManual)
	assert.Error(t, err)
}

func TestCollect_Soundness_ExternalRootSurvives(t *testing.T) {
	h := newHarness(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	root := h.alloc(td, "root")
	root.IncLocal() // external root, never dropped
	child := h.alloc(td, "child")
	link(root, child)

	n, err := h.coll.Collect(h.thread, 0, ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, root.HasFlag(objmodel.FlagTracked))
	assert.True(t, child.HasFlag(objmodel.FlagTracked))
}
