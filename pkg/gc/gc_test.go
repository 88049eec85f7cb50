package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/collector"
	"github.com/vesperlang/cyclegc/internal/config"
	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// node mirrors internal/collector's test node: a minimal tracked
// cyclic-graph cell allocated straight into a mutator's GC heap.
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

func newTestGC(t *testing.T) (*GC, *Mutator) {
	t.Helper()
	cfg := config.Config{ScalePercent: 0, InitialThreshold: 7000, PanicLogDir: t.TempDir()}
	g, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	m := g.AttachThread()
	m.Attach()
	return g, m
}

// alloc constructs a tracked node under td and places it into m's GC
// heap so heap walks can discover it, mirroring internal/collector's
// test harness.
func alloc(m *Mutator, td *objmodel.TypeDescriptor, name string) *node {
	n := &node{name: name}
	n.Init(td)
	n.SetFlag(objmodel.FlagTracked)

	heap := m.TLD().Heaps[allocator.HeapTagGC]
	segs := heap.Segments()
	var seg *allocator.Segment
	if len(segs) == 0 {
		seg = heap.NewSegment(gcArena(m), m.TLD().ThreadID)
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

func gcArena(m *Mutator) *allocator.Arena { return m.gc.arena }

func link(from, to *node) {
	from.Refs = append(from.Refs, to)
	to.GCHeader().IncLocal()
}

func TestGC_EnableDisable(t *testing.T) {
	g, _ := newTestGC(t)

	assert.True(t, g.IsEnabled())
	prev := g.Disable()
	assert.True(t, prev)
	assert.False(t, g.IsEnabled())

	prev = g.Enable()
	assert.False(t, prev)
	assert.True(t, g.IsEnabled())
}

func TestGC_ThresholdAndDebug(t *testing.T) {
	g, _ := newTestGC(t)

	prev := g.SetThreshold(100)
	assert.Equal(t, int64(7000), prev)
	assert.Equal(t, int64(100), g.GetThreshold())

	prevDebug := g.SetDebug(uint32(collector.DebugLeak))
	assert.Equal(t, uint32(0), prevDebug)
	assert.Equal(t, uint32(collector.DebugLeak), g.GetDebug())
}

func TestGC_Collect_SimpleCycle(t *testing.T) {
	g, m := newTestGC(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	a := alloc(m, td, "a")
	b := alloc(m, td, "b")
	a.IncLocal()
	b.IncLocal()
	link(a, b)
	link(b, a)
	a.DecLocal()
	b.DecLocal()

	n, err := g.Collect(m, 0, collector.ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history := g.Telemetry().History(0)
	require.Len(t, history, 1)
	assert.Equal(t, "manual", history[0].Reason)
	assert.Equal(t, 2, history[0].Collected)
}

func TestGC_GetObjects_IsTracked(t *testing.T) {
	g, m := newTestGC(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	a := alloc(m, td, "a")
	a.IncLocal()

	objs, err := g.GetObjects(0)
	require.NoError(t, err)
	assert.Len(t, objs, 1)
	assert.True(t, g.IsTracked(a))
	assert.False(t, g.IsFinalized(a))

	_, err = g.GetObjects(5)
	assert.Error(t, err)
}

func TestGC_GetReferrersAndReferents(t *testing.T) {
	g, m := newTestGC(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	root := alloc(m, td, "root")
	child := alloc(m, td, "child")
	root.IncLocal()
	link(root, child)

	referrers := g.GetReferrers(child)
	require.Len(t, referrers, 1)
	assert.Same(t, root, referrers[0])

	referents := g.GetReferents(root)
	require.Len(t, referents, 1)
	assert.Same(t, child, referents[0])
}

func TestGC_FreezeNoOps(t *testing.T) {
	g, _ := newTestGC(t)
	assert.Equal(t, 0, g.GetFreezeCount())
	g.Freeze()
	assert.Equal(t, 0, g.GetFreezeCount())
	g.Unfreeze()
	assert.Equal(t, 0, g.GetFreezeCount())
}

func TestGC_RegisterCallback(t *testing.T) {
	g, m := newTestGC(t)
	td := &objmodel.TypeDescriptor{Name: "node", Traverse: nodeTraverse}

	var got collector.CallbackInfo
	g.RegisterCallback(func(info collector.CallbackInfo) { got = info })

	a := alloc(m, td, "a")
	a.IncLocal()
	a.DecLocal()

	_, err := g.Collect(m, 0, collector.ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Collected)
}
