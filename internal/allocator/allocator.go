// Package allocator models the segregated memory allocator that the
// collector consumes only through its block-visitation API (spec §1,
// §6 "Allocator contract"). It borrows mimalloc's vocabulary —
// segments partitioned into pages, per-page heap tags, abandoned
// segments handed off by exiting threads — because that is the
// vocabulary spec.md itself uses, but it is a from-scratch in-process
// simulator, not a port of a real allocator's ABI: allocator internals
// are explicitly out of this core's scope, only this contract is.
package allocator

import (
	"sync"
	"sync/atomic"

	"github.com/vesperlang/cyclegc/internal/objmodel"
)

// HeapTag identifies which population a page/heap serves.
type HeapTag int

const (
	// HeapTagGC serves GC-managed objects; the only tag the collector
	// tracer walks.
	HeapTagGC HeapTag = iota
	// HeapTagDictKeys serves shared dict key-blocks, swept
	// independently via a single "marked" bit (spec §3, §9).
	HeapTagDictKeys
	// HeapTagOther serves everything else the runtime allocates that
	// the collector never visits.
	HeapTagOther
)

func (t HeapTag) String() string {
	switch t {
	case HeapTagGC:
		return "gc"
	case HeapTagDictKeys:
		return "dict-keys"
	default:
		return "other"
	}
}

// Block is one allocator slot. A nil Object means an empty (freed or
// never-allocated) slot; visit_blocks still reports the slot when
// includeFree is true, with a nil object. sizePrefixLive models the
// debug-allocator's size-prefix low bit: when the owning heap is
// DebugWrapped, a block whose prefix says "dead" must be skipped
// entirely rather than reported with a nil object, because its guard
// words have not been reset and are not safe to expose as a block.
type Block struct {
	obj            objmodel.Object
	sizePrefixLive bool
}

// Object returns the block's live object, or nil for an empty slot.
func (b *Block) Object() objmodel.Object {
	if b == nil {
		return nil
	}
	return b.obj
}

// Page is a fixed-block-size run of slots within a Segment.
type Page struct {
	blockSize int
	blocks    []*Block
}

// BlockSize returns the page's fixed block size.
func (p *Page) BlockSize() int { return p.blockSize }

// Alloc installs obj into a fresh slot and returns its Block. The
// block is recorded on obj's header as its Freer, so the collector can
// release it later without needing the owning Page in hand.
func (p *Page) Alloc(obj objmodel.Object) *Block {
	b := &Block{obj: obj, sizePrefixLive: true}
	p.blocks = append(p.blocks, b)
	obj.GCHeader().SetSlot(b)
	return b
}

// Free marks b's slot dead. The slot itself is retained (mirroring a
// real allocator, which does not compact a page on every free) and is
// never reused by Alloc; debug-wrapped heaps skip it during visits.
func (p *Page) Free(b *Block) {
	b.Free()
}

// Free marks the block dead directly, without needing the owning Page
// in hand. Satisfies objmodel.Freer.
func (b *Block) Free() {
	b.obj = nil
	b.sizePrefixLive = false
}

// Segment owns a set of pages and is either live under a thread's
// ownership, or abandoned (ThreadID == 0).
type Segment struct {
	id       uint64
	ThreadID uint64
	Pages    []*Page
}

// NewPage appends and returns a fresh page of the given block size.
func (s *Segment) NewPage(blockSize int) *Page {
	p := &Page{blockSize: blockSize}
	s.Pages = append(s.Pages, p)
	return p
}

// ID returns the segment's stable identity.
func (s *Segment) ID() uint64 { return s.id }

// Heap is one thread's (or, once abandoned, one arena's) collection of
// segments for a single HeapTag. DebugWrapped mirrors spec §4.3's
// observation that the debug allocator's cell layout is not uniform
// across heap tags — e.g. the dict-keys heap never uses debug
// wrappers.
type Heap struct {
	Tag          HeapTag
	DebugWrapped bool

	mu       sync.Mutex
	segments []*Segment

	// visited is the transient scratch bit reserved for the GC (spec
	// §4.3): set once this heap has been walked in the current pass,
	// cleared at the end of the whole walk.
	visited atomic.Bool
}

// NewHeap constructs an empty heap for the given tag.
func NewHeap(tag HeapTag, debugWrapped bool) *Heap {
	return &Heap{Tag: tag, DebugWrapped: debugWrapped}
}

// NewSegment allocates and attaches a fresh segment to this heap,
// owned by threadID.
func (h *Heap) NewSegment(arena *Arena, threadID uint64) *Segment {
	seg := &Segment{id: arena.nextSegmentID(), ThreadID: threadID}
	h.mu.Lock()
	h.segments = append(h.segments, seg)
	h.mu.Unlock()
	return seg
}

// Segments returns a snapshot of this heap's segments.
func (h *Heap) Segments() []*Segment {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Segment, len(h.segments))
	copy(out, h.segments)
	return out
}

// removeSegment detaches seg from this heap (used when a thread
// abandons and its segments move to the arena's abandoned pool).
func (h *Heap) removeSegment(seg *Segment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.segments {
		if s == seg {
			h.segments = append(h.segments[:i], h.segments[i+1:]...)
			return
		}
	}
}

// IsVisited reports the transient visited bit.
func (h *Heap) IsVisited() bool { return h.visited.Load() }

// MarkVisited sets the transient visited bit; returns false if it was
// already set (caller should skip re-walking).
func (h *Heap) MarkVisited() bool { return h.visited.CompareAndSwap(false, true) }

// ClearVisited resets the transient visited bit at the end of a whole
// heap walk.
func (h *Heap) ClearVisited() { h.visited.Store(false) }

// BlockVisitor is invoked once per block (heap, owning segment,
// block, block size, arg). For an empty slot reported because
// includeFree is true, block.Object() is nil. A non-zero return aborts the remainder of the
// walk and is propagated to the caller of VisitBlocks/
// AbandonedVisitBlocks.
type BlockVisitor func(heap *Heap, area *Segment, block *Block, blockSize int, arg any) int

// VisitBlocks iterates every block of every page of every segment in
// h. Debug-wrapped heaps skip dead (sizePrefixLive == false) blocks
// entirely rather than reporting them, mirroring "the visitor must
// skip dead blocks ... before exposing it to its caller" (spec §4.3).
func VisitBlocks(h *Heap, includeFree bool, fn BlockVisitor, arg any) int {
	for _, seg := range h.Segments() {
		for _, page := range seg.Pages {
			for _, b := range page.blocks {
				if h.DebugWrapped && b != nil && !b.sizePrefixLive {
					continue
				}
				if b.Object() == nil && !includeFree {
					continue
				}
				if rc := fn(h, seg, b, page.blockSize, arg); rc != 0 {
					return rc
				}
			}
		}
	}
	return 0
}

// ForEachBlock is the allocator-native per-block iteration mode (spec
// §4.3 "second visit mode"): one call per heap, callback receives just
// the block. Used where the natural loop does not need the segment or
// block-size context VisitBlocks exposes.
func (h *Heap) ForEachBlock(fn func(b *Block) int) int {
	for _, seg := range h.Segments() {
		for _, page := range seg.Pages {
			for _, b := range page.blocks {
				if h.DebugWrapped && b != nil && !b.sizePrefixLive {
					continue
				}
				if rc := fn(b); rc != 0 {
					return rc
				}
			}
		}
	}
	return 0
}
