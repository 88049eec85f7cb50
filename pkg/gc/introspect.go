package gc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/vesperlang/cyclegc/internal/gcerrors"
	"github.com/vesperlang/cyclegc/internal/heapwalk"
	"github.com/vesperlang/cyclegc/internal/objmodel"
)

func validateGeneration(generation int) error {
	if generation < 0 || generation > 2 {
		return gcerrors.InvalidArgument("generation must be in [0, 2]")
	}
	return nil
}

// GetObjects returns every currently tracked object (spec §4.6
// get_objects). generation is validated against its documented range
// but otherwise ignored — this design tracks one real generation.
func (g *GC) GetObjects(generation int) ([]objmodel.Object, error) {
	if err := validateGeneration(generation); err != nil {
		return nil, err
	}
	var out []objmodel.Object
	heapwalk.WalkTracked(g.reg, false, func(obj objmodel.Object) int {
		if obj.GCHeader().HasFlag(objmodel.FlagTracked) {
			out = append(out, obj)
		}
		return 0
	})
	return out, nil
}

// IsTracked reports whether obj currently resides in a GC-tagged heap
// block and is visible to the tracer.
func (g *GC) IsTracked(obj objmodel.Object) bool {
	return obj.GCHeader().HasFlag(objmodel.FlagTracked)
}

// IsFinalized reports whether obj's finalizer has already run.
func (g *GC) IsFinalized(obj objmodel.Object) bool {
	return obj.GCHeader().HasFlag(objmodel.FlagFinalized)
}

// idSet hashes object identities through xxhash the way
// hydraidectl/cmd/observe dedupes its live event set, rather than
// keying the match set directly on the uint64 id.
type idSet map[uint64]struct{}

func newIDSet(objs []objmodel.Object) idSet {
	s := make(idSet, len(objs))
	var buf [8]byte
	for _, o := range objs {
		binary.LittleEndian.PutUint64(buf[:], o.GCHeader().ID())
		s[xxhash.Sum64(buf[:])] = struct{}{}
	}
	return s
}

func (s idSet) has(id uint64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	_, ok := s[xxhash.Sum64(buf[:])]
	return ok
}

// GetReferrers returns every tracked object that directly references
// any object in targets (spec §4.6 get_referrers): a full traverse of
// the tracked heap, keeping objects whose traversal visits a target.
func (g *GC) GetReferrers(targets ...objmodel.Object) []objmodel.Object {
	want := newIDSet(targets)
	var out []objmodel.Object
	heapwalk.WalkTracked(g.reg, false, func(obj objmodel.Object) int {
		h := obj.GCHeader()
		if !h.HasFlag(objmodel.FlagTracked) || h.Type == nil || h.Type.Traverse == nil {
			return 0
		}
		found := false
		h.Type.Traverse(obj, func(child objmodel.Object, arg any) int {
			if !found && want.has(child.GCHeader().ID()) {
				found = true
			}
			return 0
		}, nil)
		if found {
			out = append(out, obj)
		}
		return 0
	})
	return out
}

// GetReferents returns every object directly referenced by any object
// in objs (spec §4.6 get_referents): one Traverse call per input,
// collecting its owned children.
func (g *GC) GetReferents(objs ...objmodel.Object) []objmodel.Object {
	var out []objmodel.Object
	for _, obj := range objs {
		h := obj.GCHeader()
		if h.Type == nil || h.Type.Traverse == nil {
			continue
		}
		h.Type.Traverse(obj, func(child objmodel.Object, arg any) int {
			out = append(out, child)
			return 0
		}, nil)
	}
	return out
}

// Freeze, Unfreeze and GetFreezeCount are preserved as literal no-ops
// (spec §9 Open Questions): this design has no separate "frozen"
// generation to move objects into, so freezing never changes what a
// collection scans and the freeze count is always zero.
func (g *GC) Freeze()             {}
func (g *GC) Unfreeze()           {}
func (g *GC) GetFreezeCount() int { return 0 }
