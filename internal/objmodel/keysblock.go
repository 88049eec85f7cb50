package objmodel

import "sync/atomic"

// KeysBlock is a shared dict key-block: the secondary population
// described in spec §3 and §9 that is marked transitively through the
// dicts referencing it and swept independently of the main cycle
// collection. It deliberately does not carry a full refcounted Header
// — only the single "marked" bit the mark phase piggybacks onto it.
type KeysBlock struct {
	id     uint64
	marked atomic.Bool
}

// NewKeysBlock constructs a fresh, unmarked keys-block.
func NewKeysBlock() *KeysBlock {
	return &KeysBlock{id: nextObjectID.Add(1)}
}

// ID returns the keys-block's stable identity.
func (k *KeysBlock) ID() uint64 { return k.id }

// Mark records that at least one tracked dict currently references
// this keys-block.
func (k *KeysBlock) Mark() { k.marked.Store(true) }

// Marked reports whether Mark has been called since the last
// ResetMark.
func (k *KeysBlock) Marked() bool { return k.marked.Load() }

// ResetMark clears the mark ahead of the next collection's scan.
func (k *KeysBlock) ResetMark() { k.marked.Store(false) }

// SharedKeysRegistry is the per-interpreter list of all outstanding
// shared keys-blocks (spec §9: "a per-interpreter list").
type SharedKeysRegistry struct {
	blocks []*KeysBlock
}

// NewSharedKeysRegistry constructs an empty registry.
func NewSharedKeysRegistry() *SharedKeysRegistry { return &SharedKeysRegistry{} }

// Register adds a newly created keys-block to the registry.
func (r *SharedKeysRegistry) Register(k *KeysBlock) {
	r.blocks = append(r.blocks, k)
}

// All returns every registered keys-block.
func (r *SharedKeysRegistry) All() []*KeysBlock {
	out := make([]*KeysBlock, len(r.blocks))
	copy(out, r.blocks)
	return out
}

// Sweep removes and returns every unmarked keys-block, resetting the
// mark on survivors so the next collection starts clean (spec §4.4.8
// step 4: "Sweep dead split-keys blocks found in Phase 2 that remain
// unmarked").
func (r *SharedKeysRegistry) Sweep() []*KeysBlock {
	var dead []*KeysBlock
	survivors := r.blocks[:0]
	for _, k := range r.blocks {
		if k.Marked() {
			k.ResetMark()
			survivors = append(survivors, k)
		} else {
			dead = append(dead, k)
		}
	}
	r.blocks = survivors
	return dead
}
