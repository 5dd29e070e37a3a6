package hashdag

import (
	"sync"
	"sync/atomic"
)

// ColorPool is the tagged-pointer color octree of spec.md §3.2: fixed-
// size inner nodes (8 tagged pointers each) in one PagedVector, and
// variable-length VBR leaf chunks in another.
type ColorPool struct {
	cfg ColorPoolConfig

	nodeStore *PagedStore
	nodeVec   *PagedVector

	leafStore *PagedStore
	leafVec   *PagedVector
	leafMu    sync.Mutex // serializes the same-slot reuse fast path

	root atomic.Uint32
}

// NewColorPool builds an empty ColorPool for cfg, which must already be
// Validate()'d against its paired NodePoolConfig.
func NewColorPool(cfg ColorPoolConfig) *ColorPool {
	nodeStore := NewPagedStore(cfg.NodePageCount, cfg.wordsPerNodePage())
	leafStore := NewPagedStore(cfg.LeafPageCount, cfg.wordsPerLeafPage())
	pool := &ColorPool{
		cfg:       cfg,
		nodeStore: nodeStore,
		nodeVec:   NewPagedVector(nodeStore),
		leafStore: leafStore,
		leafVec:   NewPagedVector(leafStore),
	}
	pool.root.Store(uint32(NullColorPointer))
	return pool
}

func (p *ColorPool) Config() ColorPoolConfig { return p.cfg }

// NodeStore and LeafStore expose the pool's backing PagedStores, for
// Flush and GC.
func (p *ColorPool) NodeStore() *PagedStore { return p.nodeStore }
func (p *ColorPool) LeafStore() *PagedStore { return p.leafStore }

func (p *ColorPool) Root() ColorPointer     { return ColorPointer(p.root.Load()) }
func (p *ColorPool) SetRoot(ptr ColorPointer) { p.root.Store(uint32(ptr)) }

const colorNodeWords = 8

// AppendNode stores an 8-child color inner node and returns a ColorPointer
// tagged Node referencing it. Color nodes are append-only, like the
// geometry octree's hash-consed nodes, but are not themselves hash-consed
// (spec.md §3.2 specifies no dedup requirement for color nodes).
func (p *ColorPool) AppendNode(children [8]ColorPointer) (ColorPointer, error) {
	words := make([]uint32, colorNodeWords)
	for i, c := range children {
		words[i] = uint32(c)
	}
	start, err := p.nodeVec.Append(words)
	if err != nil {
		return NullColorPointer, err
	}
	return NodeColorPointer(start / colorNodeWords), nil
}

// ReadNode returns ptr's 8 children. ptr must be tagged Node.
func (p *ColorPool) ReadNode(ptr ColorPointer) [8]ColorPointer {
	start := ptr.NodeIndex() * colorNodeWords
	words := p.nodeVec.ReadWords(start, colorNodeWords)
	var out [8]ColorPointer
	for i := range out {
		out[i] = ColorPointer(words[i])
	}
	return out
}

// leafSlotHeaderWords is the [capacity_words, length_words] header
// prefixing every VBR leaf slot, per spec.md §3.2.
const leafSlotHeaderWords = 2

// AppendLeaf stores chunk in a freshly allocated, tightly-sized slot.
func (p *ColorPool) AppendLeaf(chunk *VBRChunk) (ColorPointer, error) {
	body := EncodeChunk(chunk)
	slot := make([]uint32, leafSlotHeaderWords+len(body))
	slot[0] = uint32(len(body))
	slot[1] = uint32(len(body))
	copy(slot[leafSlotHeaderWords:], body)

	start, err := p.leafVec.Append(slot)
	if err != nil {
		return NullColorPointer, err
	}
	return VBRLeafColorPointer(start), nil
}

// ReadLeaf decodes the chunk stored at ptr. ptr must be tagged VBRLeaf.
func (p *ColorPool) ReadLeaf(ptr ColorPointer) (*VBRChunk, error) {
	start := ptr.LeafIndex()
	header := p.leafVec.ReadWords(start, leafSlotHeaderWords)
	length := header[1]
	body := p.leafVec.ReadWords(start+leafSlotHeaderWords, length)
	return DecodeChunk(body)
}

// SetLeaf writes chunk, reusing existing's slot in place when it still
// fits and the pool isn't configured to KeepHistory (spec.md §6's
// SetLeaf fast path). Otherwise it allocates a fresh slot, leaving the
// old one (if any) as GC-reclaimable garbage.
func (p *ColorPool) SetLeaf(existing ColorPointer, chunk *VBRChunk) (ColorPointer, error) {
	body := EncodeChunk(chunk)

	if !p.cfg.KeepHistory && existing.IsVBRLeaf() {
		p.leafMu.Lock()
		start := existing.LeafIndex()
		header := p.leafVec.ReadWords(start, leafSlotHeaderWords)
		capacity := header[0]
		if uint32(len(body)) <= capacity {
			writeWordRange(p.leafStore, start+1, []uint32{uint32(len(body))})
			writeWordRange(p.leafStore, start+leafSlotHeaderWords, body)
			p.leafMu.Unlock()
			return existing, nil
		}
		p.leafMu.Unlock()
	}

	return p.AppendLeaf(chunk)
}

// ReadChildren returns ptr's 8 children, resolving Null to all-Null and
// SolidColor to eight copies of itself (a solid-colored subtree is
// equivalent to one whose every child is that same solid color) without
// touching storage. VBRLeaf has no children and must be handled by the
// caller before descending.
func (p *ColorPool) ReadChildren(ptr ColorPointer) [8]ColorPointer {
	var out [8]ColorPointer
	switch {
	case ptr.IsNode():
		return p.ReadNode(ptr)
	case ptr.IsSolidColor():
		for i := range out {
			out[i] = ptr
		}
	default:
		for i := range out {
			out[i] = NullColorPointer
		}
	}
	return out
}
