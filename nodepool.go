package hashdag

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// nodeBucket is one hash bucket's upsert lock, append cursor, and
// content-digest index, per spec.md §4.2's "bucket mutex + atomic
// used_words" discipline plus the digest pre-filter of spec.md §4.2/§9:
// digests maps a node's blake3 content digest to its word address, so an
// Upsert of content already present resolves without a linear bucket
// scan; wordsEqual still runs once a digest matches, guarding against
// the astronomically unlikely case of a blake3 collision.
type nodeBucket struct {
	mu        sync.Mutex
	usedWords atomic.Uint32
	digests   sync.Map // contentDigest -> uint32 word address
}

// NodePool is the hash-consed geometry octree of spec.md §3.1/§4.2: a
// fixed bucket layout over a PagedStore, with content-addressed upsert
// at each level.
type NodePool struct {
	cfg     NodePoolConfig
	store   *PagedStore
	buckets []nodeBucket
	root    atomic.Uint32
}

// NewNodePool builds an empty NodePool for cfg, which must already be
// Validate()'d.
func NewNodePool(cfg NodePoolConfig) *NodePool {
	store := NewPagedStore(cfg.totalPages(), cfg.WordsPerPage())
	pool := &NodePool{
		cfg:     cfg,
		store:   store,
		buckets: make([]nodeBucket, cfg.totalBuckets()),
	}
	pool.root.Store(uint32(NullPointer))
	return pool
}

// Config returns the pool's configuration.
func (p *NodePool) Config() NodePoolConfig { return p.cfg }

// Store exposes the pool's backing PagedStore, for Flush and GC.
func (p *NodePool) Store() *PagedStore { return p.store }

// Root returns the current root pointer.
func (p *NodePool) Root() NodePointer { return NodePointer(p.root.Load()) }

// SetRoot installs a new root pointer.
func (p *NodePool) SetRoot(ptr NodePointer) { p.root.Store(uint32(ptr)) }

// globalBucket returns the pool-wide bucket index for level and words.
func (p *NodePool) globalBucket(level int, words []uint32) int {
	count := p.cfg.BucketsAtLevel(level)
	local := int(bucketHash(words) % uint64(count))
	return p.cfg.levelBase(level) + local
}

// bucketBaseWord returns the first global word address owned by bucket.
func (p *NodePool) bucketBaseWord(bucket int) uint32 {
	return uint32(bucket) * uint32(p.cfg.WordsPerBucket())
}

// innerNodeWords returns the word count of an inner node given its
// header word, per spec.md §3.1: 1 header word + popcount(childmask)
// child pointer words.
func innerNodeWords(header uint32) int {
	childmask := uint8(header)
	return 1 + bits.OnesCount8(childmask)
}

// nodeWordsAt reads the node starting at global word addr, at level,
// returning its words. Callers must already know a node exists there
// (i.e. addr < used).
func (p *NodePool) nodeWordsAt(level int, addr uint32) []uint32 {
	if level == p.cfg.LeafLevel() {
		return readWordRange(p.store, addr, 2)
	}
	header := readWordRange(p.store, addr, 1)[0]
	n := innerNodeWords(header)
	return readWordRange(p.store, addr, uint32(n))
}

// Upsert finds or inserts a node with the given words at level, and
// returns its canonical address. words must already be normalized by
// the caller (NormalizeLeaf/NormalizeInner) — Upsert assumes a
// real, storable node, never Null/Filled content.
func (p *NodePool) Upsert(level int, words []uint32) (NodePointer, error) {
	bucket := p.globalBucket(level, words)
	b := &p.buckets[bucket]
	base := p.bucketBaseWord(bucket)
	capacity := uint32(p.cfg.WordsPerBucket())
	digest := digestWords(words)

	if addr, ok := p.lookupDigest(b, level, digest, words); ok {
		return NodePointer(addr), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if addr, ok := p.lookupDigest(b, level, digest, words); ok {
		return NodePointer(addr), nil
	}

	used := b.usedWords.Load()
	need := uint32(len(words))
	if used+need > capacity {
		return NullPointer, newBucketFullError(level, bucket)
	}

	addr := base + used
	writeWordRange(p.store, addr, words)
	b.digests.Store(digest, addr)
	b.usedWords.Store(used + need) // release: publishes the new tail to unlocked scanners
	return NodePointer(addr), nil
}

// lookupDigest consults bucket's digest index: if digest was never
// stored, words cannot already be present, so the caller need not touch
// the PagedStore at all. If it was, the word-for-word compare still
// runs once to confirm it (see nodeBucket's digests field).
func (p *NodePool) lookupDigest(b *nodeBucket, level int, digest contentDigest, words []uint32) (uint32, bool) {
	v, ok := b.digests.Load(digest)
	if !ok {
		return 0, false
	}
	addr := v.(uint32)
	if !wordsEqual(p.nodeWordsAt(level, addr), words) {
		return 0, false
	}
	return addr, true
}

func wordsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ChildOrdinal reports whether octant childIndex is present in childmask
// and, if so, its ordinal position (0-based rank among set bits), i.e.
// which of an inner node's child pointer words holds that child.
func ChildOrdinal(childmask uint8, childIndex int) (ordinal int, present bool) {
	if childmask&(1<<uint(childIndex)) == 0 {
		return 0, false
	}
	masked := childmask & ((1 << uint(childIndex)) - 1)
	return bits.OnesCount8(masked), true
}

// EncodeInnerNode packs a childmask and up to 8 present child pointers
// (indexed 0..7 by octant, z-y-x major per spec.md §4.2) into word form.
func EncodeInnerNode(children [8]NodePointer) []uint32 {
	var childmask uint8
	for i, c := range children {
		if !c.IsNull() {
			childmask |= 1 << uint(i)
		}
	}
	words := make([]uint32, 1, 1+bits.OnesCount8(childmask))
	words[0] = uint32(childmask)
	for i, c := range children {
		if childmask&(1<<uint(i)) != 0 {
			words = append(words, uint32(c))
		}
	}
	return words
}

// DecodeInnerNode reconstructs the 8 child pointers a node's words
// encode, filling absent octants with Null.
func DecodeInnerNode(words []uint32) [8]NodePointer {
	var children [8]NodePointer
	childmask := uint8(words[0])
	next := 1
	for i := 0; i < 8; i++ {
		if childmask&(1<<uint(i)) != 0 {
			children[i] = NodePointer(words[next])
			next++
		} else {
			children[i] = NullPointer
		}
	}
	return children
}

// NormalizeInner applies spec.md §4.2's canonicalization rule: an inner
// node with every child Null normalizes to Null; every child Filled
// normalizes to Filled. Otherwise it returns ok=false and the caller
// should upsert the node's encoded words.
func NormalizeInner(children [8]NodePointer) (NodePointer, bool) {
	allNull, allFilled := true, true
	for _, c := range children {
		if !c.IsNull() {
			allNull = false
		}
		if !c.IsFilled() {
			allFilled = false
		}
	}
	switch {
	case allNull:
		return NullPointer, true
	case allFilled:
		return FilledPointer, true
	default:
		return 0, false
	}
}

// EncodeLeaf packs a 4x4x4 (64-voxel) occupancy block into its two-word
// form, per spec.md §3.1.
func EncodeLeaf(bits64 uint64) [2]uint32 {
	return [2]uint32{uint32(bits64), uint32(bits64 >> 32)}
}

// DecodeLeaf unpacks a leaf node's two words back into 64 occupancy bits.
func DecodeLeaf(words []uint32) uint64 {
	return uint64(words[0]) | uint64(words[1])<<32
}

// NormalizeLeaf applies spec.md §4.2's leaf canonicalization: all-zero
// bits normalize to Null, all-one bits normalize to Filled.
func NormalizeLeaf(bits64 uint64) (NodePointer, bool) {
	switch bits64 {
	case 0:
		return NullPointer, true
	case ^uint64(0):
		return FilledPointer, true
	default:
		return 0, false
	}
}

// ReadLeafBits returns the 64 occupancy bits ptr denotes, resolving
// Null/Filled sentinels without touching storage.
func (p *NodePool) ReadLeafBits(ptr NodePointer) uint64 {
	switch {
	case ptr.IsNull():
		return 0
	case ptr.IsFilled():
		return ^uint64(0)
	default:
		return DecodeLeaf(p.nodeWordsAt(p.cfg.LeafLevel(), uint32(ptr)))
	}
}

// ReadChildren returns ptr's 8 children, resolving Null/Filled sentinels
// to all-Null/all-Filled without touching storage.
func (p *NodePool) ReadChildren(level int, ptr NodePointer) [8]NodePointer {
	var out [8]NodePointer
	switch {
	case ptr.IsNull():
		for i := range out {
			out[i] = NullPointer
		}
	case ptr.IsFilled():
		for i := range out {
			out[i] = FilledPointer
		}
	default:
		out = DecodeInnerNode(p.nodeWordsAt(level, uint32(ptr)))
	}
	return out
}
