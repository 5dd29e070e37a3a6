package hashdag

import (
	"encoding/binary"

	"github.com/fxamacker/circlehash"
	"github.com/zeebo/blake3"
)

// hashSeed is fixed (not configurable) because spec.md §1 makes no
// determinism promise across runs or machines, only within one process's
// pools; a fixed seed keeps bucket placement reproducible within a run.
const hashSeed = uint64(0x68617368646167ff)

// wordsToBytes views a little-endian word slice as bytes for hashing.
func wordsToBytes(words []uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// bucketHash computes the fast, non-cryptographic digest spec.md §4.2
// requires for `hash(node_words) mod buckets_at[ℓ]` bucket selection.
func bucketHash(words []uint32) uint64 {
	return circlehash.Hash64(wordsToBytes(words), hashSeed)
}

// contentDigest is a 256-bit digest cached alongside every NodePool
// entry (inner node or leaf) and computed on the fly by ChunksEqual for
// VBR chunks, as a cheap pre-filter: two entries with different digests
// can never be structurally equal, so the slow word-for-word compare
// only runs once digests already match.
type contentDigest [32]byte

func digestWords(words []uint32) contentDigest {
	return blake3.Sum256(wordsToBytes(words))
}
