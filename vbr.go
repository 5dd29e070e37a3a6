package hashdag

// MacroBlock is a random-access checkpoint into a VBR chunk's block and
// weight streams, recorded every 2^MacroShift voxels (spec.md §3.3).
// BlockSkip is how many voxels of Blocks[BlockIndex] were already
// written before this checkpoint's first voxel, letting a reader resume
// mid-block instead of only at block boundaries.
type MacroBlock struct {
	BlockIndex int
	BlockSkip  int
	BitOffset  int
}

// BlockHeader is one run of voxels sharing an endpoint pair, per
// spec.md §3.3. WBits == 0 means every voxel in the run is solid A;
// WBits >= 1 means each of the Length voxels stores its own WBits-wide
// weight in the chunk's weight stream.
type BlockHeader struct {
	A, B   Color
	Length int
	WBits  int
}

// weightLadder lists the candidate weight-bit widths {0,1,2,4,8}; see
// DESIGN.md's open-question decision. Nothing reads it: VBRWriter does
// not choose from it, and the blocks it writes always have WBits 0 or 1.
var weightLadder = []int{0, 1, 2, 4, 8}

func maxWeight(wb int) int {
	if wb == 0 {
		return 0
	}
	return (1 << wb) - 1
}

// VBRChunk is a fully built, immutable VBR-encoded color sequence.
type VBRChunk struct {
	VoxelCount  int
	MacroShift  int
	Macroblocks []MacroBlock
	Blocks      []BlockHeader
	WeightWords []uint32
	WeightBits  int
}

// bitWriter packs unsigned values LSB-first into a []uint32 buffer.
type bitWriter struct {
	words []uint32
	nbits int
}

func (w *bitWriter) BitLen() int { return w.nbits }

func (w *bitWriter) WriteBits(value uint32, width int) {
	for width > 0 {
		wordIdx := w.nbits / 32
		bitIdx := w.nbits % 32
		for wordIdx >= len(w.words) {
			w.words = append(w.words, 0)
		}
		room := 32 - bitIdx
		take := width
		if take > room {
			take = room
		}
		mask := uint32(1)<<uint(take) - 1
		w.words[wordIdx] |= (value & mask) << uint(bitIdx)
		value >>= uint(take)
		width -= take
		w.nbits += take
	}
}

// bitReader reads values previously packed by bitWriter.
type bitReader struct {
	words []uint32
}

func (r *bitReader) ReadBits(bitOffset, width int) uint32 {
	var out uint32
	var got int
	for got < width {
		wordIdx := (bitOffset + got) / 32
		bitIdx := (bitOffset + got) % 32
		room := 32 - bitIdx
		take := width - got
		if take > room {
			take = room
		}
		mask := uint32(1)<<uint(take) - 1
		bits := (r.words[wordIdx] >> uint(bitIdx)) & mask
		out |= bits << uint(got)
		got += take
	}
	return out
}

func interpolateChannel(a, b uint8, w, maxW int) uint8 {
	if maxW == 0 {
		return a
	}
	return uint8((int(a)*(maxW-w) + int(b)*w + maxW/2) / maxW)
}

// findWeight returns the integer weight w in [0, maxW] such that
// interpolating a->b by w reproduces target exactly on every channel, if
// one exists.
func findWeight(a, b Color, maxW int, target Color) (int, bool) {
	w := -1
	check := func(av, bv, cv uint8) bool {
		if av == bv {
			return cv == av
		}
		for cand := 0; cand <= maxW; cand++ {
			if interpolateChannel(av, bv, cand, maxW) == cv {
				if w == -1 {
					w = cand
				} else if w != cand {
					return false
				}
				return true
			}
		}
		return false
	}
	if !check(a.R, b.R, target.R) {
		return 0, false
	}
	if !check(a.G, b.G, target.G) {
		return 0, false
	}
	if !check(a.B, b.B, target.B) {
		return 0, false
	}
	if w == -1 {
		w = 0
	}
	return w, true
}

// VBRWriter appends voxel colors sequentially and produces a VBRChunk,
// per spec.md §4.4.
type VBRWriter struct {
	macroShift int

	blocks      []BlockHeader
	macroblocks []MacroBlock
	weights     bitWriter

	open       bool
	curA, curB Color
	curWB      int
	curLen     int

	lastColor Color
	voxels    int
}

// NewVBRWriter returns a writer that checkpoints a MacroBlock every
// 2^macroShift voxels.
func NewVBRWriter(macroShift int) *VBRWriter {
	return &VBRWriter{macroShift: macroShift}
}

// Append writes the next sequential voxel color.
func (w *VBRWriter) Append(color Color) {
	if w.voxels&((1<<uint(w.macroShift))-1) == 0 {
		blockSkip := 0
		if w.open {
			blockSkip = w.curLen
		}
		w.macroblocks = append(w.macroblocks, MacroBlock{
			BlockIndex: len(w.blocks),
			BlockSkip:  blockSkip,
			BitOffset:  w.weights.BitLen(),
		})
	}

	switch {
	case !w.open:
		w.curA, w.curB, w.curWB, w.curLen = color, color, 0, 1
		w.open = true
	case w.curWB == 0 && color == w.curA:
		w.curLen++
	default:
		if wt, ok := findWeight(w.curA, w.curB, maxWeight(w.curWB), color); ok {
			w.weights.WriteBits(uint32(wt), w.curWB)
			w.curLen++
		} else {
			w.closeBlock()
			w.curA, w.curB, w.curWB, w.curLen = w.lastColor, color, 1, 1
			w.open = true
			w.weights.WriteBits(uint32(maxWeight(1)), 1)
		}
	}

	w.lastColor = color
	w.voxels++
}

func (w *VBRWriter) closeBlock() {
	if !w.open {
		return
	}
	w.blocks = append(w.blocks, BlockHeader{A: w.curA, B: w.curB, Length: w.curLen, WBits: w.curWB})
	w.open = false
}

// Close finalizes and returns the written chunk.
func (w *VBRWriter) Close() *VBRChunk {
	w.closeBlock()
	return &VBRChunk{
		VoxelCount:  w.voxels,
		MacroShift:  w.macroShift,
		Macroblocks: append([]MacroBlock(nil), w.macroblocks...),
		Blocks:      append([]BlockHeader(nil), w.blocks...),
		WeightWords: append([]uint32(nil), w.weights.words...),
		WeightBits:  w.weights.BitLen(),
	}
}

// EncodeVoxels is a convenience helper: builds a chunk from a flat,
// already-ordered slice of voxel colors.
func EncodeVoxels(colors []Color, macroShift int) *VBRChunk {
	w := NewVBRWriter(macroShift)
	for _, c := range colors {
		w.Append(c)
	}
	return w.Close()
}

// DecodeVoxel returns chunk's color at voxel index i, per spec.md §4.4's
// macroblock-then-scan algorithm.
func DecodeVoxel(chunk *VBRChunk, i int) Color {
	m := i >> uint(chunk.MacroShift)
	mb := chunk.Macroblocks[m]
	base := m << uint(chunk.MacroShift)
	remaining := i - base

	reader := bitReader{words: chunk.WeightWords}
	blockIdx := mb.BlockIndex
	skip := mb.BlockSkip
	bitCursor := mb.BitOffset

	for {
		header := chunk.Blocks[blockIdx]
		avail := header.Length - skip
		if remaining < avail {
			if header.WBits == 0 {
				return header.A
			}
			j := remaining
			bitOff := bitCursor + j*header.WBits
			wt := int(reader.ReadBits(bitOff, header.WBits))
			return Color{
				R: interpolateChannel(header.A.R, header.B.R, wt, maxWeight(header.WBits)),
				G: interpolateChannel(header.A.G, header.B.G, wt, maxWeight(header.WBits)),
				B: interpolateChannel(header.A.B, header.B.B, wt, maxWeight(header.WBits)),
			}
		}
		remaining -= avail
		bitCursor += avail * header.WBits
		blockIdx++
		skip = 0
	}
}

// DecodeAllVoxels decodes every voxel of chunk in order.
func DecodeAllVoxels(chunk *VBRChunk) []Color {
	out := make([]Color, chunk.VoxelCount)
	for i := range out {
		out[i] = DecodeVoxel(chunk, i)
	}
	return out
}

// chunkWordLen returns the exact number of words EncodeChunk(chunk)
// produces, without building the slice.
func chunkWordLen(chunk *VBRChunk) int {
	return 6 + len(chunk.Macroblocks)*3 + len(chunk.Blocks)*4 + len(chunk.WeightWords)
}

// EncodeChunk serializes chunk to the flat word form stored in a
// ColorPool leaf slot, and used for chunk-equality comparison (spec.md
// §4.4: "two chunks equal iff their serialized word sequences are equal").
// The header is self-describing (it records its own word count) so a
// chunk can be decoded out of a slot whose reserved capacity exceeds the
// chunk's actual length, as happens after the same-slot reuse fast path.
func EncodeChunk(chunk *VBRChunk) []uint32 {
	words := make([]uint32, 0, chunkWordLen(chunk))
	words = append(words,
		uint32(chunk.VoxelCount),
		uint32(chunk.MacroShift),
		uint32(len(chunk.Macroblocks)),
		uint32(len(chunk.Blocks)),
		uint32(chunk.WeightBits),
		uint32(len(chunk.WeightWords)),
	)
	for _, mb := range chunk.Macroblocks {
		words = append(words, uint32(mb.BlockIndex), uint32(mb.BlockSkip), uint32(mb.BitOffset))
	}
	for _, b := range chunk.Blocks {
		words = append(words, b.A.Bits(), b.B.Bits(), uint32(b.Length), uint32(b.WBits))
	}
	words = append(words, chunk.WeightWords...)
	return words
}

// DecodeChunk deserializes a chunk previously produced by EncodeChunk.
// words may carry unrelated trailing capacity padding; DecodeChunk reads
// only as many words as the header declares.
func DecodeChunk(words []uint32) (*VBRChunk, error) {
	if len(words) < 6 {
		return nil, newCodecError(errShortChunk)
	}
	chunk := &VBRChunk{
		VoxelCount: int(words[0]),
		MacroShift: int(words[1]),
		WeightBits: int(words[4]),
	}
	numMacro, numBlocks, weightWordLen := int(words[2]), int(words[3]), int(words[5])
	off := 6

	if need := off + numMacro*3 + numBlocks*4 + weightWordLen; need > len(words) {
		return nil, newCodecError(errShortChunk)
	}

	chunk.Macroblocks = make([]MacroBlock, numMacro)
	for i := 0; i < numMacro; i++ {
		chunk.Macroblocks[i] = MacroBlock{
			BlockIndex: int(words[off]),
			BlockSkip:  int(words[off+1]),
			BitOffset:  int(words[off+2]),
		}
		off += 3
	}

	chunk.Blocks = make([]BlockHeader, numBlocks)
	for i := 0; i < numBlocks; i++ {
		chunk.Blocks[i] = BlockHeader{
			A:      ColorFromBits(words[off]),
			B:      ColorFromBits(words[off+1]),
			Length: int(words[off+2]),
			WBits:  int(words[off+3]),
		}
		off += 4
	}

	chunk.WeightWords = append([]uint32(nil), words[off:off+weightWordLen]...)
	return chunk, nil
}

// ChunksEqual reports whether a and b serialize to the same word
// sequence. The blake3 content digest (see hash.go) is compared first as
// a cheap pre-filter; the full word-for-word compare only runs once the
// digests already match, guarding against the astronomically unlikely
// case of a collision.
func ChunksEqual(a, b *VBRChunk) bool {
	aWords, bWords := EncodeChunk(a), EncodeChunk(b)
	if digestWords(aWords) != digestWords(bWords) {
		return false
	}
	return wordsEqual(aWords, bWords)
}
