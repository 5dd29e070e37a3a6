package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVBRWriterSolidRun(t *testing.T) {
	red := Color{R: 255}
	colors := make([]Color, 20)
	for i := range colors {
		colors[i] = red
	}
	chunk := EncodeVoxels(colors, 3)
	require.Equal(t, 20, chunk.VoxelCount)
	require.Len(t, chunk.Blocks, 1)
	require.Equal(t, 0, chunk.Blocks[0].WBits)

	for i := range colors {
		require.Equal(t, red, DecodeVoxel(chunk, i))
	}
}

func TestVBRWriterInterpolatedRun(t *testing.T) {
	a := Color{R: 0, G: 0, B: 0}
	b := Color{R: 255, G: 255, B: 255}
	mid := Color{R: 128, G: 128, B: 128} // not on a 1-bit a->b ladder, so it opens a new block

	colors := []Color{a, mid, b, b}
	chunk := EncodeVoxels(colors, 2)

	got := DecodeAllVoxels(chunk)
	require.Equal(t, a, got[0])
	require.Equal(t, b, got[3])
}

func TestVBRWriterMixedBlocksAcrossMacroBoundaries(t *testing.T) {
	colors := []Color{
		{R: 1}, {R: 1}, {R: 1}, {R: 1}, {R: 1},
		{R: 2}, {R: 2},
		{R: 3}, {R: 3}, {R: 3},
	}
	chunk := EncodeVoxels(colors, 1) // macroblock every 2 voxels
	got := DecodeAllVoxels(chunk)
	require.Equal(t, colors, got)
}

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	colors := []Color{
		{R: 10, G: 20, B: 30},
		{R: 10, G: 20, B: 30},
		{R: 40, G: 50, B: 60},
		{R: 40, G: 50, B: 60},
		{R: 40, G: 50, B: 60},
	}
	chunk := EncodeVoxels(colors, 1)

	words := EncodeChunk(chunk)
	decoded, err := DecodeChunk(words)
	require.NoError(t, err)
	require.True(t, ChunksEqual(chunk, decoded))
	require.Equal(t, colors, DecodeAllVoxels(decoded))
}

func TestDecodeChunkShortData(t *testing.T) {
	_, err := DecodeChunk([]uint32{1, 2, 3})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
}

func TestChunksEqualDetectsDifference(t *testing.T) {
	a := EncodeVoxels([]Color{{R: 1}, {R: 1}}, 1)
	b := EncodeVoxels([]Color{{R: 1}, {R: 2}}, 1)
	require.False(t, ChunksEqual(a, b))
	require.True(t, ChunksEqual(a, a))
}

func TestDecodeVoxelSingleColor(t *testing.T) {
	c := Color{R: 7, G: 8, B: 9}
	chunk := EncodeVoxels([]Color{c}, 4)
	require.Equal(t, c, DecodeVoxel(chunk, 0))
}
