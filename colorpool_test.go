package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestColorPool() *ColorPool {
	return NewColorPool(testColorPoolConfig(testNodePoolConfig()))
}

func TestColorPoolAppendAndReadNode(t *testing.T) {
	pool := newTestColorPool()

	var children [8]ColorPointer
	for i := range children {
		children[i] = NullColorPointer
	}
	children[3] = SolidColorPointer(Color{R: 1, G: 2, B: 3})

	ptr, err := pool.AppendNode(children)
	require.NoError(t, err)
	require.True(t, ptr.IsNode())

	got := pool.ReadNode(ptr)
	require.Equal(t, children, got)
}

func TestColorPoolAppendAndReadLeaf(t *testing.T) {
	pool := newTestColorPool()

	colors := []Color{{R: 1}, {R: 1}, {R: 2}, {R: 2}}
	chunk := EncodeVoxels(colors, 2)

	ptr, err := pool.AppendLeaf(chunk)
	require.NoError(t, err)
	require.True(t, ptr.IsVBRLeaf())

	got, err := pool.ReadLeaf(ptr)
	require.NoError(t, err)
	require.True(t, ChunksEqual(chunk, got))
}

func TestColorPoolSetLeafReusesSlotWhenItFits(t *testing.T) {
	pool := newTestColorPool()

	big := EncodeVoxels([]Color{{R: 1}, {R: 2}, {R: 3}, {R: 4}}, 1)
	ptr, err := pool.AppendLeaf(big)
	require.NoError(t, err)

	smaller := EncodeVoxels([]Color{{R: 9}, {R: 9}, {R: 9}, {R: 9}}, 1)
	reused, err := pool.SetLeaf(ptr, smaller)
	require.NoError(t, err)
	require.Equal(t, ptr, reused)

	got, err := pool.ReadLeaf(reused)
	require.NoError(t, err)
	require.True(t, ChunksEqual(smaller, got))
}

func TestColorPoolSetLeafAllocatesWhenItDoesNotFit(t *testing.T) {
	pool := newTestColorPool()

	small := EncodeVoxels([]Color{{R: 1}}, 1)
	ptr, err := pool.AppendLeaf(small)
	require.NoError(t, err)

	bigger := EncodeVoxels([]Color{{R: 1}, {R: 2}, {R: 3}, {R: 4}, {R: 5}, {R: 6}, {R: 7}, {R: 8}}, 1)
	reallocated, err := pool.SetLeaf(ptr, bigger)
	require.NoError(t, err)
	require.NotEqual(t, ptr, reallocated)

	got, err := pool.ReadLeaf(reallocated)
	require.NoError(t, err)
	require.True(t, ChunksEqual(bigger, got))
}

func TestColorPoolReadChildrenResolvesNullAndSolid(t *testing.T) {
	pool := newTestColorPool()

	nullChildren := pool.ReadChildren(NullColorPointer)
	for _, c := range nullChildren {
		require.True(t, c.IsNull())
	}

	solid := SolidColorPointer(Color{R: 5})
	solidChildren := pool.ReadChildren(solid)
	for _, c := range solidChildren {
		require.Equal(t, solid, c)
	}
}

func TestColorPoolRootDefaultsNull(t *testing.T) {
	pool := newTestColorPool()
	require.Equal(t, NullColorPointer, pool.Root())
	c := SolidColorPointer(Color{B: 1})
	pool.SetRoot(c)
	require.Equal(t, c, pool.Root())
}
