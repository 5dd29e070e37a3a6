package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCCollectNodesPreservesVoxelReadback(t *testing.T) {
	w := newTestWorld(t)
	side := w.side()
	red := Color{R: 255}
	blue := Color{B: 255}

	w.apply(t, AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor())
	center := [3]uint32{side / 2, side / 2, side / 2}
	w.apply(t, NewDigSphereEditor(center, uint64(side/4)*uint64(side/4)))
	w.apply(t, NewPaintSphereEditor(center, uint64(side/2)*uint64(side/2), blue))

	newNodes, err := w.gc.CollectNodes(w.nodePool)
	require.NoError(t, err)
	newColor, err := w.gc.CollectColor(w.colorPool)
	require.NoError(t, err)

	for x := uint32(0); x < side; x += 3 {
		for y := uint32(0); y < side; y += 3 {
			for z := uint32(0); z < side; z += 3 {
				p := [3]uint32{x, y, z}
				occBefore, colorBefore, err := ReadVoxel(w.nodePool, w.colorPool, p)
				require.NoError(t, err)
				occAfter, colorAfter, err := ReadVoxel(newNodes, newColor, p)
				require.NoError(t, err)
				require.Equal(t, occBefore, occAfter, "occupancy changed at %v", p)
				require.Equal(t, colorBefore, colorAfter, "color changed at %v", p)
			}
		}
	}
}

func TestGCCollectNodesDoesNotMutateSource(t *testing.T) {
	w := newTestWorld(t)
	w.apply(t, AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: Color{R: 1}}.WithColor())
	rootBefore := w.nodePool.Root()

	_, err := w.gc.CollectNodes(w.nodePool)
	require.NoError(t, err)

	require.Equal(t, rootBefore, w.nodePool.Root())
}

func TestGCVerifyReachabilityCountsSharedSubtreesOnce(t *testing.T) {
	w := newTestWorld(t)
	a := AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: Color{R: 1}}
	b := AABBEditor{Min: [3]uint32{8, 8, 8}, Max: [3]uint32{12, 12, 12}, Color: Color{R: 1}}
	w.apply(t, a)
	w.apply(t, b)

	reachable, err := w.gc.VerifyReachability(w.nodePool)
	require.NoError(t, err)
	require.Greater(t, reachable, 0)
	// root, the level-1 node, and one level-2 node shared by octants 0 and 7
	require.Equal(t, 3, reachable)

	newNodes, err := w.gc.CollectNodes(w.nodePool)
	require.NoError(t, err)
	reachableAfterGC, err := w.gc.VerifyReachability(newNodes)
	require.NoError(t, err)
	require.Equal(t, reachable, reachableAfterGC)
}

func TestGCCollectColorRoundTripsSolidAndNull(t *testing.T) {
	w := newTestWorld(t)
	require.Equal(t, NullColorPointer, w.colorPool.Root())

	newColor, err := w.gc.CollectColor(w.colorPool)
	require.NoError(t, err)
	require.Equal(t, NullColorPointer, newColor.Root())

	w.apply(t, AABBEditor{Max: [3]uint32{w.side(), w.side(), w.side()}, Color: Color{G: 1}}.WithColor())
	require.True(t, w.colorPool.Root().IsSolidColor())

	newColor, err = w.gc.CollectColor(w.colorPool)
	require.NoError(t, err)
	require.Equal(t, w.colorPool.Root(), newColor.Root())
}
