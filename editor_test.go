package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeCoordChildSplitsAxes(t *testing.T) {
	root := NodeCoord{Lower: [3]uint32{0, 0, 0}, Upper: [3]uint32{8, 8, 8}}

	c0 := root.child(0)
	require.Equal(t, [3]uint32{0, 0, 0}, c0.Lower)
	require.Equal(t, [3]uint32{4, 4, 4}, c0.Upper)

	c7 := root.child(7)
	require.Equal(t, [3]uint32{4, 4, 4}, c7.Lower)
	require.Equal(t, [3]uint32{8, 8, 8}, c7.Upper)
	require.Equal(t, root.Level+1, c7.Level)
}

func TestNodeCoordContains(t *testing.T) {
	c := NodeCoord{Lower: [3]uint32{2, 2, 2}, Upper: [3]uint32{4, 4, 4}}
	require.True(t, c.Contains([3]uint32{2, 2, 2}))
	require.True(t, c.Contains([3]uint32{3, 3, 3}))
	require.False(t, c.Contains([3]uint32{4, 4, 4}))
	require.False(t, c.Contains([3]uint32{1, 2, 2}))
}

func TestAABBEditorDecision(t *testing.T) {
	e := AABBEditor{Min: [3]uint32{2, 2, 2}, Max: [3]uint32{6, 6, 6}, Color: Color{R: 1}}

	require.Equal(t, Fill, e.decide(NodeCoord{Lower: [3]uint32{2, 2, 2}, Upper: [3]uint32{4, 4, 4}}))
	require.Equal(t, Unaffected, e.decide(NodeCoord{Lower: [3]uint32{8, 8, 8}, Upper: [3]uint32{10, 10, 10}}))
	require.Equal(t, Proceed, e.decide(NodeCoord{Lower: [3]uint32{0, 0, 0}, Upper: [3]uint32{4, 4, 4}}))
}

func TestAABBEditorWithColorFillSetsColor(t *testing.T) {
	e := AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: Color{G: 9}}
	vbr := e.WithColor()

	coord := NodeCoord{Lower: [3]uint32{0, 0, 0}, Upper: [3]uint32{2, 2, 2}}
	var color Color
	decision := vbr.EditNode(coord, NullPointer, &color)
	require.Equal(t, Fill, decision)
	require.Equal(t, Color{G: 9}, color)
}

func TestAABBEditorWithColorUnaffectedLeavesColorUntouched(t *testing.T) {
	e := AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: Color{G: 9}}
	vbr := e.WithColor()

	coord := NodeCoord{Lower: [3]uint32{100, 100, 100}, Upper: [3]uint32{102, 102, 102}}
	baseline := Color{R: 3}
	color := baseline
	decision := vbr.EditNode(coord, NullPointer, &color)
	require.Equal(t, Unaffected, decision)
	require.Equal(t, baseline, color)
}

func TestFillSphereEditorDecision(t *testing.T) {
	e := NewFillSphereEditor([3]uint32{5, 5, 5}, 4, Color{R: 1}) // radius 2

	require.Equal(t, Fill, e.decide(NodeCoord{Lower: [3]uint32{5, 5, 5}, Upper: [3]uint32{6, 6, 6}}))
	require.Equal(t, Unaffected, e.decide(NodeCoord{Lower: [3]uint32{100, 100, 100}, Upper: [3]uint32{101, 101, 101}}))
}

func TestFillSphereEditorVoxel(t *testing.T) {
	e := NewFillSphereEditor([3]uint32{5, 5, 5}, 4, Color{R: 1})
	require.True(t, e.EditVoxel(NodeCoord{Lower: [3]uint32{5, 5, 5}}, false))
	require.False(t, e.EditVoxel(NodeCoord{Lower: [3]uint32{50, 50, 50}}, false))
}

func TestDigSphereEditorClearsWithinRadius(t *testing.T) {
	e := NewDigSphereEditor([3]uint32{5, 5, 5}, 4)
	require.Equal(t, Clear, e.EditNode(NodeCoord{Lower: [3]uint32{5, 5, 5}, Upper: [3]uint32{6, 6, 6}}, FilledPointer))
	require.False(t, e.EditVoxel(NodeCoord{Lower: [3]uint32{5, 5, 5}}, true))
	require.True(t, e.EditVoxel(NodeCoord{Lower: [3]uint32{50, 50, 50}}, true))
}

func TestPaintSphereEditorNullSubtreeUnaffected(t *testing.T) {
	e := NewPaintSphereEditor([3]uint32{5, 5, 5}, 100, Color{B: 1})
	var color Color
	decision := e.EditNode(NodeCoord{Lower: [3]uint32{5, 5, 5}, Upper: [3]uint32{6, 6, 6}}, NullPointer, &color)
	require.Equal(t, Unaffected, decision)
	require.True(t, color.Empty())
}

func TestPaintSphereEditorFullOverlapRepaints(t *testing.T) {
	e := NewPaintSphereEditor([3]uint32{5, 5, 5}, 100, Color{B: 1})
	color := Color{R: 9}
	decision := e.EditNode(NodeCoord{Lower: [3]uint32{5, 5, 5}, Upper: [3]uint32{6, 6, 6}}, FilledPointer, &color)
	require.Equal(t, Unaffected, decision)
	require.Equal(t, Color{B: 1}, color)
}

func TestPaintSphereEditorVoxelOnlyPaintsOccupied(t *testing.T) {
	e := NewPaintSphereEditor([3]uint32{5, 5, 5}, 100, Color{B: 1})

	color := Color{R: 9}
	occupied := e.EditVoxel(NodeCoord{Lower: [3]uint32{5, 5, 5}}, true, &color)
	require.True(t, occupied)
	require.Equal(t, Color{B: 1}, color)

	color = Color{R: 9}
	occupied = e.EditVoxel(NodeCoord{Lower: [3]uint32{5, 5, 5}}, false, &color)
	require.False(t, occupied)
	require.Equal(t, Color{R: 9}, color) // unoccupied voxel is never painted
}
