package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testWorld struct {
	nodeCfg   NodePoolConfig
	colorCfg  ColorPoolConfig
	nodePool  *NodePool
	colorPool *ColorPool
	engine    *Engine
	gc        *GarbageCollector
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	nodeCfg := testNodePoolConfig()
	colorCfg := testColorPoolConfig(nodeCfg)
	scheduler := NewScheduler(4)
	return &testWorld{
		nodeCfg:   nodeCfg,
		colorCfg:  colorCfg,
		nodePool:  NewNodePool(nodeCfg),
		colorPool: NewColorPool(colorCfg),
		engine:    NewEngine(scheduler, nodeCfg),
		gc:        NewGarbageCollector(scheduler, nodeCfg),
	}
}

func (w *testWorld) apply(t *testing.T, editor interface{}) {
	t.Helper()
	result, err := w.engine.Edit(editor, w.nodePool, w.colorPool)
	require.NoError(t, err)
	w.nodePool.SetRoot(result.NodeRoot)
	if result.HasColor {
		w.colorPool.SetRoot(result.ColorRoot)
	}
}

func (w *testWorld) side() uint32 { return uint32(1) << uint(w.nodeCfg.VoxelLevel()) }

func (w *testWorld) read(t *testing.T, p [3]uint32) (bool, Color) {
	t.Helper()
	occ, c, err := ReadVoxel(w.nodePool, w.colorPool, p)
	require.NoError(t, err)
	return occ, c
}

func TestEngineFillWholeWorld(t *testing.T) {
	w := newTestWorld(t)
	side := w.side()
	red := Color{R: 255}

	w.apply(t, AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor())

	require.True(t, w.nodePool.Root().IsFilled())
	require.True(t, w.colorPool.Root().IsSolidColor())
	require.Equal(t, red, ColorFromBits(w.colorPool.Root().Data()))
}

func TestEngineDigAfterFill(t *testing.T) {
	w := newTestWorld(t)
	side := w.side()
	red := Color{R: 255}
	w.apply(t, AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor())

	center := [3]uint32{side / 2, side / 2, side / 2}
	w.apply(t, NewDigSphereEditor(center, uint64(side/4)*uint64(side/4)))

	require.False(t, w.nodePool.Root().IsFilled())
	require.False(t, w.nodePool.Root().IsNull())

	occ, _ := w.read(t, center)
	require.False(t, occ)

	corner := [3]uint32{0, 0, 0}
	occ, c := w.read(t, corner)
	require.True(t, occ)
	require.Equal(t, red, c)
}

func TestEnginePaintAfterDig(t *testing.T) {
	w := newTestWorld(t)
	side := w.side()
	red := Color{R: 255}
	blue := Color{B: 255}
	w.apply(t, AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor())

	center := [3]uint32{side / 2, side / 2, side / 2}
	digRadiusSq := uint64(side/4) * uint64(side/4)
	w.apply(t, NewDigSphereEditor(center, digRadiusSq))

	paintRadiusSq := uint64(side/2) * uint64(side/2)
	w.apply(t, NewPaintSphereEditor(center, paintRadiusSq, blue))

	occ, _ := w.read(t, center)
	require.False(t, occ, "dug voxel stays unoccupied")

	shellPoint := [3]uint32{center[0], center[1] + side/4 + 1, center[2]}
	occ, c := w.read(t, shellPoint)
	require.True(t, occ)
	require.Equal(t, blue, c)

	farCorner := [3]uint32{side - 1, side - 1, side - 1}
	occ, c = w.read(t, farCorner)
	require.True(t, occ)
	require.Equal(t, red, c)
}

func TestEngineIdempotentRepeatedFill(t *testing.T) {
	w := newTestWorld(t)
	box := AABBEditor{Min: [3]uint32{2, 2, 2}, Max: [3]uint32{10, 10, 10}, Color: Color{R: 1}}.WithColor()

	w.apply(t, box)
	root1 := w.nodePool.Root()
	color1 := w.colorPool.Root()

	w.apply(t, box)
	require.Equal(t, root1, w.nodePool.Root())
	require.Equal(t, color1, w.colorPool.Root())
}

func TestEngineDisjointFillsAreOrderIndependent(t *testing.T) {
	a := AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: Color{R: 1}}.WithColor()
	b := AABBEditor{Min: [3]uint32{8, 8, 8}, Max: [3]uint32{12, 12, 12}, Color: Color{R: 1}}.WithColor()

	w1 := newTestWorld(t)
	w1.apply(t, a)
	w1.apply(t, b)

	w2 := newTestWorld(t)
	w2.apply(t, b)
	w2.apply(t, a)

	require.Equal(t, w1.nodePool.Root(), w2.nodePool.Root())
	require.Equal(t, w1.colorPool.Root(), w2.colorPool.Root())
}

func TestEnginePlainEditorLeavesColorPoolUntouched(t *testing.T) {
	w := newTestWorld(t)
	side := w.side()
	red := Color{R: 255}
	w.apply(t, AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor())
	colorRootBefore := w.colorPool.Root()

	w.apply(t, NewDigSphereEditor([3]uint32{side / 2, side / 2, side / 2}, 4))

	require.Equal(t, colorRootBefore, w.colorPool.Root(), "plain Editor edits must not reach the ColorPool")
}

func TestEngineRejectsInvalidDecision(t *testing.T) {
	w := newTestWorld(t)
	_, err := w.engine.Edit(invalidDecisionEditor{}, w.nodePool, nil)
	require.Error(t, err)
	var ee *EditorError
	require.ErrorAs(t, err, &ee)
}

// invalidDecisionEditor is a plain Editor that always returns an
// out-of-range EditDecision, exercising Engine's editor-contract guard.
type invalidDecisionEditor struct{}

func (e invalidDecisionEditor) EditNode(coord NodeCoord, current NodePointer) EditDecision {
	return EditDecision(99)
}
func (e invalidDecisionEditor) EditVoxel(coord NodeCoord, current bool) bool { return current }
