// Command hashdagsmoke runs the fixed worked scenarios of spec.md §8
// against a small 16^3 world and reports PASS/FAIL for each, in the
// onflow/atree teacher's cmd/smoke spirit: a standalone, flag-free
// correctness check runnable in CI without the full test suite.
package main

import (
	"fmt"
	"os"

	hashdag "github.com/ttxian8/VkHashDAG"
)

var (
	red  = hashdag.Color{R: 255, G: 0, B: 0}
	blue = hashdag.Color{B: 255}
)

func sqDist(p, c [3]uint32) uint64 {
	var total uint64
	for axis := 0; axis < 3; axis++ {
		d := int64(p[axis]) - int64(c[axis])
		total += uint64(d * d)
	}
	return total
}

func smallWorldConfigs() (hashdag.NodePoolConfig, hashdag.ColorPoolConfig) {
	nodeCfg := hashdag.DefaultNodePoolConfig()
	nodeCfg.LevelCount = 3
	nodeCfg.TopLevelCount = 1
	nodeCfg.BucketBitsPerTopLevel = 3
	nodeCfg.BucketBitsPerBottomLevel = 3
	nodeCfg.WordBitsPerPage = 6
	nodeCfg.PageBitsPerBucket = 2

	colorCfg := hashdag.DefaultColorPoolConfig()
	colorCfg.LeafLevel = nodeCfg.LeafLevel()
	colorCfg.NodeBitsPerNodePage = 4
	colorCfg.WordBitsPerLeafPage = 8
	colorCfg.NodePageCount = 64
	colorCfg.LeafPageCount = 64

	return nodeCfg, colorCfg
}

type world struct {
	nodeCfg   hashdag.NodePoolConfig
	colorCfg  hashdag.ColorPoolConfig
	nodePool  *hashdag.NodePool
	colorPool *hashdag.ColorPool
	engine    *hashdag.Engine
	gc        *hashdag.GarbageCollector
}

func newWorld() *world {
	nodeCfg, colorCfg := smallWorldConfigs()
	scheduler := hashdag.NewScheduler(4)
	return &world{
		nodeCfg:   nodeCfg,
		colorCfg:  colorCfg,
		nodePool:  hashdag.NewNodePool(nodeCfg),
		colorPool: hashdag.NewColorPool(colorCfg),
		engine:    hashdag.NewEngine(scheduler, nodeCfg),
		gc:        hashdag.NewGarbageCollector(scheduler, nodeCfg),
	}
}

func (w *world) apply(editor interface{}) error {
	result, err := w.engine.Edit(editor, w.nodePool, w.colorPool)
	if err != nil {
		return err
	}
	w.nodePool.SetRoot(result.NodeRoot)
	if result.HasColor {
		w.colorPool.SetRoot(result.ColorRoot)
	}
	return nil
}

func (w *world) read(p [3]uint32) (bool, hashdag.Color, error) {
	return hashdag.ReadVoxel(w.nodePool, w.colorPool, p)
}

type check struct {
	name string
	fn   func() error
}

func must(cond bool, format string, args ...interface{}) error {
	if !cond {
		return fmt.Errorf(format, args...)
	}
	return nil
}

func scenario1() error {
	w := newWorld()
	side := uint32(1) << uint(w.nodeCfg.VoxelLevel())
	if err := w.apply(hashdag.AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor()); err != nil {
		return err
	}
	if err := must(w.nodePool.Root().IsFilled(), "root is not Filled"); err != nil {
		return err
	}
	if err := must(w.colorPool.Root().IsSolidColor(), "color root is not SolidColor"); err != nil {
		return err
	}
	got := hashdag.ColorFromBits(w.colorPool.Root().Data())
	return must(got == red, "color root = %v, want %v", got, red)
}

func scenario2() (*world, error) {
	w := newWorld()
	side := uint32(1) << uint(w.nodeCfg.VoxelLevel())
	if err := w.apply(hashdag.AABBEditor{Max: [3]uint32{side, side, side}, Color: red}.WithColor()); err != nil {
		return nil, err
	}
	center := [3]uint32{8, 8, 8}
	if err := w.apply(hashdag.NewDigSphereEditor(center, 16)); err != nil {
		return nil, err
	}
	if err := must(!w.nodePool.Root().IsFilled() && !w.nodePool.Root().IsNull(), "root is Filled or Null after partial dig"); err != nil {
		return nil, err
	}
	for _, tc := range []struct {
		p        [3]uint32
		occupied bool
		color    hashdag.Color
	}{
		{[3]uint32{8, 8, 8}, false, hashdag.Color{}},
		{[3]uint32{0, 0, 0}, true, red},
		{[3]uint32{15, 15, 15}, true, red},
	} {
		occ, c, err := w.read(tc.p)
		if err != nil {
			return nil, err
		}
		if err := must(occ == tc.occupied, "voxel %v occupied=%v, want %v", tc.p, occ, tc.occupied); err != nil {
			return nil, err
		}
		if occ {
			if err := must(c == tc.color, "voxel %v color=%v, want %v", tc.p, c, tc.color); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func scenario3() (*world, error) {
	w, err := scenario2()
	if err != nil {
		return nil, err
	}
	center := [3]uint32{8, 8, 8}
	if err := w.apply(hashdag.NewPaintSphereEditor(center, 36, blue)); err != nil {
		return nil, err
	}
	for _, tc := range []struct {
		p        [3]uint32
		occupied bool
		color    hashdag.Color
	}{
		{[3]uint32{8, 8, 8}, false, hashdag.Color{}},
		{[3]uint32{8, 13, 8}, true, blue}, // d^2 = 25, in shell (16, 36]
		{[3]uint32{15, 15, 15}, true, red},
	} {
		occ, c, err := w.read(tc.p)
		if err != nil {
			return nil, err
		}
		d2 := sqDist(tc.p, center)
		if err := must(occ == tc.occupied, "voxel %v (d2=%d) occupied=%v, want %v", tc.p, d2, occ, tc.occupied); err != nil {
			return nil, err
		}
		if occ {
			if err := must(c == tc.color, "voxel %v (d2=%d) color=%v, want %v", tc.p, d2, c, tc.color); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func scenario4() error {
	w := newWorld()
	box := hashdag.AABBEditor{Min: [3]uint32{2, 2, 2}, Max: [3]uint32{10, 10, 10}, Color: red}.WithColor()
	if err := w.apply(box); err != nil {
		return err
	}
	root1 := w.nodePool.Root()
	if err := w.apply(box); err != nil {
		return err
	}
	return must(w.nodePool.Root() == root1, "repeated identical fill changed root: %v != %v", w.nodePool.Root(), root1)
}

func scenario5() error {
	a := hashdag.AABBEditor{Min: [3]uint32{0, 0, 0}, Max: [3]uint32{4, 4, 4}, Color: red}.WithColor()
	b := hashdag.AABBEditor{Min: [3]uint32{8, 8, 8}, Max: [3]uint32{12, 12, 12}, Color: red}.WithColor()

	w1 := newWorld()
	if err := w1.apply(a); err != nil {
		return err
	}
	if err := w1.apply(b); err != nil {
		return err
	}

	w2 := newWorld()
	if err := w2.apply(b); err != nil {
		return err
	}
	if err := w2.apply(a); err != nil {
		return err
	}

	return must(w1.nodePool.Root() == w2.nodePool.Root(),
		"fill order changed root: %v != %v", w1.nodePool.Root(), w2.nodePool.Root())
}

func scenario6() error {
	w, err := scenario3()
	if err != nil {
		return err
	}
	preStats := w.nodePool.Store().Stats()

	newPool, err := w.gc.CollectNodes(w.nodePool)
	if err != nil {
		return err
	}
	newColor, err := w.gc.CollectColor(w.colorPool)
	if err != nil {
		return err
	}
	gcWorld := &world{nodeCfg: w.nodeCfg, colorCfg: w.colorCfg, nodePool: newPool, colorPool: newColor}

	side := uint32(1) << uint(w.nodeCfg.VoxelLevel())
	for x := uint32(0); x < side; x += 3 {
		for y := uint32(0); y < side; y += 3 {
			for z := uint32(0); z < side; z += 3 {
				p := [3]uint32{x, y, z}
				occBefore, colorBefore, err := w.read(p)
				if err != nil {
					return err
				}
				occAfter, colorAfter, err := gcWorld.read(p)
				if err != nil {
					return err
				}
				if err := must(occBefore == occAfter && colorBefore == colorAfter,
					"voxel %v changed across GC: (%v,%v) -> (%v,%v)", p, occBefore, colorBefore, occAfter, colorAfter); err != nil {
					return err
				}
			}
		}
	}

	postStats := newPool.Store().Stats()
	fmt.Printf("  (pre-GC resident pages: %d, post-GC resident pages: %d)\n", preStats.Resident, postStats.Resident)
	return nil
}

func main() {
	checks := []check{
		{"fill AABB red, whole world", scenario1},
		{"dig sphere after fill", func() error { _, err := scenario2(); return err }},
		{"paint sphere after dig", func() error { _, err := scenario3(); return err }},
		{"idempotent repeated fill", scenario4},
		{"order-independent disjoint fills", scenario5},
		{"GC preserves voxel readback", scenario6},
	}

	failed := 0
	for _, c := range checks {
		if err := c.fn(); err != nil {
			fmt.Printf("FAIL %s: %s\n", c.name, err)
			failed++
			continue
		}
		fmt.Printf("PASS %s\n", c.name)
	}

	if failed > 0 {
		fmt.Printf("\n%d/%d scenarios failed\n", failed, len(checks))
		os.Exit(1)
	}
	fmt.Printf("\nall %d scenarios passed\n", len(checks))
}
