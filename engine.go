package hashdag

import "context"

// leafBitIndex maps local leaf coordinates (each in [0,4)) to one of the
// 64 occupancy bits packed by EncodeLeaf/DecodeLeaf, via the coarse/fine
// octant decomposition implied by spec.md §4.2's digit convention
// (d = x | y<<1 | z<<2) applied recursively: the leaf's 4-wide cube
// splits into 8 coarse 2-cubes, each of which splits into 8 unit voxels.
// Recursive octant-first traversal therefore visits bits in strictly
// increasing order, which VBRWriter.Append relies on since it has no
// explicit index parameter.
func leafBitIndex(lx, ly, lz int) int {
	coarse := (lx >> 1) | (ly>>1)<<1 | (lz>>1)<<2
	fine := (lx & 1) | (ly&1)<<1 | (lz&1)<<2
	return coarse*8 + fine
}

// leafBitCoord is leafBitIndex's inverse.
func leafBitCoord(bit int) (lx, ly, lz int) {
	coarse := bit / 8
	fine := bit % 8
	lx = (coarse&1)<<1 | (fine & 1)
	ly = ((coarse>>1)&1)<<1 | ((fine>>1)&1)
	lz = ((coarse>>2)&1)<<1 | ((fine>>2)&1)
	return
}

// EditResult carries the updated roots from one Engine.Edit call.
// ColorRoot and HasColor are only meaningful when the supplied editor
// implemented VBREditor and a ColorPool was given.
type EditResult struct {
	NodeRoot  NodePointer
	ColorRoot ColorPointer
	HasColor  bool
}

// Engine runs an Editor or VBREditor over a NodePool (and optionally a
// paired ColorPool), per spec.md §4.3's recursive rewrite algorithm and
// §5's bounded fan-out.
type Engine struct {
	Scheduler         *Scheduler
	ParallelThreshold int
}

// NewEngine returns an Engine using scheduler and a threshold derived
// from cfg via DefaultParallelThreshold.
func NewEngine(scheduler *Scheduler, cfg NodePoolConfig) *Engine {
	return &Engine{Scheduler: scheduler, ParallelThreshold: DefaultParallelThreshold(cfg)}
}

// DefaultParallelThreshold returns the level below which Engine stops
// forking child edits out to the Scheduler and instead recurses
// in-line, per spec.md §5: forking at every level down to the leaves
// produces far more goroutines than the scheduler's worker budget can
// usefully absorb, so fan-out is restricted to the handful of levels
// near the root where subtree counts are still smaller than the
// parallelism budget.
func DefaultParallelThreshold(cfg NodePoolConfig) int {
	return cfg.TopLevelCount + 2
}

// Edit applies editor to nodePool (and colorPool, if editor implements
// VBREditor and colorPool is non-nil) and returns the new roots. It does
// not install the new roots; the caller does so via SetRoot once
// satisfied. A failed edit leaves both pools' roots unchanged, but nodes
// and color entries written before the failure stay in the pools, and
// with KeepHistory false a VBR leaf slot may already have been rewritten
// in place by ColorPool.SetLeaf.
func (e *Engine) Edit(editor interface{}, nodePool *NodePool, colorPool *ColorPool) (EditResult, error) {
	cfg := nodePool.Config()
	root := rootCoord(cfg)

	if vbr, ok := editor.(VBREditor); ok && colorPool != nil {
		color := Color{}
		newNode, newColor, err := e.rewriteFused(
			context.Background(), nodePool, colorPool, vbr, root,
			nodePool.Root(), colorPool.Root(), &color,
		)
		if err != nil {
			return EditResult{}, err
		}
		return EditResult{NodeRoot: newNode, ColorRoot: newColor, HasColor: true}, nil
	}

	plain, ok := editor.(Editor)
	if !ok {
		return EditResult{}, newEditorErrorf("editor implements neither Editor nor VBREditor")
	}
	newNode, err := e.rewritePlain(context.Background(), nodePool, plain, root, nodePool.Root())
	if err != nil {
		return EditResult{}, err
	}
	return EditResult{NodeRoot: newNode}, nil
}

// rewritePlain implements the geometry-only recursive rewrite.
func (e *Engine) rewritePlain(ctx context.Context, pool *NodePool, editor Editor, coord NodeCoord, ptr NodePointer) (NodePointer, error) {
	cfg := pool.Config()
	decision := editor.EditNode(coord, ptr)
	switch decision {
	case Unaffected:
		return ptr, nil
	case Clear:
		return NullPointer, nil
	case Fill:
		return FilledPointer, nil
	case Proceed:
		if coord.Level >= cfg.VoxelLevel() {
			return NullPointer, newEditorErrorf("Proceed returned below voxel level %d", cfg.VoxelLevel())
		}
	default:
		return NullPointer, newEditorErrorf("invalid EditDecision %v", decision)
	}

	if coord.Level == cfg.LeafLevel() {
		return e.rewriteLeafPlain(pool, editor, coord, ptr)
	}
	return e.rewriteInnerPlain(ctx, pool, editor, coord, ptr)
}

func (e *Engine) rewriteInnerPlain(ctx context.Context, pool *NodePool, editor Editor, coord NodeCoord, ptr NodePointer) (NodePointer, error) {
	children := pool.ReadChildren(coord.Level, ptr)
	var newChildren [8]NodePointer
	var errs [8]error

	run := func(i int) func(context.Context) error {
		return func(ctx context.Context) error {
			nc, err := e.rewritePlain(ctx, pool, editor, coord.child(i), children[i])
			newChildren[i], errs[i] = nc, err
			return err
		}
	}

	if err := e.fork(ctx, coord.Level, run); err != nil {
		return NullPointer, err
	}
	return normalizeOrUpsertInner(pool, coord.Level, newChildren)
}

func (e *Engine) rewriteLeafPlain(pool *NodePool, editor Editor, coord NodeCoord, ptr NodePointer) (NodePointer, error) {
	voxelLevel := pool.Config().VoxelLevel()
	bits64 := pool.ReadLeafBits(ptr)
	var out uint64
	for bit := 0; bit < 64; bit++ {
		lx, ly, lz := leafBitCoord(bit)
		vc := voxelCoord(voxelLevel, coord.Lower, lx, ly, lz)
		cur := bits64&(uint64(1)<<uint(bit)) != 0
		if editor.EditVoxel(vc, cur) {
			out |= uint64(1) << uint(bit)
		}
	}
	if np, ok := NormalizeLeaf(out); ok {
		return np, nil
	}
	words := EncodeLeaf(out)
	return pool.Upsert(coord.Level, words[:])
}

// fork runs the 8 octant closures either through the Scheduler (above
// ParallelThreshold) or in-line (at/below it), and returns the first
// error, matching errgroup's fail-fast semantics.
func (e *Engine) fork(ctx context.Context, level int, run func(i int) func(context.Context) error) error {
	if level < e.ParallelThreshold {
		fns := make([]func(context.Context) error, 8)
		for i := 0; i < 8; i++ {
			fns[i] = run(i)
		}
		return e.Scheduler.Fork(ctx, fns...)
	}
	for i := 0; i < 8; i++ {
		if err := run(i)(ctx); err != nil {
			return err
		}
	}
	return nil
}

func normalizeOrUpsertInner(pool *NodePool, level int, children [8]NodePointer) (NodePointer, error) {
	if np, ok := NormalizeInner(children); ok {
		return np, nil
	}
	return pool.Upsert(level, EncodeInnerNode(children))
}

// currentColorGuess derives a VBREditor's starting color guess for a
// subtree: its existing solid color if uniformly colored, or the zero
// value otherwise. A VBREditor that leaves the guess unchanged signals
// "no repaint" to rewriteFused; see the Unaffected case below.
func currentColorGuess(ptr ColorPointer) Color {
	if ptr.IsSolidColor() {
		return ColorFromBits(ptr.Data())
	}
	return Color{}
}

// rewriteFused implements the color-threaded recursive rewrite of
// spec.md §4.3/§4.4: geometry and color are decided together down to the
// color octree's own leaf level, below which rewriteColorLeaf takes over.
func (e *Engine) rewriteFused(
	ctx context.Context, pool *NodePool, colorPool *ColorPool, editor VBREditor,
	coord NodeCoord, nodePtr NodePointer, colorPtr ColorPointer, scratch *Color,
) (NodePointer, ColorPointer, error) {
	cfg := pool.Config()
	baseline := currentColorGuess(colorPtr)
	*scratch = baseline

	decision := editor.EditNode(coord, nodePtr, scratch)
	switch decision {
	case Unaffected:
		if *scratch == baseline {
			return nodePtr, colorPtr, nil
		}
		if scratch.Empty() {
			return nodePtr, NullColorPointer, nil
		}
		return nodePtr, SolidColorPointer(*scratch), nil
	case Clear:
		return NullPointer, NullColorPointer, nil
	case Fill:
		if scratch.Empty() {
			return FilledPointer, NullColorPointer, nil
		}
		return FilledPointer, SolidColorPointer(*scratch), nil
	case Proceed:
		if coord.Level >= cfg.VoxelLevel() {
			return NullPointer, NullColorPointer, newEditorErrorf("Proceed returned below voxel level %d", cfg.VoxelLevel())
		}
	default:
		return NullPointer, NullColorPointer, newEditorErrorf("invalid EditDecision %v", decision)
	}

	if coord.Level == colorPool.Config().LeafLevel {
		return e.rewriteColorLeaf(pool, colorPool, editor, coord, nodePtr, colorPtr)
	}
	return e.rewriteInnerFused(ctx, pool, colorPool, editor, coord, nodePtr, colorPtr)
}

func (e *Engine) rewriteInnerFused(
	ctx context.Context, pool *NodePool, colorPool *ColorPool, editor VBREditor,
	coord NodeCoord, nodePtr NodePointer, colorPtr ColorPointer,
) (NodePointer, ColorPointer, error) {
	nodeChildren := pool.ReadChildren(coord.Level, nodePtr)
	colorChildren := colorPool.ReadChildren(colorPtr)

	var newNodeChildren [8]NodePointer
	var newColorChildren [8]ColorPointer
	var errs [8]error

	run := func(i int) func(context.Context) error {
		return func(ctx context.Context) error {
			var scratch Color
			nn, nc, err := e.rewriteFused(ctx, pool, colorPool, editor, coord.child(i), nodeChildren[i], colorChildren[i], &scratch)
			newNodeChildren[i], newColorChildren[i], errs[i] = nn, nc, err
			return err
		}
	}

	if err := e.fork(ctx, coord.Level, run); err != nil {
		return NullPointer, NullColorPointer, err
	}

	newNode, err := normalizeOrUpsertInner(pool, coord.Level, newNodeChildren)
	if err != nil {
		return NullPointer, NullColorPointer, err
	}
	// An existing color node whose children all came back unchanged is
	// kept as is rather than appended again.
	if colorPtr.IsNode() && newColorChildren == colorChildren {
		return newNode, colorPtr, nil
	}
	newColor, err := normalizeOrAppendColorNode(colorPool, newColorChildren)
	if err != nil {
		return NullPointer, NullColorPointer, err
	}
	return newNode, newColor, nil
}

// normalizeColorChildren applies the color analogue of NormalizeInner:
// eight Null children collapse to Null, eight copies of the same solid
// color collapse to that solid color.
func normalizeColorChildren(children [8]ColorPointer) (ColorPointer, bool) {
	allNull, uniform := true, children[0].IsSolidColor()
	first := children[0]
	for _, c := range children {
		if !c.IsNull() {
			allNull = false
		}
		if c != first {
			uniform = false
		}
	}
	switch {
	case allNull:
		return NullColorPointer, true
	case uniform:
		return first, true
	default:
		return NullColorPointer, false
	}
}

func normalizeOrAppendColorNode(colorPool *ColorPool, children [8]ColorPointer) (ColorPointer, error) {
	if cp, ok := normalizeColorChildren(children); ok {
		return cp, nil
	}
	return colorPool.AppendNode(children)
}

// fusedLeafCollector threads sequential per-voxel color edits through
// the geometry recursion beneath a color leaf, feeding VBRWriter.Append
// in the same strictly-increasing order the geometry walk visits voxels
// in (see leafBitIndex). VBRWriter is inherently stateful and
// order-dependent, so this walk is never handed to the Scheduler.
type fusedLeafCollector struct {
	editor    VBREditor
	oldColors []Color
	idx       int
	writer    *VBRWriter
}

func (c *fusedLeafCollector) nextOldColor() Color {
	v := c.oldColors[c.idx]
	c.idx++
	return v
}

// oldColorSlice materializes the pre-edit color of every voxel under
// colorPtr, in canonical traversal order, without requiring colorPtr to
// already be a VBRLeaf.
func oldColorSlice(colorPool *ColorPool, colorPtr ColorPointer, total int) ([]Color, error) {
	switch {
	case colorPtr.IsNull():
		return make([]Color, total), nil
	case colorPtr.IsSolidColor():
		c := ColorFromBits(colorPtr.Data())
		out := make([]Color, total)
		for i := range out {
			out[i] = c
		}
		return out, nil
	case colorPtr.IsVBRLeaf():
		chunk, err := colorPool.ReadLeaf(colorPtr)
		if err != nil {
			return nil, err
		}
		return DecodeAllVoxels(chunk), nil
	default:
		return nil, newEditorErrorf("color leaf level %d holds a Node pointer", colorPool.Config().LeafLevel)
	}
}

func defaultMacroShift(total int) int {
	shift := 0
	for shift < 6 && (1<<uint(shift+1)) <= total {
		shift++
	}
	return shift
}

// uniformColor reports whether chunk encodes a single solid color (or is
// empty), letting rewriteColorLeaf collapse back to a SolidColor/Null
// pointer instead of allocating a VBRLeaf slot for a trivial chunk.
func uniformColor(chunk *VBRChunk) (Color, bool) {
	if chunk.VoxelCount == 0 {
		return Color{}, true
	}
	if len(chunk.Blocks) != 1 || chunk.Blocks[0].WBits != 0 {
		return Color{}, false
	}
	return chunk.Blocks[0].A, true
}

func solidifyOrStore(colorPool *ColorPool, existing ColorPointer, chunk *VBRChunk) (ColorPointer, error) {
	if c, ok := uniformColor(chunk); ok {
		if c.Empty() {
			return NullColorPointer, nil
		}
		return SolidColorPointer(c), nil
	}
	return colorPool.SetLeaf(existing, chunk)
}

// rewriteColorLeaf fuses the remainder of the geometry recursion (from
// the color octree's own leaf level down through the geometry leaf to
// individual voxels) with a single sequential VBR re-encode. Per
// DESIGN.md, Node-level Fill/Clear/Unaffected shortcutting is
// deliberately not attempted in this region: every voxel is visited
// individually via EditVoxel, matching spec.md §4.4's literal
// "decode the leaf, invoke edit_voxel per voxel" description.
func (e *Engine) rewriteColorLeaf(
	pool *NodePool, colorPool *ColorPool, editor VBREditor,
	coord NodeCoord, nodePtr NodePointer, colorPtr ColorPointer,
) (NodePointer, ColorPointer, error) {
	cfg := pool.Config()
	side := 1 << uint(cfg.VoxelLevel()-coord.Level)
	total := side * side * side

	oldColors, err := oldColorSlice(colorPool, colorPtr, total)
	if err != nil {
		return NullPointer, NullColorPointer, err
	}

	macroShift := defaultMacroShift(total)
	if colorPtr.IsVBRLeaf() {
		if chunk, err := colorPool.ReadLeaf(colorPtr); err == nil {
			macroShift = chunk.MacroShift
		}
	}

	collector := &fusedLeafCollector{editor: editor, oldColors: oldColors, writer: NewVBRWriter(macroShift)}

	newNode, err := e.rewriteGeomPerVoxel(pool, collector, coord.Level, coord, nodePtr)
	if err != nil {
		return NullPointer, NullColorPointer, err
	}

	chunk := collector.writer.Close()
	newColor, err := solidifyOrStore(colorPool, colorPtr, chunk)
	if err != nil {
		return NullPointer, NullColorPointer, err
	}
	return newNode, newColor, nil
}

// rewriteGeomPerVoxel descends the geometry octree unconditionally
// (no Editor.EditNode calls) from level down to the leaf, in canonical
// octant order, threading collector through every voxel.
func (e *Engine) rewriteGeomPerVoxel(pool *NodePool, collector *fusedLeafCollector, level int, coord NodeCoord, ptr NodePointer) (NodePointer, error) {
	cfg := pool.Config()
	if level == cfg.LeafLevel() {
		return e.rewriteLeafPerVoxel(pool, collector, coord, ptr)
	}
	children := pool.ReadChildren(level, ptr)
	var newChildren [8]NodePointer
	for i := 0; i < 8; i++ {
		nc, err := e.rewriteGeomPerVoxel(pool, collector, level+1, coord.child(i), children[i])
		if err != nil {
			return NullPointer, err
		}
		newChildren[i] = nc
	}
	return normalizeOrUpsertInner(pool, level, newChildren)
}

func (e *Engine) rewriteLeafPerVoxel(pool *NodePool, collector *fusedLeafCollector, coord NodeCoord, ptr NodePointer) (NodePointer, error) {
	voxelLevel := pool.Config().VoxelLevel()
	bits64 := pool.ReadLeafBits(ptr)
	var out uint64
	for bit := 0; bit < 64; bit++ {
		lx, ly, lz := leafBitCoord(bit)
		vc := voxelCoord(voxelLevel, coord.Lower, lx, ly, lz)
		cur := bits64&(uint64(1)<<uint(bit)) != 0

		color := collector.nextOldColor()
		occupied := collector.editor.EditVoxel(vc, cur, &color)
		if occupied {
			out |= uint64(1) << uint(bit)
			collector.writer.Append(color)
		} else {
			collector.writer.Append(Color{})
		}
	}
	if np, ok := NormalizeLeaf(out); ok {
		return np, nil
	}
	words := EncodeLeaf(out)
	return pool.Upsert(pool.Config().LeafLevel(), words[:])
}
