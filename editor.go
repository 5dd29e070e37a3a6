package hashdag

// NodeCoord is the absolute voxel-space bounding box of one subtree
// during a descent, per spec.md §4.3/§9's "an implementer should treat
// edit_node(level, coord, ...)" signature; the original C++ source
// (`original_source/src/main.cpp`) threads the analogous value through
// every Editor call and derives its AABB from `GetLowerBoundAtLevel` /
// `GetUpperBoundAtLevel`. Here the bounds are carried directly rather
// than re-derived from level+config on every call.
type NodeCoord struct {
	Level int
	Lower [3]uint32
	Upper [3]uint32
}

func rootCoord(cfg NodePoolConfig) NodeCoord {
	side := uint32(1) << uint(cfg.VoxelLevel())
	return NodeCoord{Upper: [3]uint32{side, side, side}}
}

// child returns the bounding box of octant (0..7, z-y-x major per
// spec.md §4.2: bit 0 selects the x half, bit 1 the y half, bit 2 the z
// half).
func (c NodeCoord) child(octant int) NodeCoord {
	var mid [3]uint32
	for axis := 0; axis < 3; axis++ {
		mid[axis] = (c.Lower[axis] + c.Upper[axis]) / 2
	}
	out := NodeCoord{Level: c.Level + 1}
	for axis := 0; axis < 3; axis++ {
		if octant&(1<<uint(axis)) != 0 {
			out.Lower[axis], out.Upper[axis] = mid[axis], c.Upper[axis]
		} else {
			out.Lower[axis], out.Upper[axis] = c.Lower[axis], mid[axis]
		}
	}
	return out
}

// voxelCoord returns the unit-voxel NodeCoord of the (lx,ly,lz) voxel
// (each in [0,4)) inside a leaf whose lower corner is leafLower.
func voxelCoord(voxelLevel int, leafLower [3]uint32, lx, ly, lz int) NodeCoord {
	pos := [3]uint32{leafLower[0] + uint32(lx), leafLower[1] + uint32(ly), leafLower[2] + uint32(lz)}
	return NodeCoord{Level: voxelLevel, Lower: pos, Upper: [3]uint32{pos[0] + 1, pos[1] + 1, pos[2] + 1}}
}

// Contains reports whether p lies within c's box.
func (c NodeCoord) Contains(p [3]uint32) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < c.Lower[axis] || p[axis] >= c.Upper[axis] {
			return false
		}
	}
	return true
}

// EditDecision is an Editor's per-subtree verdict, per spec.md §4.3.
type EditDecision int

const (
	Unaffected EditDecision = iota
	Clear
	Fill
	Proceed
)

func (d EditDecision) String() string {
	switch d {
	case Unaffected:
		return "Unaffected"
	case Clear:
		return "Clear"
	case Fill:
		return "Fill"
	case Proceed:
		return "Proceed"
	default:
		return "Invalid"
	}
}

// Editor is the geometry-only capability set of spec.md §4.3/§6.
// Implementations must be pure: EditNode/EditVoxel must not mutate pool
// state or enqueue further edits.
type Editor interface {
	EditNode(coord NodeCoord, current NodePointer) EditDecision
	EditVoxel(coord NodeCoord, current bool) bool
}

// VBREditor is the color-extended capability set of spec.md §4.3: the
// same decisions, but threading a mutable Color through both methods so
// a geometry edit and its color are decided in one descent.
type VBREditor interface {
	EditNode(coord NodeCoord, current NodePointer, color *Color) EditDecision
	EditVoxel(coord NodeCoord, current bool, color *Color) bool
}

// aabbOverlaps reports whether box [lb,ub) intersects [min,max).
func aabbOverlaps(lb, ub, min, max [3]uint32) bool {
	for axis := 0; axis < 3; axis++ {
		if ub[axis] <= min[axis] || lb[axis] >= max[axis] {
			return false
		}
	}
	return true
}

// aabbContainsBox reports whether [lb,ub) lies entirely within [min,max).
func aabbContainsBox(lb, ub, min, max [3]uint32) bool {
	for axis := 0; axis < 3; axis++ {
		if lb[axis] < min[axis] || ub[axis] > max[axis] {
			return false
		}
	}
	return true
}

func aabbContainsPoint(p, min, max [3]uint32) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < min[axis] || p[axis] >= max[axis] {
			return false
		}
	}
	return true
}

// AABBEditor fills an axis-aligned box with Color, grounded on
// `original_source/src/main.cpp`'s AABBEditor.
type AABBEditor struct {
	Min, Max [3]uint32
	Color    Color
}

func (e AABBEditor) decide(coord NodeCoord) EditDecision {
	if !aabbOverlaps(coord.Lower, coord.Upper, e.Min, e.Max) {
		return Unaffected
	}
	if aabbContainsBox(coord.Lower, coord.Upper, e.Min, e.Max) {
		return Fill
	}
	return Proceed
}

func (e AABBEditor) inRange(p [3]uint32) bool { return aabbContainsPoint(p, e.Min, e.Max) }

func (e AABBEditor) EditNode(coord NodeCoord, _ NodePointer) EditDecision { return e.decide(coord) }

func (e AABBEditor) EditVoxel(coord NodeCoord, current bool) bool {
	return current || e.inRange(coord.Lower)
}

// EditNode (VBREditor) mirrors the plain geometry decision. color is
// authoritative only when the engine keeps it (Fill, or Unaffected with
// color left untouched); Proceed's color value is scratch the engine
// discards once it descends, so only the Fill case needs to set it.
func (e AABBEditor) editNodeColor(coord NodeCoord, _ NodePointer, color *Color) EditDecision {
	decision := e.decide(coord)
	if decision == Fill {
		*color = e.Color
	}
	return decision
}

func (e AABBEditor) editVoxelColor(coord NodeCoord, current bool, color *Color) bool {
	if e.inRange(coord.Lower) || !current {
		*color = e.Color
	}
	return current || e.inRange(coord.Lower)
}

// vbrAABBEditor adapts AABBEditor to the VBREditor interface; kept as a
// distinct type (rather than overloading AABBEditor's own method names,
// which Go forbids) so a caller picks fused or geometry-only editing by
// choosing which type to pass to Engine.Edit.
type vbrAABBEditor struct{ AABBEditor }

func (e vbrAABBEditor) EditNode(coord NodeCoord, ptr NodePointer, color *Color) EditDecision {
	return e.editNodeColor(coord, ptr, color)
}
func (e vbrAABBEditor) EditVoxel(coord NodeCoord, current bool, color *Color) bool {
	return e.editVoxelColor(coord, current, color)
}

// WithColor returns a VBREditor view of e, fusing geometry and color
// edits in one descent.
func (e AABBEditor) WithColor() VBREditor { return vbrAABBEditor{e} }

// sphereGeom is the shared geometric predicate of the original's
// SphereEditor<Mode> template, expressed as three concrete Go types
// (FillSphereEditor/DigSphereEditor/PaintSphereEditor) instead of a
// template, per DESIGN.md's editor.go entry.
type sphereGeom struct {
	Center   [3]uint32
	RadiusSq uint64
}

func sqDist(a, b uint32) uint64 {
	d := int64(a) - int64(b)
	return uint64(d * d)
}

func (s sphereGeom) maxDistSq(lb, ub [3]uint32) uint64 {
	var total uint64
	for axis := 0; axis < 3; axis++ {
		dl, du := sqDist(lb[axis], s.Center[axis]), sqDist(ub[axis], s.Center[axis])
		if du > dl {
			dl = du
		}
		total += dl
	}
	return total
}

func (s sphereGeom) minDistSq(lb, ub [3]uint32) uint64 {
	var total uint64
	for axis := 0; axis < 3; axis++ {
		if lb[axis] > s.Center[axis] {
			total += sqDist(lb[axis], s.Center[axis])
		} else if ub[axis] <= s.Center[axis] {
			total += sqDist(ub[axis], s.Center[axis])
		}
	}
	return total
}

func (s sphereGeom) contains(p [3]uint32) bool {
	var total uint64
	for axis := 0; axis < 3; axis++ {
		total += sqDist(p[axis], s.Center[axis])
	}
	return total <= s.RadiusSq
}

// FillSphereEditor fills a ball with Color.
type FillSphereEditor struct {
	sphereGeom
	Color Color
}

// NewFillSphereEditor returns a FillSphereEditor for the ball of squared
// radius radiusSq centered at center.
func NewFillSphereEditor(center [3]uint32, radiusSq uint64, color Color) FillSphereEditor {
	return FillSphereEditor{sphereGeom: sphereGeom{Center: center, RadiusSq: radiusSq}, Color: color}
}

func (e FillSphereEditor) decide(coord NodeCoord) EditDecision {
	if e.maxDistSq(coord.Lower, coord.Upper) <= e.RadiusSq {
		return Fill
	}
	if e.minDistSq(coord.Lower, coord.Upper) > e.RadiusSq {
		return Unaffected
	}
	return Proceed
}

func (e FillSphereEditor) EditNode(coord NodeCoord, _ NodePointer) EditDecision {
	return e.decide(coord)
}
func (e FillSphereEditor) EditVoxel(coord NodeCoord, current bool) bool {
	return current || e.contains(coord.Lower)
}

type vbrFillSphereEditor struct{ FillSphereEditor }

func (e vbrFillSphereEditor) EditNode(coord NodeCoord, _ NodePointer, color *Color) EditDecision {
	decision := e.decide(coord)
	if decision == Fill {
		*color = e.Color
	}
	return decision
}
func (e vbrFillSphereEditor) EditVoxel(coord NodeCoord, current bool, color *Color) bool {
	inRange := e.contains(coord.Lower)
	if inRange || !current {
		*color = e.Color
	}
	return current || inRange
}

// WithColor returns a VBREditor view of e.
func (e FillSphereEditor) WithColor() VBREditor { return vbrFillSphereEditor{e} }

// DigSphereEditor clears a ball. Geometry-only, with no color-threading
// variant, mirroring the original's SphereEditor<kDig> which is
// `static_assert`-forbidden from the color-threading overloads. Engine.Edit
// run with a plain Editor never touches the paired ColorPool, so the dug
// region's prior color stays associated with now-unoccupied voxels; since
// readback (ReadVoxel) only reports color for occupied voxels this is
// unobservable until something re-fills the hole without repainting it,
// at which point it should be treated as undefined and repainted explicitly.
type DigSphereEditor struct {
	sphereGeom
}

// NewDigSphereEditor returns a DigSphereEditor for the ball of squared
// radius radiusSq centered at center.
func NewDigSphereEditor(center [3]uint32, radiusSq uint64) DigSphereEditor {
	return DigSphereEditor{sphereGeom: sphereGeom{Center: center, RadiusSq: radiusSq}}
}

func (e DigSphereEditor) EditNode(coord NodeCoord, _ NodePointer) EditDecision {
	if e.maxDistSq(coord.Lower, coord.Upper) <= e.RadiusSq {
		return Clear
	}
	if e.minDistSq(coord.Lower, coord.Upper) > e.RadiusSq {
		return Unaffected
	}
	return Proceed
}
func (e DigSphereEditor) EditVoxel(coord NodeCoord, current bool) bool {
	return current && !e.contains(coord.Lower)
}

// PaintSphereEditor recolors voxels inside a ball without changing
// occupancy. It only ever touches subtrees that already hold geometry
// (ptr Null carries no color to paint over), so it is a VBREditor only.
type PaintSphereEditor struct {
	sphereGeom
	Color Color
}

// NewPaintSphereEditor returns a PaintSphereEditor for the ball of
// squared radius radiusSq centered at center.
func NewPaintSphereEditor(center [3]uint32, radiusSq uint64, color Color) PaintSphereEditor {
	return PaintSphereEditor{sphereGeom: sphereGeom{Center: center, RadiusSq: radiusSq}, Color: color}
}

// EditNode recolors without touching occupancy. A full-overlap subtree
// is repainted in place (Unaffected geometry, color replaced wholesale);
// a partial overlap must Proceed so only the voxels actually inside the
// ball get repainted.
func (e PaintSphereEditor) EditNode(coord NodeCoord, ptr NodePointer, color *Color) EditDecision {
	if ptr.IsNull() {
		return Unaffected
	}
	switch {
	case e.maxDistSq(coord.Lower, coord.Upper) <= e.RadiusSq:
		*color = e.Color
		return Unaffected
	case e.minDistSq(coord.Lower, coord.Upper) > e.RadiusSq:
		return Unaffected
	default:
		return Proceed
	}
}

func (e PaintSphereEditor) EditVoxel(coord NodeCoord, current bool, color *Color) bool {
	if current && e.contains(coord.Lower) {
		*color = e.Color
	}
	return current
}
