package hashdag

// octantOf returns which of coord's 8 children contains voxel p.
func octantOf(coord NodeCoord, p [3]uint32) int {
	oct := 0
	for axis := 0; axis < 3; axis++ {
		mid := (coord.Lower[axis] + coord.Upper[axis]) / 2
		if p[axis] >= mid {
			oct |= 1 << uint(axis)
		}
	}
	return oct
}

// voxelLinearIndex returns p's position, relative to coord's origin, in
// the canonical octant-first traversal order VBR chunks are written in
// (see leafBitIndex). coord must contain p.
func voxelLinearIndex(cfg NodePoolConfig, coord NodeCoord, p [3]uint32) int {
	if coord.Level == cfg.LeafLevel() {
		lx := int(p[0] - coord.Lower[0])
		ly := int(p[1] - coord.Lower[1])
		lz := int(p[2] - coord.Lower[2])
		return leafBitIndex(lx, ly, lz)
	}
	oct := octantOf(coord, p)
	side := 1 << uint(cfg.VoxelLevel()-(coord.Level+1))
	childVoxels := side * side * side
	return oct*childVoxels + voxelLinearIndex(cfg, coord.child(oct), p)
}

// ReadVoxel reports whether voxel p is occupied and, if colorPool is
// non-nil, its color. Used by tests and cmd/hashdagsmoke to verify
// edit-readback round-trips without requiring the caller to re-implement
// octree descent.
func ReadVoxel(nodePool *NodePool, colorPool *ColorPool, p [3]uint32) (bool, Color, error) {
	cfg := nodePool.Config()
	root := rootCoord(cfg)

	occupied, err := readOccupancy(nodePool, root, nodePool.Root(), p)
	if err != nil || colorPool == nil {
		return occupied, Color{}, err
	}
	color, err := readColor(nodePool, colorPool, root, colorPool.Root(), p)
	return occupied, color, err
}

func readOccupancy(pool *NodePool, coord NodeCoord, ptr NodePointer, p [3]uint32) (bool, error) {
	switch {
	case ptr.IsNull():
		return false, nil
	case ptr.IsFilled():
		return true, nil
	}

	cfg := pool.Config()
	if coord.Level == cfg.LeafLevel() {
		bits64 := pool.ReadLeafBits(ptr)
		lx := int(p[0] - coord.Lower[0])
		ly := int(p[1] - coord.Lower[1])
		lz := int(p[2] - coord.Lower[2])
		bit := leafBitIndex(lx, ly, lz)
		return bits64&(uint64(1)<<uint(bit)) != 0, nil
	}

	oct := octantOf(coord, p)
	children := pool.ReadChildren(coord.Level, ptr)
	return readOccupancy(pool, coord.child(oct), children[oct], p)
}

func readColor(pool *NodePool, colorPool *ColorPool, coord NodeCoord, ptr ColorPointer, p [3]uint32) (Color, error) {
	switch {
	case ptr.IsNull():
		return Color{}, nil
	case ptr.IsSolidColor():
		return ColorFromBits(ptr.Data()), nil
	case ptr.IsVBRLeaf():
		chunk, err := colorPool.ReadLeaf(ptr)
		if err != nil {
			return Color{}, err
		}
		idx := voxelLinearIndex(pool.Config(), coord, p)
		return DecodeVoxel(chunk, idx), nil
	case ptr.IsNode():
		oct := octantOf(coord, p)
		children := colorPool.ReadChildren(ptr)
		return readColor(pool, colorPool, coord.child(oct), children[oct], p)
	default:
		return Color{}, newEditorErrorf("unrecognized color tag")
	}
}
