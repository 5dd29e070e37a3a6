package hashdag

// NodePoolConfig parameterizes a NodePool's address space and bucketing
// scheme, per spec.md §6.
//
// A NodePool has LevelCount node/leaf levels, numbered 0 (root) through
// LevelCount-1 (the 4x4x4 leaf level). The implied voxel resolution is
// 2^(LevelCount+1) voxels per axis: each of the LevelCount-1 steps from
// the root down to the leaf level halves the side length once, and the
// leaf level itself packs a 4x4x4 = 2^2 block, i.e. two more halvings
// below the last stored level.
type NodePoolConfig struct {
	// LevelCount is the number of node-pool levels, including the leaf
	// level. Must be >= 3 (root, at least one inner level, leaf).
	LevelCount int

	// TopLevelCount is the number of levels (starting at the root) that
	// use BucketBitsPerTopLevel for their bucket count. The remaining
	// LevelCount-TopLevelCount levels use BucketBitsPerBottomLevel.
	TopLevelCount int

	// WordBitsPerPage is log2 of the number of 32-bit words per page.
	WordBitsPerPage int

	// PageBitsPerBucket is log2 of the number of pages per bucket.
	PageBitsPerBucket int

	// BucketBitsPerTopLevel is log2 of the bucket count at each of the
	// top TopLevelCount levels.
	BucketBitsPerTopLevel int

	// BucketBitsPerBottomLevel is log2 of the bucket count at each of
	// the remaining (bottom) levels. Must be >= BucketBitsPerTopLevel.
	BucketBitsPerBottomLevel int
}

// DefaultNodePoolConfig returns the production-scale configuration: L=17
// (2^17 voxels per axis), few buckets near the root, many near the leaves.
func DefaultNodePoolConfig() NodePoolConfig {
	return NodePoolConfig{
		LevelCount:               16,
		TopLevelCount:            4,
		WordBitsPerPage:          12, // 4096 words/page
		PageBitsPerBucket:        4,  // 16 pages/bucket
		BucketBitsPerTopLevel:    7,  // 128 buckets/level near the root
		BucketBitsPerBottomLevel: 11, // 2048 buckets/level near the leaves
	}
}

// Validate checks the invariants spec.md §6 requires of a NodePoolConfig.
func (c NodePoolConfig) Validate() error {
	if c.LevelCount < 3 {
		return newConfigErrorf("level_count must be >= 3, got %d", c.LevelCount)
	}
	if c.TopLevelCount < 0 || c.TopLevelCount > c.LevelCount {
		return newConfigErrorf("top_level_count %d out of range [0, %d]", c.TopLevelCount, c.LevelCount)
	}
	if c.BucketBitsPerTopLevel > c.BucketBitsPerBottomLevel {
		return newConfigErrorf(
			"bucket_bits_per_top_level (%d) must be <= bucket_bits_per_bottom_level (%d)",
			c.BucketBitsPerTopLevel, c.BucketBitsPerBottomLevel,
		)
	}
	if c.WordBitsPerPage <= 0 || c.PageBitsPerBucket < 0 {
		return newConfigErrorf("word_bits_per_page must be positive and page_bits_per_bucket non-negative")
	}

	totalBuckets := uint64(0)
	for level := 0; level < c.LevelCount; level++ {
		totalBuckets += uint64(1) << c.bucketBitsAtLevel(level)
	}
	wordsPerBucket := uint64(1) << (c.WordBitsPerPage + c.PageBitsPerBucket)
	totalWords := totalBuckets * wordsPerBucket
	// Real addresses run [0, maxNodeAddress]; capacity above that collides
	// with the Null/Filled sentinels reserved at the top of the address space.
	if totalWords > uint64(maxNodeAddress)+1 {
		return newConfigErrorf("total word capacity %d collides with the Null/Filled sentinel addresses (max %d)", totalWords, maxNodeAddress)
	}
	return nil
}

// LeafLevel returns the level at which nodes are 4x4x4 leaf blocks.
func (c NodePoolConfig) LeafLevel() int { return c.LevelCount - 1 }

// VoxelLevel returns the conceptual per-bit level below the leaf level.
func (c NodePoolConfig) VoxelLevel() int { return c.LevelCount + 1 }

// WordsPerPage returns the number of 32-bit words in one page.
func (c NodePoolConfig) WordsPerPage() int { return 1 << c.WordBitsPerPage }

// PagesPerBucket returns the number of pages in one bucket.
func (c NodePoolConfig) PagesPerBucket() int { return 1 << c.PageBitsPerBucket }

// WordsPerBucket returns the number of words spanned by one bucket.
func (c NodePoolConfig) WordsPerBucket() int { return c.WordsPerPage() * c.PagesPerBucket() }

func (c NodePoolConfig) bucketBitsAtLevel(level int) int {
	if level < c.TopLevelCount {
		return c.BucketBitsPerTopLevel
	}
	return c.BucketBitsPerBottomLevel
}

// BucketsAtLevel returns the number of buckets assigned to level.
func (c NodePoolConfig) BucketsAtLevel(level int) int { return 1 << c.bucketBitsAtLevel(level) }

// levelBase returns the index of the first bucket assigned to level,
// i.e. the cumulative bucket count of all levels before it.
func (c NodePoolConfig) levelBase(level int) int {
	base := 0
	for l := 0; l < level; l++ {
		base += c.BucketsAtLevel(l)
	}
	return base
}

// totalBuckets returns the total number of buckets across all levels.
func (c NodePoolConfig) totalBuckets() int { return c.levelBase(c.LevelCount) }

// totalPages returns the total number of pages in the pool's address space.
func (c NodePoolConfig) totalPages() int { return c.totalBuckets() * c.PagesPerBucket() }

// ColorPoolConfig parameterizes a ColorPool's two backing PagedStores and
// its rewrite policy, per spec.md §6.
type ColorPoolConfig struct {
	// LeafLevel is the color octree's own leaf level K <= L-2, the level
	// at which a VBRLeaf pointer terminates the descent.
	LeafLevel int

	// NodeBitsPerNodePage is log2 of the number of 8-word color-node
	// entries per page in the color node PagedStore.
	NodeBitsPerNodePage int

	// WordBitsPerLeafPage is log2 of the number of 32-bit words per page
	// in the VBR leaf PagedStore.
	WordBitsPerLeafPage int

	// KeepHistory disables the same-slot leaf reuse fast path (required
	// for undo, incompatible with the stream GC skipping orphaned leaves).
	KeepHistory bool

	// NodePageCount and LeafPageCount size the two backing PagedStores'
	// address spaces. Unlike NodePool, the color octree's bucket layout
	// isn't level-partitioned, so these are plain capacities rather than
	// a derived quantity.
	NodePageCount int
	LeafPageCount int
}

// DefaultColorPoolConfig returns a color pool configuration matched to
// DefaultNodePoolConfig's leaf level.
func DefaultColorPoolConfig() ColorPoolConfig {
	return ColorPoolConfig{
		LeafLevel:           DefaultNodePoolConfig().LeafLevel(),
		NodeBitsPerNodePage: 10, // 1024 color-node entries/page
		WordBitsPerLeafPage: 14,
		KeepHistory:         false,
		NodePageCount:       1 << 12,
		LeafPageCount:       1 << 14,
	}
}

func (c ColorPoolConfig) Validate(nodeCfg NodePoolConfig) error {
	if c.LeafLevel < 0 || c.LeafLevel > nodeCfg.LeafLevel() {
		return newConfigErrorf("color leaf_level %d must be in [0, %d]", c.LeafLevel, nodeCfg.LeafLevel())
	}
	if c.NodeBitsPerNodePage <= 0 || c.WordBitsPerLeafPage <= 0 {
		return newConfigErrorf("node_bits_per_node_page and word_bits_per_leaf_page must be positive")
	}
	if c.NodePageCount <= 0 || c.LeafPageCount <= 0 {
		return newConfigErrorf("node_page_count and leaf_page_count must be positive")
	}
	return nil
}

// wordsPerNodePage returns the number of words in one color-node page
// (8 words per tagged-pointer node entry).
func (c ColorPoolConfig) wordsPerNodePage() int { return (1 << c.NodeBitsPerNodePage) * 8 }

func (c ColorPoolConfig) wordsPerLeafPage() int { return 1 << c.WordBitsPerLeafPage }
