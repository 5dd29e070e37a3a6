package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testNodePoolConfig() NodePoolConfig {
	return NodePoolConfig{
		LevelCount:               4,
		TopLevelCount:            1,
		WordBitsPerPage:          6,
		PageBitsPerBucket:        2,
		BucketBitsPerTopLevel:    2,
		BucketBitsPerBottomLevel: 3,
	}
}

func testColorPoolConfig(nodeCfg NodePoolConfig) ColorPoolConfig {
	cfg := DefaultColorPoolConfig()
	cfg.LeafLevel = nodeCfg.LeafLevel()
	cfg.NodeBitsPerNodePage = 4
	cfg.WordBitsPerLeafPage = 8
	cfg.NodePageCount = 64
	cfg.LeafPageCount = 64
	return cfg
}

func TestNodePoolConfigValidate(t *testing.T) {
	require.NoError(t, testNodePoolConfig().Validate())
	require.NoError(t, DefaultNodePoolConfig().Validate())

	t.Run("level count too small", func(t *testing.T) {
		cfg := testNodePoolConfig()
		cfg.LevelCount = 2
		require.Error(t, cfg.Validate())
	})

	t.Run("top level count out of range", func(t *testing.T) {
		cfg := testNodePoolConfig()
		cfg.TopLevelCount = cfg.LevelCount + 1
		require.Error(t, cfg.Validate())
	})

	t.Run("bucket bits inverted", func(t *testing.T) {
		cfg := testNodePoolConfig()
		cfg.BucketBitsPerTopLevel = cfg.BucketBitsPerBottomLevel + 1
		require.Error(t, cfg.Validate())
	})

	t.Run("capacity overflow", func(t *testing.T) {
		cfg := testNodePoolConfig()
		cfg.BucketBitsPerBottomLevel = 31
		cfg.BucketBitsPerTopLevel = 31
		require.Error(t, cfg.Validate())
	})
}

func TestNodePoolConfigDerived(t *testing.T) {
	cfg := testNodePoolConfig()
	require.Equal(t, cfg.LevelCount-1, cfg.LeafLevel())
	require.Equal(t, cfg.LevelCount+1, cfg.VoxelLevel())
	require.Equal(t, 1<<cfg.WordBitsPerPage, cfg.WordsPerPage())
	require.Equal(t, 1<<cfg.PageBitsPerBucket, cfg.PagesPerBucket())
	require.Equal(t, cfg.BucketBitsPerTopLevel, log2(cfg.BucketsAtLevel(0)))
	require.Equal(t, cfg.BucketBitsPerBottomLevel, log2(cfg.BucketsAtLevel(cfg.LevelCount-1)))
}

func log2(n int) int {
	bits := 0
	for n > 1 {
		n >>= 1
		bits++
	}
	return bits
}

func TestColorPoolConfigValidate(t *testing.T) {
	nodeCfg := testNodePoolConfig()
	cfg := testColorPoolConfig(nodeCfg)
	require.NoError(t, cfg.Validate(nodeCfg))

	t.Run("leaf level out of range", func(t *testing.T) {
		bad := cfg
		bad.LeafLevel = nodeCfg.LeafLevel() + 1
		require.Error(t, bad.Validate(nodeCfg))
	})

	t.Run("negative leaf level", func(t *testing.T) {
		bad := cfg
		bad.LeafLevel = -1
		require.Error(t, bad.Validate(nodeCfg))
	})

	t.Run("zero page counts", func(t *testing.T) {
		bad := cfg
		bad.NodePageCount = 0
		require.Error(t, bad.Validate(nodeCfg))
	})
}
