package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = 1024 * 1024 * 1024

func TestCFCacheSizesAutoScaling(t *testing.T) {
	// 32 CPU, 64 GiB RAM. write_cf is computed here as 64 GiB * 0.15 = 9.6
	// GiB (MiB-aligned); see DESIGN.md for why this isn't rounded to 9 GiB.
	totalMem := uint64(64 * gib)

	defaultCF, writeCF, raftCF, lockCF, err := cfCacheSizes(totalMem)
	require.NoError(t, err)

	assert.Equal(t, int64(16*gib), defaultCF)
	assert.InDelta(t, float64(9.6*gib), float64(writeCF), float64(1024*1024))
	assert.InDelta(t, float64(1.28*gib), float64(raftCF), float64(1024*1024))
	assert.Equal(t, int64(1*gib), lockCF) // clamped down from 1.28 GiB

	assert.LessOrEqual(t, defaultCF+writeCF+raftCF+lockCF, int64(totalMem))
}

func TestCFCacheSizesAreMiBAligned(t *testing.T) {
	for _, totalMem := range []uint64{1 * gib, 3*gib + 17, 100 * gib, 777} {
		defaultCF, writeCF, raftCF, lockCF, err := cfCacheSizes(totalMem)
		require.NoError(t, err)
		for _, size := range []int64{defaultCF, writeCF, raftCF, lockCF} {
			assert.Zero(t, size%(1024*1024), "size %d not MiB-aligned", size)
		}
	}
}

func TestRaftAndLockCacheClamps(t *testing.T) {
	// Tiny host: everything should clamp up to the minimums.
	defaultCF, _, raftCF, lockCF, err := cfCacheSizes(1 * 1024 * 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(raftCFMinMem), raftCF)
	assert.Equal(t, int64(lockCFMinMem), lockCF)
	assert.GreaterOrEqual(t, defaultCF, int64(0))

	// Huge host: raft/lock should clamp down to the maximums.
	_, _, raftCF, lockCF, err = cfCacheSizes(10000 * uint64(gib))
	require.NoError(t, err)
	assert.Equal(t, int64(raftCFMaxMem), raftCF)
	assert.Equal(t, int64(lockCFMaxMem), lockCF)
}

func TestAdjustEndPointConcurrency(t *testing.T) {
	assert.Equal(t, 25, AdjustEndPointConcurrency(32))
	assert.Equal(t, 4, AdjustEndPointConcurrency(1))
	assert.Equal(t, 4, AdjustEndPointConcurrency(7))
	assert.Equal(t, 6, AdjustEndPointConcurrency(8))
}

func TestAlignToMB(t *testing.T) {
	assert.Equal(t, int64(0), AlignToMB(1024*1023))
	assert.Equal(t, int64(1024*1024), AlignToMB(1024*1024+500))
	assert.Equal(t, int64(2*1024*1024), AlignToMB(2*1024*1024))
}
