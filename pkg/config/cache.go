package config

// defaultBlockCacheRatio is the fixed per-CF share of total host memory for
// [default, write, raft, lock].
var defaultBlockCacheRatio = [4]float64{0.25, 0.15, 0.02, 0.02}

const (
	raftCFMinMem = 256 * mb
	raftCFMaxMem = 2 * gb
	lockCFMinMem = 256 * mb
	lockCFMaxMem = 1 * gb
)

// SanitizeMemoryUsage reports whether the sum of the fixed block-cache
// ratios is within budget (≤ 1.0 of total host memory).
func SanitizeMemoryUsage() bool {
	var sum float64
	for _, r := range defaultBlockCacheRatio {
		sum += r
	}
	return sum <= 1.0
}

// adjustBlockCacheSize clamps cacheSize into [minLimit, maxLimit].
func adjustBlockCacheSize(cacheSize, minLimit, maxLimit int64) int64 {
	if cacheSize < minLimit {
		return minLimit
	}
	if cacheSize > maxLimit {
		return maxLimit
	}
	return cacheSize
}

// cfCacheSizes computes the block cache size in bytes for
// [default, write, raft, lock] given totalMemory, applying the fixed ratio
// vector, MiB alignment, and the raft/lock clamps.
func cfCacheSizes(totalMemory uint64) (defaultCF, writeCF, raftCF, lockCF int64, err error) {
	if !SanitizeMemoryUsage() {
		return 0, 0, 0, 0, fatalf("sum of block cache ratios exceeds 1.0")
	}

	total := int64(totalMemory)
	defaultCF = AlignToMB(int64(float64(total) * defaultBlockCacheRatio[0]))
	writeCF = AlignToMB(int64(float64(total) * defaultBlockCacheRatio[1]))

	raftCF = AlignToMB(int64(float64(total) * defaultBlockCacheRatio[2]))
	raftCF = adjustBlockCacheSize(raftCF, raftCFMinMem, raftCFMaxMem)

	lockCF = AlignToMB(int64(float64(total) * defaultBlockCacheRatio[3]))
	lockCF = adjustBlockCacheSize(lockCF, lockCFMinMem, lockCFMaxMem)

	return defaultCF, writeCF, raftCF, lockCF, nil
}

// AdjustEndPointConcurrency auto-scales end-point-concurrency from the host
// CPU count: floor(0.8 * cpuCount) once there are at least 8 CPUs, else a
// flat 4 (not a continuous function below the 8-CPU cutoff).
func AdjustEndPointConcurrency(cpuCount int) int {
	if cpuCount >= 8 {
		return int(float32(cpuCount) * 0.8)
	}
	return 4
}
