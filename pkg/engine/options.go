package engine

import (
	"github.com/linxGnu/grocksdb"

	"github.com/cuemby/stratakv/pkg/config"
)

// walRecoveryMode translates the resolver's integer WAL recovery mode
// (config.RocksDBConfig.WALRecoveryMode, 0-3) into the engine's enum. The
// resolver's numbering is the node's own contract, not the underlying
// engine's native enum ordering, so this mapping is explicit rather than a
// direct cast.
func walRecoveryMode(n int) grocksdb.WALRecoveryMode {
	switch n {
	case 0:
		return grocksdb.AbsoluteConsistencyRecovery
	case 1:
		return grocksdb.PointInTimeRecovery
	case 2:
		return grocksdb.TolerateCorruptedTailRecordsRecovery
	case 3:
		return grocksdb.SkipAnyCorruptedRecordsRecovery
	default:
		return grocksdb.PointInTimeRecovery
	}
}

// buildGlobalOptions translates the resolved RocksDB config into DB-wide
// grocksdb.Options shared by every CF at open time.
func buildGlobalOptions(cfg config.RocksDBConfig) *grocksdb.Options {
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(cfg.CreateIfMissing)
	opts.SetCreateIfMissingColumnFamilies(true)
	opts.SetWALRecoveryMode(walRecoveryMode(cfg.WALRecoveryMode))
	if cfg.WALDir != "" {
		opts.SetWalDir(cfg.WALDir)
	}
	if cfg.WALTTLSeconds > 0 {
		opts.SetWALTtlSeconds(uint64(cfg.WALTTLSeconds))
	}
	if cfg.WALSizeLimitBytes > 0 {
		opts.SetWALSizeLimitMb(uint64(cfg.WALSizeLimitBytes / (1024 * 1024)))
	}
	if cfg.MaxTotalWALSizeBytes > 0 {
		opts.SetMaxTotalWalSize(uint64(cfg.MaxTotalWALSizeBytes))
	}
	if cfg.MaxBackgroundJobs > 0 {
		opts.SetMaxBackgroundJobs(cfg.MaxBackgroundJobs)
	}
	if cfg.MaxManifestFileSizeBytes > 0 {
		opts.SetMaxManifestFileSize(uint64(cfg.MaxManifestFileSizeBytes))
	}
	if cfg.MaxOpenFiles != 0 {
		opts.SetMaxOpenFiles(cfg.MaxOpenFiles)
	}
	if cfg.EnableStatistics {
		opts.EnableStatistics()
		if cfg.StatsDumpPeriod > 0 {
			opts.SetStatsDumpPeriodSec(uint(cfg.StatsDumpPeriod.Seconds()))
		}
	}
	if cfg.CompactionReadaheadSize > 0 {
		opts.SetCompactionReadaheadSize(uint64(cfg.CompactionReadaheadSize))
	}
	if cfg.InfoLogDir != "" {
		opts.SetDbLogDir(cfg.InfoLogDir)
	}
	if cfg.InfoLogMaxSizeBytes > 0 {
		opts.SetMaxLogFileSize(uint64(cfg.InfoLogMaxSizeBytes))
	}
	if cfg.InfoLogRollTime > 0 {
		opts.SetLogFileTimeToRoll(uint64(cfg.InfoLogRollTime.Seconds()))
	}
	if cfg.RateBytesPerSec > 0 {
		opts.SetRateLimiter(grocksdb.NewRateLimiter(uint64(cfg.RateBytesPerSec), 100*1000, 10))
	}
	if cfg.MaxSubCompactions > 0 {
		opts.SetMaxSubCompactions(uint32(cfg.MaxSubCompactions))
	}
	if cfg.WritableFileMaxBufferSizeBytes > 0 {
		opts.SetWritableFileMaxBufferSize(int(cfg.WritableFileMaxBufferSizeBytes))
	}
	opts.SetUseDirectIOForFlushAndCompaction(cfg.UseDirectIOForFlushAndCompaction)
	if cfg.EnablePipelinedWrite {
		opts.SetEnablePipelinedWrite(true)
	}
	return opts
}

// buildCFOptions translates one CF's tuning surface into grocksdb.Options,
// including its dedicated block cache and bloom filter.
func buildCFOptions(cf config.CFOptions) *grocksdb.Options {
	opts := grocksdb.NewDefaultOptions()

	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	if cf.BlockCacheBytes > 0 {
		bbto.SetBlockCache(grocksdb.NewLRUCache(uint64(cf.BlockCacheBytes)))
	}
	if cf.BlockSizeBytes > 0 {
		bbto.SetBlockSize(int(cf.BlockSizeBytes))
	}
	if cf.BloomFilterBitsPerKey > 0 {
		bbto.SetFilterPolicy(grocksdb.NewBloomFilter(float64(cf.BloomFilterBitsPerKey)))
	}
	bbto.SetWholeKeyFiltering(cf.WholeKeyFiltering)
	opts.SetBlockBasedTableFactory(bbto)

	if cf.NoCompression {
		opts.SetCompression(grocksdb.NoCompression)
	}
	opts.SetCompactionPriority(grocksdb.CompactionPriority(cf.CompactionPriority))

	if cf.L0FileNumCompactionTrigger > 0 {
		opts.SetLevel0FileNumCompactionTrigger(cf.L0FileNumCompactionTrigger)
	}
	if cf.MaxBytesForLevelBase > 0 {
		opts.SetMaxBytesForLevelBase(uint64(cf.MaxBytesForLevelBase))
	}
	if cf.MemtablePrefixBloomSizeRatio > 0 {
		opts.SetMemtablePrefixBloomSizeRatio(cf.MemtablePrefixBloomSizeRatio)
	}

	switch {
	case cf.SuffixExtractorFixedLen > 0:
		opts.SetPrefixExtractor(newFixedSuffixTransform(cf.SuffixExtractorFixedLen))
	case cf.PrefixExtractorFixedLen > 0:
		opts.SetPrefixExtractor(grocksdb.NewFixedPrefixTransform(cf.PrefixExtractorFixedLen))
	}

	return opts
}
