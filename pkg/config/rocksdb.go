package config

import "time"

// resolveRocksDB derives global and per-CF engine tuning from the config
// file and total host memory.
func resolveRocksDB(file map[string]any, totalMemory uint64) (RocksDBConfig, error) {
	defaultBytes, writeBytes, raftBytes, lockBytes, err := cfCacheSizes(totalMemory)
	if err != nil {
		return RocksDBConfig{}, err
	}

	cfg := RocksDBConfig{
		WALRecoveryMode:                  intOrDefault(file, "rocksdb.wal-recovery-mode", 2),
		WALDir:                           stringOrEmpty(file, "rocksdb.wal-dir"),
		WALTTLSeconds:                    int64OrDefault(file, "rocksdb.wal-ttl-seconds", 0),
		WALSizeLimitBytes:                AlignToMB(int64OrDefault(file, "rocksdb.wal-size-limit", 0)),
		MaxTotalWALSizeBytes:             int64OrDefault(file, "rocksdb.max-total-wal-size", 4*gb),
		MaxBackgroundJobs:                intOrDefault(file, "rocksdb.max-background-jobs", 6),
		MaxManifestFileSizeBytes:         int64OrDefault(file, "rocksdb.max-manifest-file-size", 20*mb),
		CreateIfMissing:                  boolOrDefault(file, "rocksdb.create-if-missing", true),
		MaxOpenFiles:                     intOrDefault(file, "rocksdb.max-open-files", 40960),
		EnableStatistics:                 boolOrDefault(file, "rocksdb.enable-statistics", true),
		StatsDumpPeriod:                  time.Duration(intOrDefault(file, "rocksdb.stats-dump-period-sec", 600)) * time.Second,
		CompactionReadaheadSize:          int64OrDefault(file, "rocksdb.compaction-readahead-size", 0),
		InfoLogDir:                       stringOrEmpty(file, "rocksdb.info-log-dir"),
		InfoLogMaxSizeBytes:              int64OrDefault(file, "rocksdb.info-log-max-size", 0),
		InfoLogRollTime:                  durationOrDefault(file, "rocksdb.info-log-roll-time", 0),
		RateBytesPerSec:                  int64OrDefault(file, "rocksdb.rate-bytes-per-sec", 0),
		MaxSubCompactions:                intOrDefault(file, "rocksdb.max-sub-compactions", 1),
		WritableFileMaxBufferSizeBytes:   int64OrDefault(file, "rocksdb.writable-file-max-buffer-size", 1*mb),
		UseDirectIOForFlushAndCompaction: boolOrDefault(file, "rocksdb.use-direct-io-for-flush-and-compaction", false),
		EnablePipelinedWrite:             boolOrDefault(file, "rocksdb.enable-pipelined-write", true),
	}

	// default: bloom filter + whole-key filtering, min-overlapping-ratio
	// compaction priority. No table-properties collector is configured.
	cfg.DefaultCF = CFOptions{
		BlockCacheBytes:       defaultBytes,
		BlockSizeBytes:        int64OrDefault(file, "rocksdb.defaultcf.block-size", 64*kb),
		BloomFilterBitsPerKey: intOrDefault(file, "rocksdb.defaultcf.bloom-filter-bits-per-key", 10),
		WholeKeyFiltering:     true,
		CompactionPriority:    3, // min-overlapping-ratio
	}

	// write: as default but whole-key filtering off, 8-byte suffix extractor
	// stripping the MVCC timestamp tail, memtable prefix-bloom ratio 0.1.
	// No table-properties collectors are configured.
	cfg.WriteCF = CFOptions{
		BlockCacheBytes:              writeBytes,
		BlockSizeBytes:               int64OrDefault(file, "rocksdb.writecf.block-size", 64*kb),
		BloomFilterBitsPerKey:        intOrDefault(file, "rocksdb.writecf.bloom-filter-bits-per-key", 10),
		WholeKeyFiltering:            false,
		CompactionPriority:           3,
		SuffixExtractorFixedLen:      8,
		MemtablePrefixBloomSizeRatio: 0.1,
	}

	// raft: fixed-length prefix extractor matching the Raft key prefix
	// length, installed as the CF's ordinary prefix extractor; no memtable
	// insert-hint extractor is set.
	cfg.RaftCF = CFOptions{
		BlockCacheBytes:         raftBytes,
		BlockSizeBytes:          int64OrDefault(file, "rocksdb.raftcf.block-size", 16*kb),
		PrefixExtractorFixedLen: intOrDefault(file, "rocksdb.raftcf.prefix-extractor-fixed-len", 8),
	}

	// lock: small block size, no compression on any level, eager
	// compaction, bloom filter plus memtable prefix bloom. No prefix
	// extractor is set for this CF.
	cfg.LockCF = CFOptions{
		BlockCacheBytes:              lockBytes,
		BlockSizeBytes:               16 * kb,
		BloomFilterBitsPerKey:        intOrDefault(file, "rocksdb.lockcf.bloom-filter-bits-per-key", 10),
		WholeKeyFiltering:            true,
		NoCompression:                true,
		L0FileNumCompactionTrigger:   1,
		MaxBytesForLevelBase:         128 * mb,
		MemtablePrefixBloomSizeRatio: 0.1,
	}

	return cfg, nil
}
