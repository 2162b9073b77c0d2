// Package config merges CLI flags, an optional hierarchical TOML config
// file, and host facts (CPU count, total memory) into one validated,
// immutable Config, or terminates the process with a diagnostic.
package config

import "time"

// Config is the fully resolved, validated node configuration. It is built
// once by Build, which leaves ClusterID unset; the caller fills ClusterID in
// after fetching it from PD, and nothing mutates the Config after that.
// Every component downstream receives a read-only reference to the same
// value.
type Config struct {
	ClusterID      uint64
	ListenAddr     string
	AdvertiseAddr  string
	DataDir        string
	BackupDir      string
	Labels         map[string]string
	PDEndpoints    []string

	Server   ServerConfig
	RaftStore RaftStoreConfig
	Storage  StorageConfig
	RocksDB  RocksDBConfig
	Metric   MetricConfig
}

// ServerConfig holds concurrency parameters for the gRPC-facing side of the
// node.
type ServerConfig struct {
	GRPCConcurrency      int
	GRPCStreamWindowSize int64
	GRPCRaftConnNum      int
	NotifyCapacity       int
	EndPointConcurrency  int
	CapacityBytes        int64
}

// RaftStoreConfig holds tick intervals, thresholds, and cadences for the
// raftstore event loop (referenced only by interface here; the loop itself
// lives outside this repository's scope).
type RaftStoreConfig struct {
	RaftBaseTickInterval     time.Duration
	RaftHeartbeatTicks       int
	RaftElectionTimeoutTicks int
	RaftLogGCThreshold       uint64
	RegionSplitSize          uint64
	RegionMaxSize            uint64
	PeerDownTimeout          time.Duration
	PDHeartbeatTickInterval  time.Duration
	SnapshotFileToggle       bool
}

// StorageConfig holds the transactional storage facade's scheduler
// parameters.
type StorageConfig struct {
	GCRatioThreshold         float64
	SchedulerQueueCapacity   int
	SchedulerWorkerPoolSize  int
	SchedulerPendingWriteThreshold int64
}

// CFOptions is the tuning surface for one column family.
type CFOptions struct {
	BlockCacheBytes       int64
	BlockSizeBytes        int64
	BloomFilterBitsPerKey int
	WholeKeyFiltering     bool
	CompactionPriority    int
	NoCompression         bool
	L0FileNumCompactionTrigger int
	MaxBytesForLevelBase  int64
	MemtablePrefixBloomSizeRatio float64
	PrefixExtractorFixedLen  int
	SuffixExtractorFixedLen  int
}

// RocksDBConfig holds global and per-CF engine tuning.
type RocksDBConfig struct {
	WALRecoveryMode        int
	WALDir                 string
	WALTTLSeconds          int64
	WALSizeLimitBytes      int64
	MaxTotalWALSizeBytes   int64
	MaxBackgroundJobs      int
	MaxManifestFileSizeBytes int64
	CreateIfMissing        bool
	MaxOpenFiles           int
	EnableStatistics       bool
	StatsDumpPeriod        time.Duration
	CompactionReadaheadSize int64
	InfoLogDir             string
	InfoLogMaxSizeBytes    int64
	InfoLogRollTime        time.Duration
	RateBytesPerSec        int64
	MaxSubCompactions      int
	WritableFileMaxBufferSizeBytes int64
	UseDirectIOForFlushAndCompaction bool
	EnablePipelinedWrite   bool

	DefaultCF CFOptions
	WriteCF   CFOptions
	LockCF    CFOptions
	RaftCF    CFOptions
}

// MetricConfig drives the metrics pusher.
type MetricConfig struct {
	Interval time.Duration
	Address  string
	Job      string
}

// HostFacts captures the host-level inputs the Resolver needs and cannot
// derive from CLI/file input: CPU count and total physical memory.
type HostFacts struct {
	CPUCount    int
	TotalMemory uint64
}
