package config

import (
	"os"
	"path/filepath"
	"time"
)

var tempDir = os.TempDir

// Build merges cli, the decoded contents of an optional TOML config file,
// and host into one validated Config. file may be nil if no config file was
// given. Every error returned here is a fatal configuration error; callers
// (the CLI entry point) log it and exit 1 rather than attempt to continue.
func Build(cli CLI, file map[string]any, host HostFacts) (*Config, error) {
	if file == nil {
		file = map[string]any{}
	}

	cfg := &Config{}

	listenAddr, err := resolveListenAddr(cli, file)
	if err != nil {
		return nil, err
	}
	cfg.ListenAddr = listenAddr

	advertiseAddr, err := resolveAdvertiseAddr(cli, file, listenAddr)
	if err != nil {
		return nil, err
	}
	cfg.AdvertiseAddr = advertiseAddr

	dataDir, err := resolveDataDir(cli, file)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir

	backupDir, err := resolveBackupDir(file, dataDir)
	if err != nil {
		return nil, err
	}
	cfg.BackupDir = backupDir

	labelsStr := firstNonEmpty(derefOrEmpty(cli.Labels), stringOrEmpty(file, "server.labels"))
	labels, err := ParseLabels(labelsStr)
	if err != nil {
		return nil, err
	}
	cfg.Labels = labels

	pdStr := derefOrEmpty(cli.PDEndpoints)
	if pdStr == "" {
		pdStr = stringOrEmpty(file, "pd.endpoints")
	}
	if pdStr != "" {
		endpoints, err := ParsePDEndpoints(pdStr)
		if err != nil {
			return nil, err
		}
		cfg.PDEndpoints = endpoints
	}

	capacity, err := resolveCapacity(cli, file)
	if err != nil {
		return nil, err
	}
	cfg.Server.CapacityBytes = capacity
	cfg.Server.GRPCConcurrency = intOrDefault(file, "server.grpc-concurrency", 4)
	cfg.Server.GRPCStreamWindowSize = int64OrDefault(file, "server.grpc-stream-initial-window-size", 2*1024*1024)
	cfg.Server.GRPCRaftConnNum = intOrDefault(file, "server.grpc-raft-conn-num", 10)
	cfg.Server.NotifyCapacity = intOrDefault(file, "server.notify-capacity", 40960)

	if v, ok, err := intOpt(file, "server.end-point-concurrency"); err != nil {
		return nil, err
	} else if ok {
		cfg.Server.EndPointConcurrency = int(v)
	} else {
		cfg.Server.EndPointConcurrency = AdjustEndPointConcurrency(host.CPUCount)
	}

	cfg.RaftStore = resolveRaftStore(file)
	cfg.Storage = resolveStorage(file)

	rocksCfg, err := resolveRocksDB(file, host.TotalMemory)
	if err != nil {
		return nil, err
	}
	cfg.RocksDB = rocksCfg

	cfg.Metric = MetricConfig{
		Interval: durationOrDefault(file, "metric.interval", 0),
		Address:  stringOrEmpty(file, "metric.address"),
		Job:      firstNonEmpty(stringOrEmpty(file, "metric.job"), "stratakv"),
	}

	return cfg, nil
}

func resolveListenAddr(cli CLI, file map[string]any) (string, error) {
	addr := derefOrEmpty(cli.ListenAddr)
	if addr == "" {
		addr = stringOrEmpty(file, "server.addr")
	}
	if addr == "" {
		addr = "127.0.0.1:20160"
	}
	if err := CheckAddr(addr); err != nil {
		return "", err
	}
	return addr, nil
}

func resolveAdvertiseAddr(cli CLI, file map[string]any, listenAddr string) (string, error) {
	addr := derefOrEmpty(cli.AdvertiseAddr)
	if addr == "" {
		addr = stringOrEmpty(file, "server.advertise-addr")
	}
	if addr == "" {
		addr = listenAddr
	}
	if err := CheckAdvertiseAddr(addr); err != nil {
		return "", err
	}
	return addr, nil
}

func resolveDataDir(cli CLI, file map[string]any) (string, error) {
	dir := derefOrEmpty(cli.DataDir)
	if dir == "" {
		dir = stringOrEmpty(file, "server.data-dir")
	}
	if dir == "" {
		dir = stringOrEmpty(file, "server.store")
	}
	if dir == "" {
		return tempDir(), nil
	}
	return canonicalizePath(dir)
}

func resolveBackupDir(file map[string]any, dataDir string) (string, error) {
	backup := stringOrEmpty(file, "server.backup-dir")
	if backup == "" {
		backup = stringOrEmpty(file, "server.backup")
	}
	if backup == "" && dataDir != tempDir() {
		backup = filepath.Join(dataDir, "backup")
	}
	if backup == "" {
		return "", nil
	}
	return canonicalizePath(backup)
}

func resolveCapacity(cli CLI, file map[string]any) (int64, error) {
	raw := derefOrEmpty(cli.Capacity)
	if raw == "" {
		raw = stringOrEmpty(file, "server.capacity")
	}
	if raw == "" {
		return 0, nil
	}
	return ParseSize(raw)
}

// canonicalizePath fails if path exists and is a file, creates it if
// missing, then returns the absolute canonical path.
func canonicalizePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		return "", fatalf("%s is not a directory", path)
	}
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return "", fatalf("create data dir %s: %w", path, mkErr)
		}
	} else if err != nil {
		return "", fatalf("stat %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fatalf("canonicalize %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// A freshly created directory with no symlinks in its path
		// resolves fine; fall back to the absolute path otherwise.
		resolved = abs
	}
	return resolved, nil
}

func resolveRaftStore(file map[string]any) RaftStoreConfig {
	return RaftStoreConfig{
		RaftBaseTickInterval:     durationOrDefault(file, "raftstore.raft-base-tick-interval", time.Second),
		RaftHeartbeatTicks:       intOrDefault(file, "raftstore.raft-heartbeat-ticks", 2),
		RaftElectionTimeoutTicks: intOrDefault(file, "raftstore.raft-election-timeout-ticks", 10),
		RaftLogGCThreshold:       uint64(int64OrDefault(file, "raftstore.raft-log-gc-threshold", 50)),
		RegionSplitSize:          uint64(int64OrDefault(file, "raftstore.region-split-size", 96*mb)),
		RegionMaxSize:            uint64(int64OrDefault(file, "raftstore.region-max-size", 144*mb)),
		PeerDownTimeout:          durationOrDefault(file, "raftstore.max-peer-down-duration", 5*time.Minute),
		PDHeartbeatTickInterval:  durationOrDefault(file, "raftstore.pd-heartbeat-tick-interval", 60*time.Second),
		SnapshotFileToggle:       boolOrDefault(file, "raftstore.use-sst-file-snapshot", true),
	}
}

func resolveStorage(file map[string]any) StorageConfig {
	return StorageConfig{
		GCRatioThreshold:               floatOrDefault(file, "storage.gc-ratio-threshold", 1.1),
		SchedulerQueueCapacity:         intOrDefault(file, "storage.scheduler-notify-capacity", 10240),
		SchedulerWorkerPoolSize:        intOrDefault(file, "storage.scheduler-worker-pool-size", 4),
		SchedulerPendingWriteThreshold: int64OrDefault(file, "storage.scheduler-pending-write-threshold", 100*mb),
	}
}

func warnIfOverridden(file map[string]any, key, warning string, warnFn func(string)) {
	if _, ok := lookup(file, key); ok && warnFn != nil {
		warnFn(warning)
	}
}

// WarnElectionTimeoutOverride warns, but does not fail, if the operator
// overrode raft-election-timeout-ticks: it must stay uniform across the
// cluster and there is no way to verify that from a single node.
func WarnElectionTimeoutOverride(file map[string]any, warnFn func(string)) {
	warnIfOverridden(file, "raftstore.raft-election-timeout-ticks",
		"raft-election-timeout-ticks overridden: it must be uniform across the cluster; correctness is the operator's responsibility",
		warnFn)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringOrEmpty(file map[string]any, key string) string {
	v, ok, err := stringOpt(file, key)
	if err != nil || !ok {
		return ""
	}
	return v
}

func intOrDefault(file map[string]any, key string, def int) int {
	v, ok, err := intOpt(file, key)
	if err != nil || !ok {
		return def
	}
	return int(v)
}

func int64OrDefault(file map[string]any, key string, def int64) int64 {
	v, ok, err := intOpt(file, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func boolOrDefault(file map[string]any, key string, def bool) bool {
	v, ok, err := boolOpt(file, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func floatOrDefault(file map[string]any, key string, def float64) float64 {
	v, ok, err := floatOpt(file, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func durationOrDefault(file map[string]any, key string, def time.Duration) time.Duration {
	v, ok, err := intOpt(file, key)
	if err != nil || !ok {
		return def
	}
	return time.Duration(v) * time.Millisecond
}
