// Package engine opens and owns the storage engine: a RocksDB instance
// rooted at "<data_dir>/db" holding exactly four column families (default,
// write, lock, raft), each tuned independently via config.RocksDBConfig.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/linxGnu/grocksdb"

	"github.com/cuemby/stratakv/pkg/clock"
	"github.com/cuemby/stratakv/pkg/config"
	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/metrics"
)

// Engine is a shared, read-only-interface handle to the opened storage
// engine. All mutation is serialized internally by the engine; Engine
// itself holds no mutex of its own.
type Engine struct {
	db      *grocksdb.DB
	handles map[string]*grocksdb.ColumnFamilyHandle
	opts    []*grocksdb.Options
	path    string
}

// Open opens the engine at "<dataDir>/db" with the four well-known column
// families, applying cfg's global and per-CF tuning. The caller must hold
// the data directory's exclusive lock before calling Open.
func Open(cfg config.RocksDBConfig, dataDir string) (*Engine, error) {
	timer := clock.NewSlowTimer()
	dbPath := filepath.Join(dataDir, "db")

	globalOpts := buildGlobalOptions(cfg)
	cfOpts := []*grocksdb.Options{
		buildCFOptionsFor(cfg, DefaultCF),
		buildCFOptionsFor(cfg, WriteCF),
		buildCFOptionsFor(cfg, LockCF),
		buildCFOptionsFor(cfg, RaftCF),
	}

	db, cfHandles, err := grocksdb.OpenDbColumnFamilies(globalOpts, dbPath, cfNames, cfOpts)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", dbPath, err)
	}

	handles := make(map[string]*grocksdb.ColumnFamilyHandle, len(cfNames))
	for i, name := range cfNames {
		handles[name] = cfHandles[i]
	}

	allOpts := append([]*grocksdb.Options{globalOpts}, cfOpts...)

	log.Logger.Info().
		Str("path", dbPath).
		Dur("elapsed", timer.Elapsed()).
		Msg("engine opened")
	if timer.IsSlow() {
		log.Logger.Warn().Dur("elapsed", timer.Elapsed()).Msg("engine open was slow")
	}
	metrics.EngineOpenDuration.Observe(timer.Elapsed().Seconds())

	return &Engine{db: db, handles: handles, opts: allOpts, path: dbPath}, nil
}

func buildCFOptionsFor(cfg config.RocksDBConfig, name string) *grocksdb.Options {
	switch name {
	case DefaultCF:
		return buildCFOptions(cfg.DefaultCF)
	case WriteCF:
		return buildCFOptions(cfg.WriteCF)
	case LockCF:
		return buildCFOptions(cfg.LockCF)
	case RaftCF:
		return buildCFOptions(cfg.RaftCF)
	default:
		panic("engine: unknown column family " + name)
	}
}

// DB returns the underlying database handle for components (storage,
// snapshot manager) that need direct read/write access.
func (e *Engine) DB() *grocksdb.DB {
	return e.db
}

// CF returns the column family handle for name, or nil if name is not one
// of the four well-known families.
func (e *Engine) CF(name string) *grocksdb.ColumnFamilyHandle {
	return e.handles[name]
}

// Path returns the engine's root directory.
func (e *Engine) Path() string {
	return e.path
}

// Backup writes a RocksDB checkpoint (a hard-linked, consistent snapshot of
// every column family) into destDir, which must not already exist. Used by
// the SIGUSR1 backup signal handler; unlike Close, Backup leaves the engine
// open and serving.
func (e *Engine) Backup(destDir string) error {
	cp, err := e.db.NewCheckpoint()
	if err != nil {
		return fmt.Errorf("engine: create checkpoint object: %w", err)
	}
	defer cp.Destroy()

	if err := cp.CreateCheckpoint(destDir, 0); err != nil {
		return fmt.Errorf("engine: checkpoint to %s: %w", destDir, err)
	}
	log.Logger.Info().Str("dest", destDir).Msg("engine backup written")
	return nil
}

// Close releases the column family handles, the database, and every
// Options object created for this engine. Safe to call once; the caller
// must release the data directory lock only after Close returns.
func (e *Engine) Close() error {
	for _, h := range e.handles {
		h.Destroy()
	}
	if e.db != nil {
		e.db.Close()
	}
	for _, o := range e.opts {
		o.Destroy()
	}
	return nil
}
