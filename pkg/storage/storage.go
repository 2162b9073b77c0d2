// Package storage wraps the engine with the transactional facade the
// Network Server's KV service calls into: read, prewrite, commit,
// rollback, scan, and GC, each serialized through a fixed-size worker pool.
// The MVCC scheduling rules themselves (timestamp ordering, conflict
// detection, lock resolution) are referenced only by interface; this
// facade provides the pool, the queue, and the column-family plumbing they
// would run on top of.
package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/linxGnu/grocksdb"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/stratakv/pkg/config"
	"github.com/cuemby/stratakv/pkg/engine"
	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/metrics"
)

// Facade is the transactional storage facade. It owns no state beyond the
// engine handle and its command queue; all persistent state lives in the
// engine's column families.
type Facade struct {
	engine *engine.Engine
	cfg    config.StorageConfig

	cmds    chan command
	group   *errgroup.Group
	cancel  context.CancelFunc
	pending atomic.Int64
}

// New constructs a Facade over eng. Start must be called before any
// operation is issued.
func New(eng *engine.Engine, cfg config.StorageConfig) *Facade {
	return &Facade{
		engine: eng,
		cfg:    cfg,
		cmds:   make(chan command, cfg.SchedulerQueueCapacity),
	}
}

// Start spins up the scheduler's worker pool.
func (f *Facade) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	f.group = g

	poolSize := f.cfg.SchedulerWorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	for i := 0; i < poolSize; i++ {
		g.Go(func() error {
			f.worker(gctx)
			return nil
		})
	}
	log.Logger.Info().Int("workers", poolSize).Msg("storage facade started")
	return nil
}

// Stop drains pending commands and joins the worker pool. Safe to call
// once Start has returned.
func (f *Facade) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	if f.group != nil {
		_ = f.group.Wait()
	}
	return nil
}

func (f *Facade) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case cmd := <-f.cmds:
					f.pending.Add(-1)
					metrics.SchedulerQueueDepth.Set(float64(f.pending.Load()))
					f.execute(cmd)
				default:
					return
				}
			}
		case cmd := <-f.cmds:
			f.pending.Add(-1)
			metrics.SchedulerQueueDepth.Set(float64(f.pending.Load()))
			f.execute(cmd)
		}
	}
}

func (f *Facade) submit(ctx context.Context, cmd command) result {
	resultCh := make(chan result, 1)
	cmd.resultCh = resultCh

	f.pending.Add(1)
	metrics.SchedulerQueueDepth.Set(float64(f.pending.Load()))

	select {
	case f.cmds <- cmd:
	case <-ctx.Done():
		f.pending.Add(-1)
		return result{err: ctx.Err()}
	}

	select {
	case r := <-resultCh:
		return r
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func (f *Facade) execute(cmd command) {
	timer := metrics.NewTimer()
	var r result
	switch cmd.kind {
	case opGet:
		r.value, r.err = f.get(cmd.key)
		timer.ObserveDurationVec(metrics.CommandDuration, "get")
	case opPrewrite:
		r.err = f.prewrite(cmd.mutations)
		timer.ObserveDurationVec(metrics.CommandDuration, "prewrite")
	case opCommit:
		r.err = f.commit(cmd.keys, cmd.commitTS)
		timer.ObserveDurationVec(metrics.CommandDuration, "commit")
	case opRollback:
		r.err = f.rollback(cmd.keys)
		timer.ObserveDurationVec(metrics.CommandDuration, "rollback")
	case opScan:
		r.rows, r.err = f.scan(cmd.startKey, cmd.endKey, cmd.limit)
		timer.ObserveDurationVec(metrics.CommandDuration, "scan")
	case opGC:
		r.err = f.gc(cmd.safePoint)
		timer.ObserveDurationVec(metrics.CommandDuration, "gc")
	}
	cmd.resultCh <- r
}

func (f *Facade) get(key []byte) ([]byte, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	v, err := f.engine.DB().GetCF(ro, f.engine.CF(engine.DefaultCF), key)
	if err != nil {
		return nil, fmt.Errorf("storage: get: %w", err)
	}
	defer v.Free()
	if !v.Exists() {
		return nil, nil
	}
	out := make([]byte, len(v.Data()))
	copy(out, v.Data())
	return out, nil
}

func (f *Facade) prewrite(mutations []Mutation) error {
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	for _, m := range mutations {
		if err := f.engine.DB().PutCF(wo, f.engine.CF(engine.LockCF), m.Key, m.Value); err != nil {
			return fmt.Errorf("storage: prewrite %x: %w", m.Key, err)
		}
	}
	return nil
}

func (f *Facade) commit(keys [][]byte, _ uint64) error {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()

	lockCF := f.engine.CF(engine.LockCF)
	writeCF := f.engine.CF(engine.WriteCF)
	defaultCF := f.engine.CF(engine.DefaultCF)
	for _, key := range keys {
		v, err := f.engine.DB().GetCF(ro, lockCF, key)
		if err != nil {
			return fmt.Errorf("storage: commit read lock %x: %w", key, err)
		}
		value := append([]byte(nil), v.Data()...)
		v.Free()

		if err := f.engine.DB().PutCF(wo, writeCF, key, value); err != nil {
			return fmt.Errorf("storage: commit write %x: %w", key, err)
		}
		if err := f.engine.DB().PutCF(wo, defaultCF, key, value); err != nil {
			return fmt.Errorf("storage: commit data %x: %w", key, err)
		}
		if err := f.engine.DB().DeleteCF(wo, lockCF, key); err != nil {
			return fmt.Errorf("storage: commit clear lock %x: %w", key, err)
		}
	}
	return nil
}

func (f *Facade) rollback(keys [][]byte) error {
	wo := grocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()
	lockCF := f.engine.CF(engine.LockCF)
	for _, key := range keys {
		if err := f.engine.DB().DeleteCF(wo, lockCF, key); err != nil {
			return fmt.Errorf("storage: rollback %x: %w", key, err)
		}
	}
	return nil
}

func (f *Facade) scan(startKey, endKey []byte, limit int) ([]KV, error) {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	it := f.engine.DB().NewIteratorCF(ro, f.engine.CF(engine.DefaultCF))
	defer it.Close()

	var rows []KV
	for it.Seek(startKey); it.Valid(); it.Next() {
		if limit > 0 && len(rows) >= limit {
			break
		}
		key := it.Key()
		if endKey != nil && string(key.Data()) >= string(endKey) {
			key.Free()
			break
		}
		val := it.Value()
		rows = append(rows, KV{
			Key:   append([]byte(nil), key.Data()...),
			Value: append([]byte(nil), val.Data()...),
		})
		key.Free()
		val.Free()
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("storage: scan: %w", err)
	}
	return rows, nil
}

func (f *Facade) gc(safePoint uint64) error {
	log.Logger.Debug().Uint64("safe_point", safePoint).Msg("storage gc pass (stub: MVCC version pruning out of scope)")
	return nil
}

// Get reads a single key from the default column family.
func (f *Facade) Get(ctx context.Context, key []byte) ([]byte, error) {
	r := f.submit(ctx, command{kind: opGet, key: key})
	return r.value, r.err
}

// Prewrite stages mutations in the lock column family.
func (f *Facade) Prewrite(ctx context.Context, mutations []Mutation) error {
	r := f.submit(ctx, command{kind: opPrewrite, mutations: mutations})
	return r.err
}

// Commit moves staged mutations from the lock column family into write and
// stores each committed value in default, where Get and Scan read it.
func (f *Facade) Commit(ctx context.Context, keys [][]byte, commitTS uint64) error {
	r := f.submit(ctx, command{kind: opCommit, keys: keys, commitTS: commitTS})
	return r.err
}

// Rollback discards staged mutations.
func (f *Facade) Rollback(ctx context.Context, keys [][]byte) error {
	r := f.submit(ctx, command{kind: opRollback, keys: keys})
	return r.err
}

// Scan returns rows in [startKey, endKey) from the default column family,
// up to limit rows (0 means unbounded).
func (f *Facade) Scan(ctx context.Context, startKey, endKey []byte, limit int) ([]KV, error) {
	r := f.submit(ctx, command{kind: opScan, startKey: startKey, endKey: endKey, limit: limit})
	return r.rows, r.err
}

// GC runs a garbage-collection pass up to safePoint.
func (f *Facade) GC(ctx context.Context, safePoint uint64) error {
	r := f.submit(ctx, command{kind: opGC, safePoint: safePoint})
	return r.err
}
