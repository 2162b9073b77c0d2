// Package node binds this process to a cluster identity: it allocates or
// recovers a store id, verifies that a recovered identity still belongs to
// the configured cluster, and starts the raftstore event loop that drains
// the Raft router and snapshot status notifications. It must start after
// the Network Server so the Transport it receives is already wired.
package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/raft"
	"go.etcd.io/bbolt"

	"github.com/cuemby/stratakv/pkg/config"
	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/metrics"
	"github.com/cuemby/stratakv/pkg/pdclient"
	"github.com/cuemby/stratakv/pkg/raftrouter"
	"github.com/cuemby/stratakv/pkg/server"
	"github.com/cuemby/stratakv/pkg/snapshot"
)

// ErrClusterMismatch is returned when a node's persisted identity belongs
// to a different cluster than the one configured for this start.
var ErrClusterMismatch = errors.New("node: persisted identity belongs to a different cluster")

// SnapshotStatus reports the outcome of one snapshot transfer to the
// raftstore loop. The transfer's own state machine is referenced only by
// interface here.
type SnapshotStatus struct {
	Key snapshot.Key
	Err error
}

// Registry owns the node's persisted identity and the raftstore loop built
// on top of it.
type Registry struct {
	db        *bbolt.DB
	storeID   uint64
	clusterID uint64
	raft      *raftHandle

	cancel context.CancelFunc
	done   chan struct{}
}

// Open loads dataDir's identity record, or allocates a new one via pd on a
// node's first ever start. A recovered identity whose cluster id does not
// match cfg is rejected with ErrClusterMismatch.
func Open(ctx context.Context, dataDir string, cfg config.Config, pd *pdclient.Client) (*Registry, error) {
	db, err := openIdentityDB(dataDir)
	if err != nil {
		return nil, err
	}

	rec, found, err := loadIdentity(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if found {
		if rec.ClusterID != cfg.ClusterID {
			db.Close()
			return nil, fmt.Errorf("%w: recorded %d, configured %d", ErrClusterMismatch, rec.ClusterID, cfg.ClusterID)
		}
	} else {
		storeID, err := pd.RegisterStore(ctx, cfg.AdvertiseAddr, cfg.Labels)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("node: register with pd: %w", err)
		}
		rec = identityRecord{StoreID: storeID, ClusterID: cfg.ClusterID}
		if err := saveIdentity(db, rec); err != nil {
			db.Close()
			return nil, err
		}
		log.Logger.Info().Uint64("store_id", storeID).Interface("labels", cfg.Labels).Msg("allocated new store identity")
	}

	rh, err := openRaftHandle(dataDir, rec.StoreID, cfg.AdvertiseAddr)
	if err != nil {
		db.Close()
		return nil, err
	}

	metrics.StoreID.Set(float64(rec.StoreID))
	return &Registry{db: db, storeID: rec.StoreID, clusterID: rec.ClusterID, raft: rh}, nil
}

// Leader reports whether this store currently holds Raft leadership for the
// region(s) it has bootstrapped.
func (r *Registry) Leader() bool {
	return r.raft.raft.State() == raft.Leader
}

// StoreID returns this node's allocated store id.
func (r *Registry) StoreID() uint64 {
	return r.storeID
}

// ClusterID returns the cluster this node's identity was recorded under.
func (r *Registry) ClusterID() uint64 {
	return r.clusterID
}

// Start launches the raftstore event loop, which drains router for inbound
// Raft messages and statusCh for snapshot transfer outcomes. The loop uses
// transport for any outbound traffic it needs to issue in response; the
// state machine driving those decisions is referenced only by interface.
func (r *Registry) Start(router *raftrouter.Router, transport *server.Transport, statusCh <-chan SnapshotStatus) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		log.WithStoreID(r.storeID).Info().Msg("raftstore event loop started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-router.Messages():
				if !ok {
					return
				}
				log.WithStoreID(r.storeID).Debug().
					Uint64("region_id", msg.RegionID).
					Msg("raftstore loop received message")
			case status, ok := <-statusCh:
				if !ok {
					continue
				}
				if status.Err != nil {
					log.WithStoreID(r.storeID).Warn().
						Uint64("region_id", status.Key.RegionID).
						Err(status.Err).Msg("snapshot transfer failed")
				}
			}
		}
	}()
}

// Stop signals the raftstore event loop to exit and blocks until it has
// joined.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

// Close shuts down the Raft handle and releases the identity database. Call
// after Stop.
func (r *Registry) Close() error {
	if r.raft != nil {
		if err := r.raft.close(); err != nil {
			log.WithStoreID(r.storeID).Warn().Err(err).Msg("raft shutdown returned an error")
		}
	}
	return r.db.Close()
}
