package node

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cuemby/stratakv/pkg/log"
)

// noopFSM is the Raft finite state machine handle the raftstore loop drives.
// Applying, snapshotting, and restoring region state is the consensus state
// machine's concern, referenced only by interface here: the Node Registry
// only needs a real *raft.Raft handle to track term, leadership, and log
// position for the region(s) it owns.
type noopFSM struct{}

func (noopFSM) Apply(l *raft.Log) interface{} {
	log.Logger.Debug().Uint64("index", l.Index).Uint64("term", l.Term).Msg("raft log applied")
	return nil
}

func (noopFSM) Snapshot() (raft.FSMSnapshot, error) {
	return noopSnapshot{}, nil
}

func (noopFSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error {
	return sink.Close()
}

func (noopSnapshot) Release() {}

// raftHandle bundles the *raft.Raft instance with the bolt-backed stores
// behind it, so Registry can shut all three down in order: raft itself
// first, then the stores that hold its open file handles.
type raftHandle struct {
	raft        *raft.Raft
	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore
}

func (h *raftHandle) close() error {
	if err := h.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("node: shutdown raft: %w", err)
	}
	if err := h.logStore.Close(); err != nil {
		return fmt.Errorf("node: close raft log store: %w", err)
	}
	if err := h.stableStore.Close(); err != nil {
		return fmt.Errorf("node: close raft stable store: %w", err)
	}
	return nil
}

// openRaftHandle builds a *raft.Raft bound to storeID, with its log and
// stable stores persisted under dataDir/raft. A single-member cluster is
// bootstrapped on first start; on restart, raft.HasExistingState finds the
// persisted state and BootstrapCluster is not called.
func openRaftHandle(dataDir string, storeID uint64, bindAddr string) (*raftHandle, error) {
	raftDir := filepath.Join(dataDir, "raft")
	if err := os.MkdirAll(raftDir, 0o755); err != nil {
		return nil, fmt.Errorf("node: create raft dir: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(raftDir, "log.db"))
	if err != nil {
		return nil, fmt.Errorf("node: open raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(raftDir, "stable.db"))
	if err != nil {
		return nil, fmt.Errorf("node: open raft stable store: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(raftDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("node: open raft snapshot store: %w", err)
	}

	// The wire path for inter-node Raft traffic is the Network Server's
	// gRPC Raft service and the outbound Transport, not this transport:
	// this loopback transport only lets the local *raft.Raft track term
	// and leadership for the region(s) this store owns.
	_, transport := raft.NewInmemTransport(raft.ServerAddress(bindAddr))

	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(fmt.Sprintf("%d", storeID))
	cfg.HeartbeatTimeout = 500 * time.Millisecond
	cfg.ElectionTimeout = 500 * time.Millisecond
	cfg.LeaderLeaseTimeout = 250 * time.Millisecond

	r, err := raft.NewRaft(cfg, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("node: start raft: %w", err)
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		return nil, fmt.Errorf("node: inspect raft state: %w", err)
	}
	if !hasState {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: cfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("node: bootstrap raft cluster: %w", err)
		}
	}

	return &raftHandle{raft: r, logStore: logStore, stableStore: stableStore}, nil
}
