// Package snapshot tracks outgoing and incoming range-snapshot files on
// disk, rooted at "<data_dir>/snap". The index of live snapshots is kept in
// a small bbolt database alongside the spool directory so GC survives a
// restart.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/cuemby/stratakv/pkg/log"
)

var snapshotsBucket = []byte("snapshots")

// Key identifies one snapshot by the region it covers and the Raft log
// position it was taken at.
type Key struct {
	RegionID uint64
	Term     uint64
	Index    uint64
}

func (k Key) encode() []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint64(b[0:8], k.RegionID)
	binary.BigEndian.PutUint64(b[8:16], k.Term)
	binary.BigEndian.PutUint64(b[16:24], k.Index)
	return b
}

func (k Key) fileName() string {
	return fmt.Sprintf("%d_%d_%d.snap", k.RegionID, k.Term, k.Index)
}

// Direction distinguishes a snapshot this node is sending from one it is
// receiving.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// Format selects how a snapshot is materialised on disk: a reconstituted
// key-value stream (portable across engine families) or a raw SST file
// (faster, but only valid between two nodes running the same engine).
type Format int

const (
	FormatKVStream Format = iota
	FormatSST
)

// Manager owns the snapshot spool directory and its persisted index.
type Manager struct {
	dir    string
	db     *bbolt.DB
	format Format
}

// Open opens (creating if needed) the snapshot spool under dataDir/snap and
// its index database. useSST selects the SST-file transfer format; when
// false, snapshots are sent as reconstituted KV streams.
func Open(dataDir string, useSST bool) (*Manager, error) {
	dir := filepath.Join(dataDir, "snap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create spool dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "index.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open index: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create bucket: %w", err)
	}

	format := FormatKVStream
	if useSST {
		format = FormatSST
	}
	return &Manager{dir: dir, db: db, format: format}, nil
}

// Dir returns the spool directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Format reports which wire format new snapshots are sent in.
func (m *Manager) Format() Format {
	return m.format
}

// Path returns the on-disk path a snapshot identified by key would occupy.
func (m *Manager) Path(key Key) string {
	return filepath.Join(m.dir, key.fileName())
}

// Register records that a snapshot transfer for key has begun, in the
// given direction. It must be called before any bytes are written so a
// crash mid-transfer leaves a discoverable, GC-able entry.
func (m *Manager) Register(key Key, dir Direction) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		return b.Put(key.encode(), []byte{byte(dir)})
	})
}

// Commit logs that key's transfer has completed. It does not change the
// index entry or the file; GC removes both once key is no longer live.
func (m *Manager) Commit(key Key) error {
	log.WithRegionID(key.RegionID).Debug().
		Uint64("term", key.Term).Uint64("index", key.Index).
		Msg("snapshot committed")
	return nil
}

// GC removes index entries and spool files for every key not present in
// live (the set of snapshots the raftstore loop still considers
// in-flight), returning the number of entries removed.
func (m *Manager) GC(live map[Key]struct{}) (int, error) {
	var stale []Key
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		return b.ForEach(func(k, _ []byte) error {
			key, err := decodeKey(k)
			if err != nil {
				return err
			}
			if _, ok := live[key]; !ok {
				stale = append(stale, key)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("snapshot: scan index: %w", err)
	}

	for _, key := range stale {
		if err := os.Remove(m.Path(key)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("snapshot: remove %s: %w", m.Path(key), err)
		}
		if err := m.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(snapshotsBucket).Delete(key.encode())
		}); err != nil {
			return 0, fmt.Errorf("snapshot: delete index entry: %w", err)
		}
	}
	return len(stale), nil
}

func decodeKey(b []byte) (Key, error) {
	if len(b) != 24 {
		return Key{}, fmt.Errorf("snapshot: malformed index key (%d bytes)", len(b))
	}
	return Key{
		RegionID: binary.BigEndian.Uint64(b[0:8]),
		Term:     binary.BigEndian.Uint64(b[8:16]),
		Index:    binary.BigEndian.Uint64(b[16:24]),
	}, nil
}

// Close closes the index database. The spool directory and any files in it
// are left on disk.
func (m *Manager) Close() error {
	return m.db.Close()
}
