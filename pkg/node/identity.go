package node

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var identityBucket = []byte("identity")

const identityKey = "store"

type identityRecord struct {
	StoreID   uint64 `json:"store_id"`
	ClusterID uint64 `json:"cluster_id"`
}

func openIdentityDB(dataDir string) (*bbolt.DB, error) {
	path := filepath.Join(dataDir, "identity.db")
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("node: open identity db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(identityBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("node: create identity bucket: %w", err)
	}
	return db, nil
}

func loadIdentity(db *bbolt.DB) (identityRecord, bool, error) {
	var rec identityRecord
	found := false
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(identityBucket).Get([]byte(identityKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return identityRecord{}, false, fmt.Errorf("node: load identity: %w", err)
	}
	return rec, found, nil
}

func saveIdentity(db *bbolt.DB, rec identityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("node: marshal identity: %w", err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(identityBucket).Put([]byte(identityKey), data)
	})
}
