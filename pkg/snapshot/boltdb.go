package snapshot

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// BoltStore implements Store using BoltDB, the embedded memory-mapped
// B-tree intended for deployment.
type BoltStore struct {
	db *bolt.DB
}

// Config holds the on-disk store configuration.
type Config struct {
	StorageDir string `yaml:"storage_dir"`
	DBName     string `yaml:"db_name"`
}

// NewBoltStore opens (or creates) the snapshot database.
func NewBoltStore(cfg Config) (*BoltStore, error) {
	name := cfg.DBName
	if name == "" {
		name = "grain-snapshots.db"
	}
	dbPath := filepath.Join(cfg.StorageDir, name)

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get implements Store.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if data := b.Get(key); data != nil {
			// Bolt's slice is only valid inside the transaction.
			value = append([]byte(nil), data...)
		}
		return nil
	})
	return value, err
}

// Put implements Store.
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put(key, value)
	})
}

// Delete implements Store.
func (s *BoltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete(key)
	})
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
