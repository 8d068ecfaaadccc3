package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var bucketName = []byte("mappings")

// BoltStore keeps the mapping in a bolt database, one key per mapping.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Describe implements Store.
func (s *BoltStore) Describe() string { return "bolt:" + s.path }

// Load implements Store.
func (s *BoltStore) Load(_ context.Context) (map[string]string, error) {
	entries := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			entries[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading bolt bucket: %w", err)
	}
	return entries, nil
}

// Save replaces the bucket contents in a single transaction.
func (s *BoltStore) Save(_ context.Context, entries map[string]string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("clearing bucket: %w", err)
		}
		b, err := tx.CreateBucket(bucketName)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		for k, v := range entries {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("writing %q: %w", k, err)
			}
		}
		return nil
	})
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
