// Package store wraps a single bbolt database file used for the small
// amount of server-side persistent state that isn't an app's own
// .scotty.yml: blueprint definitions and per-app image-update markers.
// Grounded on the teacher's internal/models/setting.go (bucket-scoped
// Get/Set/GetAll over a *bolt.DB), generalized to take the bucket name as
// a parameter instead of hardcoding the settings bucket.
package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	// BucketBlueprints holds blueprint definitions keyed by name.
	BucketBlueprints = []byte("blueprints")
	// BucketImageUpdates holds the last-seen image digest per app/service,
	// keyed by "<app>/<service>".
	BucketImageUpdates = []byte("image_updates")
)

var allBuckets = [][]byte{BucketBlueprints, BucketImageUpdates}

// Store is a thin wrapper around a bbolt database, providing bucket-scoped
// byte-string access. Higher-level packages (blueprint) layer YAML
// encoding on top.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and ensures
// every known bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the value for key in bucket. Returns nil, nil if absent.
func (s *Store) Get(bucket []byte, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %q/%q: %w", bucket, key, err)
	}
	return val, nil
}

// Set upserts key=value in bucket.
func (s *Store) Set(bucket []byte, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %q/%q: %w", bucket, key, err)
	}
	return nil
}

// Delete removes key from bucket, if present.
func (s *Store) Delete(bucket []byte, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q/%q: %w", bucket, key, err)
	}
	return nil
}

// ForEach calls fn for every key/value pair in bucket, in bbolt's
// byte-sorted key order. fn's arguments are only valid for the duration
// of the call.
func (s *Store) ForEach(bucket []byte, fn func(key string, value []byte) error) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
	if err != nil {
		return fmt.Errorf("foreach %q: %w", bucket, err)
	}
	return nil
}
