package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var objectsBucket = []byte("objects")

// BoltBucket keeps objects as values in a single bolt bucket.
type BoltBucket struct {
	db *bolt.DB
}

// OpenBoltBucket opens (or creates) the database at path.
func OpenBoltBucket(path string) (*BoltBucket, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure bolt bucket: %w", err)
	}

	return &BoltBucket{db: db}, nil
}

func (b *BoltBucket) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return ErrObjectNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *BoltBucket) Put(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(objectsBucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (b *BoltBucket) Close() error {
	return b.db.Close()
}
