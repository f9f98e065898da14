package idempotence

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("idempotence")

// Bolt records keys in a bbolt bucket, so redeliveries after a restart are
// still recognised. The value is the record time in unix nanoseconds.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt prepares the bucket on db.
func NewBolt(db *bolt.DB) (*Bolt, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("idempotence: create bucket: %w", err)
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func (b *Bolt) MakeRecord(_ context.Context, key string) (first bool, err error) {
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket.Get([]byte(key)) != nil {
			return nil
		}
		stamp := make([]byte, 8)
		binary.BigEndian.PutUint64(stamp, uint64(b.now().UnixNano()))
		if err := bucket.Put([]byte(key), stamp); err != nil {
			return err
		}
		first = true
		return nil
	})
	return first, err
}

func (b *Bolt) Purge(_ context.Context, before time.Time) (int, error) {
	cutoff := before.UnixNano()
	n := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if len(v) != 8 || int64(binary.BigEndian.Uint64(v)) < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}
