// Package counter provides a durable, monotonically increasing counter
// used for the "%n" placeholder in assemble name-rules and extract's
// unique-number option. It stores state in bbolt (go.etcd.io/bbolt),
// the same embedded-KV store a caching backend elsewhere in this
// codebase uses for its own persistent state, chosen over a
// hand-rolled counter file so concurrent option invocations across
// processes stay consistent via bbolt's single-writer transactions.
package counter

import (
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("counters")

// Counter is a bbolt-backed durable sequence, one bucket entry per key.
type Counter struct {
	db *bolt.DB
}

// Open opens (creating if absent) the counter database under workDir.
func Open(workDir string) (*Counter, error) {
	db, err := bolt.Open(filepath.Join(workDir, "afd_counter.db"), 0o600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening counter database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing counter bucket")
	}
	return &Counter{db: db}, nil
}

// Next atomically increments and returns the counter for key, wrapping
// to 0 at 10000 since assemble's "%n" placeholder is always rendered as
// 4 digits.
func (c *Counter) Next(key string) (uint32, error) {
	var next uint32
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var cur uint32
		if v := b.Get([]byte(key)); v != nil {
			cur = binary.BigEndian.Uint32(v)
		}
		next = (cur + 1) % 10000
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, next)
		return b.Put([]byte(key), buf)
	})
	if err != nil {
		return 0, errors.Wrap(err, "advancing counter")
	}
	return next, nil
}

// Close releases the underlying database handle.
func (c *Counter) Close() error {
	return c.db.Close()
}
