package statestore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBoltBucket = "waypoint_history"

// BoltStore keeps entries in a bbolt file. Each value is the expiry as
// big-endian unix nanoseconds followed by the data.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	owned  bool
	closed atomic.Bool
	now    func() time.Time
}

// BoltOption configures a BoltStore.
type BoltOption func(*boltConfig)

type boltConfig struct {
	bucket  string
	timeout time.Duration
}

// WithBoltBucket sets the bucket name. Default: "waypoint_history".
func WithBoltBucket(name string) BoltOption {
	return func(c *boltConfig) {
		c.bucket = name
	}
}

// WithBoltTimeout bounds how long Open waits for the file lock.
// Default: 1 second.
func WithBoltTimeout(d time.Duration) BoltOption {
	return func(c *boltConfig) {
		c.timeout = d
	}
}

// OpenBolt opens or creates the bbolt file at path. Close closes the file.
func OpenBolt(path string, opts ...BoltOption) (*BoltStore, error) {
	cfg := boltConfig{bucket: defaultBoltBucket, timeout: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	s, err := NewBoltStore(db, WithBoltBucket(cfg.bucket))
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewBoltStore uses an already open database. Close leaves db open.
func NewBoltStore(db *bolt.DB, opts ...BoltOption) (*BoltStore, error) {
	cfg := boltConfig{bucket: defaultBoltBucket}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &BoltStore{db: db, bucket: []byte(cfg.bucket), now: time.Now}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %q: %w", cfg.bucket, err)
	}
	return s, nil
}

func encodeBolt(data []byte, expiresAt time.Time) []byte {
	v := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(v, uint64(expiresAt.UnixNano()))
	copy(v[8:], data)
	return v
}

func decodeBolt(v []byte) ([]byte, time.Time, bool) {
	if len(v) < 8 {
		return nil, time.Time{}, false
	}
	exp := time.Unix(0, int64(binary.BigEndian.Uint64(v)))
	return cloneBytes(v[8:]), exp, true
}

func (s *BoltStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(id), encodeBolt(data, expiresAt))
	})
}

func (s *BoltStore) Load(ctx context.Context, id string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		data, exp, ok := decodeBolt(tx.Bucket(s.bucket).Get([]byte(id)))
		if ok && s.now().Before(exp) {
			out = data
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Delete(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(id))
	})
}

func (s *BoltStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		data, _, ok := decodeBolt(b.Get([]byte(id)))
		if !ok {
			return nil
		}
		return b.Put([]byte(id), encodeBolt(data, expiresAt))
	})
}

// SaveAll writes all entries in one transaction.
func (s *BoltStore) SaveAll(ctx context.Context, entries map[string]Data) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for id, d := range entries {
			if err := b.Put([]byte(id), encodeBolt(d.Data, d.ExpiresAt)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cleanup deletes expired entries and returns how many it removed.
func (s *BoltStore) Cleanup(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.now()
		b := tx.Bucket(s.bucket)
		var expired [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if _, exp, ok := decodeBolt(v); ok && now.Before(exp) {
				continue
			}
			expired = append(expired, cloneBytes(k))
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.owned {
		return s.db.Close()
	}
	return nil
}
