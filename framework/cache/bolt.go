package cache

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/km-arc/go-persistence/framework/tree"
)

// BoltPool stores entries in a bbolt database file, one bucket per
// namespace. It holds the file open until Close.
type BoltPool struct {
	namespace
	db    *bolt.DB
	clock clock.Clock
}

// OpenBoltPool is the "bolt" adapter constructor. Recognized options: path
// (required), timeout (duration string, how long to wait for the file lock).
func OpenBoltPool(options tree.Node) (*BoltPool, error) {
	file := options.StringOr("path", "")
	if file == "" {
		return nil, errors.NotValidf("bolt cache without path")
	}
	timeout := time.Second
	if s := options.StringOr("timeout", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, errors.NotValidf("bolt cache timeout %q", s)
		}
		timeout = d
	}
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Annotatef(err, "opening %s", file)
	}
	return &BoltPool{db: db, clock: clock.WallClock}, nil
}

func (p *BoltPool) bucket() []byte {
	if p.ns == "" {
		return []byte(defaultBucket)
	}
	return []byte(p.ns)
}

func (p *BoltPool) Get(_ context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket())
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, errors.Trace(err)
	}
	value, expires, err := decodeEntry(raw)
	if err != nil {
		return nil, false, errors.Trace(err)
	}
	if expired(p.clock.Now(), expires) {
		return nil, false, p.Delete(context.Background(), key)
	}
	return value, true, nil
}

func (p *BoltPool) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	raw := encodeEntry(value, expiry(p.clock.Now(), ttl))
	return errors.Trace(p.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(p.bucket())
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	}))
}

func (p *BoltPool) Delete(_ context.Context, key string) error {
	return errors.Trace(p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket())
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	}))
}

// Clear drops the bucket of the current namespace.
func (p *BoltPool) Clear(context.Context) error {
	return errors.Trace(p.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(p.bucket())
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	}))
}

// Path is the database file in use.
func (p *BoltPool) Path() string { return p.db.Path() }

func (p *BoltPool) Close() error { return errors.Trace(p.db.Close()) }
