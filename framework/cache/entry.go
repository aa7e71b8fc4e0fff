package cache

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/juju/errors"
)

// headerSize is the length of the expiry prefix stored ahead of each value
// by the persistent adapters: big-endian unix nanoseconds, zero for "never".
const headerSize = 8

func encodeEntry(value []byte, expires time.Time) []byte {
	buf := make([]byte, headerSize+len(value))
	if !expires.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(expires.UnixNano()))
	}
	copy(buf[headerSize:], value)
	return buf
}

func decodeEntry(raw []byte) ([]byte, time.Time, error) {
	if len(raw) < headerSize {
		return nil, time.Time{}, errors.NotValidf("cache entry of %d bytes", len(raw))
	}
	var expires time.Time
	if ns := binary.BigEndian.Uint64(raw); ns != 0 {
		expires = time.Unix(0, int64(ns))
	}
	value := make([]byte, len(raw)-headerSize)
	copy(value, raw[headerSize:])
	return value, expires, nil
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(now, expires time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}

func hashKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// namespace is embedded by the built-in adapters.
type namespace struct {
	ns string
}

func (n *namespace) SetNamespace(ns string) { n.ns = ns }
func (n *namespace) Namespace() string { return n.ns }

func (n *namespace) key(k string) string {
	if n.ns == "" {
		return k
	}
	return n.ns + ":" + k
}
