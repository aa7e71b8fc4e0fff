package cache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/tree"
)

const (
	// maxKeyLength is memcached's limit on key size.
	maxKeyLength = 250

	// maxRelativeExpiration is the longest expiration memcached reads as
	// seconds from now; larger values are absolute Unix times.
	maxRelativeExpiration = 30 * 24 * time.Hour
)

// MemcachePool talks to one or more memcached servers.
type MemcachePool struct {
	namespace
	client  *memcache.Client
	clock   clock.Clock
	servers []string
}

// OpenMemcachePool is the "memcache" adapter constructor. Recognized
// options: servers (sequence of {host, port}, default localhost:11211),
// timeout (duration string).
//
//	options:
//	  servers:
//	    - {host: cache1, port: 11211}
//	    - {host: cache2}
func OpenMemcachePool(options tree.Node) (*MemcachePool, error) {
	servers, err := memcacheServers(options.Get("servers"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	client := memcache.New(servers...)
	if s := options.StringOr("timeout", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, errors.NotValidf("memcache timeout %q", s)
		}
		client.Timeout = d
	}
	return &MemcachePool{client: client, clock: clock.WallClock, servers: servers}, nil
}

func memcacheServers(n tree.Node) ([]string, error) {
	if n.IsNull() {
		return []string{"localhost:11211"}, nil
	}
	if !n.IsSeq() {
		return nil, errors.NotValidf("memcache servers of kind %s", n.Kind())
	}
	if n.Len() == 0 {
		return []string{"localhost:11211"}, nil
	}
	servers := make([]string, 0, n.Len())
	for i, s := range n.Items() {
		if !s.IsMap() {
			return nil, errors.NotValidf("memcache server %d", i)
		}
		host := s.StringOr("host", "localhost")
		port := int64(11211)
		if v := s.Get("port"); !v.IsNull() {
			p, ok := v.AsInt()
			if !ok {
				return nil, errors.NotValidf("memcache server %d port %q", i, v.Text())
			}
			port = p
		}
		servers = append(servers, fmt.Sprintf("%s:%d", host, port))
	}
	return servers, nil
}

// Servers returns the host:port list the client was created with.
func (p *MemcachePool) Servers() []string { return append([]string(nil), p.servers...) }

// itemKey maps a pool key onto a valid memcached key. Keys that are too
// long or contain spaces or control characters are hashed.
func (p *MemcachePool) itemKey(key string) string {
	k := p.key(key)
	if len(k) > maxKeyLength {
		return hashKey(k)
	}
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return hashKey(k)
		}
	}
	return k
}

func (p *MemcachePool) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.client.Get(p.itemKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Trace(err)
	}
	return it.Value, true, nil
}

func (p *MemcachePool) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Trace(p.client.Set(&memcache.Item{
		Key:        p.itemKey(key),
		Value:      value,
		Expiration: expirationSeconds(p.clock.Now(), ttl),
	}))
}

func (p *MemcachePool) Delete(_ context.Context, key string) error {
	err := p.client.Delete(p.itemKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return errors.Trace(err)
}

// Clear flushes every server; memcached has no per-prefix delete.
func (p *MemcachePool) Clear(context.Context) error {
	return errors.Trace(p.client.DeleteAll())
}

// expirationSeconds rounds ttl up to whole seconds. TTLs past thirty days
// are sent as the absolute Unix time now+ttl.
func expirationSeconds(now time.Time, ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		at := now.Add(ttl).Unix()
		if at > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(at)
	}
	s := math.Ceil(ttl.Seconds())
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(s)
}
