package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/tree"
)

// ArrayOptions configures an ArrayPool.
type ArrayOptions struct {
	// Limit bounds the number of entries; the least recently used entry is
	// evicted first. Zero means unbounded.
	Limit int
	Clock clock.Clock
}

type arrayEntry struct {
	value   []byte
	expires time.Time
}

// ArrayPool keeps entries in process memory.
type ArrayPool struct {
	namespace
	clock clock.Clock

	// exactly one of bounded and entries is set
	bounded *lru.Cache
	mu      sync.RWMutex
	entries map[string]arrayEntry
}

// NewArrayPool returns an empty in-memory pool.
func NewArrayPool(opts ArrayOptions) (*ArrayPool, error) {
	p := &ArrayPool{clock: opts.Clock}
	if p.clock == nil {
		p.clock = clock.WallClock
	}
	if opts.Limit < 0 {
		return nil, errors.NotValidf("array cache limit %d", opts.Limit)
	}
	if opts.Limit > 0 {
		c, err := lru.New(opts.Limit)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p.bounded = c
		return p, nil
	}
	p.entries = make(map[string]arrayEntry)
	return p, nil
}

// OpenArrayPool is the "array" adapter constructor. Recognized options:
// limit.
func OpenArrayPool(options tree.Node) (*ArrayPool, error) {
	var opts ArrayOptions
	if v := options.Get("limit"); !v.IsNull() {
		limit, ok := v.AsInt()
		if !ok {
			return nil, errors.NotValidf("array cache limit %q", v.Text())
		}
		opts.Limit = int(limit)
	}
	return NewArrayPool(opts)
}

func (p *ArrayPool) Get(_ context.Context, key string) ([]byte, bool, error) {
	k := p.key(key)
	e, ok := p.load(k)
	if !ok {
		return nil, false, nil
	}
	if expired(p.clock.Now(), e.expires) {
		p.remove(k)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (p *ArrayPool) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := arrayEntry{
		value:   append([]byte(nil), value...),
		expires: expiry(p.clock.Now(), ttl),
	}
	k := p.key(key)
	if p.bounded != nil {
		p.bounded.Add(k, e)
		return nil
	}
	p.mu.Lock()
	p.entries[k] = e
	p.mu.Unlock()
	return nil
}

func (p *ArrayPool) Delete(_ context.Context, key string) error {
	p.remove(p.key(key))
	return nil
}

func (p *ArrayPool) Clear(context.Context) error {
	if p.bounded != nil {
		p.bounded.Purge()
		return nil
	}
	p.mu.Lock()
	p.entries = make(map[string]arrayEntry)
	p.mu.Unlock()
	return nil
}

// Len is the number of stored entries, expired ones included.
func (p *ArrayPool) Len() int {
	if p.bounded != nil {
		return p.bounded.Len()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

func (p *ArrayPool) load(k string) (arrayEntry, bool) {
	if p.bounded != nil {
		v, ok := p.bounded.Get(k)
		if !ok {
			return arrayEntry{}, false
		}
		return v.(arrayEntry), true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[k]
	return e, ok
}

func (p *ArrayPool) remove(k string) {
	if p.bounded != nil {
		p.bounded.Remove(k)
		return
	}
	p.mu.Lock()
	delete(p.entries, k)
	p.mu.Unlock()
}
