package container

import (
	"context"
	"time"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/tree"
)

// ResolveConnection looks up a connection through r.
func ResolveConnection(ctx context.Context, r Resolver, name string) (*database.Connection, error) {
	v, err := r.Get(ctx, ConnectionCategory, name)
	if err != nil {
		return nil, err
	}
	conn, ok := v.(*database.Connection)
	if !ok {
		return nil, errors.Errorf("connection %q is a %T", name, v)
	}
	return conn, nil
}

// ResolveCache looks up a cache instance through r.
func ResolveCache(ctx context.Context, r Resolver, name string) (cache.Pool, error) {
	v, err := r.Get(ctx, CacheCategory, name)
	if err != nil {
		return nil, err
	}
	pool, ok := v.(cache.Pool)
	if !ok {
		return nil, errors.Errorf("cache instance %q is a %T", name, v)
	}
	return pool, nil
}

// caches resolves each cache name of one build once, however many fields
// of the record point at it.
type caches struct {
	r     Resolver
	pools map[string]cache.Pool
}

func newCaches(r Resolver) *caches {
	return &caches{r: r, pools: make(map[string]cache.Pool)}
}

// get returns nil for an empty name.
func (c *caches) get(ctx context.Context, name string) (cache.Pool, error) {
	if name == "" {
		return nil, nil
	}
	if p, ok := c.pools[name]; ok {
		return p, nil
	}
	p, err := ResolveCache(ctx, c.r, name)
	if err != nil {
		return nil, err
	}
	c.pools[name] = p
	return p, nil
}

// durationOf reads a duration given as a string ("90s") or as whole
// seconds. Null is zero.
func durationOf(n tree.Node) (time.Duration, error) {
	if n.IsNull() {
		return 0, nil
	}
	if i, ok := n.AsInt(); ok {
		return time.Duration(i) * time.Second, nil
	}
	s, ok := n.AsString()
	if !ok {
		return 0, errors.NotValidf("duration of kind %s", n.Kind())
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.NewNotValid(err, "duration")
	}
	return d, nil
}

// intOf reads an integer option. Null is zero.
func intOf(n tree.Node) (int, error) {
	if n.IsNull() {
		return 0, nil
	}
	i, ok := n.AsInt()
	if !ok {
		return 0, errors.NotValidf("integer of kind %s", n.Kind())
	}
	return int(i), nil
}

// autoGenerate reads proxy.autoGenerateClasses: everything except "0",
// "false" and false turns generation on.
func autoGenerate(n tree.Node) bool {
	if b, ok := n.AsBool(); ok {
		return b
	}
	switch n.Text() {
	case "0", "false":
		return false
	}
	return true
}
