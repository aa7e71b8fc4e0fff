// Package cache defines the contract every cache instance satisfies and the
// adapters the container can build by identifier.
//
// Built-in adapters:
//
//	array       in-process map, bounded by golang-lru when "limit" is set
//	filesystem  one file per key below "directory" (afero)
//	bolt        one bbolt bucket per namespace in the file at "path"
//	memcache    memcached servers listed under "servers"
package cache

import (
	"context"
	"time"

	"github.com/km-arc/go-persistence/framework/tree"
)

// Pool is a byte-oriented key/value cache. A ttl of zero means the entry
// does not expire.
type Pool interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Namespaced pools isolate their keys under a namespace set after
// construction.
type Namespaced interface {
	SetNamespace(ns string)
	Namespace() string
}

// Initializer pools get a one-time look at their full configuration record
// right after construction.
type Initializer interface {
	Initialize(record tree.Node) error
}
