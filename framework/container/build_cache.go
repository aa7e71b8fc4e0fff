package container

import (
	"context"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/tree"
)

// buildCache opens the pool of a cache instance record through the adapter
// table. Cache instances reference nothing else.
func (c *Container) buildCache(_ context.Context, record tree.Node, _ Resolver) (any, error) {
	pool, err := c.factories.Caches.Open(record)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return pool, nil
}
