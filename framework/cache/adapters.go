package cache

import (
	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/tree"
)

// reserved keys of a cache instance record; everything else is an adapter
// option.
var reserved = []string{"id", "adapter", "namespace", "options"}

type adapter struct {
	build       func(options tree.Node) (Pool, error)
	initializes bool
}

// Adapters maps adapter identifiers to pool constructors.
type Adapters struct {
	reg *factory.Registry[adapter]
}

// NewAdapters returns an empty adapter table. See providers.CacheProvider
// for the built-ins.
func NewAdapters() *Adapters {
	return &Adapters{reg: factory.New[adapter]("cache adapter")}
}

// Register binds id to ctor. Whether T implements Initializer is decided
// here, once, from the static type: constructors returning an interface
// type only get the hook if that interface includes it.
//
//	cache.Register(adapters, "array", cache.OpenArrayPool)
func Register[T Pool](a *Adapters, id string, ctor func(options tree.Node) (T, error)) {
	var zero T
	_, initializes := any(zero).(Initializer)
	a.reg.Register(id, adapter{
		build: func(options tree.Node) (Pool, error) {
			p, err := ctor(options)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		initializes: initializes,
	})
}

// Alias makes alias open the same pool as id.
func (a *Adapters) Alias(id, alias string) error { return a.reg.Alias(id, alias) }

// IDs lists the registered adapter identifiers.
func (a *Adapters) IDs() []string { return a.reg.IDs() }

// Open builds the pool described by a cache instance record: the adapter
// named by "adapter", constructed from Options(record), with "namespace"
// applied and the Initializer hook run.
func (a *Adapters) Open(record tree.Node) (Pool, error) {
	id := record.StringOr("adapter", "array")
	entry, err := a.reg.Lookup(id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p, err := entry.build(Options(record))
	if err != nil {
		return nil, errors.Annotatef(err, "opening %s cache", id)
	}
	if ns := record.StringOr("namespace", ""); ns != "" {
		n, ok := p.(Namespaced)
		if !ok {
			return nil, errors.NotSupportedf("namespace on %s cache", id)
		}
		n.SetNamespace(ns)
	}
	if entry.initializes {
		if err := p.(Initializer).Initialize(record); err != nil {
			return nil, errors.Annotatef(err, "initializing %s cache", id)
		}
	}
	return p, nil
}

// Options returns the adapter options of a cache instance record: the
// record's own non-reserved keys with the "options" mapping laid over them.
//
//	{adapter: filesystem, directory: /tmp/x}            → {directory: /tmp/x}
//	{adapter: array, options: {limit: 10}, limit: 99}   → {limit: 10}
func Options(record tree.Node) tree.Node {
	flat := record.Without(reserved...)
	if !flat.IsMap() {
		flat = tree.EmptyMap()
	}
	if opts := record.Get("options"); opts.IsMap() {
		return tree.Merge(flat, opts)
	}
	return flat
}
