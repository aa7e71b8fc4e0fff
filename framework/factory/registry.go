// Package factory holds the identifier → constructor tables that replace
// dynamic class instantiation. Every adapter, driver and manager kind the
// container can build is registered here by name at startup; an unknown
// identifier is rejected instead of being looked up at runtime.
package factory

import (
	"sort"
	"sync"

	"github.com/juju/errors"
)

// Registry maps identifiers to constructors of type F.
//
//	drivers := factory.New[Opener]("sql driver")
//	drivers.Register("sqlite3", openSQLite)
//	open, err := drivers.Lookup("sqlite3")
type Registry[F any] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]F
}

// New returns an empty registry. kind names the registered things in error
// messages ("cache adapter", "sql driver").
func New[F any](kind string) *Registry[F] {
	return &Registry[F]{kind: kind, items: make(map[string]F)}
}

// Register binds id to f. A later registration under the same id replaces
// the earlier one, so applications can override built-ins.
func (r *Registry[F]) Register(id string, f F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = f
}

// Alias makes alias resolve to whatever id resolves to now.
func (r *Registry[F]) Alias(id, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return errors.NotFoundf("%s %q", r.kind, id)
	}
	r.items[alias] = f
	return nil
}

// Lookup returns the constructor registered under id. An unknown id yields
// an error satisfying errors.Is(err, errors.NotValid).
func (r *Registry[F]) Lookup(id string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.items[id]
	if !ok {
		var zero F
		return zero, errors.NotValidf("unknown %s %q", r.kind, id)
	}
	return f, nil
}

// Has reports whether id is registered.
func (r *Registry[F]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry[F]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Kind returns the label given to New.
func (r *Registry[F]) Kind() string { return r.kind }
