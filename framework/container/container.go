package container

import (
	"context"
	"io"
	"sync"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/odm"
	"github.com/km-arc/go-persistence/framework/orm"
	"github.com/km-arc/go-persistence/framework/tree"
)

// ── Options ───────────────────────────────────────────────────────────────────

// Option configures a Container.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	providers  []ServiceProvider
	appPath    string
	fs         afero.Fs
	clock      clock.Clock
}

// WithLogger sets the logger builds are reported to. The default discards
// everything.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithRegisterer registers the container's Collector with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithProviders adds service providers. They are registered in order and
// booted once the configuration has been normalized.
func WithProviders(p ...ServiceProvider) Option {
	return func(o *options) { o.providers = append(o.providers, p...) }
}

// WithApplicationPath anchors the default proxy and hydrator directories.
// The default is ".".
func WithApplicationPath(path string) Option { return func(o *options) { o.appPath = path } }

// WithFs sets the filesystem metadata files are read from. The default is
// the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithClock sets the clock used to time builds.
func WithClock(clk clock.Clock) Option { return func(o *options) { o.clock = clk } }

// ── Container ─────────────────────────────────────────────────────────────────

// Container turns a configuration tree into lazily built, named singleton
// connections, cache instances, entity managers and document managers.
//
// Lookups take the read lock; Reset and Close take the write lock, so they
// wait for in-flight builds and block new ones.
type Container struct {
	mu sync.RWMutex

	raw     tree.Node
	appPath string
	fs      afero.Fs
	logger  *zap.Logger
	metrics *Collector

	factories  *Factories
	providers  *ProviderRegistry
	metadata   *mapping.Registry
	registries map[Category]*registry
}

// New normalizes cfg and boots the given providers. cfg is a tree.Node or
// anything tree.Of accepts, typically the decoded contents of a config
// file.
//
//	c, err := container.New(map[string]any{
//	    "dbal":  map[string]any{"parameters": map[string]any{"driver": "sqlite3"}},
//	    "cache": map[string]any{"adapter": "array"},
//	}, container.WithProviders(providers.Defaults()...))
func New(cfg any, opts ...Option) (*Container, error) {
	o := options{appPath: ".", fs: afero.NewOsFs(), clock: clock.WallClock}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	raw, err := tree.Of(cfg)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	sections, err := NormalizeRoot(raw, o.appPath)
	if err != nil {
		return nil, err
	}

	c := &Container{
		raw:       raw,
		appPath:   o.appPath,
		fs:        o.fs,
		logger:    o.logger,
		metrics:   NewMetricsCollector(),
		factories: NewFactories(),
		metadata:  mapping.NewRegistry(o.fs),
	}
	if o.registerer != nil {
		if err := o.registerer.Register(c.metrics); err != nil {
			return nil, errors.Annotate(err, "registering metrics")
		}
	}
	builders := map[Category]Builder{
		ConnectionCategory:      c.buildConnection,
		CacheCategory:           c.buildCache,
		EntityManagerCategory:   c.buildEntityManager,
		DocumentManagerCategory: c.buildDocumentManager,
	}
	c.registries = make(map[Category]*registry, len(Categories))
	for _, cat := range Categories {
		r := newRegistry(cat, builders[cat], c.logger, c.metrics, o.clock)
		r.load(sections[cat])
		c.registries[cat] = r
	}

	c.providers = NewProviderRegistry(c)
	for _, p := range o.providers {
		if err := c.providers.Register(p); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err := c.providers.Boot(); err != nil {
		return nil, errors.Trace(err)
	}
	c.logger.Debug("container ready", zap.Strings("providers", c.providers.Names()))
	return c, nil
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// Get returns the instance named name in cat, building it on first use.
// An empty name means the category's default.
func (c *Container) Get(ctx context.Context, cat Category, name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(ctx, cat, name)
}

func (c *Container) get(ctx context.Context, cat Category, name string) (any, error) {
	r, ok := c.registries[cat]
	if !ok {
		return nil, errors.NotValidf("category %q", cat)
	}
	return r.get(ctx, name, resolver{c})
}

// resolver is handed to builders. It reads registries without taking the
// container lock, which the outer Get already holds.
type resolver struct{ c *Container }

func (r resolver) Get(ctx context.Context, cat Category, name string) (any, error) {
	return r.c.get(ctx, cat, name)
}

// Connection returns a named connection.
func (c *Container) Connection(ctx context.Context, name string) (*database.Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ResolveConnection(ctx, resolver{c}, name)
}

// CacheInstance returns a named cache instance.
func (c *Container) CacheInstance(ctx context.Context, name string) (cache.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ResolveCache(ctx, resolver{c}, name)
}

// EntityManager returns a named entity manager.
func (c *Container) EntityManager(ctx context.Context, name string) (*orm.EntityManager, error) {
	v, err := c.Get(ctx, EntityManagerCategory, name)
	if err != nil {
		return nil, err
	}
	em, ok := v.(*orm.EntityManager)
	if !ok {
		return nil, errors.Errorf("entity manager %q is a %T", name, v)
	}
	return em, nil
}

// DocumentManager returns a named document manager.
func (c *Container) DocumentManager(ctx context.Context, name string) (*odm.DocumentManager, error) {
	v, err := c.Get(ctx, DocumentManagerCategory, name)
	if err != nil {
		return nil, err
	}
	dm, ok := v.(*odm.DocumentManager)
	if !ok {
		return nil, errors.Errorf("document manager %q is a %T", name, v)
	}
	return dm, nil
}

// ── Introspection ─────────────────────────────────────────────────────────────

// Names lists the configured and built names of cat, sorted. An unknown
// category has none.
func (c *Container) Names(cat Category) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.registries[cat]; ok {
		return r.names()
	}
	return nil
}

func (c *Container) ConnectionNames() []string      { return c.Names(ConnectionCategory) }
func (c *Container) CacheInstanceNames() []string   { return c.Names(CacheCategory) }
func (c *Container) EntityManagerNames() []string   { return c.Names(EntityManagerCategory) }
func (c *Container) DocumentManagerNames() []string { return c.Names(DocumentManagerCategory) }

// DefaultName returns the default instance name of cat.
func (c *Container) DefaultName(cat Category) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.registries[cat]; ok {
		return r.defaultInstanceName()
	}
	return ""
}

// Configured reports whether name still has an unbuilt record in cat.
func (c *Container) Configured(cat Category, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.registries[cat]
	return ok && r.configured(name)
}

// Loaded reports whether name has been built in cat.
func (c *Container) Loaded(cat Category, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.registries[cat]
	return ok && r.loaded(name)
}

// Factories returns the identifier tables filled in by the providers.
func (c *Container) Factories() *Factories { return c.factories }

// Providers returns the provider registry. Providers registered after New
// are booted immediately.
func (c *Container) Providers() *ProviderRegistry { return c.providers }

// Metadata returns the metadata registry shared by the static drivers.
func (c *Container) Metadata() *mapping.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata
}

func (c *Container) Logger() *zap.Logger { return c.logger }

func (c *Container) ApplicationPath() string { return c.appPath }

// Collector returns the container's metrics.
func (c *Container) Collector() *Collector { return c.metrics }

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Reset drops every instance and record and normalizes the original
// configuration again. Instances are not closed, since callers may still
// hold them; use Close for that. When normalization fails every category
// is left empty.
func (c *Container) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reset()
}

func (c *Container) reset() error {
	c.metadata = mapping.NewRegistry(c.fs)
	sections, err := NormalizeRoot(c.raw, c.appPath)
	if err != nil {
		for _, cat := range Categories {
			c.registries[cat].load(Section{DefaultName: DefaultName})
		}
		return err
	}
	for _, cat := range Categories {
		c.registries[cat].load(sections[cat])
	}
	c.logger.Debug("container reset")
	return nil
}

// Close closes every built instance that is an io.Closer, managers before
// caches before connections, then resets. The first close error is
// returned; the rest are logged.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for i := len(Categories) - 1; i >= 0; i-- {
		cat := Categories[i]
		for name, inst := range c.registries[cat].loadedInstances() {
			closer, ok := inst.(io.Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil {
				err = errors.Annotatef(err, "closing %s %q", cat, name)
				c.logger.Warn("close failed", zap.Error(err))
				if first == nil {
					first = err
				}
			}
		}
	}
	if err := c.reset(); err != nil && first == nil {
		first = err
	}
	return first
}
